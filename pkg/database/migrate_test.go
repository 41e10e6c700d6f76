package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationNames_SortedAndEmbedded(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"001_schema.sql", "002_slot_details.sql"}, names)

	for _, n := range names {
		body, err := migrationsFS.ReadFile("migrations/" + n)
		require.NoError(t, err)
		assert.NotEmpty(t, body, n)
	}
}

func TestPending_SkipsApplied(t *testing.T) {
	names := []string{"001_schema.sql", "002_slot_details.sql", "003_more.sql"}

	assert.Equal(t, names, pending(names, map[string]bool{}))
	assert.Equal(t, []string{"003_more.sql"}, pending(names, map[string]bool{
		"001_schema.sql":       true,
		"002_slot_details.sql": true,
	}))
	assert.Empty(t, pending(names, map[string]bool{
		"001_schema.sql":       true,
		"002_slot_details.sql": true,
		"003_more.sql":         true,
	}))
}

func TestSlotDetailsView_ExposesCheckInColumns(t *testing.T) {
	body, err := migrationsFS.ReadFile("migrations/002_slot_details.sql")
	require.NoError(t, err)
	for _, col := range []string{"checked_in_count", "volunteer_list", "check_in_time", "position_id"} {
		assert.Contains(t, string(body), col)
	}
}
