package checkin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/volunteer-hub/checkin/internal/models"
)

// Repository implements Store on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a check-in repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const slotDetailsColumns = `id, position_id, start_time, end_time, capacity, created_at, checked_in_count, volunteer_list`

func scanSlotDetails(row pgx.Row) (*models.SlotWithVolunteers, error) {
	var s models.SlotWithVolunteers
	var list []byte
	if err := row.Scan(&s.ID, &s.PositionID, &s.StartTime, &s.EndTime, &s.Capacity, &s.CreatedAt, &s.CheckedInCount, &list); err != nil {
		return nil, err
	}
	if len(list) > 0 {
		if err := json.Unmarshal(list, &s.VolunteerList); err != nil {
			return nil, fmt.Errorf("decode volunteer_list: %w", err)
		}
	}
	if s.VolunteerList == nil {
		s.VolunteerList = []models.SlotVolunteer{}
	}
	return &s, nil
}

// GetSlot returns a slot with its volunteer list from the slot_details view.
func (r *Repository) GetSlot(ctx context.Context, slotID uuid.UUID) (*models.SlotWithVolunteers, error) {
	q := `SELECT ` + slotDetailsColumns + ` FROM slot_details WHERE id = $1`
	s, err := scanSlotDetails(r.pool.QueryRow(ctx, q, slotID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	return s, nil
}

// FindActiveSlots returns timed slots of a position whose window contains now.
func (r *Repository) FindActiveSlots(ctx context.Context, positionID uuid.UUID, now time.Time, limit int) ([]models.SlotWithVolunteers, error) {
	q := `SELECT ` + slotDetailsColumns + ` FROM slot_details
		WHERE position_id = $1 AND start_time <= $2 AND end_time >= $2
		ORDER BY start_time, id LIMIT $3`
	rows, err := r.pool.Query(ctx, q, positionID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("find active slots: %w", err)
	}
	defer rows.Close()
	var list []models.SlotWithVolunteers
	for rows.Next() {
		s, err := scanSlotDetails(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// ListSlots returns every slot of a position, timed slots first by start time.
func (r *Repository) ListSlots(ctx context.Context, positionID uuid.UUID) ([]models.SlotSummary, error) {
	const q = `SELECT id, position_id, start_time, end_time, capacity, created_at, checked_in_count,
		json_array_length(volunteer_list)
		FROM slot_details WHERE position_id = $1
		ORDER BY start_time NULLS LAST, created_at`
	rows, err := r.pool.Query(ctx, q, positionID)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()
	var list []models.SlotSummary
	for rows.Next() {
		var s models.SlotSummary
		if err := rows.Scan(&s.ID, &s.PositionID, &s.StartTime, &s.EndTime, &s.Capacity, &s.CreatedAt, &s.CheckedInCount, &s.RegisteredCount); err != nil {
			return nil, fmt.Errorf("scan slot summary: %w", err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// UpsertVolunteer inserts a volunteer or overwrites the stored name of an
// existing one. email must already be lower-cased.
func (r *Repository) UpsertVolunteer(ctx context.Context, email, name string) (*models.Volunteer, error) {
	const q = `INSERT INTO volunteers (id, email, name)
		VALUES (gen_random_uuid(), $1, NULLIF($2, ''))
		ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()
		RETURNING id, email, COALESCE(name, ''), created_at, updated_at`
	var v models.Volunteer
	err := r.pool.QueryRow(ctx, q, email, name).Scan(&v.ID, &v.Email, &v.Name, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert volunteer: %w", err)
	}
	return &v, nil
}

// GetRegistration returns the registration of a volunteer at a slot.
func (r *Repository) GetRegistration(ctx context.Context, slotID, volunteerID uuid.UUID) (*models.Registration, error) {
	const q = `SELECT slot_id, volunteer_id, checked_in, check_in_time, created_at
		FROM slot_volunteers WHERE slot_id = $1 AND volunteer_id = $2`
	var reg models.Registration
	err := r.pool.QueryRow(ctx, q, slotID, volunteerID).Scan(&reg.SlotID, &reg.VolunteerID, &reg.CheckedIn, &reg.CheckInTime, &reg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return &reg, nil
}

// MarkCheckedIn sets checked_in and check_in_time on one registration row,
// only while checked_in is still false.
func (r *Repository) MarkCheckedIn(ctx context.Context, slotID, volunteerID uuid.UUID, at time.Time) (bool, error) {
	const q = `UPDATE slot_volunteers SET checked_in = TRUE, check_in_time = $3
		WHERE slot_id = $1 AND volunteer_id = $2 AND checked_in = FALSE`
	tag, err := r.pool.Exec(ctx, q, slotID, volunteerID, at)
	if err != nil {
		return false, fmt.Errorf("mark checked in: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
