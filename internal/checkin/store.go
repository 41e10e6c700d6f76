package checkin

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/volunteer-hub/checkin/internal/models"
)

// Store is the backing-store contract of the check-in flow. Missing rows
// are reported as ErrNotFound; any other error is treated as transient.
type Store interface {
	GetSlot(ctx context.Context, slotID uuid.UUID) (*models.SlotWithVolunteers, error)
	// FindActiveSlots returns at most limit timed slots of the position whose
	// window contains now, earliest start first.
	FindActiveSlots(ctx context.Context, positionID uuid.UUID, now time.Time, limit int) ([]models.SlotWithVolunteers, error)
	ListSlots(ctx context.Context, positionID uuid.UUID) ([]models.SlotSummary, error)
	UpsertVolunteer(ctx context.Context, email, name string) (*models.Volunteer, error)
	GetRegistration(ctx context.Context, slotID, volunteerID uuid.UUID) (*models.Registration, error)
	// MarkCheckedIn flips checked_in only if it is still false. It reports
	// whether a row was updated.
	MarkCheckedIn(ctx context.Context, slotID, volunteerID uuid.UUID, at time.Time) (bool, error)
}

// Publisher receives check-in events after a successful transition.
type Publisher interface {
	PublishCheckIn(ctx context.Context, ev Event) error
}

// Event describes one successful check-in.
type Event struct {
	SlotID         uuid.UUID `json:"slot_id"`
	PositionID     uuid.UUID `json:"position_id"`
	VolunteerID    uuid.UUID `json:"volunteer_id"`
	Email          string    `json:"email"`
	Name           string    `json:"name,omitempty"`
	CheckedInAt    time.Time `json:"checked_in_at"`
	CheckedInCount int       `json:"checked_in_count"`
}
