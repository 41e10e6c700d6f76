package models

import (
	"time"

	"github.com/google/uuid"
)

// Volunteer is a person identified by a lower-cased email.
type Volunteer struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registration links a volunteer to a slot. CheckInTime is set iff CheckedIn.
type Registration struct {
	SlotID      uuid.UUID  `json:"slot_id"`
	VolunteerID uuid.UUID  `json:"volunteer_id"`
	CheckedIn   bool       `json:"checked_in"`
	CheckInTime *time.Time `json:"check_in_time,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
