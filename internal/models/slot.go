package models

import (
	"time"

	"github.com/google/uuid"
)

// Position groups the time slots of one volunteer activity.
type Position struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Slot is a time slot of a position. A slot with no bounds is flexible.
type Slot struct {
	ID             uuid.UUID  `json:"id"`
	PositionID     uuid.UUID  `json:"position_id"`
	StartTime      *time.Time `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
	Capacity       int        `json:"capacity"`
	CreatedAt      time.Time  `json:"created_at"`
	CheckedInCount int        `json:"checked_in_count"`
}

// IsFlexible reports whether the slot has no time window.
func (s Slot) IsFlexible() bool {
	return s.StartTime == nil || s.EndTime == nil
}

// VolunteerRef is the volunteer identity embedded in a slot's volunteer list.
type VolunteerRef struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// SlotVolunteer is one registration entry of a slot, as exposed by the slot_details view.
type SlotVolunteer struct {
	Volunteer   VolunteerRef `json:"volunteer"`
	Name        string       `json:"name,omitempty"`
	CheckedIn   bool         `json:"checked_in"`
	CheckInTime *time.Time   `json:"check_in_time,omitempty"`
}

// SlotWithVolunteers is a slot with its aggregated registrations.
type SlotWithVolunteers struct {
	Slot
	VolunteerList []SlotVolunteer `json:"volunteer_list"`
}

// Pending returns the registrations that have not checked in yet.
func (s *SlotWithVolunteers) Pending() []SlotVolunteer {
	pending := make([]SlotVolunteer, 0, len(s.VolunteerList))
	for _, v := range s.VolunteerList {
		if !v.CheckedIn {
			pending = append(pending, v)
		}
	}
	return pending
}

// SlotSummary is one row of a position's slot overview.
type SlotSummary struct {
	Slot
	RegisteredCount int `json:"registered_count"`
}
