package checkin

import "time"

// IsTimeSlotActive reports whether now falls inside [start, end], both ends
// inclusive. A slot missing either bound is flexible and always active.
func IsTimeSlotActive(start, end *time.Time, now time.Time) bool {
	if start == nil || end == nil {
		return true
	}
	return !now.Before(*start) && !now.After(*end)
}
