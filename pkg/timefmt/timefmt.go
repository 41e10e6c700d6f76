// Package timefmt converts slot timestamps between UTC storage and the
// local wall-clock strings shown on check-in pages and organizer forms.
package timefmt

import (
	"fmt"
	"time"
)

const (
	// LocalInputLayout is the value format of an HTML datetime-local input.
	LocalInputLayout = "2006-01-02T15:04"
	// DisplayLayout is the numeric date and 12-hour clock used on pages.
	DisplayLayout = "1/2/2006, 03:04 PM"

	flexibleLabel = "Flexible Time Slot"
)

// ToUTCString parses a datetime-local value in loc and returns it as an
// RFC 3339 UTC timestamp. Empty input yields an empty string.
func ToUTCString(local string, loc *time.Location) (string, error) {
	if local == "" {
		return "", nil
	}
	t, err := time.ParseInLocation(LocalInputLayout, local, loc)
	if err != nil {
		return "", fmt.Errorf("parse local datetime %q: %w", local, err)
	}
	return t.UTC().Format(time.RFC3339), nil
}

// ToLocalDateTimeString formats t in loc for a datetime-local input.
func ToLocalDateTimeString(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format(LocalInputLayout)
}

// FormatLocalDateTime formats t in loc for display.
func FormatLocalDateTime(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format(DisplayLayout)
}

// FormatWindow renders a slot window, or the flexible label when either bound is missing.
func FormatWindow(start, end *time.Time, loc *time.Location) string {
	if start == nil || end == nil {
		return flexibleLabel
	}
	return FormatLocalDateTime(start, loc) + " - " + FormatLocalDateTime(end, loc)
}
