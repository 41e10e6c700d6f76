package checkin

import (
	"errors"
)

// ErrNotFound is returned by a Store when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// Kind classifies a check-in failure for the presentation layer.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidInput means a missing or malformed id or email.
	KindInvalidInput
	// KindNotFound means no slot matched the position, window or id.
	KindNotFound
	// KindSlotInactive means the slot exists but its window does not contain now.
	KindSlotInactive
	// KindInvalidSlot means a check-in referenced a slot that does not exist.
	KindInvalidSlot
	// KindNotRegistered means the email has no registration at the slot.
	KindNotRegistered
	// KindAlreadyCheckedIn is terminal: the registration was already checked in.
	KindAlreadyCheckedIn
	// KindTransient means the backing store failed; the whole operation may be retried.
	KindTransient
)

var kindNames = map[Kind]string{
	KindUnknown:          "unknown",
	KindInvalidInput:     "invalid_input",
	KindNotFound:         "not_found",
	KindSlotInactive:     "slot_inactive",
	KindInvalidSlot:      "invalid_slot",
	KindNotRegistered:    "not_registered",
	KindAlreadyCheckedIn: "already_checked_in",
	KindTransient:        "transient",
}

// String returns the snake_case name used in API responses.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// Retriable reports whether repeating the same request may succeed.
func (k Kind) Retriable() bool {
	return k == KindTransient
}

// Error is a classified check-in failure. Error() returns only the
// user-facing message; the cause is kept for logging.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err. Errors that were not classified by this
// package are transient.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindTransient
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func transient(msg string, cause error) *Error {
	return &Error{Kind: KindTransient, Message: msg, Err: cause}
}

const (
	msgPositionRequired = "position id is required"
	msgInvalidPosition  = "invalid position id"
	msgInvalidSlotID    = "invalid slot id"
	msgNoActiveSlot     = "no active time slot found for check-in"
	msgSlotInactive     = "this time slot is not currently active, please check again later"
	msgInvalidSlot      = "invalid slot"
	msgInvalidEmail     = "a valid email address is required"
	msgNotRegistered    = "no registration found for this email address"
	msgAlreadyCheckedIn = "you're already checked in for this slot"
	msgSlotNotFound     = "slot not found"
)
