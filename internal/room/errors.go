package room

import (
	"errors"
	"fmt"
)

// Kind classifies a typed failure.
type Kind string

// Failure kinds.
const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindRateLimited Kind = "rate_limited"
)

// Error is a typed, expected failure of a room operation. Reason is a short
// human-readable string from a fixed set and is safe to show to users.
// Anything that is not an *Error is an unexpected storage failure.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

// Retryable reports whether the same call may succeed later without changes.
func (e *Error) Retryable() bool {
	return e.Kind == KindRateLimited
}

// Failure reasons.
const (
	ReasonIdentityRequired = "Identity is required"
	ReasonNameRequired     = "Room name is required"
	ReasonPlayerName       = "Display name is required"
	ReasonRoomNotFound     = "Room not found"
	ReasonAlreadyStarted   = "Room already started"
	ReasonRoomFull         = "Room is full"
	ReasonWrongPassword    = "Wrong password"
	ReasonOnlyHostStart    = "Only host can start"
	ReasonRaceStarted      = "Race already started"
	ReasonNeedPlayers      = "Need at least 2 players to start"
	ReasonOnlyHostClock    = "Only host can advance the clock"
	ReasonNoCountdown      = "Countdown is not running"
	ReasonNotRacing        = "Race is not running"
	ReasonNotMember        = "Not in this room"
	ReasonCreateLimited    = "Rate limit: too many rooms created. Try again later."
	ReasonJoinLimited      = "Rate limit: too many joins. Try again later."
	ReasonNoJoinCode       = "Could not allocate a room code"
)

func validation(reason string) *Error { return &Error{Kind: KindValidation, Reason: reason} }
func notFound(reason string) *Error   { return &Error{Kind: KindNotFound, Reason: reason} }
func conflict(reason string) *Error   { return &Error{Kind: KindConflict, Reason: reason} }
func limited(reason string) *Error    { return &Error{Kind: KindRateLimited, Reason: reason} }

func capacityError(lo, hi int) *Error {
	return validation(fmt.Sprintf("Capacity must be between %d and %d", lo, hi))
}

func durationError(hi int) *Error {
	return validation(fmt.Sprintf("Duration must be between 0 and %d seconds", hi))
}

// AsError extracts a typed failure from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err is a typed failure of kind k.
func IsKind(err error, k Kind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == k
}
