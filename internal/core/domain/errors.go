package domain

import "github.com/pkg/errors"

var (
	ErrTeacherNotFound       = errors.New("teacher not found")
	ErrTeacherInactive       = errors.New("teacher is not accepting parents")
	ErrParentSessionNotFound = errors.New("parent session not found")
	ErrEntryNotFound         = errors.New("queue entry not found")
	ErrMeetingNotFound       = errors.New("meeting not found")
	ErrNoOpenMeeting         = errors.New("teacher has no open meeting")
	ErrDuplicateJoin         = errors.New("you are already in this queue")
	ErrNotEntryOwner         = errors.New("queue entry belongs to another parent")
	ErrInvalidInput          = errors.New("invalid input")
	ErrCodeExhausted         = errors.New("could not allocate a unique teacher code")

	// Invariant violations. These abort the unit of work.
	ErrInvalidTransition  = errors.New("invalid queue entry transition")
	ErrMeetingNotOpen     = errors.New("meeting is not open")
	ErrInvariantViolation = errors.New("scheduler invariant violated")

	// ErrTxConflict marks a serialization failure, deadlock or lock timeout
	// reported by the store. The whole unit of work may be retried.
	ErrTxConflict = errors.New("transaction conflict")
)

// IsNotFound reports whether err is one of the not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTeacherNotFound) ||
		errors.Is(err, ErrParentSessionNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrMeetingNotFound) ||
		errors.Is(err, ErrNoOpenMeeting)
}

// IsInvariantViolation reports whether err signals an internal consistency
// failure rather than a caller mistake.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrMeetingNotOpen) ||
		errors.Is(err, ErrInvariantViolation)
}
