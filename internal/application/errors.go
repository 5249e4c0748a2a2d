package application

import (
	"errors"
	"fmt"

	"github.com/example/icebreaker-scheduler/internal/meeting"
	"github.com/example/icebreaker-scheduler/internal/persistence"
)

var (
	// ErrUnauthorized is returned when no authenticated principal is present.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrForbidden is returned when the principal may not act on the resource.
	ErrForbidden = errors.New("application: forbidden")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrConflict is returned when the resource's current state does not allow the operation.
	ErrConflict = errors.New("application: conflict")
	// ErrDuplicatePendingMeeting is returned when the two users already share a pending meeting.
	ErrDuplicatePendingMeeting = errors.New("application: a pending meeting already exists between these users")
	// ErrCancellationWindow is returned when a confirmed meeting is inside the no-cancel window.
	ErrCancellationWindow = errors.New("application: meeting can no longer be cancelled")
	// ErrCalendarNotConnected is returned when a calendar import is requested without a connected calendar.
	ErrCalendarNotConnected = errors.New("application: no external calendar connected")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func fieldError(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}

// mapLifecycleError translates state machine errors into service errors.
// The original error stays in the chain for logging.
func mapLifecycleError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, meeting.ErrNotParticipant), errors.Is(err, meeting.ErrNotResponder):
		return fmt.Errorf("%w: %w", ErrForbidden, err)
	case errors.Is(err, meeting.ErrCancellationWindow):
		return fmt.Errorf("%w: %w", ErrCancellationWindow, err)
	case errors.Is(err, meeting.ErrInvalidProposedTime):
		return fieldError("scheduled_at", "must be in the future")
	case errors.Is(err, meeting.ErrSameParticipant):
		return fieldError("recipient_id", "cannot request a meeting with yourself")
	case errors.Is(err, meeting.ErrInvalidTransition),
		errors.Is(err, meeting.ErrProposalExpired),
		errors.Is(err, meeting.ErrNotYetHeld):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return err
	}
}

func mapMeetingRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w: %w", ErrDuplicatePendingMeeting, err)
	case errors.Is(err, persistence.ErrConflict):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case errors.Is(err, persistence.ErrConstraintViolation):
		return fieldError("meeting", "meeting violates a storage constraint")
	default:
		return err
	}
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}
