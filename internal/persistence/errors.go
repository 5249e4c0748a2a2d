package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a write would violate a uniqueness rule,
	// including the one-pending-meeting-per-pair rule.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConflict is returned when an optimistic update lost a race.
	ErrConflict = errors.New("persistence: concurrent modification")
	// ErrConstraintViolation is returned for records failing basic integrity checks.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
)
