package application

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrLockExpired is returned when a release targets a lock past its expiry.
	ErrLockExpired = errors.New("application: lock expired")
	// ErrInvalidCursor marks an undecodable pagination cursor. It is logged
	// and treated as "start from the beginning", never surfaced to callers.
	ErrInvalidCursor = errors.New("application: invalid cursor")
)

// ParticipantLockedError reports an acquire conflict with another holder's
// active lock. It carries enough detail for a "locked by X until Y" message.
type ParticipantLockedError struct {
	CurrentHolder     string
	CurrentHolderName string
	LockExpiresAt     time.Time
}

// Error implements the error interface.
func (e *ParticipantLockedError) Error() string {
	holder := e.CurrentHolderName
	if holder == "" {
		holder = e.CurrentHolder
	}
	if holder == "" {
		return "participant is locked by another team leader"
	}
	return fmt.Sprintf("participant is locked by %s until %s", holder, e.LockExpiresAt.UTC().Format(time.RFC3339))
}

// LockHeldByOtherError reports a release attempted by a non-holder.
type LockHeldByOtherError struct {
	CurrentHolder string
}

// Error implements the error interface.
func (e *LockHeldByOtherError) Error() string {
	return fmt.Sprintf("lock is held by %s", e.CurrentHolder)
}

// ValidationError captures field level validation issues that callers can
// surface to users.
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

// ErrorKind maps sentinel and typed errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrLockExpired):
		return "lock_expired"
	case errors.Is(err, ErrInvalidCursor):
		return "invalid_cursor"
	}

	var lockedErr *ParticipantLockedError
	if errors.As(err, &lockedErr) {
		return "participant_locked"
	}
	var heldErr *LockHeldByOtherError
	if errors.As(err, &heldErr) {
		return "lock_held_by_other"
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}
