// Package apperr defines the error taxonomy shared by all core services.
// Every core operation returns one of these as an explicit result; handlers
// translate them to HTTP statuses at the boundary.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested event or registration does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller's role or identity does not permit the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyRegistered is returned when a user already holds a registration for the event.
	// This is an expected business outcome, not a system fault.
	ErrAlreadyRegistered = errors.New("already registered for this event")

	// ErrEventFull is returned when an event has no remaining capacity.
	// This is an expected business outcome, not a system fault.
	ErrEventFull = errors.New("event is fully booked")

	// ErrEventNotOpen is returned when registering for a cancelled or completed event.
	ErrEventNotOpen = errors.New("event is not open for registration")

	// ErrStoreCorrupted signals a broken storage invariant, e.g. a uniqueness
	// constraint violated despite the ledger's checks. Unrecoverable.
	ErrStoreCorrupted = errors.New("storage invariant violated")
)

// ValidationError reports malformed input. The caller can recover by
// correcting the named field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// Validation creates a ValidationError for a field.
func Validation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TransientError wraps a store I/O or timeout failure that is safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient store error: " + e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a retryable store failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is a retryable store failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Forbiddenf wraps ErrForbidden with a reason so the denial is never a
// silent no-op.
func Forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}
