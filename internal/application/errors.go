package application

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredential is returned when a credential is missing, malformed, expired or unknown.
	ErrInvalidCredential = errors.New("application: invalid credential")
	// ErrAccountDisabled is returned when a registered actor has been deactivated.
	ErrAccountDisabled = errors.New("application: account disabled")
	// ErrForbidden is returned when the acting actor lacks permission for an operation.
	ErrForbidden = errors.New("application: forbidden")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrInvalidTransition is returned when a booking status change is not allowed from its current state.
	ErrInvalidTransition = errors.New("application: invalid status transition")
	// ErrConflict is returned when a booking changed between read and write
	// more often than a mutation is willing to retry.
	ErrConflict = errors.New("application: concurrent modification")
	// ErrAlreadyExists is returned when a unique resource collides with an existing one.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrRateLimited is returned when a caller exceeded its request budget.
	ErrRateLimited = errors.New("application: rate limited")

	ErrSessionExpired = fmt.Errorf("%w: session expired", ErrInvalidCredential)
	ErrSessionRevoked = fmt.Errorf("%w: session revoked", ErrInvalidCredential)
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

// Message returns the first recorded message for field, if any.
func (v *ValidationError) Message(field string) string {
	if v == nil {
		return ""
	}
	return v.FieldErrors[field]
}

// add records a field level validation error. The first message per field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
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

func newValidationError(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}
