// Package apperr holds the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth covers bad credentials, duplicate signups and missing sessions
	ErrAuth = errors.New("authentication failed")

	ErrValidation = errors.New("validation failed")

	// ErrPartialFailure marks a multi-step operation whose first step already succeeded
	ErrPartialFailure = errors.New("operation partially completed")

	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConfirmation = errors.New("confirmation phrase mismatch")
)

// Validation wraps ErrValidation with a user-facing message
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound for the named entity
func NotFound(entity string) error {
	return fmt.Errorf("%s %w", entity, ErrNotFound)
}
