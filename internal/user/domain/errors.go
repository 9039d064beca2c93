package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an id does not resolve to a live (non-deleted) user.
	ErrNotFound = errors.New("user not found")
	// ErrUniqueViolation must be returned (optionally wrapped) by repositories when a write
	// would duplicate the email of another live user.
	ErrUniqueViolation = errors.New("unique violation")
)

// ValidationError reports a malformed, out-of-range or unknown input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError returns a ValidationError for field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// PreconditionError reports a transition requested from an incompatible state.
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string { return e.Message }

// Preconditions raised by the lifecycle transitions.
var (
	ErrOnlyDisabledCanBeEnabled = &PreconditionError{Message: "Only disabled user can be enabled"}
	ErrOnlyEnabledCanBeDisabled = &PreconditionError{Message: "Only enabled user can be disabled"}
	ErrEnabledCannotBeDeleted   = &PreconditionError{Message: "Enabled user can't be deleted"}
)

// ConflictError reports that another live user already holds Email.
type ConflictError struct {
	Email string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("User with email %s already exists", e.Email)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsPrecondition reports whether err is or wraps a PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// IsConflict reports whether err is or wraps a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
