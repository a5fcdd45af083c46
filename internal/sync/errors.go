package sync

import (
	"errors"
	"fmt"
)

// ValidationError marks a submission that was rejected before any durable
// processing state was created. The caller must fix the payload and resend
// under the same reference.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

func newValidationError(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// ConflictError marks an action that is not applicable to the entry's current
// state, e.g. approving an entry that is no longer pending.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s", e.Reason)
}

func newConflictError(format string, args ...interface{}) error {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IntegrityGapError marks a ledger row claiming success whose referenced
// entity cannot be found. It is surfaced, never silently treated as success.
type IntegrityGapError struct {
	Reference  string
	EntityType EntryType
	EntityID   uint
}

func (e *IntegrityGapError) Error() string {
	return fmt.Sprintf("integrity gap: %s %q reports success but entity %d is missing",
		e.EntityType, e.Reference, e.EntityID)
}
