package model

import (
	"fmt"

	"github.com/google/uuid"
)

// ValidationError rejects malformed input before any state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Reason)
}

// NewValidationError creates a field-addressed validation error.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError signals an operation referencing an unknown item id.
type NotFoundError struct {
	ID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("queue item %s not found", e.ID)
}

// ConflictError signals an operation forbidden by the item's current status,
// e.g. cancelling an already-matched item.
type ConflictError struct {
	ID     uuid.UUID
	Status Status
	Op     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cannot %s queue item %s in status %q", e.Op, e.ID, e.Status)
}

// OptimizationConfigError rejects an invalid configuration patch; the
// previous configuration stays in effect.
type OptimizationConfigError struct {
	Field  string
	Reason string
}

func (e *OptimizationConfigError) Error() string {
	return fmt.Sprintf("invalid optimization config %q: %s", e.Field, e.Reason)
}
