package domain

import (
	"errors"
	"fmt"
)

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// ErrLookup matches every *LookupError via errors.Is.
var ErrLookup = errors.New("lookup failed")

// ErrCheckpointNotFound is returned when a checkpoint ID cannot be found in the store.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// ValidationError reports a malformed argument rejected before any state was touched.
type ValidationError struct {
	Field  string // Argument or field name
	Reason string // Human-readable reason for failure
	Value  any    // The value that failed validation
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s (got %T)", e.Field, e.Reason, e.Value)
}

// Is makes errors.Is(err, ErrValidation) hold for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError is a shorthand for building a *ValidationError.
func NewValidationError(field, reason string, value any) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, Value: value}
}

// LookupKind names what a failed lookup was searching for.
type LookupKind string

const (
	LookupSlice   LookupKind = "slice"
	LookupCommand LookupKind = "command"
)

// LookupError reports a reference to a slice or command that does not exist.
type LookupError struct {
	Kind LookupKind
	Name string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Name)
}

// Is makes errors.Is(err, ErrLookup) hold for any LookupError.
func (e *LookupError) Is(target error) bool {
	return target == ErrLookup
}
