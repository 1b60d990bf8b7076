package schema

import (
	"fmt"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
)

// ValidationError represents a single slice validation failure.
type ValidationError struct {
	Key    string // Slice name
	Reason string // Human-readable reason for failure
	Value  any    // The value that failed validation
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("slice %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("slice %q: %s (got %T)", e.Key, e.Reason, e.Value)
}

// Is makes errors.Is(err, domain.ErrValidation) hold.
func (e *ValidationError) Is(target error) bool {
	return target == domain.ErrValidation
}

// AggregateError represents multiple validation failures.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d validation errors:", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, err.Error())
	}
	return b.String()
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// ValidationErrors returns all validation errors if err is an AggregateError.
// Otherwise returns nil.
func ValidationErrors(err error) []error {
	if aggr, ok := err.(*AggregateError); ok {
		return aggr.Errors
	}
	return nil
}
