package schema

import (
	"sort"

	"github.com/aretw0/strata/pkg/domain"
)

// Schema is a map of slice names to their expected types.
// Example: {"title": String(), "zoom": Float(), "layers": Slice(String())}
type Schema map[string]Type

// Validate checks every slice of tree that the schema names.
// Absent slices and slices the schema does not name are accepted.
// Failures are reported in slice name order.
func (s Schema) Validate(tree domain.Tree) error {
	if len(s) == 0 {
		return nil
	}

	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		value, exists := tree[key]
		if !exists {
			continue
		}
		if err := s.ValidateSlice(key, value); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// ValidateSlice checks one value against the type declared for key.
// Keys the schema does not name are accepted.
func (s Schema) ValidateSlice(key string, value any) error {
	typ, ok := s[key]
	if !ok || typ == nil {
		return nil
	}
	if err := typ.Validate(value); err != nil {
		return &ValidationError{Key: key, Reason: err.Error(), Value: value}
	}
	return nil
}

// Keys returns the declared slice names, sorted.
func (s Schema) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
