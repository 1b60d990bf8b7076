package schema

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
)

// Type defines the contract for slice validation.
type Type interface {
	// Name returns the type string ParseType accepts (e.g. "string", "[int]").
	Name() string
	// Validate checks if a value conforms to this type.
	Validate(value any) error
}

type stringType struct{}

func (stringType) Name() string { return "string" }

func (stringType) Validate(value any) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	return nil
}

type intType struct{}

func (intType) Name() string { return "int" }

func (intType) Validate(value any) error {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return nil
	case float64:
		// Accept floats that are whole numbers (from JSON unmarshaling)
		if v == float64(int64(v)) {
			return nil
		}
		return fmt.Errorf("expected int, got float (not a whole number)")
	default:
		return fmt.Errorf("expected int, got %T", value)
	}
}

type floatType struct{}

func (floatType) Name() string { return "float" }

func (floatType) Validate(value any) error {
	switch value.(type) {
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return nil
	default:
		return fmt.Errorf("expected float, got %T", value)
	}
}

type boolType struct{}

func (boolType) Name() string { return "bool" }

func (boolType) Validate(value any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("expected bool, got %T", value)
	}
	return nil
}

type mapType struct{}

func (mapType) Name() string { return "map" }

func (mapType) Validate(value any) error {
	if m, ok := domain.AsMap(value); !ok || m == nil {
		return fmt.Errorf("expected map, got %T", value)
	}
	return nil
}

type anyType struct{}

func (anyType) Name() string { return "any" }

func (anyType) Validate(any) error { return nil }

type sliceType struct {
	elem Type
}

func (t sliceType) Name() string {
	return "[" + t.elem.Name() + "]"
}

func (t sliceType) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return fmt.Errorf("expected slice, got %T", value)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := t.elem.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

type optionalType struct {
	elem Type
}

func (t optionalType) Name() string { return "?" + t.elem.Name() }

func (t optionalType) Validate(value any) error {
	if value == nil {
		return nil
	}
	return t.elem.Validate(value)
}

type customType struct {
	name     string
	validate func(any) error
}

func (t customType) Name() string { return t.name }

func (t customType) Validate(value any) error { return t.validate(value) }

// String accepts strings.
func String() Type { return stringType{} }

// Int accepts integers and whole floats.
func Int() Type { return intType{} }

// Float accepts any number.
func Float() Type { return floatType{} }

// Bool accepts booleans.
func Bool() Type { return boolType{} }

// Map accepts non-nil maps and trees.
func Map() Type { return mapType{} }

// Any accepts every value, including nil.
func Any() Type { return anyType{} }

// Slice accepts slices whose elements all match elem.
func Slice(elem Type) Type { return sliceType{elem: elem} }

// Optional accepts nil or a value matching elem.
func Optional(elem Type) Type { return optionalType{elem: elem} }

// Custom creates a type from a user-defined validation function.
func Custom(name string, validate func(any) error) Type {
	return customType{name: name, validate: validate}
}

// ParseType converts a type string to a Type.
// Supported: string, int, float, bool, map, any, [T] for slices and ?T for nullable values.
func ParseType(typeStr string) (Type, error) {
	typeStr = strings.TrimSpace(typeStr)

	if rest, ok := strings.CutPrefix(typeStr, "?"); ok {
		elem, err := ParseType(rest)
		if err != nil {
			return nil, err
		}
		return Optional(elem), nil
	}

	if len(typeStr) > 2 && typeStr[0] == '[' && typeStr[len(typeStr)-1] == ']' {
		elem, err := ParseType(typeStr[1 : len(typeStr)-1])
		if err != nil {
			return nil, err
		}
		return Slice(elem), nil
	}

	switch typeStr {
	case "string":
		return String(), nil
	case "int":
		return Int(), nil
	case "float":
		return Float(), nil
	case "bool":
		return Bool(), nil
	case "map":
		return Map(), nil
	case "any":
		return Any(), nil
	default:
		return nil, fmt.Errorf("unsupported type: %q", typeStr)
	}
}

// ParseTypeMap converts a map of slice names to type strings into a Schema.
// Example: {"title": "string", "layers": "[string]"}
func ParseTypeMap(typeMap map[string]string) (Schema, error) {
	result := make(Schema, len(typeMap))
	for key, typeStr := range typeMap {
		t, err := ParseType(typeStr)
		if err != nil {
			return nil, domain.NewValidationError("schema."+key, err.Error(), typeStr)
		}
		result[key] = t
	}
	return result, nil
}
