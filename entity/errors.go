package entity

import (
	"errors"
	"fmt"
)

// Validation errors. They are raised before any statement is compiled.
var (
	// ErrUndefinedValue is matched by *UndefinedValueError.
	ErrUndefinedValue = errors.New("undefined filter value")

	// ErrUnknownField is returned when a plain filter names a column the
	// entity does not map.
	ErrUnknownField = errors.New("unknown field")

	// ErrUnsupportedInput is returned for entity or condition arguments of an
	// unsupported type.
	ErrUnsupportedInput = errors.New("unsupported input")

	// ErrMissingPrimaryKey is returned by single-row operations whose input
	// carries no primary key value.
	ErrMissingPrimaryKey = errors.New("primary key value required")
)

// ErrNoRowReturned is returned by Add when an insert reports no row, so that
// results stay aligned with inputs.
var ErrNoRowReturned = errors.New("insert returned no row")

// UndefinedValueError names the filter key holding an undefined value
// (a typed nil pointer).
type UndefinedValueError struct {
	Key string
}

func (e *UndefinedValueError) Error() string {
	return fmt.Sprintf("%s for key %q", ErrUndefinedValue, e.Key)
}

// Is reports whether target is ErrUndefinedValue.
func (e *UndefinedValueError) Is(target error) bool {
	return target == ErrUndefinedValue
}
