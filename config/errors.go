package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig is matched by every validation failure returned from Load and Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// FieldError describes a single rejected configuration key.
type FieldError struct {
	Field string // dotted config path (e.g., "database.port")
	Rule  string // failed rule (e.g., "max", "required")
	Value any
}

// ValidationError collects every rejected key of a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s failed %q (value: %v)", fe.Field, fe.Rule, fe.Value))
	}
	return fmt.Sprintf("%s: %s", ErrInvalidConfig, strings.Join(parts, "; "))
}

// Unwrap makes errors.Is(err, ErrInvalidConfig) succeed.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// Has reports whether field is among the rejected keys.
func (e *ValidationError) Has(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}
