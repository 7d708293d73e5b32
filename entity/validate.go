package entity

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidEntity is matched by *ValidationError.
var ErrInvalidEntity = errors.New("invalid entity")

// ValidationError lists the `validate` tag violations of an entity.
type ValidationError struct {
	Errors []FieldError
}

// FieldError is a single violated constraint.
type FieldError struct {
	Field string
	Tag   string
	Param string
	Value any
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		if fe.Param != "" {
			parts[i] = fmt.Sprintf("%s: %s=%s", fe.Field, fe.Tag, fe.Param)
		} else {
			parts[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Tag)
		}
	}
	return fmt.Sprintf("%s: %s", ErrInvalidEntity, strings.Join(parts, ", "))
}

// Is reports whether target is ErrInvalidEntity.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidEntity
}

// WithValidation checks struct entities against their `validate` tags before
// AddOne, UpsertOne and UpdateOne. A nil v uses a default validator. Plain
// maps are not validated.
func WithValidation(v *validator.Validate) Option {
	return func(o *serviceOptions) {
		if v == nil {
			v = validator.New(validator.WithRequiredStructEnabled())
		}
		o.validate = v
	}
}

// check validates e when it is a struct and validation is enabled.
func (s *Service[T]) check(e any) error {
	if s.validate == nil || e == nil {
		return nil
	}
	rv := reflect.ValueOf(e)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	err := s.validate.Struct(e)
	var violations validator.ValidationErrors
	if !errors.As(err, &violations) {
		return err
	}
	out := &ValidationError{Errors: make([]FieldError, 0, len(violations))}
	for _, fe := range violations {
		out.Errors = append(out.Errors, FieldError{
			Field: fe.Field(),
			Tag:   fe.Tag(),
			Param: fe.Param(),
			Value: fe.Value(),
		})
	}
	return out
}
