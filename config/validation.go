package config

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report koanf paths rather than Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	if err := v.RegisterValidation("isolation", validateIsolation); err != nil {
		panic(err)
	}
	v.RegisterStructValidation(validateDatabase, DatabaseConfig{})
	return v
}

var configValidator = newValidator()

// Validate checks cfg and returns a *ValidationError listing every rejected key.
func Validate(cfg *Config) error {
	if err := configValidator.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		out := &ValidationError{Errors: make([]FieldError, 0, len(verrs))}
		for _, fe := range verrs {
			out.Errors = append(out.Errors, FieldError{
				Field: trimRoot(fe.Namespace()),
				Rule:  fe.Tag(),
				Value: fe.Value(),
			})
		}
		return out
	}
	return nil
}

func validateIsolation(fl validator.FieldLevel) bool {
	_, err := ParseIsolationLevel(fl.Field().String())
	return err == nil
}

// validateDatabase requires the connection essentials once any database key is set.
func validateDatabase(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(DatabaseConfig)
	if !cfg.IsConfigured() {
		return
	}
	if cfg.Type == "" {
		sl.ReportError(cfg.Type, "type", "Type", "required", "")
	}
	if cfg.ConnectionString != "" {
		return
	}
	if cfg.Host == "" {
		sl.ReportError(cfg.Host, "host", "Host", "required", "")
	}
	if cfg.Database == "" && cfg.Oracle.ServiceName == "" && cfg.Oracle.SID == "" {
		sl.ReportError(cfg.Database, "database", "Database", "required", "")
	}
	if cfg.Username == "" {
		sl.ReportError(cfg.Username, "username", "Username", "required", "")
	}
}

// trimRoot drops the root struct name from a validator namespace.
func trimRoot(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
