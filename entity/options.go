package entity

import (
	"github.com/go-playground/validator/v10"

	"github.com/gaborage/go-bricks-orm/database/query"
	"github.com/gaborage/go-bricks-orm/database/schema"
	"github.com/gaborage/go-bricks-orm/logger"
)

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	table    *schema.Table
	log      logger.Logger
	exclude  []string
	validate *validator.Validate
}

// WithTable uses table instead of the cached registry entry of the entity type.
func WithTable(table *schema.Table) Option {
	return func(o *serviceOptions) {
		o.table = table
	}
}

// WithLogger sets the service logger.
func WithLogger(log logger.Logger) Option {
	return func(o *serviceOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// WithExclude treats columns as generated by the database: they are never
// inserted or updated.
func WithExclude(columns ...string) Option {
	return func(o *serviceOptions) {
		o.exclude = append(o.exclude, columns...)
	}
}

// SelectOption configures the SELECT started by Service.Select and the
// read helpers built on it.
type SelectOption func(*selectOptions)

type selectOptions struct {
	lock             query.LockMode
	distinct         bool
	includeSensitive bool
}

// Lock adds a row locking clause, e.g. Lock(query.ForUpdate).
func Lock(mode query.LockMode) SelectOption {
	return func(o *selectOptions) {
		o.lock = mode
	}
}

// Distinct selects distinct rows.
func Distinct() SelectOption {
	return func(o *selectOptions) {
		o.distinct = true
	}
}

// IncludeSensitive adds sensitive columns to the default select list.
func IncludeSensitive() SelectOption {
	return func(o *selectOptions) {
		o.includeSensitive = true
	}
}
