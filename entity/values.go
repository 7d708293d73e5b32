package entity

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/gaborage/go-bricks-orm/database/query"
	"github.com/gaborage/go-bricks-orm/database/schema"
)

// classifier decides which attributes of an entity take part in which clause.
type classifier struct {
	table   *schema.Table
	exclude map[string]struct{}
}

// isUndefined reports whether v is an unset optional: a typed nil pointer.
// An untyped nil is a real NULL.
func isUndefined(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// valuesOf converts an entity argument into an attribute map. Structs drop
// nil pointer fields; maps are used as given.
func (c classifier) valuesOf(input any) (query.Values, error) {
	switch v := input.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil entity", ErrUnsupportedInput)
	case query.Values:
		return v, nil
	case map[string]any:
		return query.Values(v), nil
	}

	values, err := c.table.ValuesOf(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedInput, err)
	}
	return values, nil
}

// writable reports whether f may appear in an INSERT or a SET clause.
func (c classifier) writable(f schema.Field) bool {
	if _, excluded := c.exclude[f.Name]; excluded {
		return false
	}
	return !f.IsRelation() && !f.Readonly && !f.AutoIncrement
}

// insertable filters values down to the writable fields and fills registered
// defaults for writable fields that are absent or undefined.
func (c classifier) insertable(values query.Values) query.Values {
	out := make(query.Values, len(values))
	for k, v := range values {
		f, ok := c.table.Field(k)
		if !ok || !c.writable(f) || isUndefined(v) {
			continue
		}
		out[k] = v
	}
	for _, f := range c.table.Fields() {
		if !f.HasDefault || !c.writable(f) {
			continue
		}
		if _, present := out[f.Name]; !present {
			out[f.Name] = f.Default
		}
	}
	return out
}

// updatable is insertable without primary keys and without defaults.
func (c classifier) updatable(values query.Values) query.Values {
	out := make(query.Values, len(values))
	for k, v := range values {
		f, ok := c.table.Field(k)
		if !ok || f.PrimaryKey || !c.writable(f) || isUndefined(v) {
			continue
		}
		out[k] = v
	}
	return out
}

// primaryKey picks the defined primary key attributes of values.
func (c classifier) primaryKey(values query.Values) query.Values {
	out := make(query.Values)
	for k, v := range values {
		f, ok := c.table.Field(k)
		if !ok || !f.PrimaryKey || isUndefined(v) {
			continue
		}
		out[k] = v
	}
	return out
}

// validateFilter rejects undefined values and unknown keys in a plain
// filter map. Qualified names ("u.id") are left to the database.
func (c classifier) validateFilter(values query.Values) error {
	for _, k := range values.Keys() {
		if isUndefined(values[k]) {
			return &UndefinedValueError{Key: k}
		}
		if !c.table.Has(k) && !strings.Contains(k, ".") {
			return fmt.Errorf("%w: %q in table %s", ErrUnknownField, k, c.table.Name())
		}
	}
	return nil
}

// condition turns a filter argument into a predicate. Plain maps are
// validated; expressions are opaque. A nil or empty filter yields a nil
// predicate, meaning every row.
func (c classifier) condition(cond any) (query.Expr, error) {
	var values query.Values
	switch v := cond.(type) {
	case nil:
		return nil, nil
	case query.Expr:
		return v, nil
	case query.Values:
		values = v
	case map[string]any:
		values = query.Values(v)
	case squirrel.Sqlizer:
		return query.Sql(v), nil
	default:
		return nil, fmt.Errorf("%w: condition of type %T", ErrUnsupportedInput, cond)
	}

	if err := c.validateFilter(values); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return query.Match(values), nil
}
