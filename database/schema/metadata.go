// Package schema holds per-entity field metadata parsed from struct tags.
//
// A Table describes one entity type: its table name and, for every column,
// whether it is a primary key, read-only, auto-incremented, a relation to
// another table, sensitive, or carries a default value. Tables are immutable
// once constructed and cached per Go type.
//
// Example:
//
//	type User struct {
//	    ID       int64   `db:"id" entity:"pk,autoincrement"`
//	    Email    string  `db:"email"`
//	    Password string  `db:"password" entity:"sensitive"`
//	    TeamID   *int64  `db:"team_id" entity:"relation=teams.id"`
//	    Created  string  `db:"created_at" entity:"readonly"`
//	}
//
//	func (User) TableName() string { return "users" }
//
//	table, err := schema.Of[User](schema.WithDefault("email", ""))
package schema

import (
	"reflect"
	"slices"

	"github.com/gaborage/go-bricks-orm/database/query"
)

// Field describes one mapped column of an entity type.
type Field struct {
	// Name is the column name from the db tag; it doubles as the attribute key.
	Name string

	// GoName is the Go struct field name (e.g., "UserID").
	GoName string

	// Index is the field index path, suitable for reflect.Value.FieldByIndex.
	Index []int

	// Type is the reflect.Type of the struct field.
	Type reflect.Type

	PrimaryKey    bool
	Readonly      bool
	AutoIncrement bool
	Sensitive     bool

	// RelatedTo references another table's column ("table.column") when the
	// field is a relation; relations are maintained outside of INSERT/UPDATE.
	RelatedTo string

	Default    any
	HasDefault bool
}

// IsRelation reports whether the field references another table.
func (f Field) IsRelation() bool {
	return f.RelatedTo != ""
}

// Table is the immutable field registry of one entity type.
type Table struct {
	name   string
	typ    reflect.Type
	fields []Field
	byName map[string]int
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// Type returns the struct type the table was parsed from.
func (t *Table) Type() reflect.Type {
	return t.typ
}

// Fields returns all fields in declaration order.
func (t *Table) Fields() []Field {
	return slices.Clone(t.fields)
}

// Field looks up a field by column name.
func (t *Table) Field(name string) (Field, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Field{}, false
	}
	return t.fields[i], true
}

// Has reports whether name is a known column.
func (t *Table) Has(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// Columns returns every column name in declaration order.
func (t *Table) Columns() []string {
	cols := make([]string, len(t.fields))
	for i, f := range t.fields {
		cols[i] = f.Name
	}
	return cols
}

// SelectColumns returns the default select list. Sensitive columns are only
// included when explicitly requested.
func (t *Table) SelectColumns(includeSensitive bool) []string {
	cols := make([]string, 0, len(t.fields))
	for _, f := range t.fields {
		if f.Sensitive && !includeSensitive {
			continue
		}
		cols = append(cols, f.Name)
	}
	return cols
}

// PrimaryKeys returns the primary key column names.
func (t *Table) PrimaryKeys() []string {
	var pks []string
	for _, f := range t.fields {
		if f.PrimaryKey {
			pks = append(pks, f.Name)
		}
	}
	return pks
}

// ValuesOf converts an entity (a struct of the table's type or a pointer to
// one) into an attribute map. Nil pointer fields are unset and left out.
func (t *Table) ValuesOf(entity any) (query.Values, error) {
	rv := reflect.ValueOf(entity)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, newTypeError(t.typ, entity)
		}
		rv = rv.Elem()
	}
	if rv.Type() != t.typ {
		return nil, newTypeError(t.typ, entity)
	}

	values := make(query.Values, len(t.fields))
	for _, f := range t.fields {
		fv, err := rv.FieldByIndexErr(f.Index)
		if err != nil {
			// nil embedded pointer: none of its fields are set
			continue
		}
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}
		values[f.Name] = fv.Interface()
	}
	return values, nil
}
