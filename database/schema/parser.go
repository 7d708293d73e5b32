package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Errors returned while parsing entity types.
var (
	ErrNotStruct          = errors.New("entity type must be a struct")
	ErrNoColumns          = errors.New("no fields with `db` tags found")
	ErrInvalidTag         = errors.New("invalid struct tag")
	ErrMissingTableName   = errors.New("entity has no table name")
	ErrUnknownColumn      = errors.New("unknown column")
	ErrEntityTypeMismatch = errors.New("entity type mismatch")
)

// TableNamer is implemented by entities that declare their own table name.
type TableNamer interface {
	TableName() string
}

// Option customizes how an entity type is parsed.
type Option func(*options)

type options struct {
	table    string
	defaults map[string]any
}

// WithTable sets the table name, overriding a TableName method.
func WithTable(name string) Option {
	return func(o *options) {
		o.table = name
	}
}

// WithDefault registers the value inserted for column when an entity leaves
// it unset.
func WithDefault(column string, value any) Option {
	return func(o *options) {
		if o.defaults == nil {
			o.defaults = make(map[string]any)
		}
		o.defaults[column] = value
	}
}

// Parse extracts the field registry of the struct type of entity, which may
// be a struct value, a pointer to one, or a nil pointer of the right type.
// Parse does not consult the cache; see Of and Registry for cached lookups.
func Parse(entity any, opts ...Option) (*Table, error) {
	if entity == nil {
		return nil, ErrNotStruct
	}
	return parseType(reflect.TypeOf(entity), opts...)
}

func parseType(rt reflect.Type, opts ...Option) (*Table, error) {
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: got %s", ErrNotStruct, rt.Kind())
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	t := &Table{
		name:   o.table,
		typ:    rt,
		byName: make(map[string]int),
	}
	if t.name == "" {
		t.name = tableNameOf(rt)
	}
	if t.name == "" {
		return nil, fmt.Errorf("%w: %s (implement TableName or use WithTable)", ErrMissingTableName, rt.Name())
	}

	if err := collectFields(t, rt, nil); err != nil {
		return nil, err
	}
	if len(t.fields) == 0 {
		return nil, fmt.Errorf("%w in struct %s", ErrNoColumns, rt.Name())
	}

	for col, value := range o.defaults {
		i, ok := t.byName[col]
		if !ok {
			return nil, fmt.Errorf("%w: default for %q in struct %s", ErrUnknownColumn, col, rt.Name())
		}
		t.fields[i].Default = value
		t.fields[i].HasDefault = true
	}

	return t, nil
}

func tableNameOf(rt reflect.Type) string {
	if namer, ok := reflect.Zero(rt).Interface().(TableNamer); ok {
		return namer.TableName()
	}
	if namer, ok := reflect.New(rt).Interface().(TableNamer); ok {
		return namer.TableName()
	}
	return ""
}

// collectFields walks exported fields, descending into untagged embedded structs.
func collectFields(t *Table, rt reflect.Type, parent []int) error {
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		index := append(append([]int(nil), parent...), i)

		dbTag := sf.Tag.Get("db")
		if dbTag == "-" {
			continue
		}

		if sf.Anonymous && dbTag == "" {
			ft := sf.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				if err := collectFields(t, ft, index); err != nil {
					return err
				}
				continue
			}
		}

		if !sf.IsExported() || dbTag == "" {
			continue
		}

		// SECURITY: Validate tag format to prevent SQL injection
		if err := validateDBTag(dbTag, rt.Name(), sf.Name); err != nil {
			return err
		}
		if _, dup := t.byName[dbTag]; dup {
			return fmt.Errorf("%w: duplicate column %q in field %s.%s", ErrInvalidTag, dbTag, rt.Name(), sf.Name)
		}

		f := Field{
			Name:   dbTag,
			GoName: sf.Name,
			Index:  index,
			Type:   sf.Type,
		}
		if err := applyEntityTag(&f, sf.Tag.Get("entity"), rt.Name()); err != nil {
			return err
		}

		t.byName[f.Name] = len(t.fields)
		t.fields = append(t.fields, f)
	}
	return nil
}

// applyEntityTag parses `entity:"pk,autoincrement,readonly,sensitive,relation=table.column"`.
func applyEntityTag(f *Field, tag, structName string) error {
	if tag == "" {
		return nil
	}
	for _, opt := range strings.Split(tag, ",") {
		key, value, _ := strings.Cut(strings.TrimSpace(opt), "=")
		switch strings.ToLower(key) {
		case "":
		case "pk", "primarykey":
			f.PrimaryKey = true
		case "autoincrement", "auto":
			f.AutoIncrement = true
		case "readonly":
			f.Readonly = true
		case "sensitive":
			f.Sensitive = true
		case "relation":
			if value == "" {
				return fmt.Errorf("%w: empty relation in field %s.%s", ErrInvalidTag, structName, f.GoName)
			}
			f.RelatedTo = value
		default:
			return fmt.Errorf("%w: unknown entity option %q in field %s.%s", ErrInvalidTag, key, structName, f.GoName)
		}
	}
	return nil
}

// validateDBTag checks for dangerous characters in db tags that could indicate SQL injection attempts.
func validateDBTag(tag, structName, fieldName string) error {
	dangerous := []string{";", "--", "/*", "*/"}
	for _, d := range dangerous {
		if strings.Contains(tag, d) {
			return fmt.Errorf(
				"%w: db tag %q in field %s.%s contains dangerous SQL characters %q",
				ErrInvalidTag, tag, structName, fieldName, d,
			)
		}
	}

	// Column names should not be pre-quoted in tags
	if strings.Contains(tag, `"`) || strings.Contains(tag, "'") {
		return fmt.Errorf(
			"%w: db tag %q in field %s.%s contains quotes (vendor-specific quoting is applied automatically)",
			ErrInvalidTag, tag, structName, fieldName,
		)
	}

	return nil
}

func newTypeError(want reflect.Type, got any) error {
	return fmt.Errorf("%w: want %s, got %T", ErrEntityTypeMismatch, want, got)
}
