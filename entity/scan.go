package entity

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/georgysavva/scany/v2/dbscan"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/gaborage/go-bricks-orm/database/query"
	"github.com/gaborage/go-bricks-orm/database/types"
)

var scanAPI = mustNewScanAPI()

func mustNewScanAPI() *dbscan.API {
	api, err := dbscan.NewAPI()
	if err != nil {
		panic(fmt.Errorf("entity: scany setup: %w", err))
	}
	return api
}

// foldedRows reports column names in lower case. Oracle returns unquoted
// identifiers upper-cased while db tags are written in lower case.
type foldedRows struct {
	*sql.Rows
}

func (r foldedRows) Columns() ([]string, error) {
	cols, err := r.Rows.Columns()
	for i := range cols {
		cols[i] = strings.ToLower(cols[i])
	}
	return cols, err
}

// arrayRows decodes PostgreSQL arrays into slice fields. database/sql hands
// arrays over in their text form, which []string and friends cannot scan.
type arrayRows struct {
	*sql.Rows
	typeMap *pgtype.Map
}

func (r arrayRows) Scan(dest ...any) error {
	wrapped := make([]any, len(dest))
	for i, d := range dest {
		wrapped[i] = d
		if _, ok := d.(sql.Scanner); ok {
			continue
		}
		t := reflect.TypeOf(d)
		if t != nil && t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Slice && t.Elem().Elem().Kind() != reflect.Uint8 {
			wrapped[i] = r.typeMap.SQLScanner(d)
		}
	}
	return r.Rows.Scan(wrapped...)
}

func scanRows(vendor types.Vendor, rows *sql.Rows) dbscan.Rows {
	switch vendor {
	case types.Oracle:
		return foldedRows{rows}
	case types.PostgreSQL:
		return arrayRows{Rows: rows, typeMap: pgtype.NewMap()}
	default:
		return rows
	}
}

// scanAll decodes every row into dst, a pointer to a slice. Rows are closed.
func scanAll(vendor types.Vendor, dst any, rows *sql.Rows) error {
	return scanAPI.ScanAll(dst, scanRows(vendor, rows))
}

// scanOne decodes the first row into dst and reports whether a row existed.
// Rows are closed.
func scanOne(vendor types.Vendor, dst any, rows *sql.Rows) (bool, error) {
	if err := scanAPI.ScanOne(dst, scanRows(vendor, rows)); err != nil {
		if dbscan.NotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// assemble builds an entity from attribute values. Expression values have no
// Go representation and are left at their zero value.
func assemble[T any](c classifier, values query.Values) (*T, error) {
	e := new(T)
	if err := c.apply(reflect.ValueOf(e).Elem(), values); err != nil {
		return nil, err
	}
	return e, nil
}

// apply stores values into the mapped fields of the struct value dst.
func (c classifier) apply(dst reflect.Value, values query.Values) error {
	for _, k := range values.Keys() {
		v := values[k]
		f, ok := c.table.Field(k)
		if !ok || isUndefined(v) {
			continue
		}
		if _, isExpr := v.(query.Expr); isExpr {
			continue
		}
		fv, err := dst.FieldByIndexErr(f.Index)
		if err != nil {
			continue
		}
		if err := assignValue(fv, v); err != nil {
			return fmt.Errorf("field %s: %w", f.GoName, err)
		}
	}
	return nil
}

func assignValue(dst reflect.Value, v any) error {
	if v == nil {
		dst.SetZero()
		return nil
	}
	src := reflect.ValueOf(v)
	if dst.Kind() == reflect.Pointer && src.Kind() != reflect.Pointer {
		p := reflect.New(dst.Type().Elem())
		if err := assignValue(p.Elem(), v); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	}
	switch {
	case src.Type().AssignableTo(dst.Type()):
		dst.Set(src)
	case src.Type().ConvertibleTo(dst.Type()):
		dst.Set(src.Convert(dst.Type()))
	default:
		return fmt.Errorf("cannot assign %T to %s", v, dst.Type())
	}
	return nil
}
