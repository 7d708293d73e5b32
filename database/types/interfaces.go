//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import (
	"database/sql"
	"errors"

	"github.com/gaborage/go-bricks-orm/database/query"
)

// Vendor identifies a database vendor.
type Vendor = string

const (
	PostgreSQL Vendor = "postgresql"
	Oracle     Vendor = "oracle"
)

// Statement is a compiled, vendor-specific SQL statement ready for execution.
type Statement struct {
	SQL  string
	Args []any
}

// Compiler turns a query descriptor into an executable Statement.
// Compile must be pure: the same descriptor always yields the same Statement.
type Compiler interface {
	Vendor() Vendor
	Compile(b query.Builder) (Statement, error)
}

// Row represents a single result set row with basic scanning behaviour.
type Row interface {
	Scan(dest ...any) error
	Err() error
}

type sqlRowAdapter struct {
	row *sql.Row
}

// NewRowFromSQL wraps the provided *sql.Row in a Row.
// If row is nil, NewRowFromSQL returns nil.
func NewRowFromSQL(row *sql.Row) Row {
	if row == nil {
		return nil
	}
	return &sqlRowAdapter{row: row}
}

func (r *sqlRowAdapter) Scan(dest ...any) error {
	if r == nil || r.row == nil {
		return errors.New("sqlRowAdapter: underlying sql.Row is nil")
	}
	return r.row.Scan(dest...)
}

func (r *sqlRowAdapter) Err() error {
	if r == nil || r.row == nil {
		return errors.New("sqlRowAdapter: underlying sql.Row is nil")
	}
	return r.row.Err()
}
