package testing

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"runtime"
)

// RowSet is an in-memory result set returned by a query expectation.
//
//	rows := NewRowSet("id", "name").
//	    AddRow(1, "Alice").
//	    AddRow(2, "Bob")
//
//	drv.ExpectQuery("SELECT").WillReturnRows(rows)
type RowSet struct {
	columns []string
	rows    [][]any
}

// NewRowSet creates a RowSet with the given column names. Column names are
// what scany matches struct fields against.
func NewRowSet(columns ...string) *RowSet {
	return &RowSet{columns: columns}
}

// AddRow appends a row. It panics when the value count does not match the columns.
func (rs *RowSet) AddRow(values ...any) *RowSet {
	if len(values) != len(rs.columns) {
		panic(fmt.Sprintf("AddRow: expected %d values for columns %v, got %d",
			len(rs.columns), rs.columns, len(values)))
	}
	rs.rows = append(rs.rows, values)
	return rs
}

// AddRows appends count rows produced by generator.
func (rs *RowSet) AddRows(count int, generator func(i int) []any) *RowSet {
	for i := range count {
		rs.AddRow(generator(i)...)
	}
	return rs
}

// RowCount returns the number of rows in the RowSet.
func (rs *RowSet) RowCount() int {
	return len(rs.rows)
}

// Columns returns the column names for this RowSet.
func (rs *RowSet) Columns() []string {
	return append([]string{}, rs.columns...)
}

// toSQLRows feeds the RowSet through database/sql so callers get real *sql.Rows.
func (rs *RowSet) toSQLRows() (*sql.Rows, error) {
	db := sql.OpenDB(&rowSetConnector{columns: rs.Columns(), rows: cloneRows(rs.rows)})
	rows, err := db.QueryContext(context.Background(), "rowset")
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	// The temporary *sql.DB lives as long as the rows.
	runtime.SetFinalizer(rows, func(r *sql.Rows) {
		_ = r.Close()
		_ = db.Close()
	})
	return rows, nil
}

func cloneRows(rows [][]any) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		out[i] = append([]any(nil), row...)
	}
	return out
}

type rowSetConnector struct {
	columns []string
	rows    [][]any
}

func (c *rowSetConnector) Connect(context.Context) (driver.Conn, error) {
	return &rowSetConn{columns: c.columns, rows: c.rows}, nil
}

func (c *rowSetConnector) Driver() driver.Driver {
	return rowSetDriver{}
}

type rowSetDriver struct{}

func (rowSetDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("rowSetDriver must be used via connector")
}

type rowSetConn struct {
	columns []string
	rows    [][]any
}

func (c *rowSetConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported by rowset")
}

func (c *rowSetConn) Close() error { return nil }

func (c *rowSetConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported by rowset")
}

func (c *rowSetConn) QueryContext(context.Context, string, []driver.NamedValue) (driver.Rows, error) {
	return &rowSetRows{columns: c.columns, rows: cloneRows(c.rows)}, nil
}

type rowSetRows struct {
	columns []string
	rows    [][]any
	idx     int
}

func (r *rowSetRows) Columns() []string {
	return append([]string{}, r.columns...)
}

func (r *rowSetRows) Close() error {
	r.rows = nil
	return nil
}

func (r *rowSetRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	for i, val := range r.rows[r.idx] {
		// Dereferences pointers and resolves driver.Valuer implementations.
		converted, err := driver.DefaultParameterConverter.ConvertValue(val)
		if err != nil {
			return fmt.Errorf("row %d column %s: %w", r.idx, r.columns[i], err)
		}
		dest[i] = converted
	}
	r.idx++
	return nil
}

// sqlRowsRow adapts the first row of *sql.Rows to types.Row.
type sqlRowsRow struct {
	rows *sql.Rows
	err  error
}

func (r *sqlRowsRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	defer r.rows.Close()
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return err
		}
		return sql.ErrNoRows
	}
	if err := r.rows.Scan(dest...); err != nil {
		return err
	}
	return r.rows.Close()
}

func (r *sqlRowsRow) Err() error {
	return r.err
}
