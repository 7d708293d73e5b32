package testing

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"sync"

	dbtypes "github.com/gaborage/go-bricks-orm/database/types"
)

// Call records a single Query, QueryRow or Exec invocation.
type Call struct {
	SQL  string
	Args []any
}

// QueryExpectation defines what should happen when a matching query is executed.
type QueryExpectation struct {
	sql  string
	rows *RowSet
	err  error
}

// WillReturnRows configures the rows returned by the query.
func (qe *QueryExpectation) WillReturnRows(rows *RowSet) *QueryExpectation {
	qe.rows = rows
	return qe
}

// WillReturnError configures the query to fail.
func (qe *QueryExpectation) WillReturnError(err error) *QueryExpectation {
	qe.err = err
	return qe
}

// ExecExpectation defines what should happen when a matching statement is executed.
type ExecExpectation struct {
	sql          string
	rowsAffected int64
	lastInsertID int64
	outs         []any
	err          error
}

// WillReturnRowsAffected configures the affected row count.
func (ee *ExecExpectation) WillReturnRowsAffected(n int64) *ExecExpectation {
	ee.rowsAffected = n
	return ee
}

// WillReturnLastInsertID configures the id reported by the result.
func (ee *ExecExpectation) WillReturnLastInsertID(id int64) *ExecExpectation {
	ee.lastInsertID = id
	return ee
}

// WillReturnOut configures the values written to the statement's sql.Out
// arguments, in argument order.
func (ee *ExecExpectation) WillReturnOut(values ...any) *ExecExpectation {
	ee.outs = values
	return ee
}

// WillReturnError configures the statement to fail.
func (ee *ExecExpectation) WillReturnError(err error) *ExecExpectation {
	ee.err = err
	return ee
}

// expectations is the matching and logging core shared by TestDriver and TestTx.
// First registered match wins; expectations are not consumed.
type expectations struct {
	mu       sync.RWMutex
	strict   bool
	queries  []*QueryExpectation
	execs    []*ExecExpectation
	queryLog []Call
	execLog  []Call
}

func (e *expectations) expectQuery(sqlPattern string) *QueryExpectation {
	exp := &QueryExpectation{sql: sqlPattern}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queries = append(e.queries, exp)
	return exp
}

func (e *expectations) expectExec(sqlPattern string) *ExecExpectation {
	exp := &ExecExpectation{sql: sqlPattern}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.execs = append(e.execs, exp)
	return exp
}

func (e *expectations) matchSQL(expected, actual string) bool {
	if e.strict {
		return strings.TrimSpace(expected) == strings.TrimSpace(actual)
	}
	return strings.Contains(actual, expected)
}

func (e *expectations) logQuery(query string, args []any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queryLog = append(e.queryLog, Call{SQL: query, Args: args})
}

func (e *expectations) logExec(query string, args []any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.execLog = append(e.execLog, Call{SQL: query, Args: args})
}

func (e *expectations) findQuery(actual string) *QueryExpectation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, exp := range e.queries {
		if e.matchSQL(exp.sql, actual) {
			return exp
		}
	}
	return nil
}

func (e *expectations) findExec(actual string) *ExecExpectation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, exp := range e.execs {
		if e.matchSQL(exp.sql, actual) {
			return exp
		}
	}
	return nil
}

func (e *expectations) queryCalls() []Call {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Call{}, e.queryLog...)
}

func (e *expectations) execCalls() []Call {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Call{}, e.execLog...)
}

// runQuery resolves a query against the given expectation sets in order.
func runQuery(query string, sets ...*expectations) (*sql.Rows, error) {
	for _, set := range sets {
		if set == nil {
			continue
		}
		if exp := set.findQuery(query); exp != nil {
			if exp.err != nil {
				return nil, exp.err
			}
			if exp.rows == nil {
				return nil, fmt.Errorf("query expectation for %q has no rows configured (use WillReturnRows)", query)
			}
			return exp.rows.toSQLRows()
		}
	}
	return nil, fmt.Errorf("unexpected query: %s (no matching expectation)", query)
}

func runQueryRow(query string, sets ...*expectations) dbtypes.Row {
	rows, err := runQuery(query, sets...)
	return &sqlRowsRow{rows: rows, err: err}
}

func runExec(query string, args []any, sets ...*expectations) (sql.Result, error) {
	for _, set := range sets {
		if set == nil {
			continue
		}
		if exp := set.findExec(query); exp != nil {
			if exp.err != nil {
				return nil, exp.err
			}
			if err := fillOuts(args, exp.outs); err != nil {
				return nil, err
			}
			return testResult{rowsAffected: exp.rowsAffected, lastInsertID: exp.lastInsertID}, nil
		}
	}
	return nil, fmt.Errorf("unexpected exec: %s (no matching expectation)", query)
}

// fillOuts stores values into the destinations of the sql.Out arguments.
func fillOuts(args, values []any) error {
	next := 0
	for _, arg := range args {
		out, ok := arg.(sql.Out)
		if !ok || next >= len(values) {
			continue
		}
		dest := reflect.ValueOf(out.Dest)
		if dest.Kind() != reflect.Pointer || dest.IsNil() {
			return fmt.Errorf("out argument %d is not a non-nil pointer", next)
		}
		v := reflect.ValueOf(values[next])
		if !v.IsValid() {
			dest.Elem().SetZero()
			next++
			continue
		}
		if !v.Type().ConvertibleTo(dest.Elem().Type()) {
			return fmt.Errorf("cannot store %T into out argument of type %s", values[next], dest.Elem().Type())
		}
		dest.Elem().Set(v.Convert(dest.Elem().Type()))
		next++
	}
	return nil
}

type testResult struct {
	rowsAffected int64
	lastInsertID int64
}

func (r testResult) LastInsertId() (int64, error) { return r.lastInsertID, nil }
func (r testResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }
