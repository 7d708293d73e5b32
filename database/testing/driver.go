// Package testing provides in-memory fakes of the database driver contracts.
//
// TestDriver implements types.Driver with expectation-based responses and
// records every statement and transaction for assertions. Use it for unit
// tests where SQL text and transaction boundaries matter but a real database
// does not.
//
// IMPORTANT: rows returned by Query are backed by a temporary *sql.DB;
// callers must close them.
//
//	drv := NewTestDriver(dbtypes.PostgreSQL)
//	drv.ExpectQuery("SELECT").WillReturnRows(NewRowSet("id").AddRow(1))
//	tx := drv.ExpectBegin()
//	tx.ExpectExec("INSERT INTO users").WillReturnRowsAffected(1)
//
//	// ... code under test ...
//
//	AssertCommitted(t, tx)
package testing

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	dbtypes "github.com/gaborage/go-bricks-orm/database/types"
)

// TestDriver is an in-memory fake implementing types.Driver.
//
// SQL matching is partial by default: an expectation matches when its SQL is
// a substring of the executed statement. StrictSQLMatching switches to exact
// matching.
type TestDriver struct {
	expectations

	vendor  dbtypes.Vendor
	txMu    sync.Mutex
	pending []*TestTx
	started []*TestTx
	levels  []sql.IsolationLevel
	closed  bool
}

// Compile-time checks
var (
	_ dbtypes.Driver = (*TestDriver)(nil)
	_ dbtypes.Tx     = (*TestTx)(nil)
)

// NewTestDriver creates a fake driver for vendor.
func NewTestDriver(vendor dbtypes.Vendor) *TestDriver {
	return &TestDriver{vendor: vendor}
}

// StrictSQLMatching enables exact SQL matching for the driver and every
// transaction it starts afterwards.
func (d *TestDriver) StrictSQLMatching() *TestDriver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.strict = true
	return d
}

// ExpectQuery registers a response for Query and QueryRow calls.
func (d *TestDriver) ExpectQuery(sqlPattern string) *QueryExpectation {
	return d.expectQuery(sqlPattern)
}

// ExpectExec registers a response for Exec calls.
func (d *TestDriver) ExpectExec(sqlPattern string) *ExecExpectation {
	return d.expectExec(sqlPattern)
}

// ExpectBegin queues a transaction handed out by the next Begin call.
// Statements inside the transaction are matched against its own
// expectations first, then against the driver's.
func (d *TestDriver) ExpectBegin() *TestTx {
	tx := &TestTx{parent: d}
	d.txMu.Lock()
	defer d.txMu.Unlock()
	d.pending = append(d.pending, tx)
	return tx
}

// ExpectBeginError makes the next Begin call fail with err.
func (d *TestDriver) ExpectBeginError(err error) {
	d.txMu.Lock()
	defer d.txMu.Unlock()
	d.pending = append(d.pending, &TestTx{parent: d, beginErr: err})
}

// Query implements types.Executor. Callers must close the returned rows.
func (d *TestDriver) Query(_ context.Context, query string, args ...any) (*sql.Rows, error) {
	d.logQuery(query, args)
	return runQuery(query, &d.expectations)
}

// QueryRow implements types.Executor.
func (d *TestDriver) QueryRow(_ context.Context, query string, args ...any) dbtypes.Row {
	d.logQuery(query, args)
	return runQueryRow(query, &d.expectations)
}

// Exec implements types.Executor.
func (d *TestDriver) Exec(_ context.Context, query string, args ...any) (sql.Result, error) {
	d.logExec(query, args)
	return runExec(query, args, &d.expectations)
}

// Begin pops the next queued transaction.
func (d *TestDriver) Begin(_ context.Context, level sql.IsolationLevel) (dbtypes.Tx, error) {
	d.txMu.Lock()
	defer d.txMu.Unlock()

	d.levels = append(d.levels, level)
	if len(d.pending) == 0 {
		return nil, fmt.Errorf("unexpected Begin() call (use ExpectBegin)")
	}

	tx := d.pending[0]
	d.pending = d.pending[1:]
	if tx.beginErr != nil {
		return nil, tx.beginErr
	}

	d.mu.RLock()
	tx.strict = d.strict
	d.mu.RUnlock()
	tx.level = level
	d.started = append(d.started, tx)
	return tx, nil
}

// Vendor implements types.Driver.
func (d *TestDriver) Vendor() dbtypes.Vendor {
	return d.vendor
}

// Close marks the driver closed.
func (d *TestDriver) Close() error {
	d.txMu.Lock()
	defer d.txMu.Unlock()
	d.closed = true
	return nil
}

// Closed reports whether Close was called.
func (d *TestDriver) Closed() bool {
	d.txMu.Lock()
	defer d.txMu.Unlock()
	return d.closed
}

// QueryLog returns the Query and QueryRow calls made outside transactions.
func (d *TestDriver) QueryLog() []Call {
	return d.queryCalls()
}

// ExecLog returns the Exec calls made outside transactions.
func (d *TestDriver) ExecLog() []Call {
	return d.execCalls()
}

// BeginLevels returns the isolation level of every Begin call, failed ones included.
func (d *TestDriver) BeginLevels() []sql.IsolationLevel {
	d.txMu.Lock()
	defer d.txMu.Unlock()
	return append([]sql.IsolationLevel{}, d.levels...)
}

// Transactions returns the transactions handed out so far, in order.
func (d *TestDriver) Transactions() []*TestTx {
	d.txMu.Lock()
	defer d.txMu.Unlock()
	return append([]*TestTx{}, d.started...)
}
