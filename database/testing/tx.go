package testing

import (
	"context"
	"database/sql"

	dbtypes "github.com/gaborage/go-bricks-orm/database/types"
)

// TestTx is an in-memory fake transaction created by TestDriver.ExpectBegin.
// It records statements, isolation changes and how it finished.
type TestTx struct {
	expectations

	parent   *TestDriver
	beginErr error

	level         sql.IsolationLevel
	isolation     []sql.IsolationLevel
	commitErr     error
	rollbackErr   error
	isolationErr  error
	committed     bool
	rolledBack    bool
	finished      bool
	commitCount   int
	rollbackCount int
}

// ExpectQuery registers a response for queries run inside this transaction.
func (tx *TestTx) ExpectQuery(sqlPattern string) *QueryExpectation {
	return tx.expectQuery(sqlPattern)
}

// ExpectExec registers a response for statements run inside this transaction.
func (tx *TestTx) ExpectExec(sqlPattern string) *ExecExpectation {
	return tx.expectExec(sqlPattern)
}

// WillFailCommit makes Commit return err. The transaction still counts as finished.
func (tx *TestTx) WillFailCommit(err error) *TestTx {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.commitErr = err
	return tx
}

// WillFailRollback makes Rollback return err. The transaction still counts as finished.
func (tx *TestTx) WillFailRollback(err error) *TestTx {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.rollbackErr = err
	return tx
}

// WillFailIsolation makes SetIsolationLevel return err.
func (tx *TestTx) WillFailIsolation(err error) *TestTx {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.isolationErr = err
	return tx
}

func (tx *TestTx) parentExpectations() *expectations {
	if tx.parent == nil {
		return nil
	}
	return &tx.parent.expectations
}

func (tx *TestTx) isFinished() bool {
	tx.mu.RLock()
	defer tx.mu.RUnlock()
	return tx.finished
}

// Query implements types.Executor. Callers must close the returned rows.
func (tx *TestTx) Query(_ context.Context, query string, args ...any) (*sql.Rows, error) {
	tx.logQuery(query, args)
	if tx.isFinished() {
		return nil, dbtypes.ErrTxFinished
	}
	return runQuery(query, &tx.expectations, tx.parentExpectations())
}

// QueryRow implements types.Executor.
func (tx *TestTx) QueryRow(_ context.Context, query string, args ...any) dbtypes.Row {
	tx.logQuery(query, args)
	if tx.isFinished() {
		return &sqlRowsRow{err: dbtypes.ErrTxFinished}
	}
	return runQueryRow(query, &tx.expectations, tx.parentExpectations())
}

// Exec implements types.Executor.
func (tx *TestTx) Exec(_ context.Context, query string, args ...any) (sql.Result, error) {
	tx.logExec(query, args)
	if tx.isFinished() {
		return nil, dbtypes.ErrTxFinished
	}
	return runExec(query, args, &tx.expectations, tx.parentExpectations())
}

// Commit implements types.Tx.
func (tx *TestTx) Commit(_ context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.commitCount++
	if tx.finished {
		return dbtypes.ErrTxFinished
	}
	tx.finished = true
	if tx.commitErr != nil {
		return tx.commitErr
	}
	tx.committed = true
	return nil
}

// Rollback implements types.Tx.
func (tx *TestTx) Rollback(_ context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.rollbackCount++
	if tx.finished {
		return dbtypes.ErrTxFinished
	}
	tx.finished = true
	if tx.rollbackErr != nil {
		return tx.rollbackErr
	}
	tx.rolledBack = true
	return nil
}

// SetIsolationLevel implements types.Tx.
func (tx *TestTx) SetIsolationLevel(_ context.Context, level sql.IsolationLevel) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.finished {
		return dbtypes.ErrTxFinished
	}
	if tx.isolationErr != nil {
		return tx.isolationErr
	}
	tx.isolation = append(tx.isolation, level)
	return nil
}

// Finished implements types.Tx.
func (tx *TestTx) Finished() bool {
	return tx.isFinished()
}

// Level returns the isolation level passed to Begin.
func (tx *TestTx) Level() sql.IsolationLevel {
	tx.mu.RLock()
	defer tx.mu.RUnlock()
	return tx.level
}

// IsolationChanges returns the levels applied through SetIsolationLevel.
func (tx *TestTx) IsolationChanges() []sql.IsolationLevel {
	tx.mu.RLock()
	defer tx.mu.RUnlock()
	return append([]sql.IsolationLevel{}, tx.isolation...)
}

// IsCommitted reports whether Commit succeeded.
func (tx *TestTx) IsCommitted() bool {
	tx.mu.RLock()
	defer tx.mu.RUnlock()
	return tx.committed
}

// IsRolledBack reports whether Rollback succeeded.
func (tx *TestTx) IsRolledBack() bool {
	tx.mu.RLock()
	defer tx.mu.RUnlock()
	return tx.rolledBack
}

// CommitCount returns how many times Commit was called.
func (tx *TestTx) CommitCount() int {
	tx.mu.RLock()
	defer tx.mu.RUnlock()
	return tx.commitCount
}

// RollbackCount returns how many times Rollback was called.
func (tx *TestTx) RollbackCount() int {
	tx.mu.RLock()
	defer tx.mu.RUnlock()
	return tx.rollbackCount
}

// QueryLog returns the queries run inside this transaction.
func (tx *TestTx) QueryLog() []Call {
	return tx.queryCalls()
}

// ExecLog returns the statements run inside this transaction.
func (tx *TestTx) ExecLog() []Call {
	return tx.execCalls()
}
