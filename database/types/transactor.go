//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import (
	"context"
	"database/sql"
)

// Tx is a live database transaction. It doubles as an Executor so that
// statements routed through a unit of work run inside the transaction.
//
// Finished reports true once Commit or Rollback has been called, whether or
// not the call succeeded; a finished Tx must not be used again.
type Tx interface {
	Executor

	// Commit commits the transaction.
	Commit(ctx context.Context) error

	// Rollback aborts the transaction.
	Rollback(ctx context.Context) error

	// SetIsolationLevel changes the isolation level of the running transaction.
	// Most vendors only accept this before the first statement of the transaction;
	// the vendor error is returned unchanged otherwise.
	SetIsolationLevel(ctx context.Context, level sql.IsolationLevel) error

	// Finished reports whether the transaction has been committed or rolled back.
	Finished() bool
}

// Driver is the base query driver: it executes statements outside of any
// transaction and starts new transactions.
type Driver interface {
	Executor

	// Begin starts a new transaction at the given isolation level.
	// sql.LevelDefault selects the vendor default.
	//
	// Common isolation levels (from database/sql):
	//   - sql.LevelDefault: Use database's default isolation
	//   - sql.LevelReadCommitted: Prevents dirty reads (PostgreSQL default)
	//   - sql.LevelRepeatableRead: Prevents dirty and non-repeatable reads
	//   - sql.LevelSerializable: Highest isolation, full transaction isolation
	//
	// Note: Not all databases support all isolation levels. Consult vendor documentation.
	Begin(ctx context.Context, level sql.IsolationLevel) (Tx, error)

	// Vendor returns the database vendor identifier.
	Vendor() Vendor

	// Close releases the underlying connection pool.
	Close() error
}
