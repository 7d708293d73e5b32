// Package types contains the core database interface definitions for go-bricks-orm.
//
//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import (
	"context"
	"database/sql"
)

// Executor defines the statement execution operations shared by a base driver
// and a live transaction.
//
// Both the driver and every Tx satisfy Executor, which is what lets the
// unit of work hand out "whatever executor is current" without callers
// knowing whether a transaction is open.
//
// Usage in tests:
//
//	// Simple mock implementation
//	type mockExecutor struct {
//	    queryFunc func(ctx context.Context, query string, args ...any) (*sql.Rows, error)
//	}
//
// For comprehensive testing utilities, see the database/testing package which provides
// TestDriver with a fluent API for setting up query expectations and assertions.
type Executor interface {
	// Query executes a SQL statement that returns rows: a SELECT, or a DML
	// statement carrying a RETURNING clause.
	// The caller is responsible for closing the returned rows.
	//
	// The query should use vendor-specific placeholders:
	//   - PostgreSQL: $1, $2, $3
	//   - Oracle: :1, :2, :3
	//
	// For vendor-agnostic query construction, use the Compiler.
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)

	// QueryRow executes a SQL query that is expected to return at most one row.
	// QueryRow always returns a non-nil value. Errors are deferred until Row's Scan method is called.
	QueryRow(ctx context.Context, query string, args ...any) Row

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ExecutorProvider hands out the executor statements should currently run on.
// Implementations must resolve the executor on every call; a transaction may
// be opened or resolved between two calls.
type ExecutorProvider interface {
	Executor() Executor
}

// ExecutorProviderFunc adapts a plain function to ExecutorProvider.
type ExecutorProviderFunc func() Executor

// Executor calls f.
func (f ExecutorProviderFunc) Executor() Executor {
	return f()
}
