//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import "errors"

// Sentinel errors shared by compilers and drivers.
// These can be used with errors.Is() for programmatic error checking.
var (
	// ErrEmptyTableName is returned when a descriptor has no target table.
	ErrEmptyTableName = errors.New("table name cannot be empty")

	// ErrNoValues is returned when an INSERT, UPDATE or UPSERT carries no values.
	ErrNoValues = errors.New("statement has no values")

	// ErrUnsupportedStatement is returned when a compiler receives a descriptor kind it cannot render.
	ErrUnsupportedStatement = errors.New("unsupported statement")

	// ErrReturningUnsupported is returned when a vendor cannot return rows from DML statements.
	ErrReturningUnsupported = errors.New("RETURNING is not supported by vendor")

	// ErrUnsupportedIsolationLevel is returned when a vendor cannot apply an isolation level.
	ErrUnsupportedIsolationLevel = errors.New("unsupported isolation level")

	// ErrTxFinished is returned by a Tx that has already been committed or rolled back.
	ErrTxFinished = errors.New("transaction already finished")
)
