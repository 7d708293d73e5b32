package tracking

import (
	"context"
	"database/sql"
	"time"

	"github.com/gaborage/go-bricks-orm/database/types"
	"github.com/gaborage/go-bricks-orm/logger"
)

// Driver wraps a types.Driver and tracks every statement and every
// transaction it opens.
type Driver struct {
	driver     types.Driver
	t          *tracker
	unregister func()
}

// Compile-time checks
var (
	_ types.Driver = (*Driver)(nil)
	_ types.Tx     = (*Transaction)(nil)
)

// NewDriver returns a tracked driver. When the wrapped driver exposes pool
// statistics, pool gauges are registered until Close.
func NewDriver(driver types.Driver, log logger.Logger, settings Settings, opts ...Option) *Driver {
	t := newTracker(log, driver.Vendor(), settings, opts...)
	d := &Driver{driver: driver, t: t, unregister: func() {}}
	if source, ok := driver.(StatsProvider); ok {
		d.unregister = registerPoolMetrics(t.meter, t.log, source, driver.Vendor())
	}
	return d
}

// Query executes a query with performance tracking
func (d *Driver) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := d.driver.Query(ctx, query, args...)
	d.t.track(ctx, query, args, start, 0, err)
	return rows, err
}

// QueryRow tracks the query once the row is scanned.
func (d *Driver) QueryRow(ctx context.Context, query string, args ...any) types.Row {
	start := time.Now()
	row := d.driver.QueryRow(ctx, query, args...)
	return trackRow(row, func(err error) {
		d.t.track(ctx, query, args, start, 0, err)
	})
}

// Exec executes a statement with performance tracking
func (d *Driver) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := d.driver.Exec(ctx, query, args...)
	d.t.track(ctx, query, args, start, extractRowsAffected(result, err), err)
	return result, err
}

// Begin starts a tracked transaction.
func (d *Driver) Begin(ctx context.Context, level sql.IsolationLevel) (types.Tx, error) {
	start := time.Now()
	tx, err := d.driver.Begin(ctx, level)
	d.t.track(ctx, opBegin, nil, start, 0, err)
	if err != nil {
		return nil, err
	}
	return &Transaction{tx: tx, t: d.t}, nil
}

// Vendor returns the wrapped driver's vendor.
func (d *Driver) Vendor() types.Vendor {
	return d.driver.Vendor()
}

// Stats forwards pool statistics when the wrapped driver has them.
func (d *Driver) Stats() sql.DBStats {
	if source, ok := d.driver.(StatsProvider); ok {
		return source.Stats()
	}
	return sql.DBStats{}
}

// Close unregisters pool metrics and closes the wrapped driver.
func (d *Driver) Close() error {
	d.unregister()
	return d.driver.Close()
}

// Transaction wraps types.Tx with the tracker of the driver that opened it.
type Transaction struct {
	tx types.Tx
	t  *tracker
}

// Query executes a query within the transaction with performance tracking
func (tx *Transaction) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := tx.tx.Query(ctx, query, args...)
	tx.t.track(ctx, query, args, start, 0, err)
	return rows, err
}

// QueryRow tracks the query once the row is scanned.
func (tx *Transaction) QueryRow(ctx context.Context, query string, args ...any) types.Row {
	start := time.Now()
	row := tx.tx.QueryRow(ctx, query, args...)
	return trackRow(row, func(err error) {
		tx.t.track(ctx, query, args, start, 0, err)
	})
}

// Exec executes a statement within the transaction with performance tracking
func (tx *Transaction) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := tx.tx.Exec(ctx, query, args...)
	tx.t.track(ctx, query, args, start, extractRowsAffected(result, err), err)
	return result, err
}

// Commit commits the transaction
func (tx *Transaction) Commit(ctx context.Context) error {
	start := time.Now()
	err := tx.tx.Commit(ctx)
	tx.t.track(ctx, opCommit, nil, start, 0, err)
	return err
}

// Rollback rolls back the transaction
func (tx *Transaction) Rollback(ctx context.Context) error {
	start := time.Now()
	err := tx.tx.Rollback(ctx)
	tx.t.track(ctx, opRollback, nil, start, 0, err)
	return err
}

// SetIsolationLevel changes the isolation level with performance tracking
func (tx *Transaction) SetIsolationLevel(ctx context.Context, level sql.IsolationLevel) error {
	start := time.Now()
	err := tx.tx.SetIsolationLevel(ctx, level)
	tx.t.track(ctx, isolationStatement(level), nil, start, 0, err)
	return err
}

// Finished reports whether the wrapped transaction has ended.
func (tx *Transaction) Finished() bool {
	return tx.tx.Finished()
}
