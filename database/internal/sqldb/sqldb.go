// Package sqldb implements types.Driver and types.Tx over database/sql.
// Vendor packages open the *sql.DB and hand it to New.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/gaborage/go-bricks-orm/config"
	"github.com/gaborage/go-bricks-orm/database/types"
	"github.com/gaborage/go-bricks-orm/logger"
)

const healthTimeout = 5 * time.Second

// Driver executes statements on a connection pool and opens transactions.
type Driver struct {
	db     *sql.DB
	vendor types.Vendor
	logger logger.Logger
}

// Compile-time checks
var (
	_ types.Driver = (*Driver)(nil)
	_ types.Tx     = (*Tx)(nil)
)

// New wraps db for vendor. The driver owns db and closes it on Close.
func New(db *sql.DB, vendor types.Vendor, log logger.Logger) *Driver {
	if log == nil {
		log = logger.Nop()
	}
	return &Driver{db: db, vendor: vendor, logger: log}
}

// Query executes a query that returns rows
func (d *Driver) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.db.QueryContext(ctx, query, args...)
}

// QueryRow executes a query that returns at most one row
func (d *Driver) QueryRow(ctx context.Context, query string, args ...any) types.Row {
	return types.NewRowFromSQL(d.db.QueryRowContext(ctx, query, args...))
}

// Exec executes a statement that returns no rows
func (d *Driver) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.db.ExecContext(ctx, query, args...)
}

// Begin opens a transaction and applies level as its first statement.
// sql.LevelDefault leaves the session default in place.
func (d *Driver) Begin(ctx context.Context, level sql.IsolationLevel) (types.Tx, error) {
	if level != sql.LevelDefault {
		// Reject before opening anything on the server.
		if _, err := isolationSQL(d.vendor, level); err != nil {
			return nil, err
		}
	}

	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	tx := &Tx{tx: sqlTx, vendor: d.vendor}
	if err := tx.SetIsolationLevel(ctx, level); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			d.logger.Error().Err(rbErr).Msg("Failed to roll back transaction after isolation level failure")
		}
		return nil, err
	}
	return tx, nil
}

// Vendor returns the database vendor
func (d *Driver) Vendor() types.Vendor {
	return d.vendor
}

// Health pings the database.
func (d *Driver) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// Stats returns connection pool statistics
func (d *Driver) Stats() sql.DBStats {
	return d.db.Stats()
}

// Close closes the connection pool
func (d *Driver) Close() error {
	d.logger.Info().Str("vendor", d.vendor).Msg("Closing database connection")
	return d.db.Close()
}

// Tx is a database/sql transaction. It is finished after the first Commit or
// Rollback call regardless of the outcome.
type Tx struct {
	tx       *sql.Tx
	vendor   types.Vendor
	mu       sync.Mutex
	finished bool
}

// Query executes a query within the transaction
func (t *Tx) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

// QueryRow executes a single-row query within the transaction
func (t *Tx) QueryRow(ctx context.Context, query string, args ...any) types.Row {
	return types.NewRowFromSQL(t.tx.QueryRowContext(ctx, query, args...))
}

// Exec executes a statement within the transaction
func (t *Tx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

// Commit commits the transaction
func (t *Tx) Commit(_ context.Context) error {
	if err := t.finish(); err != nil {
		return err
	}
	return t.tx.Commit()
}

// Rollback rolls back the transaction
func (t *Tx) Rollback(_ context.Context) error {
	if err := t.finish(); err != nil {
		return err
	}
	return t.tx.Rollback()
}

func (t *Tx) finish() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return types.ErrTxFinished
	}
	t.finished = true
	return nil
}

// SetIsolationLevel issues SET TRANSACTION ISOLATION LEVEL. The vendor error
// is returned unchanged when statements already ran in the transaction.
func (t *Tx) SetIsolationLevel(ctx context.Context, level sql.IsolationLevel) error {
	if t.Finished() {
		return types.ErrTxFinished
	}
	if level == sql.LevelDefault {
		return nil
	}
	stmt, err := isolationSQL(t.vendor, level)
	if err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("set isolation level %s: %w", level, err)
	}
	return nil
}

// Finished reports whether Commit or Rollback has been called.
func (t *Tx) Finished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished
}

var (
	ansiLevels = map[sql.IsolationLevel]string{
		sql.LevelReadUncommitted: "READ UNCOMMITTED",
		sql.LevelReadCommitted:   "READ COMMITTED",
		sql.LevelRepeatableRead:  "REPEATABLE READ",
		sql.LevelSerializable:    "SERIALIZABLE",
	}
	oracleLevels = map[sql.IsolationLevel]string{
		sql.LevelReadCommitted: "READ COMMITTED",
		sql.LevelSerializable:  "SERIALIZABLE",
	}
)

// isolationSQL renders the isolation statement for vendor.
func isolationSQL(vendor types.Vendor, level sql.IsolationLevel) (string, error) {
	levels := ansiLevels
	if vendor == types.Oracle {
		levels = oracleLevels
	}
	name, ok := levels[level]
	if !ok {
		return "", fmt.Errorf("%w: %s on %s", types.ErrUnsupportedIsolationLevel, level, vendor)
	}
	return "SET TRANSACTION ISOLATION LEVEL " + name, nil
}

// ConfigurePool applies the positive pool settings to db.
func ConfigurePool(db *sql.DB, pool config.PoolConfig) {
	if pool.MaxConns > 0 {
		db.SetMaxOpenConns(int(pool.MaxConns))
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(int(pool.MaxIdleConns))
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if pool.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}
}
