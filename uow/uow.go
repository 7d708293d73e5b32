// Package uow implements the unit of work: it owns at most one live
// transaction and routes statements to it while it is open.
//
// A UnitOfWork is meant for one logical flow, typically one request. It does
// no locking; create a new one per flow instead of sharing it.
//
//	work := uow.New(driver, uow.WithLogger(log))
//	users, _ := entity.New[User](work, database.NewCompiler(driver.Vendor()))
//
//	err := work.Auto(ctx, func(ctx context.Context) error {
//	    _, err := users.AddOne(ctx, User{Name: "Alice"})
//	    return err
//	})
package uow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gaborage/go-bricks-orm/database/types"
	"github.com/gaborage/go-bricks-orm/logger"
)

// UnitOfWork serializes the lifecycle of one transaction at a time and hands
// out the executor statements should run on.
type UnitOfWork struct {
	driver       types.Driver
	log          logger.Logger
	id           string
	defaultLevel sql.IsolationLevel
	tx           types.Tx
}

var _ types.ExecutorProvider = (*UnitOfWork)(nil)

// Option configures a UnitOfWork.
type Option func(*UnitOfWork)

// WithLogger sets the logger used for transaction lifecycle events.
func WithLogger(log logger.Logger) Option {
	return func(u *UnitOfWork) {
		if log != nil {
			u.log = log
		}
	}
}

// WithDefaultIsolation sets the level used by Begin and Auto when the caller
// does not pass one.
func WithDefaultIsolation(level sql.IsolationLevel) Option {
	return func(u *UnitOfWork) {
		u.defaultLevel = level
	}
}

// New creates an idle unit of work over driver.
func New(driver types.Driver, opts ...Option) *UnitOfWork {
	u := &UnitOfWork{
		driver:       driver,
		log:          logger.Nop(),
		id:           uuid.NewString(),
		defaultLevel: sql.LevelDefault,
	}
	for _, opt := range opts {
		opt(u)
	}
	u.log = u.log.WithFields(map[string]any{"unit_of_work": u.id})
	return u
}

// ID returns the identifier used to label log entries.
func (u *UnitOfWork) ID() string {
	return u.id
}

// InTransaction reports whether an unfinished transaction is held.
func (u *UnitOfWork) InTransaction() bool {
	return u.tx != nil && !u.tx.Finished()
}

// Executor returns the open transaction, or the driver when none is held.
func (u *UnitOfWork) Executor() types.Executor {
	if u.tx != nil {
		return u.tx
	}
	return u.driver
}

// Begin opens a transaction. The first level given wins; without one the
// configured default is used.
func (u *UnitOfWork) Begin(ctx context.Context, level ...sql.IsolationLevel) error {
	if u.InTransaction() {
		return ErrTransactionInProgress
	}

	lvl := u.defaultLevel
	if len(level) > 0 {
		lvl = level[0]
	}

	tx, err := u.driver.Begin(ctx, lvl)
	if err != nil {
		return err
	}
	u.tx = tx

	u.log.Debug().Str("isolation", lvl.String()).Msg("Transaction started")
	return nil
}

// Commit commits the held transaction. The handle is released even when the
// commit fails; the driver error is returned unchanged.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return ErrTransactionNotStarted
	}
	tx := u.tx
	u.tx = nil

	if err := tx.Commit(ctx); err != nil {
		u.log.Debug().Err(err).Msg("Transaction commit failed")
		return err
	}
	u.log.Debug().Msg("Transaction committed")
	return nil
}

// Rollback rolls back the held transaction. The handle is released even when
// the rollback fails; the driver error is returned unchanged.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return ErrTransactionNotStarted
	}
	tx := u.tx
	u.tx = nil

	if err := tx.Rollback(ctx); err != nil {
		u.log.Debug().Err(err).Msg("Transaction rollback failed")
		return err
	}
	u.log.Debug().Msg("Transaction rolled back")
	return nil
}

// SetIsolationLevel changes the isolation level of the held transaction.
func (u *UnitOfWork) SetIsolationLevel(ctx context.Context, level sql.IsolationLevel) error {
	if u.tx == nil {
		return ErrTransactionNotStarted
	}
	return u.tx.SetIsolationLevel(ctx, level)
}

// Auto runs action inside a new transaction at the default isolation level.
// See AutoWithIsolation.
func (u *UnitOfWork) Auto(ctx context.Context, action func(ctx context.Context) error) error {
	return u.AutoWithIsolation(ctx, u.defaultLevel, action)
}

// AutoWithIsolation begins a transaction at level, runs action and commits.
// When action fails or panics the transaction is rolled back once and the
// action's error is returned unchanged, or the panic is re-raised. A failed
// rollback is joined to the action's error.
func (u *UnitOfWork) AutoWithIsolation(ctx context.Context, level sql.IsolationLevel, action func(ctx context.Context) error) error {
	if action == nil {
		return ErrInvalidAction
	}
	_, err := DoWithIsolation(ctx, u, level, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, action(ctx)
	})
	return err
}

// Do is Auto for actions producing a result.
func Do[T any](ctx context.Context, u *UnitOfWork, action func(ctx context.Context) (T, error)) (T, error) {
	return DoWithIsolation(ctx, u, u.defaultLevel, action)
}

// DoWithIsolation is AutoWithIsolation for actions producing a result. The
// result is only returned when the transaction committed.
func DoWithIsolation[T any](ctx context.Context, u *UnitOfWork, level sql.IsolationLevel, action func(ctx context.Context) (T, error)) (result T, err error) {
	var zero T
	if action == nil {
		return zero, ErrInvalidAction
	}

	if err := u.Begin(ctx, level); err != nil {
		return zero, err
	}
	ctx = logger.WithStatementStats(ctx)

	defer func() {
		if p := recover(); p != nil {
			if rbErr := u.Rollback(ctx); rbErr != nil {
				u.log.Error().Err(rbErr).Msg("Failed to roll back transaction after panic")
			}
			panic(p)
		}
	}()

	result, err = action(ctx)
	if err != nil {
		if rbErr := u.Rollback(ctx); rbErr != nil {
			u.log.Error().Err(rbErr).Msg("Failed to roll back transaction")
			return zero, errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return zero, err
	}

	if err := u.Commit(ctx); err != nil {
		return zero, err
	}
	count, elapsed := logger.StatementStats(ctx)
	u.log.Debug().
		Int64("statements", count).
		Dur("db_elapsed", elapsed).
		Msg("Unit of work completed")
	return result, nil
}
