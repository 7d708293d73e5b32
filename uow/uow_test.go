package uow

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbtesting "github.com/gaborage/go-bricks-orm/database/testing"
	dbtypes "github.com/gaborage/go-bricks-orm/database/types"
	"github.com/gaborage/go-bricks-orm/logger"
)

const insertUser = "INSERT INTO users (name) VALUES ($1)"

func newUnit(t *testing.T, opts ...Option) (*UnitOfWork, *dbtesting.TestDriver) {
	t.Helper()
	drv := dbtesting.NewTestDriver(dbtypes.PostgreSQL)
	return New(drv, opts...), drv
}

func TestNewAssignsIdentity(t *testing.T) {
	a, _ := newUnit(t)
	b, _ := newUnit(t)
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.False(t, a.InTransaction())
}

func TestExecutorFollowsTransaction(t *testing.T) {
	ctx := context.Background()
	u, drv := newUnit(t)
	tx := drv.ExpectBegin()

	assert.Same(t, drv, u.Executor())

	require.NoError(t, u.Begin(ctx))
	assert.Same(t, tx, u.Executor())
	assert.True(t, u.InTransaction())

	require.NoError(t, u.Commit(ctx))
	assert.Same(t, drv, u.Executor())
	assert.False(t, u.InTransaction())
	dbtesting.AssertCommitted(t, tx)
}

func TestBeginTwiceFails(t *testing.T) {
	ctx := context.Background()
	u, drv := newUnit(t)
	drv.ExpectBegin()

	require.NoError(t, u.Begin(ctx))
	err := u.Begin(ctx)
	require.ErrorIs(t, err, ErrTransactionInProgress)
	assert.ErrorIs(t, err, ErrIllegalState)
	assert.Len(t, drv.Transactions(), 1, "driver is not asked for a second transaction")
}

func TestBeginAfterExternallyFinishedTransaction(t *testing.T) {
	ctx := context.Background()
	u, drv := newUnit(t)
	first := drv.ExpectBegin()
	second := drv.ExpectBegin()

	require.NoError(t, u.Begin(ctx))
	require.NoError(t, u.Executor().(dbtypes.Tx).Commit(ctx))
	assert.False(t, u.InTransaction())

	require.NoError(t, u.Begin(ctx))
	assert.Same(t, second, u.Executor())
	dbtesting.AssertCommitted(t, first)
}

func TestResolveWithoutTransaction(t *testing.T) {
	ctx := context.Background()
	u, _ := newUnit(t)

	for name, call := range map[string]func() error{
		"commit":    func() error { return u.Commit(ctx) },
		"rollback":  func() error { return u.Rollback(ctx) },
		"isolation": func() error { return u.SetIsolationLevel(ctx, sql.LevelSerializable) },
	} {
		err := call()
		assert.ErrorIs(t, err, ErrTransactionNotStarted, name)
		assert.ErrorIs(t, err, ErrIllegalState, name)
	}
}

func TestBeginIsolationLevels(t *testing.T) {
	ctx := context.Background()
	u, drv := newUnit(t, WithDefaultIsolation(sql.LevelReadCommitted))
	drv.ExpectBegin()
	drv.ExpectBegin()

	require.NoError(t, u.Begin(ctx))
	require.NoError(t, u.Rollback(ctx))
	require.NoError(t, u.Begin(ctx, sql.LevelSerializable))
	require.NoError(t, u.Rollback(ctx))

	assert.Equal(t, []sql.IsolationLevel{sql.LevelReadCommitted, sql.LevelSerializable}, drv.BeginLevels())
}

func TestBeginFailurePropagates(t *testing.T) {
	boom := errors.New("too many connections")
	u, drv := newUnit(t)
	drv.ExpectBeginError(boom)

	require.ErrorIs(t, u.Begin(context.Background()), boom)
	assert.False(t, u.InTransaction())
	assert.Same(t, drv, u.Executor())
}

func TestCommitFailureReleasesHandle(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("serialization failure")
	u, drv := newUnit(t)
	drv.ExpectBegin().WillFailCommit(boom)

	require.NoError(t, u.Begin(ctx))
	require.ErrorIs(t, u.Commit(ctx), boom)
	assert.Same(t, drv, u.Executor())
	assert.ErrorIs(t, u.Rollback(ctx), ErrTransactionNotStarted)
}

func TestSetIsolationLevelForwards(t *testing.T) {
	ctx := context.Background()
	u, drv := newUnit(t)
	tx := drv.ExpectBegin()

	require.NoError(t, u.Begin(ctx))
	require.NoError(t, u.SetIsolationLevel(ctx, sql.LevelRepeatableRead))
	assert.Equal(t, []sql.IsolationLevel{sql.LevelRepeatableRead}, tx.IsolationChanges())

	boom := errors.New("isolation cannot change now")
	tx.WillFailIsolation(boom)
	assert.ErrorIs(t, u.SetIsolationLevel(ctx, sql.LevelSerializable), boom)
}

func TestAutoCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	u, drv := newUnit(t)
	tx := drv.ExpectBegin()
	tx.ExpectExec("INSERT INTO users").WillReturnRowsAffected(1)

	err := u.Auto(ctx, func(ctx context.Context) error {
		assert.Same(t, tx, u.Executor())
		_, err := u.Executor().Exec(ctx, insertUser, "Alice")
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, 1, tx.CommitCount())
	assert.Equal(t, 0, tx.RollbackCount())
	dbtesting.AssertExecExecuted(t, tx, "INSERT INTO users")
	dbtesting.AssertExecNotExecuted(t, drv, "INSERT INTO users")
	assert.False(t, u.InTransaction())
}

func TestAutoRollsBackAndReturnsOriginalError(t *testing.T) {
	ctx := context.Background()
	u, drv := newUnit(t)
	tx := drv.ExpectBegin()
	boom := errors.New("duplicate key")

	err := u.Auto(ctx, func(context.Context) error { return boom })
	assert.Same(t, boom, err)

	assert.Equal(t, 0, tx.CommitCount())
	assert.Equal(t, 1, tx.RollbackCount())
	assert.False(t, u.InTransaction())
}

func TestAutoJoinsRollbackFailure(t *testing.T) {
	boom := errors.New("duplicate key")
	rbErr := errors.New("connection lost")
	u, drv := newUnit(t)
	drv.ExpectBegin().WillFailRollback(rbErr)

	err := u.Auto(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, rbErr)
}

func TestAutoRollsBackOnPanic(t *testing.T) {
	u, drv := newUnit(t)
	tx := drv.ExpectBegin()

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = u.Auto(context.Background(), func(context.Context) error { panic("kaboom") })
	})
	assert.Equal(t, 1, tx.RollbackCount())
	assert.Equal(t, 0, tx.CommitCount())
	assert.False(t, u.InTransaction())
}

func TestAutoPropagatesLifecycleFailures(t *testing.T) {
	t.Run("begin", func(t *testing.T) {
		boom := errors.New("begin failed")
		u, drv := newUnit(t)
		drv.ExpectBeginError(boom)

		called := false
		err := u.Auto(context.Background(), func(context.Context) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, boom)
		assert.False(t, called)
	})

	t.Run("commit", func(t *testing.T) {
		boom := errors.New("commit failed")
		u, drv := newUnit(t)
		tx := drv.ExpectBegin().WillFailCommit(boom)

		err := u.Auto(context.Background(), func(context.Context) error { return nil })
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, tx.RollbackCount())
	})

	t.Run("already in progress", func(t *testing.T) {
		u, drv := newUnit(t)
		drv.ExpectBegin()
		require.NoError(t, u.Begin(context.Background()))

		err := u.Auto(context.Background(), func(context.Context) error { return nil })
		assert.ErrorIs(t, err, ErrTransactionInProgress)
		assert.True(t, u.InTransaction(), "outer transaction is left untouched")
	})
}

func TestAutoRejectsNilAction(t *testing.T) {
	u, drv := newUnit(t)

	assert.ErrorIs(t, u.Auto(context.Background(), nil), ErrInvalidAction)
	_, err := Do[int](context.Background(), u, nil)
	assert.ErrorIs(t, err, ErrInvalidAction)
	assert.Empty(t, drv.BeginLevels(), "no transaction work is attempted")
}

func TestAutoWithIsolation(t *testing.T) {
	u, drv := newUnit(t)
	drv.ExpectBegin()

	require.NoError(t, u.AutoWithIsolation(context.Background(), sql.LevelSerializable,
		func(context.Context) error { return nil }))
	assert.Equal(t, []sql.IsolationLevel{sql.LevelSerializable}, drv.BeginLevels())
}

func TestDoReturnsResult(t *testing.T) {
	ctx := context.Background()
	u, drv := newUnit(t)
	drv.ExpectBegin()
	failing := drv.ExpectBegin()

	got, err := Do(ctx, u, func(context.Context) (string, error) { return "done", nil })
	require.NoError(t, err)
	assert.Equal(t, "done", got)

	boom := errors.New("nope")
	got, err = DoWithIsolation(ctx, u, sql.LevelReadCommitted, func(context.Context) (string, error) {
		return "partial", boom
	})
	assert.Same(t, boom, err)
	assert.Empty(t, got)
	dbtesting.AssertRolledBack(t, failing)
}

func TestLifecycleIsLoggedWithIdentity(t *testing.T) {
	ctx := context.Background()
	buf := &bytes.Buffer{}
	u, drv := newUnit(t, WithLogger(logger.NewWithWriter("debug", buf, nil)))
	drv.ExpectBegin()

	require.NoError(t, u.Begin(ctx))
	require.NoError(t, u.Commit(ctx))

	out := buf.String()
	assert.Contains(t, out, "Transaction started")
	assert.Contains(t, out, "Transaction committed")
	assert.Contains(t, out, u.ID())
}

func TestAutoLogsStatementStats(t *testing.T) {
	ctx := context.Background()
	buf := &bytes.Buffer{}
	u, drv := newUnit(t, WithLogger(logger.NewWithWriter("debug", buf, nil)))
	drv.ExpectBegin()

	err := u.Auto(ctx, func(ctx context.Context) error {
		logger.RecordStatement(ctx, 2*time.Millisecond)
		logger.RecordStatement(ctx, 3*time.Millisecond)
		return nil
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Unit of work completed")
	assert.Contains(t, out, `"statements":2`)
	assert.Contains(t, out, `"db_elapsed":5`)
}

func TestDirectProvider(t *testing.T) {
	drv := dbtesting.NewTestDriver(dbtypes.Oracle)
	p := Direct(drv)
	assert.Same(t, drv, p.Executor())

	var calls int
	fn := ProviderFunc(func() dbtypes.Executor {
		calls++
		return drv
	})
	fn.Executor()
	fn.Executor()
	assert.Equal(t, 2, calls)
}
