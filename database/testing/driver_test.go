package testing

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbtypes "github.com/gaborage/go-bricks-orm/database/types"
)

const selectUsers = "SELECT id, name FROM users"

func TestDriverQueryReturnsRows(t *testing.T) {
	drv := NewTestDriver(dbtypes.PostgreSQL)
	drv.ExpectQuery("FROM users").WillReturnRows(
		NewRowSet("id", "name").AddRow(1, "Alice").AddRow(int64(2), "Bob"),
	)

	rows, err := drv.Query(context.Background(), selectUsers+" WHERE id > $1", 0)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var id int64
		var name string
		require.NoError(t, rows.Scan(&id, &name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"Alice", "Bob"}, names)

	AssertQueryExecuted(t, drv, "WHERE id > $1")
	assert.Equal(t, []any{0}, drv.QueryLog()[0].Args)
}

func TestDriverQueryRow(t *testing.T) {
	drv := NewTestDriver(dbtypes.Oracle)
	name := "Alice"
	drv.ExpectQuery("SELECT name").WillReturnRows(NewRowSet("name").AddRow(&name))
	drv.ExpectQuery("SELECT missing").WillReturnRows(NewRowSet("name"))

	var got string
	require.NoError(t, drv.QueryRow(context.Background(), "SELECT name FROM users").Scan(&got))
	assert.Equal(t, "Alice", got)

	err := drv.QueryRow(context.Background(), "SELECT missing FROM users").Scan(&got)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDriverUnexpectedStatements(t *testing.T) {
	drv := NewTestDriver(dbtypes.PostgreSQL)

	_, err := drv.Query(context.Background(), selectUsers)
	assert.ErrorContains(t, err, "unexpected query")

	_, err = drv.Exec(context.Background(), "DELETE FROM users")
	assert.ErrorContains(t, err, "unexpected exec")

	_, err = drv.Begin(context.Background(), sql.LevelDefault)
	assert.ErrorContains(t, err, "unexpected Begin")
}

func TestDriverExecFillsOutArguments(t *testing.T) {
	drv := NewTestDriver(dbtypes.Oracle)
	drv.ExpectExec("RETURNING id INTO").WillReturnOut(42).WillReturnRowsAffected(1)
	drv.ExpectExec("RETURNING ref INTO").WillReturnOut("not a number")

	var id int64
	_, err := drv.Exec(context.Background(), "INSERT INTO t (a) VALUES (:1) RETURNING id INTO :2", "x", sql.Out{Dest: &id})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = drv.Exec(context.Background(), "INSERT INTO t (a) VALUES (:1) RETURNING ref INTO :2", "x", sql.Out{Dest: &id})
	assert.ErrorContains(t, err, "cannot store string")
}

func TestDriverStrictMatching(t *testing.T) {
	drv := NewTestDriver(dbtypes.PostgreSQL).StrictSQLMatching()
	drv.ExpectExec("DELETE FROM users").WillReturnRowsAffected(3)

	_, err := drv.Exec(context.Background(), "DELETE FROM users WHERE id = $1", 1)
	require.Error(t, err)

	res, err := drv.Exec(context.Background(), "DELETE FROM users")
	require.NoError(t, err)
	n, _ := res.RowsAffected()
	assert.Equal(t, int64(3), n)
}

func TestTransactionLifecycle(t *testing.T) {
	drv := NewTestDriver(dbtypes.PostgreSQL)
	drv.ExpectExec("UPDATE audit").WillReturnRowsAffected(1)
	tx := drv.ExpectBegin()
	tx.ExpectExec("INSERT INTO users").WillReturnRowsAffected(1)

	handle, err := drv.Begin(context.Background(), sql.LevelSerializable)
	require.NoError(t, err)
	assert.Equal(t, sql.LevelSerializable, tx.Level())

	_, err = handle.Exec(context.Background(), "INSERT INTO users (name) VALUES ($1)", "Alice")
	require.NoError(t, err)
	_, err = handle.Exec(context.Background(), "UPDATE audit SET n = n + 1")
	require.NoError(t, err, "falls back to driver expectations")

	require.NoError(t, handle.SetIsolationLevel(context.Background(), sql.LevelReadCommitted))
	require.NoError(t, handle.Commit(context.Background()))
	assert.True(t, handle.Finished())
	AssertCommitted(t, tx)
	AssertExecExecuted(t, tx, "INSERT INTO users")
	AssertExecNotExecuted(t, drv, "INSERT INTO users")

	assert.ErrorIs(t, handle.Rollback(context.Background()), dbtypes.ErrTxFinished)
	_, err = handle.Exec(context.Background(), "UPDATE audit SET n = 0")
	assert.ErrorIs(t, err, dbtypes.ErrTxFinished)
	assert.Equal(t, []sql.IsolationLevel{sql.LevelReadCommitted}, tx.IsolationChanges())
	assert.Equal(t, []sql.IsolationLevel{sql.LevelSerializable}, drv.BeginLevels())
}

func TestTransactionFailures(t *testing.T) {
	drv := NewTestDriver(dbtypes.PostgreSQL)
	boom := errors.New("boom")
	drv.ExpectBeginError(boom)
	tx := drv.ExpectBegin().WillFailCommit(boom)

	_, err := drv.Begin(context.Background(), sql.LevelDefault)
	assert.ErrorIs(t, err, boom)

	handle, err := drv.Begin(context.Background(), sql.LevelDefault)
	require.NoError(t, err)
	assert.ErrorIs(t, handle.Commit(context.Background()), boom)
	assert.True(t, handle.Finished())
	assert.False(t, tx.IsCommitted())
	assert.Equal(t, 1, tx.CommitCount())
	assert.Len(t, drv.Transactions(), 1)
}

func TestDriverClose(t *testing.T) {
	drv := NewTestDriver(dbtypes.PostgreSQL)
	require.NoError(t, drv.Close())
	assert.True(t, drv.Closed())
	AssertNoTransaction(t, drv)
}
