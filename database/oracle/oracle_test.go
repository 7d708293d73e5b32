package oracle

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-orm/config"
	"github.com/gaborage/go-bricks-orm/database/types"
	"github.com/gaborage/go-bricks-orm/logger"
)

func testConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Type:     config.Oracle,
		Host:     "ora.local",
		Username: "app",
		Password: "secret",
		Database: "ORCL",
		Pool:     config.PoolConfig{MaxConns: 5},
	}
}

func parseDSN(t *testing.T, dsn string) *url.URL {
	t.Helper()
	u, err := url.Parse(dsn)
	require.NoError(t, err)
	return u
}

func TestDSNTargets(t *testing.T) {
	t.Run("database fallback", func(t *testing.T) {
		u := parseDSN(t, DSN(testConfig()))
		assert.Equal(t, "oracle", u.Scheme)
		assert.Equal(t, "ora.local:1521", u.Host)
		assert.Equal(t, "/ORCL", u.Path)
		assert.Equal(t, "app", u.User.Username())
	})

	t.Run("service name wins", func(t *testing.T) {
		cfg := testConfig()
		cfg.Oracle.ServiceName = "FREEPDB1"
		cfg.Oracle.SID = "XE"
		u := parseDSN(t, DSN(cfg))
		assert.Equal(t, "/FREEPDB1", u.Path)
		assert.Empty(t, u.Query().Get("SID"))
	})

	t.Run("sid", func(t *testing.T) {
		cfg := testConfig()
		cfg.Port = 1600
		cfg.Oracle.SID = "XE"
		u := parseDSN(t, DSN(cfg))
		assert.Equal(t, "ora.local:1600", u.Host)
		assert.Equal(t, "XE", u.Query().Get("SID"))
	})

	t.Run("connection string", func(t *testing.T) {
		cfg := testConfig()
		cfg.ConnectionString = "oracle://u:p@h:1521/svc"
		assert.Equal(t, "oracle://u:p@h:1521/svc", DSN(cfg))
	})
}

func stubOpen(t *testing.T, openErr, pingErr error) (sqlmock.Sqlmock, *string) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	var dsn string
	origOpen, origPing := openOracleDB, pingOracleDB
	openOracleDB = func(d string) (*sql.DB, error) {
		dsn = d
		if openErr != nil {
			return nil, openErr
		}
		return db, nil
	}
	pingOracleDB = func(context.Context, *sql.DB) error { return pingErr }
	t.Cleanup(func() {
		openOracleDB, pingOracleDB = origOpen, origPing
		_ = db.Close()
	})
	return mock, &dsn
}

func TestOpen(t *testing.T) {
	mock, dsn := stubOpen(t, nil, nil)

	drv, err := Open(testConfig(), logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, types.Oracle, drv.Vendor())
	assert.Equal(t, DSN(testConfig()), *dsn)

	stats, ok := drv.(interface{ Stats() sql.DBStats })
	require.True(t, ok)
	assert.Equal(t, 5, stats.Stats().MaxOpenConnections)

	mock.ExpectClose()
	require.NoError(t, drv.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenFailures(t *testing.T) {
	t.Run("open", func(t *testing.T) {
		boom := errors.New("bad url")
		stubOpen(t, boom, nil)
		_, err := Open(testConfig(), nil)
		require.ErrorIs(t, err, boom)
	})

	t.Run("ping", func(t *testing.T) {
		boom := errors.New("ORA-12541: TNS:no listener")
		mock, _ := stubOpen(t, nil, boom)
		mock.ExpectClose()

		_, err := Open(testConfig(), nil)
		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "failed to ping Oracle database")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
