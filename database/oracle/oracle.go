// Package oracle opens Oracle connections through the pure-Go go-ora driver.
package oracle

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	goora "github.com/sijms/go-ora/v2"

	"github.com/gaborage/go-bricks-orm/config"
	"github.com/gaborage/go-bricks-orm/database/internal/sqldb"
	"github.com/gaborage/go-bricks-orm/database/types"
	"github.com/gaborage/go-bricks-orm/logger"
)

const (
	driverName  = "oracle"
	pingTimeout = 10 * time.Second
)

var (
	openOracleDB = func(dsn string) (*sql.DB, error) {
		return sql.Open(driverName, dsn)
	}
	pingOracleDB = func(ctx context.Context, db *sql.DB) error {
		return db.PingContext(ctx)
	}
)

// DSN returns the go-ora URL for cfg. An explicit connection string wins;
// otherwise the service name, then the SID, then the database name selects
// the connect target.
func DSN(cfg *config.DatabaseConfig) string {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString
	}

	port := cfg.EffectivePort()
	switch {
	case cfg.Oracle.ServiceName != "":
		return goora.BuildUrl(cfg.Host, port, cfg.Oracle.ServiceName, cfg.Username, cfg.Password, nil)
	case cfg.Oracle.SID != "":
		return goora.BuildUrl(cfg.Host, port, "", cfg.Username, cfg.Password, map[string]string{"SID": cfg.Oracle.SID})
	default:
		return goora.BuildUrl(cfg.Host, port, cfg.Database, cfg.Username, cfg.Password, nil)
	}
}

// Open connects to Oracle, applies the pool settings and verifies the
// connection with a ping.
func Open(cfg *config.DatabaseConfig, log logger.Logger) (types.Driver, error) {
	if log == nil {
		log = logger.Nop()
	}

	db, err := openOracleDB(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open Oracle connection: %w", err)
	}
	sqldb.ConfigurePool(db, cfg.Pool)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := pingOracleDB(ctx, db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close Oracle database connection after ping failure")
		}
		return nil, fmt.Errorf("failed to ping Oracle database: %w", err)
	}

	ev := log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.EffectivePort())
	switch {
	case cfg.Oracle.ServiceName != "":
		ev = ev.Str("service_name", cfg.Oracle.ServiceName)
	case cfg.Oracle.SID != "":
		ev = ev.Str("sid", cfg.Oracle.SID)
	default:
		ev = ev.Str("database", cfg.Database)
	}
	ev.Msg("Connected to Oracle database")

	return sqldb.New(db, types.Oracle, log), nil
}
