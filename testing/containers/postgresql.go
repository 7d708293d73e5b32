//go:build integration

package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gaborage/go-bricks-orm/config"
	"github.com/gaborage/go-bricks-orm/database/types"
)

// PostgreSQLOptions configures the PostgreSQL container.
type PostgreSQLOptions struct {
	// ImageTag is the postgres image tag (default: "17-alpine").
	ImageTag string
	Username string
	Password string
	Database string
	// StartupTimeout bounds container readiness (default: 60s).
	StartupTimeout time.Duration
}

func defaultPostgreSQLOptions() *PostgreSQLOptions {
	return &PostgreSQLOptions{
		ImageTag:       "17-alpine",
		Username:       "testuser",
		Password:       "testpass",
		Database:       "testdb",
		StartupTimeout: 60 * time.Second,
	}
}

// StartPostgreSQL starts a PostgreSQL container. A nil opts uses defaults.
func StartPostgreSQL(ctx context.Context, t *testing.T, opts *PostgreSQLOptions) (*Database, error) {
	t.Helper()
	skipWithoutDocker(ctx, t)

	if opts == nil {
		opts = defaultPostgreSQLOptions()
	}

	c, err := postgres.Run(ctx,
		"postgres:"+opts.ImageTag,
		postgres.WithDatabase(opts.Database),
		postgres.WithUsername(opts.Username),
		postgres.WithPassword(opts.Password),
		testcontainers.WithWaitStrategy(
			// the server restarts once after initdb
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(opts.StartupTimeout),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start PostgreSQL container: %w", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("failed to get PostgreSQL container host: %w", err)
	}
	port, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("failed to get PostgreSQL container port: %w", err)
	}

	t.Logf("PostgreSQL container started at %s:%d (database: %s)", host, port.Int(), opts.Database)

	return &Database{
		cfg: config.DatabaseConfig{
			Type:     types.PostgreSQL,
			Host:     host,
			Port:     port.Int(),
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
			SSLMode:  "disable",
		},
		terminate: func(ctx context.Context) error { return c.Terminate(ctx) },
	}, nil
}
