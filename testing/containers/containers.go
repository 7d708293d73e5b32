//go:build integration

// Package containers starts throwaway database servers for integration
// tests. Each helper returns a Database whose Config can be passed straight
// to database.NewDriver. Tests are skipped when no Docker daemon is reachable.
package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"

	"github.com/gaborage/go-bricks-orm/config"
	"github.com/gaborage/go-bricks-orm/database/types"
)

// Database is a running database container.
type Database struct {
	cfg       config.DatabaseConfig
	terminate func(context.Context) error
}

// Config returns the connection settings of the container. The returned
// value is a copy; callers may adjust pool or tracking settings freely.
func (d *Database) Config() *config.DatabaseConfig {
	cfg := d.cfg
	return &cfg
}

// Vendor returns the database vendor of the container.
func (d *Database) Vendor() types.Vendor {
	return d.cfg.Type
}

// Terminate stops and removes the container.
func (d *Database) Terminate(ctx context.Context) error {
	if d.terminate == nil {
		return nil
	}
	return d.terminate(ctx)
}

// Start starts a container for vendor and terminates it when the test ends.
// Unknown vendors fail the test.
func Start(ctx context.Context, t *testing.T, vendor types.Vendor) *Database {
	t.Helper()

	var (
		db  *Database
		err error
	)
	switch vendor {
	case types.PostgreSQL:
		db, err = StartPostgreSQL(ctx, t, nil)
	case types.Oracle:
		db, err = StartOracle(ctx, t, nil)
	default:
		t.Fatalf("no container for vendor %q", vendor)
	}
	if err != nil {
		t.Fatalf("start %s container: %v", vendor, err)
	}

	t.Cleanup(func() {
		if err := db.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate %s container: %v", vendor, err)
		}
	})
	return db
}

// skipWithoutDocker skips t when the Docker daemon cannot be contacted.
func skipWithoutDocker(ctx context.Context, t *testing.T) {
	t.Helper()

	provider, err := testcontainers.NewDockerProvider()
	if err == nil {
		defer provider.Close()
		_, err = provider.DaemonHost(ctx)
	}
	if err != nil {
		t.Skipf("Docker is not available - skipping integration test: %v", err)
	}
}
