//go:build integration

package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gaborage/go-bricks-orm/config"
	"github.com/gaborage/go-bricks-orm/database/types"
)

// OracleOptions configures the Oracle Free container.
type OracleOptions struct {
	// ImageTag is the gvenzl/oracle-free image tag (default: "23-slim").
	ImageTag string
	// Password is used for SYSTEM and the application user.
	Password string
	// ServiceName is the pluggable database to connect to (default: "FREEPDB1").
	ServiceName string
	AppUser     string
	// StartupTimeout bounds container readiness (default: 120s).
	StartupTimeout time.Duration
}

func defaultOracleOptions() *OracleOptions {
	return &OracleOptions{
		ImageTag:       "23-slim",
		Password:       "testpass",
		ServiceName:    "FREEPDB1",
		AppUser:        "testuser",
		StartupTimeout: 120 * time.Second,
	}
}

// StartOracle starts an Oracle Free container. A nil opts uses defaults.
func StartOracle(ctx context.Context, t *testing.T, opts *OracleOptions) (*Database, error) {
	t.Helper()
	skipWithoutDocker(ctx, t)

	if opts == nil {
		opts = defaultOracleOptions()
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "gvenzl/oracle-free:" + opts.ImageTag,
			ExposedPorts: []string{"1521/tcp"},
			Env: map[string]string{
				"ORACLE_PASSWORD":   opts.Password,
				"APP_USER":          opts.AppUser,
				"APP_USER_PASSWORD": opts.Password,
			},
			// the log line appears before the listener accepts sessions
			WaitingFor: wait.ForAll(
				wait.ForLog("DATABASE IS READY TO USE!"),
				wait.ForListeningPort("1521/tcp"),
			).WithStartupTimeout(opts.StartupTimeout),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Oracle container: %w", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("failed to get Oracle container host: %w", err)
	}
	port, err := c.MappedPort(ctx, "1521/tcp")
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("failed to get Oracle container port: %w", err)
	}

	t.Logf("Oracle container started at %s:%d (service: %s, user: %s)", host, port.Int(), opts.ServiceName, opts.AppUser)

	return &Database{
		cfg: config.DatabaseConfig{
			Type:     types.Oracle,
			Host:     host,
			Port:     port.Int(),
			Username: opts.AppUser,
			Password: opts.Password,
			Oracle:   config.OracleConfig{ServiceName: opts.ServiceName},
		},
		terminate: func(ctx context.Context) error { return c.Terminate(ctx) },
	}, nil
}
