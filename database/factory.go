package database

import (
	"database/sql"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-bricks-orm/config"
	"github.com/gaborage/go-bricks-orm/database/internal/sqldb"
	"github.com/gaborage/go-bricks-orm/database/internal/tracking"
	"github.com/gaborage/go-bricks-orm/database/oracle"
	"github.com/gaborage/go-bricks-orm/database/postgresql"
	"github.com/gaborage/go-bricks-orm/database/types"
	"github.com/gaborage/go-bricks-orm/logger"
)

// Vendor identifiers accepted in config.DatabaseConfig.Type.
const (
	PostgreSQL = types.PostgreSQL
	Oracle     = types.Oracle
)

// Opener connects to a database described by cfg.
type Opener func(cfg *config.DatabaseConfig, log logger.Logger) (types.Driver, error)

var openers = map[types.Vendor]Opener{
	PostgreSQL: postgresql.Open,
	Oracle:     oracle.Open,
}

// Option configures the tracking wrapper installed by NewDriver.
type Option = tracking.Option

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return tracking.WithTracerProvider(tp)
}

// WithMeterProvider overrides the global OpenTelemetry meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return tracking.WithMeterProvider(mp)
}

// NewDriver opens a driver according to cfg and returns it wrapped with
// statement tracking. The concrete driver is selected by cfg.Type
// (supported: "postgresql", "oracle"). If cfg.Type is unsupported an error is
// returned; if the chosen driver fails to initialize, that underlying error is
// returned.
func NewDriver(cfg *config.DatabaseConfig, log logger.Logger, opts ...Option) (types.Driver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	if err := ValidateDatabaseType(cfg.Type); err != nil {
		return nil, err
	}

	drv, err := openers[cfg.Type](cfg, log)
	if err != nil {
		return nil, err
	}

	return Track(drv, cfg, log, opts...), nil
}

// Track wraps drv with statement logging, spans and metrics configured from
// cfg. A nil cfg uses the default tracking settings.
func Track(drv types.Driver, cfg *config.DatabaseConfig, log logger.Logger, opts ...Option) types.Driver {
	return tracking.NewDriver(drv, log, tracking.NewSettings(cfg), opts...)
}

// FromDB adapts an already opened connection pool. Closing the returned
// driver closes db.
func FromDB(db *sql.DB, vendor types.Vendor, log logger.Logger) types.Driver {
	if log == nil {
		log = logger.Nop()
	}
	return sqldb.New(db, vendor, log)
}

// ValidateDatabaseType returns nil if dbType is one of the supported database types.
// If dbType is not supported, it returns an error describing the invalid value and listing the supported types.
func ValidateDatabaseType(dbType string) error {
	if !slices.Contains(GetSupportedDatabaseTypes(), dbType) {
		return fmt.Errorf("unsupported database type: %s (supported: %v)", dbType, GetSupportedDatabaseTypes())
	}
	return nil
}

// GetSupportedDatabaseTypes returns a list of supported database types
func GetSupportedDatabaseTypes() []string {
	return []string{PostgreSQL, Oracle}
}
