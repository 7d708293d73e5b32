package config

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Database type constants
const (
	PostgreSQL = "postgresql"
	Oracle     = "oracle"
)

const (
	defaultPostgreSQLPort = 5432
	defaultOraclePort     = 1521
)

// Config is the root configuration of the data-access layer.
type Config struct {
	Log      LogConfig      `koanf:"log" json:"log" yaml:"log" mapstructure:"log"`
	Database DatabaseConfig `koanf:"database" json:"database" yaml:"database" mapstructure:"database"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" mapstructure:"level" validate:"oneof=trace debug info warn error fatal disabled"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty" mapstructure:"pretty"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Type     string `koanf:"type" json:"type" yaml:"type" mapstructure:"type" validate:"omitempty,oneof=postgresql oracle"`
	Host     string `koanf:"host" json:"host" yaml:"host" mapstructure:"host" validate:"omitempty,hostname_rfc1123|ip"`
	Port     int    `koanf:"port" json:"port" yaml:"port" mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Database string `koanf:"database" json:"database" yaml:"database" mapstructure:"database"`
	Username string `koanf:"username" json:"username" yaml:"username" mapstructure:"username"`
	Password string `koanf:"password" json:"-" yaml:"password" mapstructure:"password"`
	SSLMode  string `koanf:"sslmode" json:"sslmode" yaml:"sslmode" mapstructure:"sslmode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`

	ConnectionString string `koanf:"connectionstring" json:"-" yaml:"connectionstring" mapstructure:"connectionstring"`

	Pool        PoolConfig        `koanf:"pool" json:"pool" yaml:"pool" mapstructure:"pool"`
	Query       QueryConfig       `koanf:"query" json:"query" yaml:"query" mapstructure:"query"`
	Transaction TransactionConfig `koanf:"transaction" json:"transaction" yaml:"transaction" mapstructure:"transaction"`

	Oracle OracleConfig `koanf:"oracle" json:"oracle" yaml:"oracle" mapstructure:"oracle"`
}

// OracleConfig selects the Oracle connect target. ServiceName wins over SID;
// with neither set, Database is used as the service name.
type OracleConfig struct {
	ServiceName string `koanf:"servicename" json:"servicename" yaml:"servicename" mapstructure:"servicename"`
	SID         string `koanf:"sid" json:"sid" yaml:"sid" mapstructure:"sid"`
}

// IsConfigured reports whether any connection setting was provided.
func (c *DatabaseConfig) IsConfigured() bool {
	return c.ConnectionString != "" || c.Host != "" || c.Type != ""
}

// EffectivePort returns the configured port or the vendor default.
func (c *DatabaseConfig) EffectivePort() int {
	if c.Port != 0 {
		return c.Port
	}
	switch c.Type {
	case PostgreSQL:
		return defaultPostgreSQLPort
	case Oracle:
		return defaultOraclePort
	default:
		return 0
	}
}

// PoolConfig holds connection pool settings. Zero values leave the
// database/sql defaults in place.
type PoolConfig struct {
	MaxConns        int32         `koanf:"maxconns" json:"maxconns" yaml:"maxconns" mapstructure:"maxconns" validate:"gte=0"`
	MaxIdleConns    int32         `koanf:"maxidleconns" json:"maxidleconns" yaml:"maxidleconns" mapstructure:"maxidleconns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"connmaxlifetime" json:"connmaxlifetime" yaml:"connmaxlifetime" mapstructure:"connmaxlifetime" validate:"gte=0"`
	ConnMaxIdleTime time.Duration `koanf:"connmaxidletime" json:"connmaxidletime" yaml:"connmaxidletime" mapstructure:"connmaxidletime" validate:"gte=0"`
}

// QueryConfig holds settings related to query logging and slow query detection.
type QueryConfig struct {
	Slow SlowQueryConfig `koanf:"slow" json:"slow" yaml:"slow" mapstructure:"slow"`
	Log  QueryLogConfig  `koanf:"log" json:"log" yaml:"log" mapstructure:"log"`
}

// SlowQueryConfig holds settings for slow query detection.
type SlowQueryConfig struct {
	Threshold time.Duration `koanf:"threshold" json:"threshold" yaml:"threshold" mapstructure:"threshold" validate:"gte=0"`
}

// QueryLogConfig holds settings for query logging.
type QueryLogConfig struct {
	Parameters bool `koanf:"parameters" json:"parameters" yaml:"parameters" mapstructure:"parameters"`
	MaxLength  int  `koanf:"maxlength" json:"maxlength" yaml:"maxlength" mapstructure:"maxlength" validate:"gte=0"`
}

// TransactionConfig holds defaults applied to every unit of work.
type TransactionConfig struct {
	Isolation string `koanf:"isolation" json:"isolation" yaml:"isolation" mapstructure:"isolation" validate:"isolation"`
}

var isolationLevels = map[string]sql.IsolationLevel{
	"":                 sql.LevelDefault,
	"default":          sql.LevelDefault,
	"read_uncommitted": sql.LevelReadUncommitted,
	"read_committed":   sql.LevelReadCommitted,
	"write_committed":  sql.LevelWriteCommitted,
	"repeatable_read":  sql.LevelRepeatableRead,
	"snapshot":         sql.LevelSnapshot,
	"serializable":     sql.LevelSerializable,
	"linearizable":     sql.LevelLinearizable,
}

// ParseIsolationLevel maps names such as "read committed", "READ_COMMITTED"
// or "read-committed" to a database/sql isolation level.
func ParseIsolationLevel(name string) (sql.IsolationLevel, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	level, ok := isolationLevels[key]
	if !ok {
		return sql.LevelDefault, fmt.Errorf("unknown isolation level %q", name)
	}
	return level, nil
}

// IsolationLevel returns the parsed default isolation level.
func (c TransactionConfig) IsolationLevel() (sql.IsolationLevel, error) {
	return ParseIsolationLevel(c.Isolation)
}
