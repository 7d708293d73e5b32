// Package tracking instruments a database driver with structured logs,
// OpenTelemetry spans and metrics. Every statement, transaction boundary and
// isolation change passes through the same tracker.
package tracking

import (
	"time"

	"github.com/gaborage/go-bricks-orm/config"
)

const (
	DefaultSlowQueryThreshold = 200 * time.Millisecond
	DefaultMaxQueryLength     = 1000
)

// Settings controls what a tracked statement logs.
type Settings struct {
	SlowQueryThreshold time.Duration
	MaxQueryLength     int
	LogParameters      bool
}

// NewSettings reads the query section of cfg. Non-positive threshold and
// length fall back to the defaults.
func NewSettings(cfg *config.DatabaseConfig) Settings {
	s := Settings{}
	if cfg != nil {
		s = Settings{
			SlowQueryThreshold: cfg.Query.Slow.Threshold,
			MaxQueryLength:     cfg.Query.Log.MaxLength,
			LogParameters:      cfg.Query.Log.Parameters,
		}
	}
	if s.SlowQueryThreshold <= 0 {
		s.SlowQueryThreshold = DefaultSlowQueryThreshold
	}
	if s.MaxQueryLength <= 0 {
		s.MaxQueryLength = DefaultMaxQueryLength
	}
	return s
}

func (s Settings) isSlow(elapsed time.Duration) bool {
	return elapsed > s.SlowQueryThreshold
}

// loggable shortens query to MaxQueryLength.
func (s Settings) loggable(query string) string {
	if s.MaxQueryLength > 0 && len(query) > s.MaxQueryLength {
		return TruncateString(query, s.MaxQueryLength)
	}
	return query
}
