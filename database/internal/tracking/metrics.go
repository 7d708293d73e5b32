package tracking

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/gaborage/go-bricks-orm/logger"
)

const (
	// Metric names following OpenTelemetry semantic conventions
	metricDBCalls      = "db.client.calls"
	metricDBDuration   = "db.client.operation.duration"
	metricRowsAffected = "db.rows.affected"

	// Connection pool metrics
	metricPoolActive = "db.connection.pool.active"
	metricPoolIdle   = "db.connection.pool.idle"
	metricPoolTotal  = "db.connection.pool.total"

	attrDBSystem    = "db.system.name"
	attrDBOperation = "db.operation.name"
	attrDBTable     = "db.collection.name"

	unknownTable = "unknown"
)

// instruments holds the per-driver metric instruments. A nil instrument is
// skipped, so a failed registration only loses that one series.
type instruments struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
	rows     metric.Int64Counter
}

func newInstruments(meter metric.Meter, log logger.Logger) instruments {
	var (
		ins instruments
		err error
	)

	ins.calls, err = meter.Int64Counter(metricDBCalls,
		metric.WithDescription("Total number of database client calls"),
	)
	logMetricError(log, metricDBCalls, err)

	ins.duration, err = meter.Float64Histogram(metricDBDuration,
		metric.WithDescription("Duration of database operations in milliseconds"),
		metric.WithUnit("ms"),
	)
	logMetricError(log, metricDBDuration, err)

	ins.rows, err = meter.Int64Counter(metricRowsAffected,
		metric.WithDescription("Number of rows affected by database operations"),
	)
	logMetricError(log, metricRowsAffected, err)

	return ins
}

func logMetricError(log logger.Logger, name string, err error) {
	if err != nil {
		log.Warn().Err(err).Str("metric", name).Msg("Failed to initialize database metric")
	}
}

// record emits one call, one duration sample and, for successful writes, the affected row count.
func (ins instruments) record(ctx context.Context, vendor, operation, table string, elapsed time.Duration, rowsAffected int64, err error) {
	isError := err != nil && !errors.Is(err, sql.ErrNoRows)

	common := []attribute.KeyValue{
		attribute.String(attrDBSystem, vendor),
		attribute.String(attrDBOperation, operation),
		attribute.String(attrDBTable, table),
	}

	if ins.calls != nil {
		attrs := append(append(make([]attribute.KeyValue, 0, len(common)+1), common...), attribute.Bool("error", isError))
		ins.calls.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if ins.duration != nil {
		ins.duration.Record(ctx, float64(elapsed.Nanoseconds())/1e6, metric.WithAttributes(common...))
	}
	if ins.rows != nil && rowsAffected > 0 && !isError {
		ins.rows.Add(ctx, rowsAffected, metric.WithAttributes(common...))
	}
}

var tablePatterns = map[string]*regexp.Regexp{
	"SELECT": regexp.MustCompile(`(?i)\bFROM\s+(?:"?\w+"?\.)?"?(\w+)"?`),
	"WITH":   regexp.MustCompile(`(?i)\bFROM\s+(?:"?\w+"?\.)?"?(\w+)"?`),
	"INSERT": regexp.MustCompile(`(?i)^INSERT\s+INTO\s+(?:"?\w+"?\.)?"?(\w+)"?`),
	"UPDATE": regexp.MustCompile(`(?i)^UPDATE\s+(?:"?\w+"?\.)?"?(\w+)"?`),
	"DELETE": regexp.MustCompile(`(?i)^DELETE\s+FROM\s+(?:"?\w+"?\.)?"?(\w+)"?`),
	"MERGE":  regexp.MustCompile(`(?i)^MERGE\s+INTO\s+(?:"?\w+"?\.)?"?(\w+)"?`),
}

// extractTableName returns the first table a statement targets, or "unknown".
// For a SELECT over a sub-select it reports the innermost table.
func extractTableName(query string) string {
	query = strings.TrimSpace(query)
	verb, _, _ := strings.Cut(query, " ")
	pattern, ok := tablePatterns[strings.ToUpper(verb)]
	if !ok {
		return unknownTable
	}
	if matches := pattern.FindStringSubmatch(query); len(matches) > 1 {
		return strings.ToLower(matches[1])
	}
	return unknownTable
}

// StatsProvider exposes connection pool statistics.
type StatsProvider interface {
	Stats() sql.DBStats
}

// registerPoolMetrics reports pool gauges on every collection. The returned
// func unregisters the callback.
func registerPoolMetrics(meter metric.Meter, log logger.Logger, source StatsProvider, vendor string) func() {
	attrs := metric.WithAttributes(attribute.String(attrDBSystem, normalizeDBVendor(vendor)))

	active, errActive := meter.Int64ObservableGauge(metricPoolActive, metric.WithDescription("Number of active database connections"))
	idle, errIdle := meter.Int64ObservableGauge(metricPoolIdle, metric.WithDescription("Number of idle database connections"))
	total, errTotal := meter.Int64ObservableGauge(metricPoolTotal, metric.WithDescription("Maximum number of database connections configured"))
	if err := errors.Join(errActive, errIdle, errTotal); err != nil {
		logMetricError(log, "pool", err)
		return func() {}
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := source.Stats()
		o.ObserveInt64(active, int64(stats.InUse), attrs)
		o.ObserveInt64(idle, int64(stats.Idle), attrs)
		o.ObserveInt64(total, int64(stats.MaxOpenConnections), attrs)
		return nil
	}, active, idle, total)
	if err != nil {
		logMetricError(log, "pool_callback", err)
		return func() {}
	}

	return func() {
		if err := registration.Unregister(); err != nil {
			logMetricError(log, "pool_unregister", err)
		}
	}
}
