package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-bricks-orm/logger"
)

const (
	// Default operation type for unidentified queries
	defaultOperation = "query"

	// Instrumentation scope for spans and metrics
	instrumentationName = "go-bricks-orm/database"
	maxDBQueryAttrLen   = 2000

	// Synthetic statements recorded for transaction boundaries
	opBegin    = "BEGIN"
	opCommit   = "COMMIT"
	opRollback = "ROLLBACK"
)

// Option customizes the tracker behind a tracked Driver.
type Option func(*tracker)

// WithTracerProvider replaces the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(t *tracker) {
		t.tracer = tp.Tracer(instrumentationName)
	}
}

// WithMeterProvider replaces the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(t *tracker) {
		t.meter = mp.Meter(instrumentationName)
	}
}

// tracker emits a log line, a span and metric samples per database operation.
type tracker struct {
	log         logger.Logger
	vendor      string
	settings    Settings
	tracer      trace.Tracer
	meter       metric.Meter
	instruments instruments
}

func newTracker(log logger.Logger, vendor string, settings Settings, opts ...Option) *tracker {
	if log == nil {
		log = logger.Nop()
	}
	t := &tracker{
		log:      log,
		vendor:   vendor,
		settings: settings,
		tracer:   otel.Tracer(instrumentationName),
		meter:    otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.instruments = newInstruments(t.meter, t.log)
	return t
}

// track records a completed operation. rowsAffected is 0 for reads.
func (t *tracker) track(ctx context.Context, query string, args []any, start time.Time, rowsAffected int64, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	elapsed := time.Since(start)

	logger.RecordStatement(ctx, elapsed)

	operation := extractDBOperation(query)
	table := extractTableName(query)

	t.span(ctx, query, operation, table, start, err)
	t.instruments.record(ctx, normalizeDBVendor(t.vendor), operation, table, elapsed, rowsAffected, err)

	logEvent := t.log.WithContext(ctx).WithFields(map[string]any{
		"vendor":      t.vendor,
		"operation":   operation,
		"duration_ms": elapsed.Milliseconds(),
		"query":       t.settings.loggable(query),
	})
	if t.settings.LogParameters && len(args) > 0 {
		logEvent = logEvent.WithFields(map[string]any{
			"args": SanitizeArgs(args, t.settings.MaxQueryLength),
		})
	}

	switch {
	case err != nil && errors.Is(err, sql.ErrNoRows):
		logEvent.Debug().Msg("Database operation returned no rows")
	case err != nil:
		logEvent.Error().Err(err).Msg("Database operation error")
	case t.settings.isSlow(elapsed):
		logEvent.Warn().Msgf("Slow database operation detected (%s)", elapsed)
	default:
		logEvent.Debug().Msg("Database operation executed")
	}
}

func (t *tracker) span(ctx context.Context, query, operation, table string, start time.Time, err error) {
	_, span := t.tracer.Start(ctx, "db."+operation,
		trace.WithTimestamp(start),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	attrs := []attribute.KeyValue{
		attribute.String("db.system.name", normalizeDBVendor(t.vendor)),
		semconv.DBQueryText(TruncateString(query, maxDBQueryAttrLen)),
	}
	if operation != defaultOperation {
		attrs = append(attrs, semconv.DBOperationName(operation))
	}
	if table != unknownTable {
		attrs = append(attrs, semconv.DBCollectionName(table))
	}
	span.SetAttributes(attrs...)

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// extractRowsAffected returns 0 when the result is unavailable.
func extractRowsAffected(result sql.Result, err error) int64 {
	if result == nil || err != nil {
		return 0
	}
	affected, affErr := result.RowsAffected()
	if affErr != nil {
		return 0
	}
	return affected
}

// TruncateString truncates value to at most maxLen runes, ending with "..."
// when maxLen leaves room for it. maxLen <= 0 disables truncation.
func TruncateString(value string, maxLen int) string {
	if maxLen <= 0 {
		return value
	}
	r := []rune(value)
	if len(r) <= maxLen {
		return value
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// SanitizeArgs returns a log-safe copy of args. Byte slices become
// "<bytes len=N>" and every other value is formatted and truncated to maxLen.
func SanitizeArgs(args []any, maxLen int) []any {
	if len(args) == 0 {
		return nil
	}
	sanitized := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case string:
			sanitized[i] = TruncateString(v, maxLen)
		case []byte:
			sanitized[i] = fmt.Sprintf("<bytes len=%d>", len(v))
		case nil:
			sanitized[i] = nil
		default:
			sanitized[i] = TruncateString(fmt.Sprintf("%v", v), maxLen)
		}
	}
	return sanitized
}

// extractDBOperation returns the lowercase statement verb.
func extractDBOperation(query string) string {
	parts := strings.Fields(query)
	if len(parts) == 0 {
		return defaultOperation
	}

	operation := strings.ToLower(parts[0])
	switch operation {
	case "select", "insert", "update", "delete", "merge", "begin", "commit", "rollback":
		return operation
	case "with":
		return "select"
	case "set":
		if len(parts) > 1 && strings.EqualFold(parts[1], "transaction") {
			return "set_isolation"
		}
		return defaultOperation
	default:
		return defaultOperation
	}
}

// normalizeDBVendor maps vendor names to OpenTelemetry db.system.name values.
func normalizeDBVendor(vendor string) string {
	switch strings.ToLower(vendor) {
	case "postgres", "postgresql":
		return "postgresql"
	case "oracle", "oracle.db":
		return "oracle.db"
	default:
		return strings.ToLower(vendor)
	}
}

func isolationStatement(level sql.IsolationLevel) string {
	return "SET TRANSACTION ISOLATION LEVEL " + strings.ToUpper(level.String())
}
