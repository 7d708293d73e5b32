package tracking

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/gaborage/go-bricks-orm/config"
	dbtesting "github.com/gaborage/go-bricks-orm/database/testing"
	dbtypes "github.com/gaborage/go-bricks-orm/database/types"
	"github.com/gaborage/go-bricks-orm/logger"
)

const (
	testSelectUsers = "SELECT id, name FROM users WHERE id = $1"
	testInsertUsers = "INSERT INTO users (name) VALUES ($1)"
)

type harness struct {
	fake    *dbtesting.TestDriver
	driver  *Driver
	spans   *tracetest.InMemoryExporter
	reader  *sdkmetric.ManualReader
	logs    *bytes.Buffer
	cleanup func()
}

func newHarness(t *testing.T, vendor string, cfg *config.DatabaseConfig) *harness {
	t.Helper()

	spans := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	logs := &bytes.Buffer{}
	fake := dbtesting.NewTestDriver(vendor)
	drv := NewDriver(fake, logger.NewWithWriter("debug", logs, nil), NewSettings(cfg),
		WithTracerProvider(tp), WithMeterProvider(mp))

	return &harness{fake: fake, driver: drv, spans: spans, reader: reader, logs: logs}
}

func (h *harness) logLines(t *testing.T) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(h.logs.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func (h *harness) metrics(t *testing.T) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, h.reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestDriverTracksQuery(t *testing.T) {
	h := newHarness(t, dbtypes.PostgreSQL, nil)
	h.fake.ExpectQuery("FROM users").WillReturnRows(dbtesting.NewRowSet("id", "name").AddRow(1, "Alice"))

	rows, err := h.driver.Query(context.Background(), testSelectUsers, 1)
	require.NoError(t, err)
	require.NoError(t, rows.Close())

	spans := h.spans.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.select", spans[0].Name)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "postgresql", attrs["db.system.name"])
	assert.Equal(t, testSelectUsers, attrs["db.query.text"])
	assert.Equal(t, "users", attrs["db.collection.name"])

	lines := h.logLines(t)
	require.Len(t, lines, 1)
	assert.Equal(t, "debug", lines[0]["level"])
	assert.Equal(t, testSelectUsers, lines[0]["query"])
	assert.NotContains(t, lines[0], "args", "parameters are not logged by default")
}

func TestDriverTracksExecRowsAndMetrics(t *testing.T) {
	h := newHarness(t, dbtypes.PostgreSQL, nil)
	h.fake.ExpectExec("INSERT INTO users").WillReturnRowsAffected(2)

	_, err := h.driver.Exec(context.Background(), testInsertUsers, "Alice")
	require.NoError(t, err)

	m := h.metrics(t)
	calls, ok := m[metricDBCalls].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, calls.DataPoints, 1)
	assert.Equal(t, int64(1), calls.DataPoints[0].Value)
	op, _ := calls.DataPoints[0].Attributes.Value(attrDBOperation)
	assert.Equal(t, "insert", op.AsString())

	rowsMetric, ok := m[metricRowsAffected].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(2), rowsMetric.DataPoints[0].Value)

	_, ok = m[metricDBDuration].Data.(metricdata.Histogram[float64])
	assert.True(t, ok)
}

func TestDriverTracksErrors(t *testing.T) {
	h := newHarness(t, dbtypes.Oracle, nil)
	boom := errors.New("ORA-00942: table or view does not exist")
	h.fake.ExpectExec("DELETE").WillReturnError(boom)

	_, err := h.driver.Exec(context.Background(), "DELETE FROM missing WHERE id = :1", 1)
	require.ErrorIs(t, err, boom)

	spans := h.spans.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)

	lines := h.logLines(t)
	require.Len(t, lines, 1)
	assert.Equal(t, "error", lines[0]["level"])
	assert.Equal(t, "oracle", lines[0]["vendor"])
}

func TestDriverQueryRowTracksOnScan(t *testing.T) {
	h := newHarness(t, dbtypes.PostgreSQL, nil)
	h.fake.ExpectQuery("FROM users").WillReturnRows(dbtesting.NewRowSet("id"))

	row := h.driver.QueryRow(context.Background(), testSelectUsers, 1)
	assert.Empty(t, h.spans.GetSpans(), "tracked only once scanned")

	var id int
	assert.ErrorIs(t, row.Scan(&id), sql.ErrNoRows)

	spans := h.spans.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status.Code, "no rows is not a failure")
}

func TestDriverTransactionBoundaries(t *testing.T) {
	h := newHarness(t, dbtypes.PostgreSQL, nil)
	tx := h.fake.ExpectBegin()
	tx.ExpectExec("INSERT INTO users").WillReturnRowsAffected(1)

	handle, err := h.driver.Begin(context.Background(), sql.LevelSerializable)
	require.NoError(t, err)
	require.NoError(t, handle.SetIsolationLevel(context.Background(), sql.LevelReadCommitted))
	_, err = handle.Exec(context.Background(), testInsertUsers, "Alice")
	require.NoError(t, err)
	require.NoError(t, handle.Commit(context.Background()))
	assert.True(t, handle.Finished())

	names := make([]string, 0, 4)
	for _, s := range h.spans.GetSpans() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"db.begin", "db.set_isolation", "db.insert", "db.commit"}, names)
	assert.Equal(t, []sql.IsolationLevel{sql.LevelSerializable}, h.fake.BeginLevels())
	dbtesting.AssertCommitted(t, tx)
}

func TestDriverRollbackAndBeginFailure(t *testing.T) {
	h := newHarness(t, dbtypes.PostgreSQL, nil)
	boom := errors.New("connection refused")
	h.fake.ExpectBeginError(boom)
	tx := h.fake.ExpectBegin()

	_, err := h.driver.Begin(context.Background(), sql.LevelDefault)
	require.ErrorIs(t, err, boom)

	handle, err := h.driver.Begin(context.Background(), sql.LevelDefault)
	require.NoError(t, err)
	require.NoError(t, handle.Rollback(context.Background()))
	dbtesting.AssertRolledBack(t, tx)

	spans := h.spans.GetSpans()
	require.Len(t, spans, 3)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "db.rollback", spans[2].Name)
}

func TestDriverLogsParametersAndSlowQueries(t *testing.T) {
	cfg := &config.DatabaseConfig{}
	cfg.Query.Log.Parameters = true
	cfg.Query.Log.MaxLength = 8
	cfg.Query.Slow.Threshold = time.Nanosecond

	h := newHarness(t, dbtypes.PostgreSQL, cfg)
	h.fake.ExpectExec("INSERT").WillReturnRowsAffected(1)

	_, err := h.driver.Exec(context.Background(), testInsertUsers, "a very long name", []byte{1, 2, 3})
	require.NoError(t, err)

	lines := h.logLines(t)
	require.Len(t, lines, 1)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "INSER...", lines[0]["query"])
	assert.Equal(t, []any{"a ver...", "<bytes len=3>"}, lines[0]["args"])
}

func TestDriverPassthrough(t *testing.T) {
	h := newHarness(t, dbtypes.Oracle, nil)
	assert.Equal(t, dbtypes.Oracle, h.driver.Vendor())
	assert.Equal(t, sql.DBStats{}, h.driver.Stats())
	require.NoError(t, h.driver.Close())
	assert.True(t, h.fake.Closed())
}

type statsDriver struct {
	*dbtesting.TestDriver
}

func (statsDriver) Stats() sql.DBStats {
	return sql.DBStats{MaxOpenConnections: 10, InUse: 3, Idle: 2}
}

func TestDriverRegistersPoolMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	drv := NewDriver(statsDriver{dbtesting.NewTestDriver(dbtypes.PostgreSQL)}, logger.Nop(), NewSettings(nil),
		WithMeterProvider(mp))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	values := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if g, ok := m.Data.(metricdata.Gauge[int64]); ok && len(g.DataPoints) > 0 {
				values[m.Name] = g.DataPoints[0].Value
			}
		}
	}
	assert.Equal(t, int64(3), values[metricPoolActive])
	assert.Equal(t, int64(2), values[metricPoolIdle])
	assert.Equal(t, int64(10), values[metricPoolTotal])
	assert.Equal(t, 10, drv.Stats().MaxOpenConnections)

	require.NoError(t, drv.Close())
}
