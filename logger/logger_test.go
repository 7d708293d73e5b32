package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMessage = "test message"

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNewWithWriterLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("warn", &buf, nil)

	log.Debug().Msg("hidden")
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	log.Error().Err(errors.New("boom")).Msg("failed")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "warn", entries[0]["level"])
	assert.Equal(t, "shown", entries[0]["message"])
	assert.Equal(t, "boom", entries[1]["error"])
	assert.Contains(t, entries[1], "caller")
}

func TestNewWithWriterInvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("verbose", &buf, nil)

	log.Debug().Msg("hidden")
	log.Info().Msg(testMessage)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "info", entries[0]["level"])
}

func TestDisabledLevelIsSilent(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("disabled", &buf, nil)
	log.Error().Str("k", "v").Int("n", 1).Msg(testMessage)
	assert.Zero(t, buf.Len())
}

func TestEventFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("debug", &buf, nil)

	log.Debug().
		Str("table", "users").
		Int("rows", 2).
		Int64("id", 42).
		Bool("in_transaction", true).
		Dur("elapsed", 1500*time.Millisecond).
		Interface("values", map[string]any{"name": "ann"}).
		Msgf("executed %s", "insert")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "users", e["table"])
	assert.EqualValues(t, 2, e["rows"])
	assert.EqualValues(t, 42, e["id"])
	assert.Equal(t, true, e["in_transaction"])
	assert.Equal(t, map[string]any{"name": "ann"}, e["values"])
	assert.EqualValues(t, 1500, e["elapsed"])
	assert.Equal(t, "executed insert", e["message"])
}

func TestSensitiveValuesAreMasked(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf, nil)

	log.WithFields(map[string]any{"password": "hunter2", "uow": "abc"}).
		Info().
		Str("api_key", "k").
		Interface("values", map[string]any{"email": "a@b.c", "password_hash": "x"}).
		Str("connectionstring", "postgres://app:s3cret@db:5432/app").
		Msg(testMessage)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, DefaultMaskValue, e["password"])
	assert.Equal(t, "abc", e["uow"])
	assert.Equal(t, DefaultMaskValue, e["api_key"])
	assert.Equal(t, map[string]any{"email": "a@b.c", "password_hash": DefaultMaskValue}, e["values"])
	assert.Equal(t, "postgres://app:***@db:5432/app", e["connectionstring"])
}

func TestFilterValueStructsUseColumnNames(t *testing.T) {
	type account struct {
		ID       int64  `db:"id"`
		Password string `db:"password"`
		Note     string `json:"note"`
		Hidden   string `db:"-"`
		internal string
	}

	f := NewSensitiveDataFilter(nil)
	got := f.FilterValue("entity", &account{ID: 1, Password: "x", Note: "n", Hidden: "h", internal: "i"})

	assert.Equal(t, map[string]any{"id": int64(1), "password": DefaultMaskValue, "note": "n"}, got)
}

func TestFilterValueSlicesAndDepth(t *testing.T) {
	f := NewSensitiveDataFilter(&FilterConfig{SensitiveFields: []string{"pin"}})

	got := f.FilterValue("rows", []map[string]any{{"pin": "1234", "n": 1}})
	assert.Equal(t, []any{map[string]any{"pin": DefaultMaskValue, "n": 1}}, got)

	assert.Equal(t, []byte("raw"), f.FilterValue("payload", []byte("raw")))
	assert.Equal(t, 5, f.FilterValue("count", 5))
	assert.Nil(t, f.FilterValue("nothing", nil))
}

func TestFilterStringURLWithoutPassword(t *testing.T) {
	f := NewSensitiveDataFilter(nil)
	assert.Equal(t, "postgres://app@db/app", f.FilterString("dsn", "postgres://app@db/app"))
	assert.Equal(t, DefaultMaskValue, f.FilterString("dsn", "host=db password=x"))
	assert.Empty(t, f.FilterString("password", ""))
}

func TestCustomMaskValue(t *testing.T) {
	f := NewSensitiveDataFilter(&FilterConfig{SensitiveFields: []string{"secret"}, MaskValue: "[redacted]"})
	assert.Equal(t, "[redacted]", f.FilterString("client_secret", "abc"))
	assert.Equal(t, "abc", f.FilterString("password", "abc"))
}

func TestWithContextUsesContextLogger(t *testing.T) {
	var base, ctxBuf bytes.Buffer
	log := NewWithWriter("info", &base, nil)

	ctxLogger := zerolog.New(&ctxBuf)
	ctx := ctxLogger.WithContext(context.Background())

	log.WithContext(ctx).Info().Msg(testMessage)
	assert.Zero(t, base.Len())
	assert.Contains(t, ctxBuf.String(), testMessage)

	log.WithContext(context.Background()).Info().Msg(testMessage)
	assert.Contains(t, base.String(), testMessage)

	assert.Same(t, log, log.WithContext("not a context"))
}

func TestNopDiscards(t *testing.T) {
	log := Nop()
	assert.NotPanics(t, func() {
		log.WithFields(map[string]any{"a": 1}).Error().Err(errors.New("x")).Msg(testMessage)
	})
}

func TestStatementStats(t *testing.T) {
	ctx := WithStatementStats(context.Background())
	assert.Equal(t, ctx, WithStatementStats(ctx), "nested contexts share the accumulator")

	RecordStatement(ctx, 100*time.Millisecond)
	RecordStatement(ctx, 50*time.Millisecond)

	count, elapsed := StatementStats(ctx)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, 150*time.Millisecond, elapsed)

	plain := context.Background()
	RecordStatement(plain, time.Second)
	count, elapsed = StatementStats(plain)
	assert.Zero(t, count)
	assert.Zero(t, elapsed)
}
