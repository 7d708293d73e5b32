package logger

import (
	"context"
	"sync/atomic"
	"time"
)

type statsKey struct{}

type statementStats struct {
	count   atomic.Int64
	elapsed atomic.Int64
}

// WithStatementStats returns a context that accumulates the number of
// statements run under it and their total database time. A context that
// already carries an accumulator is returned unchanged.
func WithStatementStats(ctx context.Context) context.Context {
	if _, ok := ctx.Value(statsKey{}).(*statementStats); ok {
		return ctx
	}
	return context.WithValue(ctx, statsKey{}, &statementStats{})
}

// RecordStatement adds one statement that took elapsed. It is a no-op for
// contexts without an accumulator.
func RecordStatement(ctx context.Context, elapsed time.Duration) {
	if s, ok := ctx.Value(statsKey{}).(*statementStats); ok {
		s.count.Add(1)
		s.elapsed.Add(int64(elapsed))
	}
}

// StatementStats returns what was recorded under ctx.
func StatementStats(ctx context.Context) (count int64, elapsed time.Duration) {
	if s, ok := ctx.Value(statsKey{}).(*statementStats); ok {
		return s.count.Load(), time.Duration(s.elapsed.Load())
	}
	return 0, 0
}
