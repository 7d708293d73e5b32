package testing

import (
	"fmt"
	"strings"
	"testing"
)

// Recorder is implemented by TestDriver and TestTx.
type Recorder interface {
	QueryLog() []Call
	ExecLog() []Call
}

func matches(r Recorder, pattern, actual string) bool {
	switch v := r.(type) {
	case *TestDriver:
		return v.matchSQL(pattern, actual)
	case *TestTx:
		return v.matchSQL(pattern, actual)
	default:
		return strings.Contains(actual, pattern)
	}
}

func count(r Recorder, calls []Call, pattern string) int {
	n := 0
	for _, call := range calls {
		if matches(r, pattern, call.SQL) {
			n++
		}
	}
	return n
}

// AssertQueryExecuted asserts that a query matching sqlPattern ran on r.
func AssertQueryExecuted(t *testing.T, r Recorder, sqlPattern string) {
	t.Helper()
	log := r.QueryLog()
	if count(r, log, sqlPattern) == 0 {
		t.Errorf("expected query not executed: %q\nActual queries:\n%s", sqlPattern, formatLog(log))
	}
}

// AssertQueryNotExecuted asserts that no query matching sqlPattern ran on r.
func AssertQueryNotExecuted(t *testing.T, r Recorder, sqlPattern string) {
	t.Helper()
	if n := count(r, r.QueryLog(), sqlPattern); n > 0 {
		t.Errorf("unexpected query executed %d time(s): %q", n, sqlPattern)
	}
}

// AssertQueryCount asserts that exactly expected queries matching sqlPattern ran on r.
func AssertQueryCount(t *testing.T, r Recorder, sqlPattern string, expected int) {
	t.Helper()
	log := r.QueryLog()
	if n := count(r, log, sqlPattern); n != expected {
		t.Errorf("expected %d queries matching %q, got %d\nActual queries:\n%s", expected, sqlPattern, n, formatLog(log))
	}
}

// AssertExecExecuted asserts that a statement matching sqlPattern ran on r.
func AssertExecExecuted(t *testing.T, r Recorder, sqlPattern string) {
	t.Helper()
	log := r.ExecLog()
	if count(r, log, sqlPattern) == 0 {
		t.Errorf("expected exec not executed: %q\nActual execs:\n%s", sqlPattern, formatLog(log))
	}
}

// AssertExecNotExecuted asserts that no statement matching sqlPattern ran on r.
func AssertExecNotExecuted(t *testing.T, r Recorder, sqlPattern string) {
	t.Helper()
	if n := count(r, r.ExecLog(), sqlPattern); n > 0 {
		t.Errorf("unexpected exec executed %d time(s): %q", n, sqlPattern)
	}
}

// AssertCommitted asserts that tx was committed and not rolled back.
func AssertCommitted(t *testing.T, tx *TestTx) {
	t.Helper()
	if !tx.IsCommitted() {
		t.Error("expected transaction to be committed")
	}
	if tx.IsRolledBack() {
		t.Error("expected transaction not to be rolled back")
	}
}

// AssertRolledBack asserts that tx was rolled back and not committed.
func AssertRolledBack(t *testing.T, tx *TestTx) {
	t.Helper()
	if !tx.IsRolledBack() {
		t.Error("expected transaction to be rolled back")
	}
	if tx.IsCommitted() {
		t.Error("expected transaction not to be committed")
	}
}

// AssertNoTransaction asserts that drv never handed out a transaction.
func AssertNoTransaction(t *testing.T, drv *TestDriver) {
	t.Helper()
	if n := len(drv.Transactions()); n > 0 {
		t.Errorf("expected no transaction, got %d", n)
	}
}

func formatLog(log []Call) string {
	if len(log) == 0 {
		return "  (none)"
	}
	var b strings.Builder
	for i, call := range log {
		fmt.Fprintf(&b, "  %d. %s", i+1, call.SQL)
		if len(call.Args) > 0 {
			fmt.Fprintf(&b, " %v", call.Args)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
