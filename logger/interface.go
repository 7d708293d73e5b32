// Package logger is the structured logging contract of the data-access
// layer. Drivers, units of work and repositories log through Logger so that
// callers can plug in their own sink; New returns the zerolog-backed default.
package logger

import "time"

// Logger creates leveled events. There is no fatal level: a library never
// terminates the process on behalf of its caller.
type Logger interface {
	Debug() LogEvent
	Info() LogEvent
	Warn() LogEvent
	Error() LogEvent
	WithContext(ctx any) Logger
	WithFields(fields map[string]any) Logger
}

// LogEvent accumulates fields until Msg or Msgf emits it. String and
// interface fields pass through the sensitive data filter.
type LogEvent interface {
	Msg(msg string)
	Msgf(format string, args ...any)
	Err(err error) LogEvent
	Str(key, value string) LogEvent
	Int(key string, value int) LogEvent
	Int64(key string, value int64) LogEvent
	Bool(key string, value bool) LogEvent
	Dur(key string, d time.Duration) LogEvent
	Interface(key string, i any) LogEvent
}
