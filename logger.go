package tracefan

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Logger is the per-name façade callers log through. It resolves the
// effective level, builds a record from ambient context, bound fields
// and call-site fields, and hands it to the dispatcher. Logging calls
// never return errors and never panic.
type Logger struct {
	name     string
	registry *Registry
	library  bool

	// level is shared between a logger and its Bind derivatives so a
	// SetLevel on either applies to all of them.
	level *atomic.Int64

	bound *Fields
}

func newLogger(name string, registry *Registry, library bool) *Logger {
	return &Logger{
		name:     name,
		registry: registry,
		library:  library,
		level:    new(atomic.Int64),
	}
}

// Name returns the logger's name.
func (l *Logger) Name() string { return l.name }

// SetLevel sets an explicit per-logger level that overrides the
// registry-wide level. NOTSET restores inheritance.
func (l *Logger) SetLevel(level Level) {
	l.level.Store(int64(level))
}

// Level returns the effective level: the explicit per-logger level if
// set, otherwise the registry-wide level.
func (l *Logger) Level() Level {
	if own := Level(l.level.Load()); own != NOTSET {
		return own
	}
	return l.registry.Level()
}

// Enabled reports whether a call at the given level would emit. This
// is the fast path: it runs before any context read, caller walk or
// allocation.
func (l *Logger) Enabled(level Level) bool {
	if l.library && !l.registry.Configured() {
		return false
	}
	if !l.registry.Enabled() {
		return false
	}
	return level >= l.Level()
}

// Bind returns a logger with the given fields merged into every
// subsequent call. Binding is composable: binding twice merges both
// sets, and call-site fields win over bound fields, which win over
// ambient context.
func (l *Logger) Bind(kv ...any) *Logger {
	bound := l.bound.Clone()
	bound.Merge(NewFields(kv...))
	return &Logger{
		name:     l.name,
		registry: l.registry,
		library:  l.library,
		level:    l.level,
		bound:    bound,
	}
}

// Debug logs at DEBUG level. kv are alternating key/value pairs.
func (l *Logger) Debug(ctx context.Context, message string, kv ...any) {
	l.log(ctx, DEBUG, message, nil, kv)
}

// Info logs at INFO level.
func (l *Logger) Info(ctx context.Context, message string, kv ...any) {
	l.log(ctx, INFO, message, nil, kv)
}

// Warning logs at WARNING level.
func (l *Logger) Warning(ctx context.Context, message string, kv ...any) {
	l.log(ctx, WARNING, message, nil, kv)
}

// Warn is an alias for Warning.
func (l *Logger) Warn(ctx context.Context, message string, kv ...any) {
	l.log(ctx, WARNING, message, nil, kv)
}

// Error logs at ERROR level.
func (l *Logger) Error(ctx context.Context, message string, kv ...any) {
	l.log(ctx, ERROR, message, nil, kv)
}

// Critical logs at CRITICAL level.
func (l *Logger) Critical(ctx context.Context, message string, kv ...any) {
	l.log(ctx, CRITICAL, message, nil, kv)
}

// Exception logs at ERROR level with normalized exception info
// attached. err may be an error, *Exception, string or any value.
func (l *Logger) Exception(ctx context.Context, message string, err any, kv ...any) {
	l.log(ctx, ERROR, message, err, kv)
}

// Log logs at an arbitrary level.
func (l *Logger) Log(ctx context.Context, level Level, message string, kv ...any) {
	l.log(ctx, level, message, nil, kv)
}

func (l *Logger) log(ctx context.Context, level Level, message string, exc any, kv []any) {
	if !l.Enabled(level) {
		return
	}
	record := l.buildRecord(ctx, level, message, exc, kv)
	l.registry.dispatcher.Dispatch(record)
}

// buildRecord assembles the record. Any panic during construction
// falls back to a minimal record carrying the message only; logging
// must never throw.
func (l *Logger) buildRecord(ctx context.Context, level Level, message string, exc any, kv []any) (record *Record) {
	now := time.Now()
	defer func() {
		if r := recover(); r != nil {
			record = &Record{
				Time:       now,
				Level:      level,
				LoggerName: l.name,
				Message:    message,
				Data:       NewFields("record_error", fmt.Sprintf("%v", r)),
				PID:        recordPID,
			}
		}
	}()

	data := l.registry.propagator.Snapshot(ctx)
	data.Merge(l.bound)
	data.Merge(NewFields(kv...))

	record = &Record{
		Time:        now,
		Level:       level,
		LoggerName:  l.name,
		Message:     message,
		Caller:      callerInfo(3),
		Exception:   NormalizeException(exc, true),
		PID:         recordPID,
		GoroutineID: goroutineID(),
	}
	record.TraceID = takeStringField(data, "trace_id")
	record.CorrelationID = takeStringField(data, "correlation_id")
	record.SpanID = takeStringField(data, "span_id")

	l.registry.Redactor().Apply(data)
	record.Data = data
	return record
}

// takeStringField moves a well-known identifier out of the data map
// into its dedicated record field.
func takeStringField(f *Fields, key string) string {
	v, ok := f.Get(key)
	if !ok {
		return ""
	}
	f.Delete(key)
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
