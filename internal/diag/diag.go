// Package diag is the runtime's own diagnostics logger. The logging
// pipeline must never log through itself, so internal failures (sink
// errors, rotation problems, dropped records) go through this small
// leveled printf logger instead.
package diag

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level defines the diagnostics logging levels.
type Level int

const (
	DEBUG Level = 20
	INFO  Level = 30
	WARN  Level = 40
	ERROR Level = 50
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

var levelNameToLevel = map[string]Level{
	"DEBUG": DEBUG,
	"INFO":  INFO,
	"WARN":  WARN,
	"ERROR": ERROR,
}

// Logger writes the runtime's internal messages to a single writer.
type Logger struct {
	mu     sync.Mutex
	writer io.Writer
	closer io.Closer
	level  Level

	// dropLimiter throttles drop reports so a hot drop path cannot
	// flood the diagnostics sink.
	dropLimiter *rate.Limiter
}

// New returns a diagnostics logger writing to w at the given level.
func New(w io.Writer, level Level) *Logger {
	return &Logger{
		writer:      w,
		level:       level,
		dropLimiter: rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
}

// NewFile returns a diagnostics logger appending to path with
// size-based rotation. maxSizeMB and maxBackups of zero use the
// rotation library defaults.
func NewFile(path string, level Level, maxSizeMB, maxBackups int) *Logger {
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
		LocalTime:  false,
	}
	l := New(lj, level)
	l.closer = lj
	return l
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Default returns the shared diagnostics logger (stderr, WARN).
func Default() *Logger {
	once.Do(func() {
		defaultLogger = New(os.Stderr, WARN)
	})
	return defaultLogger
}

// SetLevel sets the minimum level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetLevelFromString sets the level from a name.
func (l *Logger) SetLevelFromString(name string) error {
	level, ok := levelNameToLevel[strings.ToUpper(name)]
	if !ok {
		return fmt.Errorf("invalid diagnostics level: %s", name)
	}
	l.SetLevel(level)
	return nil
}

// logf formats and writes a message if the level is sufficient.
// The lock is held only for the level check and the write, not during
// formatting.
func (l *Logger) logf(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	skip := level < l.level
	l.mu.Unlock()
	if skip {
		return
	}

	now := time.Now().UTC().Format("2006-01-02T15:04:05Z07:00")
	message := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("[%s] tracefan %s: %s\n", now, levelNames[level], message)

	l.mu.Lock()
	_, _ = io.WriteString(l.writer, line)
	l.mu.Unlock()
}

// Debug logs a message at DEBUG level.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.logf(DEBUG, format, args...)
}

// Info logs a message at INFO level.
func (l *Logger) Info(format string, args ...interface{}) {
	l.logf(INFO, format, args...)
}

// Warn logs a message at WARN level.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.logf(WARN, format, args...)
}

// Error logs a message at ERROR level.
func (l *Logger) Error(format string, args ...interface{}) {
	l.logf(ERROR, format, args...)
}

// ReportDrop records that a handler dropped records. Reports are rate
// limited; suppressed reports are folded into the next allowed one via
// the total counter the caller passes in.
func (l *Logger) ReportDrop(handler string, total uint64) {
	if !l.dropLimiter.Allow() {
		return
	}
	l.Warn("handler '%s' dropped records (total dropped: %d)", handler, total)
}

// Close releases the underlying writer when it owns a file handle.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
