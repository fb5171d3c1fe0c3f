package formatters

import (
	"fmt"
	"strings"
	"time"

	"github.com/tracefan/tracefan"
)

// Logfmt renders records as space-separated key=value pairs.
type Logfmt struct{}

// NewLogfmt returns the logfmt formatter.
func NewLogfmt() *Logfmt { return &Logfmt{} }

// Format implements Formatter.
func (l *Logfmt) Format(record *tracefan.Record) string {
	parts := []string{
		"timestamp=" + record.Time.UTC().Format(time.RFC3339Nano),
		"level=" + record.Level.String(),
		"logger=" + quoteValue(record.LoggerName),
		"message=" + quoteValue(record.Message),
	}

	record.Data.Walk(func(key string, value any) {
		parts = append(parts, key+"="+quoteValue(value))
	})

	if record.TraceID != "" {
		parts = append(parts, "trace_id="+record.TraceID)
	}
	if record.CorrelationID != "" {
		parts = append(parts, "correlation_id="+record.CorrelationID)
	}
	if record.Caller != nil {
		parts = append(parts,
			"module="+quoteValue(record.Caller.Module),
			"function="+quoteValue(record.Caller.Function),
			fmt.Sprintf("line=%d", record.Caller.Line))
	}

	return strings.Join(parts, " ")
}

// quoteValue quotes values containing spaces, quotes or equals signs.
func quoteValue(value any) string {
	s := fmt.Sprintf("%v", value)
	if strings.ContainsAny(s, " \"=") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}
