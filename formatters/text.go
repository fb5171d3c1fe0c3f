package formatters

import (
	"fmt"
	"strings"

	"github.com/tracefan/tracefan"
)

// Text is the default human-readable formatter:
//
//	2006-01-02 15:04:05.000 [    INFO] name message key=value
type Text struct{}

// NewText returns the text formatter.
func NewText() *Text { return &Text{} }

// Format implements Formatter.
func (t *Text) Format(record *tracefan.Record) string {
	var sb strings.Builder

	sb.WriteString(record.Time.Format("2006-01-02 15:04:05.000"))
	fmt.Fprintf(&sb, " [%8s] ", record.Level.String())
	sb.WriteString(record.LoggerName)
	sb.WriteString(" ")
	sb.WriteString(record.Message)

	record.Data.Walk(func(key string, value any) {
		sb.WriteString(" ")
		sb.WriteString(key)
		sb.WriteString("=")
		fmt.Fprintf(&sb, "%v", value)
	})

	if record.CorrelationID != "" {
		sb.WriteString(" correlation_id=")
		sb.WriteString(record.CorrelationID)
	}
	if record.TraceID != "" {
		sb.WriteString(" trace_id=")
		sb.WriteString(record.TraceID)
	}

	if record.Exception != nil {
		fmt.Fprintf(&sb, "\nException: %s: %s", record.Exception.Type, record.Exception.Message)
	}

	return sb.String()
}
