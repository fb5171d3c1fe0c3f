package formatters

import (
	"encoding/json"
	"fmt"

	"github.com/tracefan/tracefan"
)

// JSON renders one record per line as a JSON object with data keys in
// insertion order.
type JSON struct{}

// NewJSON returns the JSON formatter.
func NewJSON() *JSON { return &JSON{} }

// Format implements Formatter.
func (j *JSON) Format(record *tracefan.Record) string {
	line, err := json.Marshal(record)
	if err != nil {
		// A record that cannot be marshalled still gets its message
		// out; logging must not fail.
		fallback, _ := json.Marshal(map[string]string{
			"level":   record.Level.String(),
			"logger":  record.LoggerName,
			"message": record.Message,
			"error":   fmt.Sprintf("marshal failed: %v", err),
		})
		return string(fallback)
	}
	return string(line)
}
