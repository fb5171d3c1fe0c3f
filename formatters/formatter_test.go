package formatters

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracefan/tracefan"
)

func sampleRecord() *tracefan.Record {
	return &tracefan.Record{
		Time:       time.Date(2026, 2, 3, 14, 5, 6, 123000000, time.UTC),
		Level:      tracefan.INFO,
		LoggerName: "app.api",
		Message:    "request served",
		Data:       tracefan.NewFields("status", 200, "path", "/health"),
		PID:        42,
	}
}

func TestText_Format(t *testing.T) {
	out := NewText().Format(sampleRecord())
	assert.Contains(t, out, "2026-02-03 14:05:06.123")
	assert.Contains(t, out, "[    INFO]")
	assert.Contains(t, out, "app.api request served")
	assert.Contains(t, out, "status=200")
	assert.Contains(t, out, "path=/health")
}

func TestText_FormatException(t *testing.T) {
	r := sampleRecord()
	r.Exception = &tracefan.Exception{Type: "TimeoutError", Message: "deadline"}
	out := NewText().Format(r)
	assert.Contains(t, out, "\nException: TimeoutError: deadline")
}

func TestText_FormatIdentifiers(t *testing.T) {
	r := sampleRecord()
	r.CorrelationID = "c-9"
	out := NewText().Format(r)
	assert.Contains(t, out, "correlation_id=c-9")
}

func TestJSON_Format(t *testing.T) {
	out := NewJSON().Format(sampleRecord())

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "INFO", decoded["level"])
	assert.Equal(t, "request served", decoded["message"])

	data := decoded["data"].(map[string]any)
	assert.Equal(t, float64(200), data["status"])
}

func TestJSON_FormatNeverFails(t *testing.T) {
	r := sampleRecord()
	r.Data.Set("bad", make(chan int))
	out := NewJSON().Format(r)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "request served", decoded["message"])
}

func TestLogfmt_Format(t *testing.T) {
	r := sampleRecord()
	r.TraceID = "t-1"
	out := NewLogfmt().Format(r)

	assert.Contains(t, out, "timestamp=2026-02-03T14:05:06.123Z")
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "logger=app.api")
	assert.Contains(t, out, `message="request served"`)
	assert.Contains(t, out, "status=200")
	assert.Contains(t, out, "trace_id=t-1")
}

func TestLogfmt_Quoting(t *testing.T) {
	assert.Equal(t, "plain", quoteValue("plain"))
	assert.Equal(t, `"has space"`, quoteValue("has space"))
	assert.Equal(t, `"a=b"`, quoteValue("a=b"))
	assert.Equal(t, `"say \"hi\""`, quoteValue(`say "hi"`))
	assert.Equal(t, "42", quoteValue(42))
}

func TestFunc_Adapter(t *testing.T) {
	f := Func(func(r *tracefan.Record) string { return "fixed:" + r.Message })
	assert.Equal(t, "fixed:request served", f.Format(sampleRecord()))
}
