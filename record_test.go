package tracefan

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_WithDuration(t *testing.T) {
	r := &Record{
		Time:    time.Now(),
		Level:   INFO,
		Message: "query done",
		Data:    NewFields("table", "users"),
	}

	timed := r.WithDuration(250 * time.Millisecond)
	assert.Equal(t, 250*time.Millisecond, timed.Duration)
	assert.Equal(t, time.Duration(0), r.Duration)

	// The copy owns its data.
	timed.Data.Set("table", "orders")
	assert.Equal(t, "users", r.Data.Value("table"))
}

func TestRecord_MarshalJSON(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	r := &Record{
		Time:          ts,
		Level:         WARNING,
		LoggerName:    "app.db",
		Message:       "slow query",
		Data:          NewFields("table", "users", "rows", 42),
		CorrelationID: "c-1",
		PID:           123,
		GoroutineID:   7,
		Duration:      1500 * time.Millisecond,
	}

	raw, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "2026-03-14T09:26:53Z", decoded["time"])
	assert.Equal(t, "WARNING", decoded["level"])
	assert.Equal(t, "app.db", decoded["logger"])
	assert.Equal(t, "slow query", decoded["message"])
	assert.Equal(t, "c-1", decoded["correlation_id"])
	assert.Equal(t, float64(123), decoded["pid"])
	assert.Equal(t, float64(1500), decoded["duration_ms"])

	data, ok := decoded["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(42), data["rows"])

	// Data keys keep insertion order in the raw output.
	assert.Contains(t, string(raw), `"data":{"table":"users","rows":42}`)

	_, hasTrace := decoded["trace_id"]
	assert.False(t, hasTrace, "empty identifiers are omitted")
}

func TestNormalizeException(t *testing.T) {
	tests := []struct {
		name        string
		input       any
		wantNil     bool
		wantType    string
		wantMessage string
	}{
		{name: "nil", input: nil, wantNil: true},
		{name: "empty string", input: "", wantNil: true},
		{name: "error", input: errors.New("broken pipe"), wantType: "*errors.errorString", wantMessage: "broken pipe"},
		{name: "string", input: "manual failure", wantType: "error", wantMessage: "manual failure"},
		{name: "arbitrary value", input: 42, wantType: "int", wantMessage: "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exc := NormalizeException(tt.input, false)
			if tt.wantNil {
				assert.Nil(t, exc)
				return
			}
			require.NotNil(t, exc)
			assert.Equal(t, tt.wantType, exc.Type)
			assert.Equal(t, tt.wantMessage, exc.Message)
		})
	}
}

func TestNormalizeException_CopiesException(t *testing.T) {
	original := &Exception{Type: "DBError", Message: "timeout", Trace: "trace"}
	exc := NormalizeException(original, true)
	require.NotNil(t, exc)
	assert.NotSame(t, original, exc)
	assert.Equal(t, "trace", exc.Trace, "existing trace is preserved")
}

func TestNormalizeException_CapturesTrace(t *testing.T) {
	exc := NormalizeException(errors.New("x"), true)
	require.NotNil(t, exc)
	assert.NotEmpty(t, exc.Trace)
}

func TestGoroutineID(t *testing.T) {
	assert.NotZero(t, goroutineID())
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warning")
	require.NoError(t, err)
	assert.Equal(t, WARNING, level)

	level, err = ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, WARNING, level)

	_, err = ParseLevel("loud")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "INFO", INFO.String())
	assert.Equal(t, "CRITICAL", CRITICAL.String())
}
