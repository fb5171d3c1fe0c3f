package handlers

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/Graylog2/go-gelf.v2/gelf"

	"github.com/tracefan/tracefan"
)

// mockGelfWriter captures messages instead of hitting the network.
type mockGelfWriter struct {
	mu       sync.Mutex
	messages []*gelf.Message
	closed   bool
}

func (m *mockGelfWriter) WriteMessage(msg *gelf.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mockGelfWriter) Write(p []byte) (int, error) { return len(p), nil }

func (m *mockGelfWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func withMockGelfFactories(t *testing.T, mock *mockGelfWriter) {
	t.Helper()
	origUDP, origTCP := gelfUDPWriterFactory, gelfTCPWriterFactory
	gelfUDPWriterFactory = func(addr string) (gelf.Writer, error) { return mock, nil }
	gelfTCPWriterFactory = func(addr string) (gelf.Writer, error) { return mock, nil }
	t.Cleanup(func() {
		gelfUDPWriterFactory, gelfTCPWriterFactory = origUDP, origTCP
	})
}

func TestNewGELF_Validation(t *testing.T) {
	_, err := NewGELF(GELFOptions{Port: 12201})
	assert.ErrorIs(t, err, tracefan.ErrConfiguration)

	_, err = NewGELF(GELFOptions{Host: "localhost"})
	assert.ErrorIs(t, err, tracefan.ErrConfiguration)
}

func TestGELF_MessageMapping(t *testing.T) {
	mock := &mockGelfWriter{}
	withMockGelfFactories(t, mock)

	g, err := NewGELF(GELFOptions{Host: "localhost", Port: 12201, Hostname: "web-1"})
	require.NoError(t, err)

	rec := record(tracefan.ERROR, "db down")
	rec.LoggerName = "app.db"
	rec.Data.Set("attempt", 3)
	rec.Data.Set("detail", struct{ X int }{1})
	rec.TraceID = "t-1"
	require.NoError(t, g.EmitSync("ignored", rec))

	require.Len(t, mock.messages, 1)
	msg := mock.messages[0]
	assert.Equal(t, "1.1", msg.Version)
	assert.Equal(t, "web-1", msg.Host)
	assert.Equal(t, "db down", msg.Short)
	assert.Equal(t, int32(3), msg.Level, "ERROR maps to syslog err")
	assert.Equal(t, "app.db", msg.Extra["_logger"])
	assert.Equal(t, 3, msg.Extra["_attempt"])
	assert.Equal(t, "{1}", msg.Extra["_detail"], "complex values are stringified")
	assert.Equal(t, "t-1", msg.Extra["_trace_id"])
}

func TestGELF_SeverityMapping(t *testing.T) {
	tests := []struct {
		level    tracefan.Level
		expected int32
	}{
		{tracefan.CRITICAL, 2},
		{tracefan.ERROR, 3},
		{tracefan.WARNING, 4},
		{tracefan.INFO, 6},
		{tracefan.DEBUG, 7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, gelfSeverity(tt.level), tt.level.String())
	}
}

func TestGELF_ExceptionFullMessage(t *testing.T) {
	mock := &mockGelfWriter{}
	withMockGelfFactories(t, mock)

	g, err := NewGELF(GELFOptions{Host: "localhost", Port: 12201})
	require.NoError(t, err)

	rec := record(tracefan.ERROR, "failed")
	rec.Exception = &tracefan.Exception{Type: "IOError", Message: "pipe", Trace: "stack"}
	require.NoError(t, g.EmitSync("", rec))

	require.Len(t, mock.messages, 1)
	assert.Contains(t, mock.messages[0].Full, "IOError: pipe")
	assert.Contains(t, mock.messages[0].Full, "stack")
}

func TestGELF_StopClosesWriter(t *testing.T) {
	mock := &mockGelfWriter{}
	withMockGelfFactories(t, mock)

	g, err := NewGELF(GELFOptions{Host: "localhost", Port: 12201})
	require.NoError(t, err)
	require.NoError(t, g.Start())

	g.Enqueue(record(tracefan.INFO, "one"))
	require.NoError(t, g.Stop(context.Background()))

	assert.True(t, mock.closed)
	assert.Len(t, mock.messages, 1)
}
