package tracefan_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracefan/tracefan"
	"github.com/tracefan/tracefan/formatters"
	"github.com/tracefan/tracefan/handlers"
)

func TestEndToEnd_AsyncPipeline(t *testing.T) {
	reg := tracefan.New()
	mem := handlers.NewMemory(handlers.Options{Name: "capture", Formatter: formatters.NewText()})
	require.NoError(t, mem.Start())
	reg.AddHandler(mem)
	reg.MarkConfigured()

	ctx, correlationID := reg.Propagator().NewCorrelationID(context.Background())
	log := reg.Get("app.auth").Bind("component", "auth")
	log.Info(ctx, "User login", "user_id", 123)

	flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, reg.Flush(flushCtx))

	records := mem.Records()
	require.Len(t, records, 1)
	record := records[0]
	assert.Equal(t, "User login", record.Message)
	assert.Equal(t, "app.auth", record.LoggerName)
	assert.Equal(t, 123, record.Data.Value("user_id"))
	assert.Equal(t, "auth", record.Data.Value("component"))
	assert.Equal(t, correlationID, record.CorrelationID)

	formatted := mem.Formatted()
	require.Len(t, formatted, 1)
	assert.Contains(t, formatted[0], "User login")
	assert.Contains(t, formatted[0], "user_id=123")

	require.NoError(t, reg.Shutdown(context.Background()))
	assert.Equal(t, tracefan.StateStopped, mem.State())
}

func TestEndToEnd_ShutdownDrainsQueue(t *testing.T) {
	reg := tracefan.New()
	mem := handlers.NewMemory(handlers.Options{
		Name:          "capture",
		BatchSize:     50,
		FlushInterval: time.Hour, // only the shutdown drain may flush
	})
	require.NoError(t, mem.Start())
	reg.AddHandler(mem)

	log := reg.Get("app")
	for i := 0; i < 25; i++ {
		log.Info(context.Background(), "queued", "i", i)
	}
	require.NoError(t, reg.Shutdown(context.Background()))

	assert.Len(t, mem.Records(), 25)
	stats := reg.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, uint64(25), stats[0].Processed)
}

func TestEndToEnd_StoppedHandlerEmitsInline(t *testing.T) {
	reg := tracefan.New()
	mem := handlers.NewMemory(handlers.Options{Name: "capture"})
	reg.AddHandler(mem)

	reg.Get("app").Warn(context.Background(), "sync path")
	assert.Len(t, mem.Records(), 1, "unstarted handlers emit on the caller")
}

func TestEndToEnd_HandlerLevelFiltering(t *testing.T) {
	reg := tracefan.New()
	errorsOnly := handlers.NewMemory(handlers.Options{Name: "errors", Level: tracefan.ERROR})
	everything := handlers.NewMemory(handlers.Options{Name: "all"})
	reg.AddHandler(errorsOnly)
	reg.AddHandler(everything)

	log := reg.Get("app")
	log.Info(context.Background(), "routine")
	log.Error(context.Background(), "broken")

	assert.Len(t, errorsOnly.Records(), 1)
	assert.Len(t, everything.Records(), 2)
}
