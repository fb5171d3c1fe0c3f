package handlers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracefan/tracefan"
)

// testEmitter is a controllable sink for exercising Base.
type testEmitter struct {
	mu      sync.Mutex
	emitted []*tracefan.Record
	fail    bool
	delay   time.Duration
}

func (e *testEmitter) EmitSync(formatted string, record *tracefan.Record) error {
	return e.EmitBatch([]string{formatted}, []*tracefan.Record{record})
}

func (e *testEmitter) EmitBatch(formatted []string, records []*tracefan.Record) error {
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail {
		return errors.New("sink unavailable")
	}
	e.emitted = append(e.emitted, records...)
	return nil
}

func (e *testEmitter) setFail(fail bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail = fail
}

func (e *testEmitter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.emitted)
}

func record(level tracefan.Level, msg string) *tracefan.Record {
	return &tracefan.Record{
		Time:    time.Now(),
		Level:   level,
		Message: msg,
		Data:    tracefan.NewFields(),
	}
}

func TestBase_Lifecycle(t *testing.T) {
	b := NewBase(&testEmitter{}, Options{Name: "t"})
	assert.Equal(t, tracefan.StateStopped, b.State())

	require.NoError(t, b.Start())
	assert.Equal(t, tracefan.StateRunning, b.State())

	// Start is idempotent while running.
	require.NoError(t, b.Start())
	assert.Equal(t, tracefan.StateRunning, b.State())

	require.NoError(t, b.Stop(context.Background()))
	assert.Equal(t, tracefan.StateStopped, b.State())

	// Stop on a stopped handler is a no-op.
	require.NoError(t, b.Stop(context.Background()))
}

func TestBase_Backpressure(t *testing.T) {
	emitter := &testEmitter{delay: 5 * time.Millisecond}
	b := NewBase(emitter, Options{
		Name:         "slow",
		BatchSize:    1,
		MaxQueueSize: 10,
	})
	require.NoError(t, b.Start())

	const total = 100
	for i := 0; i < total; i++ {
		b.Enqueue(record(tracefan.INFO, "burst"))
	}
	require.NoError(t, b.Stop(context.Background()))

	stats := b.Stats()
	assert.Equal(t, uint64(total), stats.Processed+stats.Dropped,
		"every record is accounted for exactly once")
	assert.Greater(t, stats.Dropped, uint64(0),
		"a full queue must drop rather than block")
	assert.Equal(t, int(stats.Processed), emitter.count())
}

func TestBase_EnqueueWhenStoppedDrops(t *testing.T) {
	b := NewBase(&testEmitter{}, Options{Name: "t"})
	b.Enqueue(record(tracefan.INFO, "nowhere to go"))
	assert.Equal(t, uint64(1), b.Stats().Dropped)
}

func TestBase_BatchingBySize(t *testing.T) {
	emitter := &testEmitter{}
	b := NewBase(emitter, Options{
		Name:          "batched",
		BatchSize:     10,
		FlushInterval: time.Hour,
	})
	require.NoError(t, b.Start())
	defer b.Stop(context.Background())

	for i := 0; i < 10; i++ {
		b.Enqueue(record(tracefan.INFO, "fill"))
	}
	assert.Eventually(t, func() bool { return emitter.count() == 10 },
		2*time.Second, 5*time.Millisecond, "a full batch flushes without waiting for the timer")
}

func TestBase_FlushForcesPartialBatch(t *testing.T) {
	emitter := &testEmitter{}
	b := NewBase(emitter, Options{
		Name:          "t",
		BatchSize:     100,
		FlushInterval: time.Hour,
	})
	require.NoError(t, b.Start())
	defer b.Stop(context.Background())

	b.Enqueue(record(tracefan.INFO, "lonely"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.Flush(ctx))
	assert.Equal(t, 1, emitter.count())
}

func TestBase_FlushIntervalFlushes(t *testing.T) {
	emitter := &testEmitter{}
	b := NewBase(emitter, Options{
		Name:          "t",
		BatchSize:     100,
		FlushInterval: 20 * time.Millisecond,
	})
	require.NoError(t, b.Start())
	defer b.Stop(context.Background())

	b.Enqueue(record(tracefan.INFO, "waits for timer"))
	assert.Eventually(t, func() bool { return emitter.count() == 1 },
		2*time.Second, 5*time.Millisecond)
}

func TestBase_CircuitBreakerOpensAndRecovers(t *testing.T) {
	emitter := &testEmitter{fail: true}
	b := NewBase(emitter, Options{
		Name:            "flaky",
		ErrorThreshold:  3,
		RecoveryTimeout: 50 * time.Millisecond,
	})

	rec := record(tracefan.ERROR, "x")
	for i := 0; i < 3; i++ {
		assert.True(t, b.ShouldHandle(rec))
		b.HandleSync(rec)
	}

	stats := b.Stats()
	assert.True(t, stats.CircuitOpen)
	assert.Equal(t, uint64(3), stats.Errors)
	assert.False(t, b.ShouldHandle(rec), "an open breaker rejects records")

	// After the recovery timeout the breaker closes optimistically.
	time.Sleep(60 * time.Millisecond)
	assert.True(t, b.ShouldHandle(rec))

	emitter.setFail(false)
	b.HandleSync(rec)
	assert.False(t, b.Stats().CircuitOpen)
	assert.Equal(t, uint64(1), b.Stats().Processed)
}

func TestBase_CircuitBreakerResetOnSuccess(t *testing.T) {
	emitter := &testEmitter{}
	b := NewBase(emitter, Options{Name: "flaky", ErrorThreshold: 3})
	rec := record(tracefan.ERROR, "x")

	// Two failures, one success, two failures: the success resets the
	// consecutive counter, so the breaker stays closed.
	emitter.setFail(true)
	b.HandleSync(rec)
	b.HandleSync(rec)
	emitter.setFail(false)
	b.HandleSync(rec)
	emitter.setFail(true)
	b.HandleSync(rec)
	b.HandleSync(rec)

	assert.False(t, b.Stats().CircuitOpen)
	assert.Equal(t, uint64(4), b.Stats().Errors)
}

func TestBase_ShouldHandleLevelAndFilters(t *testing.T) {
	b := NewBase(&testEmitter{}, Options{Name: "t", Level: tracefan.WARNING})
	assert.False(t, b.ShouldHandle(record(tracefan.INFO, "below")))
	assert.True(t, b.ShouldHandle(record(tracefan.ERROR, "above")))
}

func TestBase_FailedBatchCountsDropped(t *testing.T) {
	emitter := &testEmitter{fail: true}
	b := NewBase(emitter, Options{Name: "t", BatchSize: 5, FlushInterval: time.Hour})
	require.NoError(t, b.Start())

	for i := 0; i < 5; i++ {
		b.Enqueue(record(tracefan.INFO, "doomed"))
	}
	require.NoError(t, b.Stop(context.Background()))

	stats := b.Stats()
	assert.Equal(t, uint64(5), stats.Dropped)
	assert.Zero(t, stats.Processed)
}

func TestMemory_CaptureAndClear(t *testing.T) {
	m := NewMemory(Options{Name: "mem"})
	m.HandleSync(record(tracefan.INFO, "one"))
	m.HandleSync(record(tracefan.INFO, "two"))

	require.Len(t, m.Records(), 2)
	require.Len(t, m.Formatted(), 2)
	assert.Equal(t, "one", m.Records()[0].Message)

	m.Clear()
	assert.Empty(t, m.Records())
}

func TestNull_Discards(t *testing.T) {
	n := NewNull(Options{})
	n.HandleSync(record(tracefan.INFO, "void"))
	stats := n.Stats()
	assert.Equal(t, "null", stats.Name)
	assert.Equal(t, uint64(1), stats.Processed)
}
