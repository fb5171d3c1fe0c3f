// Package handlers implements the sinks of the log pipeline. Every
// handler owns exactly one sink and embeds Base, which provides the
// bounded queue, the batching worker, the circuit breaker and the
// lifecycle state machine. A slow or failing sink is absorbed by its
// own worker; the caller is never blocked.
package handlers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tracefan/tracefan"
	"github.com/tracefan/tracefan/filters"
	"github.com/tracefan/tracefan/formatters"
	"github.com/tracefan/tracefan/internal/diag"
)

// Emitter is the sink-specific I/O a concrete handler plugs into Base.
type Emitter interface {
	// EmitSync writes a single formatted record.
	EmitSync(formatted string, record *tracefan.Record) error
	// EmitBatch writes a batch of formatted records.
	EmitBatch(formatted []string, records []*tracefan.Record) error
}

// Options configures a Base handler. Zero values fall back to the
// documented defaults.
type Options struct {
	Name      string
	Level     tracefan.Level
	Formatter formatters.Formatter
	Filters   []filters.Filter

	// BatchSize is the flush threshold of the worker's batch buffer.
	// Default 1 (flush every record).
	BatchSize int
	// FlushInterval is the maximum time a non-empty batch waits before
	// flushing. Default 1s.
	FlushInterval time.Duration
	// MaxQueueSize bounds the async queue. A full queue drops records
	// instead of blocking the caller. Default 10000.
	MaxQueueSize int

	// ErrorThreshold is the consecutive-failure count that opens the
	// circuit breaker. Default 5.
	ErrorThreshold int
	// RecoveryTimeout is how long an open breaker rejects records
	// after the last failure before closing optimistically.
	// Default 60s.
	RecoveryTimeout time.Duration

	Diag *diag.Logger
}

func (o *Options) withDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 1
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = time.Second
	}
	if o.MaxQueueSize <= 0 {
		o.MaxQueueSize = 10000
	}
	if o.ErrorThreshold <= 0 {
		o.ErrorThreshold = 5
	}
	if o.RecoveryTimeout <= 0 {
		o.RecoveryTimeout = 60 * time.Second
	}
	if o.Diag == nil {
		o.Diag = diag.Default()
	}
}

// Base implements the queued batching worker shared by all handlers.
// State machine: Stopped -> Starting -> Running -> Stopping -> Stopped,
// with Error reachable from Running when the worker fails
// unrecoverably.
type Base struct {
	name      string
	level     tracefan.Level
	formatter formatters.Formatter
	filters   []filters.Filter

	emitter Emitter
	diag    *diag.Logger

	batchSize       int
	flushInterval   time.Duration
	maxQueueSize    int
	errorThreshold  int
	recoveryTimeout time.Duration

	state atomic.Int32

	mu       sync.Mutex // guards queue/flushReq/done across Start/Stop
	queue    chan *tracefan.Record
	flushReq chan chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup

	breakerMu         sync.Mutex
	breakerOpen       bool
	consecutiveErrors int
	lastFailure       time.Time

	processed atomic.Uint64
	dropped   atomic.Uint64
	errors    atomic.Uint64
}

// NewBase builds the shared handler core around a sink-specific
// emitter.
func NewBase(emitter Emitter, opts Options) *Base {
	opts.withDefaults()
	return &Base{
		name:            opts.Name,
		level:           opts.Level,
		formatter:       opts.Formatter,
		filters:         opts.Filters,
		emitter:         emitter,
		diag:            opts.Diag,
		batchSize:       opts.BatchSize,
		flushInterval:   opts.FlushInterval,
		maxQueueSize:    opts.MaxQueueSize,
		errorThreshold:  opts.ErrorThreshold,
		recoveryTimeout: opts.RecoveryTimeout,
	}
}

// Name returns the handler name.
func (b *Base) Name() string { return b.name }

// State returns the current lifecycle state.
func (b *Base) State() tracefan.HandlerState {
	return tracefan.HandlerState(b.state.Load())
}

// Level returns the handler's admission level.
func (b *Base) Level() tracefan.Level { return b.level }

// ShouldHandle admits or rejects a record: circuit breaker first, then
// level, then all filters.
func (b *Base) ShouldHandle(record *tracefan.Record) bool {
	if !b.breakerAllows() {
		return false
	}
	if record.Level < b.level {
		return false
	}
	for _, f := range b.filters {
		if !f.Allow(record) {
			return false
		}
	}
	return true
}

// breakerAllows checks the circuit breaker, closing it optimistically
// once the recovery timeout has elapsed since the last failure.
func (b *Base) breakerAllows() bool {
	b.breakerMu.Lock()
	defer b.breakerMu.Unlock()
	if !b.breakerOpen {
		return true
	}
	if time.Since(b.lastFailure) >= b.recoveryTimeout {
		b.breakerOpen = false
		return true
	}
	return false
}

// recordFailure counts an emit failure and opens the breaker once the
// threshold is reached.
func (b *Base) recordFailure(err error) {
	b.errors.Add(1)
	b.breakerMu.Lock()
	b.consecutiveErrors++
	b.lastFailure = time.Now()
	if b.consecutiveErrors >= b.errorThreshold {
		b.breakerOpen = true
	}
	open := b.breakerOpen
	b.breakerMu.Unlock()

	if open {
		b.diag.Warn("handler '%s': circuit breaker open after %d consecutive errors: %v",
			b.name, b.errorThreshold, err)
	} else {
		b.diag.Debug("handler '%s': emit failed: %v", b.name, err)
	}
}

// recordSuccess resets the consecutive-error counter, so intermittent
// successes keep the breaker from degrading permanently.
func (b *Base) recordSuccess() {
	b.breakerMu.Lock()
	b.consecutiveErrors = 0
	b.breakerOpen = false
	b.breakerMu.Unlock()
}

// FormatRecord renders a record through the configured formatter, or a
// minimal default when none is set.
func (b *Base) FormatRecord(record *tracefan.Record) string {
	if b.formatter != nil {
		return b.formatter.Format(record)
	}
	return fmt.Sprintf("%s %s %s %s",
		record.Time.Format(time.RFC3339), record.Level, record.LoggerName, record.Message)
}

// Start transitions Stopped (or Error, after an explicit restart) to
// Running, creating the queue and the worker.
func (b *Base) Start() error {
	if !b.state.CompareAndSwap(int32(tracefan.StateStopped), int32(tracefan.StateStarting)) &&
		!b.state.CompareAndSwap(int32(tracefan.StateError), int32(tracefan.StateStarting)) {
		return nil
	}

	queue := make(chan *tracefan.Record, b.maxQueueSize)
	flushReq := make(chan chan struct{})
	done := make(chan struct{})
	b.mu.Lock()
	b.queue = queue
	b.flushReq = flushReq
	b.done = done
	b.mu.Unlock()

	b.wg.Add(1)
	go b.worker(queue, flushReq, done)

	b.state.Store(int32(tracefan.StateRunning))
	return nil
}

// Stop cancels the worker and awaits its completion. The worker
// attempts one final drain-and-flush before exiting.
func (b *Base) Stop(ctx context.Context) error {
	if !b.state.CompareAndSwap(int32(tracefan.StateRunning), int32(tracefan.StateStopping)) {
		return nil
	}

	b.mu.Lock()
	close(b.done)
	b.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		b.state.Store(int32(tracefan.StateStopped))
		return ctx.Err()
	}

	// The worker may have died on a panic while we were stopping.
	if b.State() != tracefan.StateError {
		b.state.Store(int32(tracefan.StateStopped))
	}
	return nil
}

// Enqueue admits a record to the bounded queue without blocking. A
// full queue drops the record and counts it.
func (b *Base) Enqueue(record *tracefan.Record) {
	if b.State() != tracefan.StateRunning {
		b.dropped.Add(1)
		return
	}
	b.mu.Lock()
	queue := b.queue
	b.mu.Unlock()

	select {
	case queue <- record:
	default:
		total := b.dropped.Add(1)
		b.diag.ReportDrop(b.name, total)
	}
}

// HandleSync formats and emits a record inline on the caller's
// goroutine, for handlers that have not been started.
func (b *Base) HandleSync(record *tracefan.Record) {
	formatted := b.FormatRecord(record)
	if err := b.emitter.EmitSync(formatted, record); err != nil {
		b.recordFailure(err)
		return
	}
	b.recordSuccess()
	b.processed.Add(1)
}

// Flush asks the worker to drain the queue and flush the current
// batch, waiting until it has done so.
func (b *Base) Flush(ctx context.Context) error {
	if b.State() != tracefan.StateRunning {
		return nil
	}
	b.mu.Lock()
	flushReq := b.flushReq
	done := b.done
	b.mu.Unlock()

	ack := make(chan struct{})
	select {
	case flushReq <- ack:
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a point-in-time view of the handler's counters.
func (b *Base) Stats() tracefan.HandlerStats {
	b.breakerMu.Lock()
	open := b.breakerOpen
	b.breakerMu.Unlock()
	return tracefan.HandlerStats{
		Name:        b.name,
		State:       b.State(),
		Processed:   b.processed.Load(),
		Dropped:     b.dropped.Load(),
		Errors:      b.errors.Load(),
		CircuitOpen: open,
	}
}

// worker is the handler's single background loop. It serializes all
// writes to the sink, giving per-sink FIFO ordering. Channels are
// passed in so a restart after a timed-out Stop cannot race the old
// worker onto new channels.
func (b *Base) worker(queue chan *tracefan.Record, flushReq chan chan struct{}, done chan struct{}) {
	defer b.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			b.state.Store(int32(tracefan.StateError))
			b.errors.Add(1)
			b.diag.Error("handler '%s': worker failed: %v", b.name, r)
		}
	}()

	batch := make([]*tracefan.Record, 0, b.batchSize)
	timer := time.NewTimer(b.flushInterval)
	defer timer.Stop()

	for {
		select {
		case record := <-queue:
			batch = append(batch, record)
			if len(batch) >= b.batchSize {
				b.flushBatch(batch)
				batch = batch[:0]
				resetTimer(timer, b.flushInterval)
			}

		case <-timer.C:
			if len(batch) > 0 {
				b.flushBatch(batch)
				batch = batch[:0]
			}
			timer.Reset(b.flushInterval)

		case ack := <-flushReq:
			batch = b.drainQueue(queue, batch)
			if len(batch) > 0 {
				b.flushBatch(batch)
				batch = batch[:0]
			}
			close(ack)
			resetTimer(timer, b.flushInterval)

		case <-done:
			batch = b.drainQueue(queue, batch)
			if len(batch) > 0 {
				b.flushBatch(batch)
			}
			return
		}
	}
}

// drainQueue moves everything currently queued into the batch,
// flushing full batches along the way.
func (b *Base) drainQueue(queue chan *tracefan.Record, batch []*tracefan.Record) []*tracefan.Record {
	for {
		select {
		case record := <-queue:
			batch = append(batch, record)
			if len(batch) >= b.batchSize {
				b.flushBatch(batch)
				batch = batch[:0]
			}
		default:
			return batch
		}
	}
}

// flushBatch formats and emits one batch. A failed batch is counted as
// dropped; a fully successful one resets the circuit breaker.
func (b *Base) flushBatch(batch []*tracefan.Record) {
	formatted := make([]string, len(batch))
	for i, record := range batch {
		formatted[i] = b.FormatRecord(record)
	}
	if err := b.emitter.EmitBatch(formatted, batch); err != nil {
		b.recordFailure(err)
		b.dropped.Add(uint64(len(batch)))
		return
	}
	b.recordSuccess()
	b.processed.Add(uint64(len(batch)))
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
