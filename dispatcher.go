package tracefan

import (
	"context"
	"sync"
)

// HandlerState is the lifecycle state of a handler.
type HandlerState int32

const (
	StateStopped HandlerState = iota
	StateStarting
	StateRunning
	StateStopping
	StateError
)

var handlerStateNames = map[HandlerState]string{
	StateStopped:  "stopped",
	StateStarting: "starting",
	StateRunning:  "running",
	StateStopping: "stopping",
	StateError:    "error",
}

func (s HandlerState) String() string {
	if name, ok := handlerStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// HandlerStats is the point-in-time view of a handler's counters.
type HandlerStats struct {
	Name        string
	State       HandlerState
	Processed   uint64
	Dropped     uint64
	Errors      uint64
	CircuitOpen bool
}

// Handler owns one sink. Implementations expose admission filtering,
// formatting delegation and either immediate synchronous emission or a
// queued batching worker with its own circuit breaker.
type Handler interface {
	Name() string
	State() HandlerState

	// ShouldHandle admits or rejects a record: circuit breaker check,
	// then level check, then all filters.
	ShouldHandle(record *Record) bool

	// Enqueue is the async path: non-blocking admission to the
	// handler's bounded queue. A full queue drops the record.
	Enqueue(record *Record)

	// HandleSync formats and emits a record inline on the caller.
	HandleSync(record *Record)

	Start() error
	Stop(ctx context.Context) error
	Flush(ctx context.Context) error

	Stats() HandlerStats
}

// Dispatcher fans a record out to the registered handlers. One
// handler's failure never prevents delivery to the others. Ordering is
// linearizable per sink, unordered across sinks.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers []Handler

	onPanic func(handler string, v any)
}

// NewDispatcher returns an empty dispatcher. onPanic, if non-nil, is
// told about panics recovered from handler calls.
func NewDispatcher(onPanic func(handler string, v any)) *Dispatcher {
	return &Dispatcher{onPanic: onPanic}
}

// AddHandler registers a handler. Safe to call concurrently with
// in-flight dispatch.
func (d *Dispatcher) AddHandler(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, h)
}

// RemoveHandler unregisters the named handler and returns it, or nil
// when no handler carries that name.
func (d *Dispatcher) RemoveHandler(name string) Handler {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, h := range d.handlers {
		if h.Name() == name {
			d.handlers = append(d.handlers[:i], d.handlers[i+1:]...)
			return h
		}
	}
	return nil
}

// Handlers returns a snapshot of the registered handlers.
func (d *Dispatcher) Handlers() []Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Handler, len(d.handlers))
	copy(out, d.handlers)
	return out
}

// Dispatch delivers a record to every admitting handler. Running
// handlers receive it on their async queue; handlers not yet started
// emit inline in registration order. A panicking handler is isolated.
func (d *Dispatcher) Dispatch(record *Record) {
	for _, h := range d.Handlers() {
		d.dispatchOne(h, record)
	}
}

func (d *Dispatcher) dispatchOne(h Handler, record *Record) {
	defer func() {
		if r := recover(); r != nil && d.onPanic != nil {
			d.onPanic(h.Name(), r)
		}
	}()
	if !h.ShouldHandle(record) {
		return
	}
	if h.State() == StateRunning {
		h.Enqueue(record)
		return
	}
	h.HandleSync(record)
}

// StartAll starts every registered handler. The first error is
// returned after all handlers have been attempted.
func (d *Dispatcher) StartAll() error {
	var firstErr error
	for _, h := range d.Handlers() {
		if err := h.Start(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// StopAll stops every registered handler, draining their batches.
func (d *Dispatcher) StopAll(ctx context.Context) error {
	var firstErr error
	for _, h := range d.Handlers() {
		if err := h.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Flush requests every handler drain its current batch before
// returning.
func (d *Dispatcher) Flush(ctx context.Context) error {
	var firstErr error
	for _, h := range d.Handlers() {
		if err := h.Flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stats returns the stats of every registered handler.
func (d *Dispatcher) Stats() []HandlerStats {
	handlers := d.Handlers()
	out := make([]HandlerStats, 0, len(handlers))
	for _, h := range handlers {
		out = append(out, h.Stats())
	}
	return out
}
