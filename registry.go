package tracefan

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tracefan/tracefan/internal/diag"
)

// Registry is the process-wide home of loggers, the dispatcher and the
// ambient-context propagator. It has an explicit lifecycle and is
// injected into loggers, so tests can run isolated registries instead
// of sharing hidden global state. The map is read far more often than
// written.
type Registry struct {
	mu             sync.RWMutex
	loggers        map[string]*Logger
	libraryLoggers map[string]*Logger

	level      atomic.Int64
	enabled    atomic.Bool
	configured atomic.Bool

	propagator *Propagator
	dispatcher *Dispatcher
	redactor   atomic.Pointer[Redactor]
	diag       *diag.Logger
}

// New returns a registry with no handlers, level INFO and logging
// enabled. Library loggers stay inert until MarkConfigured is called
// (configuration does that).
func New() *Registry {
	r := &Registry{
		loggers:        make(map[string]*Logger),
		libraryLoggers: make(map[string]*Logger),
		propagator:     NewPropagator(),
		diag:           diag.Default(),
	}
	r.level.Store(int64(INFO))
	r.enabled.Store(true)
	r.dispatcher = NewDispatcher(func(handler string, v any) {
		r.diag.Error("handler '%s' panicked during dispatch: %v", handler, v)
	})
	return r
}

// Get returns the named logger, creating it on first use.
func (r *Registry) Get(name string) *Logger {
	r.mu.RLock()
	l, ok := r.loggers[name]
	r.mu.RUnlock()
	if ok {
		return l
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.loggers[name]; ok {
		return l
	}
	l = newLogger(name, r, false)
	r.loggers[name] = l
	return l
}

// Library returns a library-mode logger: inert until the hosting
// application has configured the registry, so unconfigured library use
// produces no output.
func (r *Registry) Library(name string) *Logger {
	r.mu.RLock()
	l, ok := r.libraryLoggers[name]
	r.mu.RUnlock()
	if ok {
		return l
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.libraryLoggers[name]; ok {
		return l
	}
	l = newLogger(name, r, true)
	r.libraryLoggers[name] = l
	return l
}

// Level returns the registry-wide level.
func (r *Registry) Level() Level { return Level(r.level.Load()) }

// SetLevel sets the registry-wide level applied to loggers without an
// explicit level of their own.
func (r *Registry) SetLevel(level Level) { r.level.Store(int64(level)) }

// Enabled reports whether logging is globally enabled.
func (r *Registry) Enabled() bool { return r.enabled.Load() }

// SetEnabled switches logging on or off globally.
func (r *Registry) SetEnabled(enabled bool) { r.enabled.Store(enabled) }

// Configured reports whether the registry has been explicitly
// configured by the hosting application.
func (r *Registry) Configured() bool { return r.configured.Load() }

// MarkConfigured flips the configured flag, waking library loggers.
func (r *Registry) MarkConfigured() { r.configured.Store(true) }

// Propagator returns the registry's ambient-context propagator.
func (r *Registry) Propagator() *Propagator { return r.propagator }

// Dispatcher returns the registry's handler dispatcher.
func (r *Registry) Dispatcher() *Dispatcher { return r.dispatcher }

// AddHandler registers a handler with the dispatcher.
func (r *Registry) AddHandler(h Handler) { r.dispatcher.AddHandler(h) }

// RemoveHandler unregisters the named handler.
func (r *Registry) RemoveHandler(name string) Handler {
	return r.dispatcher.RemoveHandler(name)
}

// SetRedactor installs the redactor applied to record data. nil
// disables redaction.
func (r *Registry) SetRedactor(red *Redactor) { r.redactor.Store(red) }

// Redactor returns the installed redactor, possibly nil.
func (r *Registry) Redactor() *Redactor { return r.redactor.Load() }

// SetDiag replaces the internal diagnostics logger.
func (r *Registry) SetDiag(d *diag.Logger) {
	if d != nil {
		r.diag = d
	}
}

// Diag returns the internal diagnostics logger.
func (r *Registry) Diag() *diag.Logger { return r.diag }

// Flush asks every handler to drain its current batch.
func (r *Registry) Flush(ctx context.Context) error {
	return r.dispatcher.Flush(ctx)
}

// Shutdown stops all handlers, draining their queues and releasing
// file descriptors and sockets.
func (r *Registry) Shutdown(ctx context.Context) error {
	return r.dispatcher.StopAll(ctx)
}

// Stats returns the stats of every registered handler.
func (r *Registry) Stats() []HandlerStats { return r.dispatcher.Stats() }

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the shared process-wide registry.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = New()
	})
	return defaultRegistry
}

// Get returns a logger from the default registry.
func Get(name string) *Logger { return Default().Get(name) }

// Library returns a library-mode logger from the default registry.
func Library(name string) *Logger { return Default().Library(name) }
