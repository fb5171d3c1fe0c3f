package tracefan

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

type contextKey struct{}

// Provider is a dynamic context supplier. Its last computed value is
// cached and merged under the provider's name on every snapshot.
type Provider func() (any, error)

type providerEntry struct {
	fn      Provider
	refresh time.Duration

	mu      sync.Mutex
	cached  any
	lastErr error
	lastRun time.Time
	primed  bool
}

// value returns the provider's cached value, recomputing it when the
// refresh interval has elapsed. A zero interval recomputes on every
// call.
func (p *providerEntry) value(now time.Time) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.primed || p.refresh <= 0 || now.Sub(p.lastRun) >= p.refresh {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.lastErr = fmt.Errorf("provider panic: %v", r)
				}
			}()
			p.cached, p.lastErr = p.fn()
		}()
		p.lastRun = now
		p.primed = true
	}
	return p.cached, p.lastErr
}

// Propagator supplies ambient fields merged into every record. Scoped
// values travel on the context.Context; a process-wide fallback store
// covers code paths that have no context to thread. Reads never fail:
// on any internal problem the best available snapshot is returned.
type Propagator struct {
	mu        sync.RWMutex
	global    *Fields
	providers map[string]*providerEntry
}

// NewPropagator returns an empty propagator.
func NewPropagator() *Propagator {
	return &Propagator{
		global:    NewFields(),
		providers: make(map[string]*providerEntry),
	}
}

// Scope returns a derived context carrying the current scoped snapshot
// deep-merged with the given key/value pairs. Abandoning the derived
// context restores the exact prior snapshot on every exit path,
// including panics, because the parent context is untouched.
func (p *Propagator) Scope(ctx context.Context, kv ...any) context.Context {
	merged := scopedFields(ctx).Clone()
	merged.Merge(NewFields(kv...))
	return context.WithValue(ctx, contextKey{}, merged)
}

// ScopeFields is Scope for a pre-built Fields value.
func (p *Propagator) ScopeFields(ctx context.Context, fields *Fields) context.Context {
	merged := scopedFields(ctx).Clone()
	merged.Merge(fields)
	return context.WithValue(ctx, contextKey{}, merged)
}

func scopedFields(ctx context.Context) *Fields {
	if ctx == nil {
		return nil
	}
	if f, ok := ctx.Value(contextKey{}).(*Fields); ok {
		return f
	}
	return nil
}

// Set stores key/value pairs in the process-wide fallback store. Use
// Scope where a context is available; Set covers the paths that lack
// one.
func (p *Propagator) Set(kv ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.global.Merge(NewFields(kv...))
}

// Clear empties the process-wide fallback store.
func (p *Propagator) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.global = NewFields()
}

// RegisterProvider registers a named dynamic supplier. With a zero
// refresh interval the supplier runs on every snapshot; otherwise its
// value is cached until the interval elapses. A failing provider
// contributes a "{name}_error" field instead of breaking the read.
func (p *Propagator) RegisterProvider(name string, fn Provider, refresh time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.providers[name] = &providerEntry{fn: fn, refresh: refresh}
}

// RemoveProvider unregisters a named supplier.
func (p *Propagator) RemoveProvider(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.providers, name)
}

// Snapshot merges, in increasing priority, the fallback store, the
// provider values and the context-scoped fields. It never fails; in
// the worst case it returns an empty Fields.
func (p *Propagator) Snapshot(ctx context.Context) *Fields {
	out := NewFields()
	if p == nil {
		return out
	}

	p.mu.RLock()
	global := p.global
	entries := make(map[string]*providerEntry, len(p.providers))
	for name, entry := range p.providers {
		entries[name] = entry
	}
	p.mu.RUnlock()

	out.Merge(global)

	now := time.Now()
	for name, entry := range entries {
		val, err := entry.value(now)
		if err != nil {
			out.Set(name+"_error", err.Error())
			continue
		}
		out.Set(name, val)
	}

	out.Merge(scopedFields(ctx))
	return out
}

// NewCorrelationID generates a correlation ID, sets it into the
// returned scope and returns both. Generation always succeeds: a
// failed random read falls back to a time-derived identifier.
func (p *Propagator) NewCorrelationID(ctx context.Context) (context.Context, string) {
	id := newID()
	return p.Scope(ctx, "correlation_id", id), id
}

// NewTraceID generates a trace ID and sets it into the returned scope.
func (p *Propagator) NewTraceID(ctx context.Context) (context.Context, string) {
	id := newID()
	return p.Scope(ctx, "trace_id", id), id
}

// NewSpanID generates a span ID and sets it into the returned scope.
func (p *Propagator) NewSpanID(ctx context.Context) (context.Context, string) {
	id := newID()
	return p.Scope(ctx, "span_id", id), id
}

func newID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		// Random source failure; a time-derived identifier is unique
		// enough for correlation purposes.
		return "t-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return id.String()
}
