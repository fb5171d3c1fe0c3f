package handlers

import (
	"sync"

	"github.com/tracefan/tracefan"
)

// Memory captures records in a slice, for tests and assertions on log
// output.
type Memory struct {
	*Base

	mu        sync.Mutex
	records   []*tracefan.Record
	formatted []string
}

// NewMemory builds a capturing handler.
func NewMemory(opts Options) *Memory {
	if opts.Name == "" {
		opts.Name = "memory"
	}
	m := &Memory{}
	m.Base = NewBase(m, opts)
	return m
}

// EmitSync implements Emitter.
func (m *Memory) EmitSync(formatted string, record *tracefan.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	m.formatted = append(m.formatted, formatted)
	return nil
}

// EmitBatch implements Emitter.
func (m *Memory) EmitBatch(formatted []string, records []*tracefan.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	m.formatted = append(m.formatted, formatted...)
	return nil
}

// Records returns a copy of the captured records.
func (m *Memory) Records() []*tracefan.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*tracefan.Record, len(m.records))
	copy(out, m.records)
	return out
}

// Formatted returns a copy of the captured formatted lines.
func (m *Memory) Formatted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.formatted))
	copy(out, m.formatted)
	return out
}

// Clear drops everything captured so far.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	m.formatted = nil
}
