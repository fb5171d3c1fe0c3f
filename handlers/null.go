package handlers

import "github.com/tracefan/tracefan"

// Null discards every record. Useful as a benchmark sink and as the
// explicit "off" destination in configuration.
type Null struct {
	*Base
}

// NewNull builds a discarding handler.
func NewNull(opts Options) *Null {
	if opts.Name == "" {
		opts.Name = "null"
	}
	n := &Null{}
	n.Base = NewBase(n, opts)
	return n
}

// EmitSync implements Emitter.
func (n *Null) EmitSync(formatted string, record *tracefan.Record) error { return nil }

// EmitBatch implements Emitter.
func (n *Null) EmitBatch(formatted []string, records []*tracefan.Record) error { return nil }
