// Package formatters turns records into output strings. Formatters are
// pure: they read a record and produce a line, never mutating the
// record itself.
package formatters

import (
	"github.com/tracefan/tracefan"
)

// Formatter renders one record into its string form. Handlers add
// their own framing (newlines, batching) around the result.
type Formatter interface {
	Format(record *tracefan.Record) string
}

// Func adapts a plain function to the Formatter interface.
type Func func(record *tracefan.Record) string

// Format implements Formatter.
func (f Func) Format(record *tracefan.Record) string { return f(record) }
