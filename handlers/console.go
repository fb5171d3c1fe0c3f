package handlers

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/tracefan/tracefan"
)

// ANSI color codes per level.
var consoleColors = map[tracefan.Level]string{
	tracefan.DEBUG:    "\033[36m",
	tracefan.INFO:     "\033[32m",
	tracefan.WARNING:  "\033[33m",
	tracefan.ERROR:    "\033[31m",
	tracefan.CRITICAL: "\033[35m",
}

const consoleColorReset = "\033[0m"

// ConsoleOptions configures a console handler beyond the Base options.
type ConsoleOptions struct {
	Options

	// Stdout and Stderr default to os.Stdout and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer

	// SmartStreams sends WARNING and above to Stderr. Off, everything
	// goes to Stdout.
	SmartStreams bool

	// Colors wraps the level token in ANSI colors.
	Colors bool
}

// Console writes formatted records to standard streams. It is intended
// as a synchronous handler but supports the batching worker like any
// other.
type Console struct {
	*Base

	mu           sync.Mutex
	stdout       io.Writer
	stderr       io.Writer
	smartStreams bool
	colors       bool
}

// NewConsole builds a console handler.
func NewConsole(opts ConsoleOptions) *Console {
	if opts.Name == "" {
		opts.Name = "console"
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	c := &Console{
		stdout:       opts.Stdout,
		stderr:       opts.Stderr,
		smartStreams: opts.SmartStreams,
		colors:       opts.Colors,
	}
	c.Base = NewBase(c, opts.Options)
	return c
}

func (c *Console) stream(record *tracefan.Record) io.Writer {
	if c.smartStreams && record.Level >= tracefan.WARNING {
		return c.stderr
	}
	return c.stdout
}

func (c *Console) colorize(formatted string, record *tracefan.Record) string {
	if !c.colors {
		return formatted
	}
	color, ok := consoleColors[record.Level]
	if !ok {
		return formatted
	}
	token := fmt.Sprintf("[%8s]", record.Level.String())
	return strings.Replace(formatted, token, color+token+consoleColorReset, 1)
}

// EmitSync implements Emitter.
func (c *Console) EmitSync(formatted string, record *tracefan.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.stream(record), c.colorize(formatted, record)+"\n")
	return err
}

// EmitBatch implements Emitter. Lines are grouped per stream so a
// batch produces at most two writes.
func (c *Console) EmitBatch(formatted []string, records []*tracefan.Record) error {
	var out, errOut strings.Builder
	for i, record := range records {
		line := c.colorize(formatted[i], record) + "\n"
		if c.smartStreams && record.Level >= tracefan.WARNING {
			errOut.WriteString(line)
		} else {
			out.WriteString(line)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if out.Len() > 0 {
		if _, err := io.WriteString(c.stdout, out.String()); err != nil {
			return err
		}
	}
	if errOut.Len() > 0 {
		if _, err := io.WriteString(c.stderr, errOut.String()); err != nil {
			return err
		}
	}
	return nil
}
