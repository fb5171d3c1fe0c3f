package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/tracefan/tracefan"
	"gopkg.in/Graylog2/go-gelf.v2/gelf"
)

// Writer factories as variables to allow mocking in tests.
var gelfUDPWriterFactory = func(addr string) (gelf.Writer, error) { return gelf.NewUDPWriter(addr) }
var gelfTCPWriterFactory = func(addr string) (gelf.Writer, error) { return gelf.NewTCPWriter(addr) }

// GELFOptions configures a GELF handler beyond the Base options.
type GELFOptions struct {
	Options

	// Host and Port of the Graylog input. Both required.
	Host string
	Port int

	// Protocol is "udp" (default) or "tcp".
	Protocol string

	// Compression applies to UDP only: "gzip", "zlib" or "none"
	// (default).
	Compression string

	// Hostname overrides the GELF host field. Defaults to
	// os.Hostname().
	Hostname string
}

// GELF ships records to a Graylog server.
type GELF struct {
	*Base

	writer   gelf.Writer
	hostname string
}

// NewGELF builds a GELF handler and connects the writer.
func NewGELF(opts GELFOptions) (*GELF, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("%w: gelf handler requires a host", tracefan.ErrConfiguration)
	}
	if opts.Port <= 0 {
		return nil, fmt.Errorf("%w: gelf handler requires a valid port", tracefan.ErrConfiguration)
	}
	if opts.Name == "" {
		opts.Name = "gelf"
	}

	hostname := opts.Hostname
	if hostname == "" {
		var err error
		hostname, err = os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
	}

	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)

	var writer gelf.Writer
	var err error
	if opts.Protocol == "tcp" {
		writer, err = gelfTCPWriterFactory(addr)
		if err != nil {
			return nil, fmt.Errorf("failed to create GELF TCP writer: %w", err)
		}
	} else {
		writer, err = gelfUDPWriterFactory(addr)
		if err != nil {
			return nil, fmt.Errorf("failed to create GELF UDP writer: %w", err)
		}
		if udpWriter, ok := writer.(*gelf.UDPWriter); ok {
			switch opts.Compression {
			case "gzip":
				udpWriter.CompressionType = gelf.CompressGzip
			case "zlib":
				udpWriter.CompressionType = gelf.CompressZlib
			default:
				udpWriter.CompressionType = gelf.CompressNone
			}
		}
	}

	g := &GELF{
		writer:   writer,
		hostname: hostname,
	}
	g.Base = NewBase(g, opts.Options)
	return g, nil
}

// EmitSync implements Emitter.
func (g *GELF) EmitSync(formatted string, record *tracefan.Record) error {
	return g.writer.WriteMessage(g.message(record))
}

// EmitBatch implements Emitter. GELF has no batch framing, messages go
// out one by one.
func (g *GELF) EmitBatch(formatted []string, records []*tracefan.Record) error {
	for _, record := range records {
		if err := g.writer.WriteMessage(g.message(record)); err != nil {
			return err
		}
	}
	return nil
}

func (g *GELF) message(record *tracefan.Record) *gelf.Message {
	msg := &gelf.Message{
		Version:  "1.1",
		Host:     g.hostname,
		Short:    record.Message,
		TimeUnix: float64(record.Time.Unix()) + float64(record.Time.Nanosecond())/1e9,
		Level:    gelfSeverity(record.Level),
		Extra:    map[string]interface{}{"_logger": record.LoggerName},
	}

	if record.Exception != nil {
		msg.Full = fmt.Sprintf("%s: %s\n%s",
			record.Exception.Type, record.Exception.Message, record.Exception.Trace)
	}

	record.Data.Walk(func(key string, value any) {
		extraKey := key
		if extraKey == "" || extraKey[0] != '_' {
			extraKey = "_" + extraKey
		}
		// GELF additional fields only carry simple types.
		switch v := value.(type) {
		case string, float64, float32, int, int32, int64, uint, uint32, uint64, bool:
			msg.Extra[extraKey] = v
		default:
			msg.Extra[extraKey] = fmt.Sprintf("%v", v)
		}
	})

	if record.TraceID != "" {
		msg.Extra["_trace_id"] = record.TraceID
	}
	if record.CorrelationID != "" {
		msg.Extra["_correlation_id"] = record.CorrelationID
	}
	if record.SpanID != "" {
		msg.Extra["_span_id"] = record.SpanID
	}

	return msg
}

// gelfSeverity maps log levels onto syslog severities.
func gelfSeverity(level tracefan.Level) int32 {
	switch {
	case level >= tracefan.CRITICAL:
		return 2
	case level >= tracefan.ERROR:
		return 3
	case level >= tracefan.WARNING:
		return 4
	case level >= tracefan.INFO:
		return 6
	default:
		return 7
	}
}

// Stop drains the worker, then closes the GELF writer.
func (g *GELF) Stop(ctx context.Context) error {
	err := g.Base.Stop(ctx)
	if closeErr := g.writer.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
