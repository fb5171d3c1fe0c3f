package tracefan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Caller identifies the code location that produced a record. Lookup
// is best-effort; a failed stack walk leaves the record without one.
type Caller struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
	Module   string `json:"module"`
}

// Exception carries normalized error information attached to a record.
type Exception struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Trace   string `json:"trace,omitempty"`
}

// Record is a single structured log event. It is immutable once
// dispatched: handlers read it concurrently and must not mutate Data
// in place; they produce derived formatted output instead.
// WithDuration is the only amendment and returns a new copy.
type Record struct {
	Time       time.Time
	Level      Level
	LoggerName string
	Message    string

	Data      *Fields
	Caller    *Caller
	Exception *Exception

	TraceID       string
	CorrelationID string
	SpanID        string

	PID         int
	GoroutineID uint64

	Duration time.Duration
}

// WithDuration returns a copy of the record with the duration set.
// The original record is left untouched.
func (r *Record) WithDuration(d time.Duration) *Record {
	out := *r
	out.Data = r.Data.Clone()
	out.Duration = d
	return &out
}

// MarshalJSON renders the record as a single JSON object with data
// keys in insertion order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	writeJSONField(&buf, "time", r.Time.UTC().Format(time.RFC3339Nano), true)
	writeJSONField(&buf, "level", r.Level.String(), false)
	writeJSONField(&buf, "logger", r.LoggerName, false)
	writeJSONField(&buf, "message", r.Message, false)

	dataJSON, err := r.Data.MarshalJSON()
	if err != nil {
		dataJSON = []byte("{}")
	}
	buf.WriteString(`,"data":`)
	buf.Write(dataJSON)

	if r.Caller != nil {
		writeJSONField(&buf, "caller", r.Caller, false)
	}
	if r.Exception != nil {
		writeJSONField(&buf, "exception", r.Exception, false)
	}
	if r.TraceID != "" {
		writeJSONField(&buf, "trace_id", r.TraceID, false)
	}
	if r.CorrelationID != "" {
		writeJSONField(&buf, "correlation_id", r.CorrelationID, false)
	}
	if r.SpanID != "" {
		writeJSONField(&buf, "span_id", r.SpanID, false)
	}
	writeJSONField(&buf, "pid", r.PID, false)
	writeJSONField(&buf, "goroutine", r.GoroutineID, false)
	if r.Duration > 0 {
		writeJSONField(&buf, "duration_ms", float64(r.Duration)/float64(time.Millisecond), false)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSONField(buf *bytes.Buffer, key string, value any, first bool) {
	if !first {
		buf.WriteByte(',')
	}
	buf.WriteByte('"')
	buf.WriteString(key)
	buf.WriteString(`":`)
	valJSON, err := json.Marshal(value)
	if err != nil {
		valJSON, _ = json.Marshal(fmt.Sprintf("%v", value))
	}
	buf.Write(valJSON)
}

// NormalizeException converts an arbitrary error-ish value into an
// Exception. Accepted inputs: error, *Exception, string; anything else
// is stringified. nil and unusable values yield nil rather than an
// error, since logging must never fail.
func NormalizeException(v any, withTrace bool) *Exception {
	if v == nil {
		return nil
	}
	var exc *Exception
	switch e := v.(type) {
	case *Exception:
		if e == nil {
			return nil
		}
		copied := *e
		exc = &copied
	case error:
		exc = &Exception{Type: fmt.Sprintf("%T", e), Message: e.Error()}
	case string:
		if e == "" {
			return nil
		}
		exc = &Exception{Type: "error", Message: e}
	default:
		exc = &Exception{Type: fmt.Sprintf("%T", v), Message: fmt.Sprintf("%v", v)}
	}
	if withTrace && exc.Trace == "" {
		exc.Trace = captureStack(4)
	}
	return exc
}

// captureStack formats a short call trace, outermost last, skipping
// the runtime's own frames.
func captureStack(skip int) string {
	pc := make([]uintptr, 16)
	n := runtime.Callers(skip, pc)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pc[:n])
	var sb strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&sb, "%s (%s:%d)\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return sb.String()
}

// callerInfo walks the stack past the runtime's own frames and returns
// the first caller outside this package. Returns nil on lookup failure.
func callerInfo(skip int) *Caller {
	pc := make([]uintptr, 8)
	n := runtime.Callers(skip, pc)
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pc[:n])
	for {
		frame, more := frames.Next()
		if frame.File == "" {
			return nil
		}
		if !strings.Contains(frame.Function, "github.com/tracefan/tracefan.") ||
			strings.Contains(frame.File, "_test.go") {
			module := frame.Function
			if idx := strings.LastIndex(module, "."); idx >= 0 {
				module = module[:idx]
			}
			file := frame.File
			if idx := strings.LastIndexByte(file, '/'); idx >= 0 {
				file = file[idx+1:]
			}
			function := frame.Function
			if idx := strings.LastIndex(function, "."); idx >= 0 {
				function = function[idx+1:]
			}
			return &Caller{File: file, Line: frame.Line, Function: function, Module: module}
		}
		if !more {
			return nil
		}
	}
}

var recordPID = os.Getpid()

// goroutineID parses the current goroutine's numeric ID from the
// runtime stack header. Diagnostics only; never authoritative.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// Header looks like "goroutine 123 [running]:".
	s := string(buf[:n])
	s = strings.TrimPrefix(s, "goroutine ")
	if idx := strings.IndexByte(s, ' '); idx > 0 {
		s = s[:idx]
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
