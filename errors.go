package tracefan

import "errors"

// Error taxonomy of the runtime. Logging calls never surface these to
// the caller; they feed counters and handler stats. Only lifecycle
// calls (Start, Stop, Flush, configuration) may return them.
var (
	// ErrConfiguration marks an invalid level, format or handler type.
	// Surfaced at configuration time.
	ErrConfiguration = errors.New("tracefan: configuration error")

	// ErrHandlerEmit marks a sink I/O failure. Recorded locally,
	// counted, and fed to the handler's circuit breaker.
	ErrHandlerEmit = errors.New("tracefan: emit failed")

	// ErrCircuitOpen is the internal fast-fail of an open circuit
	// breaker. Visible only through handler stats.
	ErrCircuitOpen = errors.New("tracefan: circuit breaker open")

	// ErrQueueFull marks a record dropped because the handler queue
	// was at capacity.
	ErrQueueFull = errors.New("tracefan: handler queue full")

	// ErrHandlerStopped is returned by lifecycle calls that require a
	// running handler.
	ErrHandlerStopped = errors.New("tracefan: handler not running")
)
