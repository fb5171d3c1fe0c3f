// Package filters provides admission predicates over log records.
// A handler runs its filters after the circuit-breaker and level
// checks; all filters must allow a record for it to be emitted.
package filters

import (
	"github.com/tracefan/tracefan"
)

// Filter decides whether a record may pass. true allows.
type Filter interface {
	Allow(record *tracefan.Record) bool
}

// Func adapts a plain function to the Filter interface.
type Func func(record *tracefan.Record) bool

// Allow implements Filter.
func (f Func) Allow(record *tracefan.Record) bool { return f(record) }

// LevelRange allows records whose level lies in [Min, Max].
type LevelRange struct {
	Min tracefan.Level
	Max tracefan.Level
}

// NewLevelRange builds a level-range filter. A zero Max means
// CRITICAL.
func NewLevelRange(min, max tracefan.Level) *LevelRange {
	if max == tracefan.NOTSET {
		max = tracefan.CRITICAL
	}
	return &LevelRange{Min: min, Max: max}
}

// Allow implements Filter.
func (l *LevelRange) Allow(record *tracefan.Record) bool {
	return record.Level >= l.Min && record.Level <= l.Max
}
