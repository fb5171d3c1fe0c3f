package tracefan

import (
	"fmt"
	"strings"
)

// Level defines the severity of a log record. Levels are ordered:
// a record is emitted only when its level is at or above the
// effective level of the logger and the handler.
type Level int

const (
	NOTSET   Level = 0
	DEBUG    Level = 10
	INFO     Level = 20
	WARNING  Level = 30
	ERROR    Level = 40
	CRITICAL Level = 50
)

var levelNames = map[Level]string{
	NOTSET:   "NOTSET",
	DEBUG:    "DEBUG",
	INFO:     "INFO",
	WARNING:  "WARNING",
	ERROR:    "ERROR",
	CRITICAL: "CRITICAL",
}

// LevelNameToLevel maps level names to level values.
var LevelNameToLevel = map[string]Level{
	"NOTSET":   NOTSET,
	"DEBUG":    DEBUG,
	"INFO":     INFO,
	"WARNING":  WARNING,
	"WARN":     WARNING,
	"ERROR":    ERROR,
	"CRITICAL": CRITICAL,
	"FATAL":    CRITICAL,
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel converts a level name to its Level value. Matching is
// case-insensitive and accepts the WARN and FATAL aliases.
func ParseLevel(name string) (Level, error) {
	level, ok := LevelNameToLevel[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return NOTSET, fmt.Errorf("%w: invalid level %q", ErrConfiguration, name)
	}
	return level, nil
}
