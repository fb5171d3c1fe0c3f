package filters

import (
	"fmt"

	"github.com/gobwas/glob"

	"github.com/tracefan/tracefan"
)

// Name allows records whose logger name matches a glob pattern, or
// rejects the matches when Exclude is set.
type Name struct {
	pattern glob.Glob
	exclude bool
}

// NewName compiles a glob pattern over logger names. '.' separates
// name segments, so "app.*" matches direct children of "app".
func NewName(pattern string, exclude bool) (*Name, error) {
	g, err := glob.Compile(pattern, '.')
	if err != nil {
		return nil, fmt.Errorf("invalid name filter pattern %q: %w", pattern, err)
	}
	return &Name{pattern: g, exclude: exclude}, nil
}

// Allow implements Filter.
func (n *Name) Allow(record *tracefan.Record) bool {
	matched := n.pattern.Match(record.LoggerName)
	if n.exclude {
		return !matched
	}
	return matched
}

// Message allows records whose message matches a glob pattern, or
// rejects the matches when Exclude is set.
type Message struct {
	pattern glob.Glob
	exclude bool
}

// NewMessage compiles a glob pattern over record messages.
func NewMessage(pattern string, exclude bool) (*Message, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid message filter pattern %q: %w", pattern, err)
	}
	return &Message{pattern: g, exclude: exclude}, nil
}

// Allow implements Filter.
func (m *Message) Allow(record *tracefan.Record) bool {
	matched := m.pattern.Match(record.Message)
	if m.exclude {
		return !matched
	}
	return matched
}
