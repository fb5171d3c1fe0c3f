package handlers

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracefan/tracefan"
	"github.com/tracefan/tracefan/formatters"
)

func TestConsole_SmartStreams(t *testing.T) {
	var out, errOut bytes.Buffer
	c := NewConsole(ConsoleOptions{
		Options:      Options{Formatter: formatters.NewText()},
		Stdout:       &out,
		Stderr:       &errOut,
		SmartStreams: true,
	})

	c.HandleSync(record(tracefan.INFO, "routine"))
	c.HandleSync(record(tracefan.ERROR, "broken"))

	assert.Contains(t, out.String(), "routine")
	assert.NotContains(t, out.String(), "broken")
	assert.Contains(t, errOut.String(), "broken")
}

func TestConsole_SingleStreamByDefault(t *testing.T) {
	var out, errOut bytes.Buffer
	c := NewConsole(ConsoleOptions{Stdout: &out, Stderr: &errOut})

	c.HandleSync(record(tracefan.ERROR, "broken"))
	assert.Contains(t, out.String(), "broken")
	assert.Zero(t, errOut.Len())
}

func TestConsole_Colors(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(ConsoleOptions{
		Options: Options{Formatter: formatters.NewText()},
		Stdout:  &out,
		Colors:  true,
	})

	c.HandleSync(record(tracefan.ERROR, "tinted"))
	assert.Contains(t, out.String(), "\033[31m[   ERROR]\033[0m")
}

func TestConsole_BatchGroupsPerStream(t *testing.T) {
	var out, errOut bytes.Buffer
	c := NewConsole(ConsoleOptions{
		Options:      Options{Formatter: formatters.NewText()},
		Stdout:       &out,
		Stderr:       &errOut,
		SmartStreams: true,
	})

	records := []*tracefan.Record{
		record(tracefan.INFO, "one"),
		record(tracefan.WARNING, "two"),
		record(tracefan.INFO, "three"),
	}
	formatted := make([]string, len(records))
	for i, r := range records {
		formatted[i] = c.FormatRecord(r)
	}
	require.NoError(t, c.EmitBatch(formatted, records))

	assert.Equal(t, 2, strings.Count(out.String(), "\n"))
	assert.Equal(t, 1, strings.Count(errOut.String(), "\n"))
}
