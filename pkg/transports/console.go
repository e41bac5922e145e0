package transports

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/wayneeseguin/omnilog/pkg/formatters"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

// ConsoleOptions configures a ConsoleTransport.
type ConsoleOptions struct {
	// Name identifies the transport in error reports (default "console")
	Name string

	// Writer receives every line, or only debug and info lines with
	// UseLevelStreams (default os.Stdout)
	Writer io.Writer

	// ErrorWriter receives warn and error lines with UseLevelStreams
	// (default os.Stderr)
	ErrorWriter io.Writer

	// UseLevelStreams routes warn and error entries to ErrorWriter
	UseLevelStreams bool

	// PrettyPrint writes the whole entry as indented JSON
	PrettyPrint bool

	// Payload replaces the default JSON payload after the line prefix
	Payload func(entry types.LogEntry) interface{}

	// Formatter replaces the console line format entirely
	Formatter formatters.Formatter
}

// ConsoleTransport writes one line per entry to stdout/stderr or any writer.
type ConsoleTransport struct {
	name            string
	out             io.Writer
	errOut          io.Writer
	useLevelStreams bool
	formatter       formatters.Formatter

	mu sync.Mutex // serializes writes so lines never interleave
}

// NewConsole creates a ConsoleTransport.
func NewConsole(opts ConsoleOptions) *ConsoleTransport {
	t := &ConsoleTransport{
		name:            opts.Name,
		out:             opts.Writer,
		errOut:          opts.ErrorWriter,
		useLevelStreams: opts.UseLevelStreams,
		formatter:       opts.Formatter,
	}
	if t.name == "" {
		t.name = "console"
	}
	if t.out == nil {
		t.out = os.Stdout
	}
	if t.errOut == nil {
		t.errOut = os.Stderr
	}
	if t.formatter == nil {
		t.formatter = &formatters.ConsoleFormatter{
			PrettyPrint: opts.PrettyPrint,
			Payload:     opts.Payload,
		}
	}
	return t
}

// Name implements types.Transport.
func (t *ConsoleTransport) Name() string {
	return t.name
}

// Log implements types.Transport.
func (t *ConsoleTransport) Log(ctx context.Context, entry types.LogEntry) error {
	line, err := t.formatter.Format(entry)
	if err != nil {
		return errors.Wrap(err, "format entry")
	}

	w := t.out
	if t.useLevelStreams && entry.Level >= types.LevelWarn {
		w = t.errOut
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := w.Write(line); err != nil {
		return errors.Wrap(err, "write console line")
	}
	return nil
}
