package types

import (
	"context"
	"time"
)

// TimestampFormat is the layout used for LogEntry.Timestamp (ISO-8601, UTC, milliseconds).
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// ErrorInfo is the structured form of an error attached to a log entry.
type ErrorInfo struct {
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
	Stack   string `json:"stack,omitempty" yaml:"stack,omitempty"`
}

// LogEntry represents one emitted log event.
// Entries are created once per log call and must be treated as read-only by
// every consumer (transports, stores, hooks). Optional containers keep the
// distinction between absent (nil) and present-but-empty; the JSON encoding
// preserves it (null versus [] or {}), which lets durable stores round-trip it.
type LogEntry struct {
	ID            string                 `json:"id"`
	Timestamp     string                 `json:"timestamp"`
	Level         Level                  `json:"level"`
	Message       string                 `json:"message"`
	LoggerName    string                 `json:"loggerName"`
	Tags          []string               `json:"tags"`
	Context       map[string]interface{} `json:"context"`
	Meta          map[string]interface{} `json:"meta"`
	Error         *ErrorInfo             `json:"error"`
	Env           string                 `json:"env,omitempty"`
	CorrelationID string                 `json:"correlationId,omitempty"`
}

// Time parses the entry timestamp. A zero time is returned if it cannot be parsed.
func (e LogEntry) Time() time.Time {
	t, err := time.Parse(TimestampFormat, e.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Clone returns a copy of the entry whose top-level containers are not shared
// with the receiver.
func (e LogEntry) Clone() LogEntry {
	c := e
	c.Tags = copyTags(e.Tags)
	c.Context = copyFields(e.Context)
	c.Meta = copyFields(e.Meta)
	if e.Error != nil {
		info := *e.Error
		c.Error = &info
	}
	return c
}

// Metadata carries the optional parts of a log call.
type Metadata struct {
	Tags          []string
	Context       map[string]interface{}
	Meta          map[string]interface{}
	Error         *ErrorInfo
	Env           string
	CorrelationID string
}

// Transport is a sink that turns an entry into an external effect.
// Name must be stable; it identifies the transport in error reports.
type Transport interface {
	Name() string
	Log(ctx context.Context, entry LogEntry) error
}

// BufferStore holds pending entries for the buffer controller.
type BufferStore interface {
	// Load returns the persisted backlog in insertion order
	Load(ctx context.Context) ([]LogEntry, error)

	// Save replaces the persisted backlog with entries
	Save(ctx context.Context, entries []LogEntry) error

	// Clear removes the persisted backlog
	Clear(ctx context.Context) error
}

// TransportFunc adapts a function into a named Transport.
func TransportFunc(name string, fn func(ctx context.Context, entry LogEntry) error) Transport {
	return &funcTransport{name: name, fn: fn}
}

type funcTransport struct {
	name string
	fn   func(ctx context.Context, entry LogEntry) error
}

func (t *funcTransport) Name() string { return t.name }

func (t *funcTransport) Log(ctx context.Context, entry LogEntry) error {
	return t.fn(ctx, entry)
}

func copyTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}

func copyFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// CopyMetadata returns md with its containers copied, so an entry built from it
// does not observe later mutations by the caller.
func CopyMetadata(md Metadata) Metadata {
	md.Tags = copyTags(md.Tags)
	md.Context = copyFields(md.Context)
	md.Meta = copyFields(md.Meta)
	if md.Error != nil {
		info := *md.Error
		md.Error = &info
	}
	return md
}
