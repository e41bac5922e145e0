package formatters

import (
	"fmt"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

// ConsoleFormatter renders a prefix followed by a JSON payload:
//
//	[2024-01-01T00:00:00.000Z] [WARN] [auth] {"message":"locked out","tags":["security"]}
type ConsoleFormatter struct {
	// PrettyPrint writes the whole entry, indented, as the payload
	PrettyPrint bool

	// Payload replaces the default payload. Its result is JSON encoded.
	Payload func(entry types.LogEntry) interface{}
}

// NewConsoleFormatter creates a console formatter
func NewConsoleFormatter() *ConsoleFormatter {
	return &ConsoleFormatter{}
}

// Format formats an entry as a console line
func (f *ConsoleFormatter) Format(entry types.LogEntry) ([]byte, error) {
	prefix := fmt.Sprintf("[%s] [%s] [%s] ", entry.Timestamp, entry.Level.Upper(), entry.LoggerName)

	var body []byte
	var err error
	switch {
	case f.Payload != nil:
		body, err = marshalSafe(f.Payload(entry))
	case f.PrettyPrint:
		body, err = (&JSONFormatter{Indent: true}).Format(entry)
		if err == nil {
			body = body[:len(body)-1]
		}
	default:
		body, err = marshalSafe(ConsolePayload(entry))
	}
	if err != nil {
		return nil, err
	}

	line := make([]byte, 0, len(prefix)+len(body)+1)
	line = append(line, prefix...)
	line = append(line, body...)
	return append(line, '\n'), nil
}

// ConsolePayload returns the message and the optional fields of entry that
// are present.
func ConsolePayload(entry types.LogEntry) map[string]interface{} {
	payload := map[string]interface{}{"message": entry.Message}
	if entry.Context != nil {
		payload["context"] = entry.Context
	}
	if entry.Meta != nil {
		payload["meta"] = entry.Meta
	}
	if entry.Error != nil {
		payload["error"] = entry.Error
	}
	if entry.Tags != nil {
		payload["tags"] = entry.Tags
	}
	if entry.Env != "" {
		payload["env"] = entry.Env
	}
	if entry.CorrelationID != "" {
		payload["correlationId"] = entry.CorrelationID
	}
	return payload
}
