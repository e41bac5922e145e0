package formatters

import (
	"fmt"
	"strings"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

// TextFormatter renders entries as
//
//	[2024-01-01T00:00:00.000Z] [INFO ] [auth] user logged in {"meta":{...}}
//
// The trailing JSON object is written only when the entry carries meta,
// context or an error; it then also holds tags and the correlation id.
type TextFormatter struct {
	// PadLevel pads level names to five characters
	PadLevel bool
}

// NewTextFormatter creates a text formatter with padded levels
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{PadLevel: true}
}

// Format formats an entry as a text line
func (f *TextFormatter) Format(entry types.LogEntry) ([]byte, error) {
	var b strings.Builder

	level := entry.Level.Upper()
	if f.PadLevel {
		level = fmt.Sprintf("%-5s", level)
	}

	b.WriteString("[")
	b.WriteString(entry.Timestamp)
	b.WriteString("] [")
	b.WriteString(level)
	b.WriteString("] [")
	b.WriteString(entry.LoggerName)
	b.WriteString("] ")
	b.WriteString(entry.Message)

	if entry.Meta != nil || entry.Context != nil || entry.Error != nil {
		extra, err := marshalSafe(extraFields(entry))
		if err != nil {
			return nil, err
		}
		b.WriteString(" ")
		b.Write(extra)
	}

	b.WriteString("\n")
	return []byte(b.String()), nil
}

// extraFields collects the optional parts of a text line. Absent fields are
// left out.
func extraFields(entry types.LogEntry) map[string]interface{} {
	extra := make(map[string]interface{}, 5)
	if entry.Meta != nil {
		extra["meta"] = entry.Meta
	}
	if entry.Context != nil {
		extra["context"] = entry.Context
	}
	if entry.Error != nil {
		extra["error"] = entry.Error
	}
	if entry.Tags != nil {
		extra["tags"] = entry.Tags
	}
	if entry.CorrelationID != "" {
		extra["correlationId"] = entry.CorrelationID
	}
	return extra
}
