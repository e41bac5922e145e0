package formatters

import (
	"bytes"
	"encoding/json"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

// JSONFormatter renders each entry as one JSON object per line, using the
// LogEntry encoding.
type JSONFormatter struct {
	Indent bool
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Format formats an entry as a JSON line
func (f *JSONFormatter) Format(entry types.LogEntry) ([]byte, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		if data, err = json.Marshal(sanitizeEntry(entry)); err != nil {
			return nil, err
		}
	}

	if f.Indent {
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return nil, err
		}
		data = buf.Bytes()
	}

	return append(data, '\n'), nil
}
