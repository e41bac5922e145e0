package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Level is the severity of a log entry. Levels are totally ordered:
// LevelDebug < LevelInfo < LevelWarn < LevelError.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Upper returns the uppercase level name as used in text output.
func (l Level) Upper() string {
	return strings.ToUpper(l.String())
}

// Valid reports whether l is one of the four defined levels.
func (l Level) Valid() bool {
	return l >= LevelDebug && l <= LevelError
}

// ParseLevel converts a level name (any case) to a Level.
// "warning" is accepted as an alias for warn.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.Errorf("unknown log level %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, errors.Errorf("invalid log level %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It is used by the JSON,
// YAML and TOML decoders.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MarshalJSON encodes the level as its name.
func (l Level) MarshalJSON() ([]byte, error) {
	text, err := l.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON accepts the level name.
func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "log level must be a string")
	}
	return l.UnmarshalText([]byte(s))
}
