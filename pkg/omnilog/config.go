package omnilog

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/wayneeseguin/omnilog/internal/buffer"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

// AsyncMode controls whether a log call waits for dispatch.
type AsyncMode int

const (
	// AsyncBackground hands the entry to a background worker and returns at once.
	AsyncBackground AsyncMode = iota
	// AsyncSync dispatches to every transport before the log call returns.
	AsyncSync
	// AsyncAwait behaves like AsyncSync.
	AsyncAwait
)

// String returns the configuration name of the mode.
func (m AsyncMode) String() string {
	switch m {
	case AsyncBackground:
		return "background"
	case AsyncSync:
		return "sync"
	case AsyncAwait:
		return "await"
	default:
		return fmt.Sprintf("async(%d)", int(m))
	}
}

func (m AsyncMode) valid() bool {
	return m >= AsyncBackground && m <= AsyncAwait
}

// waits reports whether log calls in this mode block until dispatch completes.
func (m AsyncMode) waits() bool {
	return m == AsyncSync || m == AsyncAwait
}

// ParseAsyncMode converts "sync", "await" or "background" (any case) to an AsyncMode.
// The empty string selects AsyncBackground.
func ParseAsyncMode(s string) (AsyncMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "background":
		return AsyncBackground, nil
	case "sync":
		return AsyncSync, nil
	case "await":
		return AsyncAwait, nil
	default:
		return AsyncBackground, errors.Wrapf(ErrInvalidAsyncMode, "%q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m AsyncMode) MarshalText() ([]byte, error) {
	if !m.valid() {
		return nil, errors.Wrapf(ErrInvalidAsyncMode, "%d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *AsyncMode) UnmarshalText(text []byte) error {
	parsed, err := ParseAsyncMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// BufferingConfig enables batching of entries through a buffer store.
type BufferingConfig struct {
	Enabled bool

	// MaxBufferSize is the pending entry count that triggers a flush (default 100).
	MaxBufferSize int

	// FlushInterval is the period of the flush timer. Zero disables the timer,
	// so a literal &BufferingConfig{Enabled: true} only flushes on size, Flush
	// and Shutdown. Start from DefaultBufferingConfig for the 2s timer.
	FlushInterval time.Duration

	// Store persists pending entries. Defaults to an in-memory store.
	Store types.BufferStore

	// ClearAfterSuccess removes a batch from the store only after every entry
	// reached at least one transport, re-queuing it otherwise. The default
	// clears the store before dispatch.
	ClearAfterSuccess bool
}

// DefaultBufferingConfig returns an enabled buffering configuration with the
// default size threshold and a 2 second flush timer.
func DefaultBufferingConfig() *BufferingConfig {
	return &BufferingConfig{
		Enabled:       true,
		MaxBufferSize: buffer.DefaultMaxBufferSize,
		FlushInterval: buffer.DefaultFlushInterval,
	}
}

// Config is the process-wide logging configuration installed by Configure.
type Config struct {
	// Core settings
	Level      types.Level       // Baseline minimum level
	AsyncMode  AsyncMode         // Dispatch policy when buffering is off
	Env        string            // Default env for entries that do not set one
	Transports []types.Transport // Ordered, non-empty

	// Per-logger minimum levels, superseding Level for that name only
	Overrides map[string]types.Level

	// Buffering, nil or disabled dispatches each entry directly
	Buffering *BufferingConfig

	// Transport failure hook; failures go to ErrorHandler when nil
	OnError ErrorHook

	// Background queue depth (default 100 or OMNILOG_CHANNEL_SIZE)
	ChannelSize int

	// Internal diagnostics sink (default stderr, silent under go test)
	ErrorHandler ErrorHandler
}

// DefaultConfig returns a Config with sensible defaults: info level,
// background dispatch, no buffering. Transports must still be added.
//
// Example:
//
//	cfg := omnilog.DefaultConfig()
//	cfg.Transports = []types.Transport{transports.NewConsole(transports.ConsoleOptions{})}
//	if err := omnilog.Configure(cfg); err != nil {
//		log.Fatal(err)
//	}
func DefaultConfig() Config {
	return Config{
		Level:        types.LevelInfo,
		AsyncMode:    AsyncBackground,
		ChannelSize:  getDefaultChannelSize(),
		ErrorHandler: getDefaultErrorHandler(),
	}
}

// Validate checks the configuration and applies defaults where necessary.
// It's called by Configure on a private copy.
//
// The following validations are performed:
//   - at least one transport, none nil
//   - Level, override levels and AsyncMode are known values
//   - ChannelSize > 0 (defaulted)
//   - buffering MaxBufferSize > 0 (defaulted) and FlushInterval >= 0
func (c *Config) Validate() error {
	if len(c.Transports) == 0 {
		return ErrNoTransports
	}
	for i, t := range c.Transports {
		if t == nil {
			return errors.Wrapf(ErrNilTransport, "transport %d", i)
		}
	}

	if !c.Level.Valid() {
		return errors.Errorf("omnilog: invalid level %d", int(c.Level))
	}
	for name, level := range c.Overrides {
		if !level.Valid() {
			return errors.Errorf("omnilog: invalid level %d for override %q", int(level), name)
		}
	}
	if !c.AsyncMode.valid() {
		return errors.Wrapf(ErrInvalidAsyncMode, "%d", int(c.AsyncMode))
	}

	if c.ChannelSize <= 0 {
		c.ChannelSize = getDefaultChannelSize()
	}
	if c.ErrorHandler == nil {
		c.ErrorHandler = getDefaultErrorHandler()
	}

	if c.Buffering != nil {
		if c.Buffering.MaxBufferSize <= 0 {
			c.Buffering.MaxBufferSize = buffer.DefaultMaxBufferSize
		}
		if c.Buffering.FlushInterval < 0 {
			return errors.Errorf("omnilog: negative flush interval %s", c.Buffering.FlushInterval)
		}
	}

	return nil
}

// ShouldLog reports whether an entry at level from the logger called name
// passes the filter. An override for name replaces the baseline level.
func (c *Config) ShouldLog(name string, level types.Level) bool {
	minimum := c.Level
	if override, ok := c.Overrides[name]; ok {
		minimum = override
	}
	return level >= minimum
}

// bufferingEnabled reports whether entries go through a buffer controller.
func (c *Config) bufferingEnabled() bool {
	return c.Buffering != nil && c.Buffering.Enabled
}

// clone copies the containers of c so later caller mutation has no effect.
func (c Config) clone() Config {
	out := c
	out.Transports = make([]types.Transport, len(c.Transports))
	copy(out.Transports, c.Transports)

	if c.Overrides != nil {
		out.Overrides = make(map[string]types.Level, len(c.Overrides))
		for name, level := range c.Overrides {
			out.Overrides[name] = level
		}
	}
	if c.Buffering != nil {
		b := *c.Buffering
		out.Buffering = &b
	}
	return out
}
