package omnilog

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/wayneeseguin/omnilog/internal/metrics"
)

// RootLoggerName is the name used by GetLogger("").
const RootLoggerName = "root"

// Manager owns the active configuration and the loggers created under it.
// Configure swaps both atomically: concurrent readers see either the old or
// the new configuration, never a mix.
type Manager struct {
	mu      sync.RWMutex
	state   *configState
	loggers map[string]*Logger

	generation atomic.Uint64
	metrics    *metrics.Collector
}

// NewManager creates an unconfigured Manager.
func NewManager() *Manager {
	return &Manager{metrics: metrics.NewCollector()}
}

// Configure validates cfg and installs it as the active configuration. Loggers
// obtained before the call become stale, and the buffer controller of the
// previous configuration is disposed with a best-effort final flush that the
// call does not wait for.
//
// Configure works on a copy: changing cfg afterwards has no effect.
func (m *Manager) Configure(cfg Config) error {
	cfg = cfg.clone()
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	generation := m.generation.Add(1)
	previous := m.state
	m.state = newConfigState(cfg, generation, m.metrics)
	m.loggers = make(map[string]*Logger)
	m.mu.Unlock()

	if previous != nil {
		previous.retire()
	}
	return nil
}

// GetLogger returns the logger called name, creating it on first use. The
// empty name means RootLoggerName. Repeated calls under the same
// configuration return the same *Logger.
func (m *Manager) GetLogger(name string) (*Logger, error) {
	if name == "" {
		name = RootLoggerName
	}

	m.mu.RLock()
	if m.state == nil {
		m.mu.RUnlock()
		return nil, ErrNotConfigured
	}
	if logger, ok := m.loggers[name]; ok {
		m.mu.RUnlock()
		return logger, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, ErrNotConfigured
	}
	if logger, ok := m.loggers[name]; ok {
		return logger, nil
	}

	logger := &Logger{name: name, state: m.state, manager: m}
	m.loggers[name] = logger
	return logger, nil
}

// MustGetLogger is like GetLogger but panics when the manager is not configured.
func (m *Manager) MustGetLogger(name string) *Logger {
	logger, err := m.GetLogger(name)
	if err != nil {
		panic(err)
	}
	return logger
}

// Flush drains buffered and background entries of the active configuration.
// It is a no-op when nothing is configured.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.RLock()
	state := m.state
	m.mu.RUnlock()

	if state == nil {
		return nil
	}
	return state.flush(ctx)
}

// Shutdown retires the active configuration, waits for its final flush and
// background drain (bounded by ctx) and closes every transport implementing
// io.Closer. Afterwards GetLogger returns ErrNotConfigured until the next
// Configure.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	state := m.state
	m.state = nil
	m.loggers = nil
	m.generation.Add(1)
	m.mu.Unlock()

	if state == nil {
		return nil
	}

	var err error
	select {
	case flushErr := <-state.retire():
		err = multierr.Append(err, flushErr)
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "omnilog: shutdown")
	}

	for _, transport := range state.cfg.Transports {
		if closer, ok := transport.(io.Closer); ok {
			if cerr := closer.Close(); cerr != nil {
				err = multierr.Append(err, errors.Wrapf(cerr, "close transport %s", transport.Name()))
			}
		}
	}
	return err
}

// Configured reports whether a configuration is active.
func (m *Manager) Configured() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state != nil
}

// Generation returns the number of configurations installed or retired so far.
func (m *Manager) Generation() uint64 {
	return m.generation.Load()
}
