package omnilog

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

// mockTransport records every entry it receives.
type mockTransport struct {
	name string
	err  error

	mu      sync.Mutex
	entries []types.LogEntry
	closed  int
}

func newMockTransport(name string) *mockTransport {
	return &mockTransport{name: name}
}

func (m *mockTransport) Name() string { return m.name }

func (m *mockTransport) Log(ctx context.Context, entry types.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *mockTransport) Entries() []types.LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.LogEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *mockTransport) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *mockTransport) Messages() []string {
	entries := m.Entries()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

// hookRecorder collects OnError reports.
type hookRecorder struct {
	mu      sync.Mutex
	reports []hookReport
}

type hookReport struct {
	err       error
	entry     types.LogEntry
	transport string
}

func (h *hookRecorder) hook(err error, entry *types.LogEntry, transportName string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reports = append(h.reports, hookReport{err: err, entry: *entry, transport: transportName})
}

func (h *hookRecorder) Reports() []hookReport {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]hookReport, len(h.reports))
	copy(out, h.reports)
	return out
}

// errorCollector is an ErrorHandler that keeps what it receives.
type errorCollector struct {
	mu     sync.Mutex
	errors []LogError
}

func (c *errorCollector) handle(err LogError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, err)
}

func (c *errorCollector) Errors() []LogError {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]LogError, len(c.errors))
	copy(out, c.errors)
	return out
}

func (c *errorCollector) has(target error) bool {
	for _, e := range c.Errors() {
		if errors.Is(e, target) {
			return true
		}
	}
	return false
}

// syncConfig returns a config that dispatches inline to transports.
func syncConfig(transports ...types.Transport) Config {
	cfg := DefaultConfig()
	cfg.AsyncMode = AsyncSync
	cfg.Transports = transports
	cfg.ErrorHandler = SilentErrorHandler
	return cfg
}

func configuredManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	m := NewManager()
	if err := m.Configure(cfg); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	t.Cleanup(func() {
		m.Shutdown(context.Background())
	})
	return m
}

func mustLogger(t *testing.T, m *Manager, name string) *Logger {
	t.Helper()
	logger, err := m.GetLogger(name)
	if err != nil {
		t.Fatalf("GetLogger(%q): %v", name, err)
	}
	return logger
}
