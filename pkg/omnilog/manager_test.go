package omnilog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wayneeseguin/omnilog/internal/metrics"
	"github.com/wayneeseguin/omnilog/pkg/stores"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

func TestGetLoggerBeforeConfigure(t *testing.T) {
	m := NewManager()
	if _, err := m.GetLogger("x"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("GetLogger error = %v, want ErrNotConfigured", err)
	}
	if m.Configured() {
		t.Error("new manager reports configured")
	}

	defer func() {
		if recover() == nil {
			t.Error("MustGetLogger did not panic")
		}
	}()
	m.MustGetLogger("x")
}

func TestConfigureRejectsEmptyTransports(t *testing.T) {
	m := NewManager()
	if err := m.Configure(Config{}); !errors.Is(err, ErrNoTransports) {
		t.Fatalf("Configure error = %v, want ErrNoTransports", err)
	}
	if m.Configured() {
		t.Error("failed Configure installed a configuration")
	}
}

func TestGetLoggerCaching(t *testing.T) {
	m := configuredManager(t, syncConfig(newMockTransport("t")))

	a := mustLogger(t, m, "auth")
	b := mustLogger(t, m, "auth")
	if a != b {
		t.Error("same name returned different loggers")
	}

	root := mustLogger(t, m, "")
	if root.Name() != RootLoggerName {
		t.Errorf("empty name gave %q, want root", root.Name())
	}
	if root != mustLogger(t, m, "root") {
		t.Error("\"\" and \"root\" are different loggers")
	}
}

func TestLevelFiltering(t *testing.T) {
	levels := []types.Level{types.LevelDebug, types.LevelInfo, types.LevelWarn, types.LevelError}

	for _, minimum := range levels {
		t.Run(minimum.String(), func(t *testing.T) {
			transport := newMockTransport("t")
			cfg := syncConfig(transport)
			cfg.Level = minimum
			m := configuredManager(t, cfg)
			logger := mustLogger(t, m, "app")

			for _, level := range levels {
				before := transport.Count()
				if err := logger.Log(context.Background(), level, level.String()); err != nil {
					t.Fatal(err)
				}
				dispatched := transport.Count() > before
				if dispatched != (level >= minimum) {
					t.Errorf("level %v with minimum %v: dispatched = %v", level, minimum, dispatched)
				}
				if logger.Enabled(level) != (level >= minimum) {
					t.Errorf("Enabled(%v) = %v with minimum %v", level, logger.Enabled(level), minimum)
				}
			}
		})
	}
}

func TestOverrideScenario(t *testing.T) {
	transport := newMockTransport("T")
	cfg := syncConfig(transport)
	cfg.Level = types.LevelInfo
	cfg.Overrides = map[string]types.Level{"auth": types.LevelDebug}
	m := configuredManager(t, cfg)

	if err := mustLogger(t, m, "auth").Debug("auth debug"); err != nil {
		t.Fatal(err)
	}
	if err := mustLogger(t, m, "root").Debug("root debug"); err != nil {
		t.Fatal(err)
	}
	if err := mustLogger(t, m, "billing").Debug("billing debug"); err != nil {
		t.Fatal(err)
	}

	if got := transport.Messages(); len(got) != 1 || got[0] != "auth debug" {
		t.Errorf("transport received %v, want only the auth entry", got)
	}
	if filtered := m.Metrics().EntriesFiltered; filtered != 2 {
		t.Errorf("EntriesFiltered = %d, want 2", filtered)
	}
}

func TestConfigureCopiesConfig(t *testing.T) {
	transport := newMockTransport("T")
	cfg := syncConfig(transport)
	cfg.Overrides = map[string]types.Level{"auth": types.LevelDebug}
	m := configuredManager(t, cfg)

	cfg.Overrides["auth"] = types.LevelError
	cfg.Transports[0] = newMockTransport("other")

	if err := mustLogger(t, m, "auth").Debug("still debug"); err != nil {
		t.Fatal(err)
	}
	if transport.Count() != 1 {
		t.Error("mutating the config after Configure changed behavior")
	}
}

func TestEntryFields(t *testing.T) {
	transport := newMockTransport("T")
	cfg := syncConfig(transport)
	cfg.Env = "production"
	m := configuredManager(t, cfg)
	logger := mustLogger(t, m, "api")

	ctx := WithCorrelationID(context.Background(), "corr-42")
	if err := logger.WarnContext(ctx, "slow request", types.Metadata{
		Tags: []string{"http"},
		Meta: map[string]interface{}{"ms": 1500},
	}); err != nil {
		t.Fatal(err)
	}

	entries := transport.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	e := entries[0]
	if e.LoggerName != "api" || e.Level != types.LevelWarn || e.Env != "production" || e.CorrelationID != "corr-42" {
		t.Errorf("entry = %+v", e)
	}
	if len(e.Tags) != 1 || e.Meta["ms"] != 1500 {
		t.Errorf("metadata = %v %v", e.Tags, e.Meta)
	}
	if e.Context != nil {
		t.Error("absent context became present")
	}
}

func TestLoggerHelpers(t *testing.T) {
	transport := newMockTransport("T")
	cfg := syncConfig(transport)
	cfg.Level = types.LevelDebug
	m := configuredManager(t, cfg)
	logger := mustLogger(t, m, "x")
	ctx := context.Background()

	logger.Debug("d")
	logger.Info("i")
	logger.Warn("w")
	logger.Error("e")
	logger.DebugContext(ctx, "dc")
	logger.InfoContext(ctx, "ic")
	logger.WarnContext(ctx, "wc")
	logger.ErrorContext(ctx, "ec")

	want := []types.Level{
		types.LevelDebug, types.LevelInfo, types.LevelWarn, types.LevelError,
		types.LevelDebug, types.LevelInfo, types.LevelWarn, types.LevelError,
	}
	entries := transport.Entries()
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.Level != want[i] {
			t.Errorf("entry %d (%s) level = %v, want %v", i, e.Message, e.Level, want[i])
		}
	}
}

func TestTransportFailureIsolationThroughLogger(t *testing.T) {
	failing := newMockTransport("A")
	failing.err = errors.New("unavailable")
	healthy := newMockTransport("B")
	hooks := &hookRecorder{}

	cfg := syncConfig(failing, healthy)
	cfg.OnError = hooks.hook
	m := configuredManager(t, cfg)

	if err := mustLogger(t, m, "x").Info("hello"); err != nil {
		t.Fatalf("transport error leaked to caller: %v", err)
	}
	if healthy.Count() != 1 {
		t.Error("B did not receive the entry")
	}
	if reports := hooks.Reports(); len(reports) != 1 || reports[0].transport != "A" {
		t.Errorf("reports = %+v", reports)
	}
	if m.Metrics().ErrorsByTransport["A"] != 1 {
		t.Errorf("ErrorsByTransport = %v", m.Metrics().ErrorsByTransport)
	}
}

func TestBackgroundDispatch(t *testing.T) {
	transport := newMockTransport("T")
	cfg := syncConfig(transport)
	cfg.AsyncMode = AsyncBackground
	m := configuredManager(t, cfg)
	logger := mustLogger(t, m, "bg")

	for i := 0; i < 20; i++ {
		if err := logger.Info(fmt.Sprintf("m%02d", i)); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got := transport.Messages()
	if len(got) != 20 {
		t.Fatalf("delivered %d entries, want 20", len(got))
	}
	for i, msg := range got {
		if msg != fmt.Sprintf("m%02d", i) {
			t.Fatalf("background dispatch reordered entries: %v", got)
		}
	}
}

func TestBackgroundDispatchDetachesCancellation(t *testing.T) {
	transport := newMockTransport("T")
	var seen error
	var mu sync.Mutex
	probe := types.TransportFunc("probe", func(ctx context.Context, entry types.LogEntry) error {
		mu.Lock()
		seen = ctx.Err()
		mu.Unlock()
		return nil
	})

	cfg := syncConfig(transport, probe)
	cfg.AsyncMode = AsyncBackground
	m := configuredManager(t, cfg)

	ctx, cancel := context.WithCancel(WithCorrelationID(context.Background(), "c1"))
	if err := mustLogger(t, m, "x").InfoContext(ctx, "after return"); err != nil {
		t.Fatal(err)
	}
	cancel()

	if err := m.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if seen != nil {
		t.Errorf("background dispatch saw canceled context: %v", seen)
	}
	if entries := transport.Entries(); len(entries) != 1 || entries[0].CorrelationID != "c1" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestBackgroundQueueFull(t *testing.T) {
	entered := make(chan struct{}, 10)
	release := make(chan struct{})
	blocking := &blockingTransport{entered: entered, release: release}
	collected := &errorCollector{}

	cfg := syncConfig(blocking)
	cfg.AsyncMode = AsyncBackground
	cfg.ChannelSize = 1
	cfg.ErrorHandler = collected.handle
	m := configuredManager(t, cfg)
	logger := mustLogger(t, m, "x")

	logger.Info("first")
	<-entered // worker is busy with the first entry

	logger.Info("second") // fills the queue
	if err := logger.Info("third"); err != nil {
		t.Errorf("dropped entry returned error %v to caller", err)
	}

	if dropped := m.Metrics().EntriesDropped; dropped != 1 {
		t.Errorf("EntriesDropped = %d, want 1", dropped)
	}
	if !collected.has(ErrQueueFull) {
		t.Error("ErrQueueFull not reported")
	}

	close(release)
	if err := m.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := blocking.Messages(); strings.Join(got, ",") != "first,second" {
		t.Errorf("delivered %v", got)
	}
}

// blockingTransport signals on entered and waits for release on every call.
type blockingTransport struct {
	entered chan struct{}
	release chan struct{}

	mu       sync.Mutex
	messages []string
}

func (b *blockingTransport) Name() string { return "blocking" }

func (b *blockingTransport) Log(ctx context.Context, entry types.LogEntry) error {
	b.entered <- struct{}{}
	<-b.release
	b.mu.Lock()
	b.messages = append(b.messages, entry.Message)
	b.mu.Unlock()
	return nil
}

func (b *blockingTransport) Messages() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.messages...)
}

func TestBufferingMaxSizeScenario(t *testing.T) {
	var mu sync.Mutex
	var batches [][]string
	var current []string
	transport := types.TransportFunc("T", func(ctx context.Context, entry types.LogEntry) error {
		mu.Lock()
		defer mu.Unlock()
		current = append(current, entry.Message)
		if len(current) == 3 {
			batches = append(batches, current)
			current = nil
		}
		return nil
	})

	cfg := syncConfig(transport)
	cfg.Buffering = &BufferingConfig{Enabled: true, MaxBufferSize: 3}
	m := configuredManager(t, cfg)
	logger := mustLogger(t, m, "buffered")

	for _, msg := range []string{"one", "two"} {
		if err := logger.Info(msg); err != nil {
			t.Fatal(err)
		}
	}
	if m.Metrics().BufferedEntries != 2 {
		t.Errorf("BufferedEntries = %d, want 2", m.Metrics().BufferedEntries)
	}
	if err := logger.Info("three"); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(batches))
	}
	if strings.Join(batches[0], ",") != "one,two,three" {
		t.Errorf("batch = %v", batches[0])
	}
	if m.Metrics().Flushes != 1 {
		t.Errorf("Flushes = %d, want 1", m.Metrics().Flushes)
	}
}

func TestBufferingFlushIgnoresCallerCancellation(t *testing.T) {
	var mu sync.Mutex
	var delivered []string
	transport := types.TransportFunc("T", func(ctx context.Context, entry types.LogEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, entry.Message)
		return nil
	})

	cfg := syncConfig(transport)
	cfg.Buffering = &BufferingConfig{Enabled: true, MaxBufferSize: 3}
	m := configuredManager(t, cfg)

	a := mustLogger(t, m, "a")
	for _, msg := range []string{"one", "two"} {
		if err := a.Info(msg); err != nil {
			t.Fatal(err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := mustLogger(t, m, "b").InfoContext(ctx, "three"); err != nil {
		t.Fatalf("InfoContext: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if strings.Join(delivered, ",") != "one,two,three" {
		t.Errorf("delivered = %v, want [one two three]", delivered)
	}
	if got := m.Metrics().BufferedEntries; got != 0 {
		t.Errorf("BufferedEntries = %d, want 0", got)
	}
}

func TestRouteToRetiredStateCountsDropped(t *testing.T) {
	buffered := syncConfig(newMockTransport("T"))
	buffered.Buffering = &BufferingConfig{Enabled: true}

	background := syncConfig(newMockTransport("T"))
	background.AsyncMode = AsyncBackground

	tests := []struct {
		name string
		cfg  Config
	}{
		{"buffered", buffered},
		{"background", background},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			if err := cfg.Validate(); err != nil {
				t.Fatal(err)
			}
			collector := metrics.NewCollector()
			s := newConfigState(cfg, 1, collector)
			<-s.retire()

			if err := s.route(context.Background(), newEntry(context.Background(), "late", types.LevelInfo, "m", types.Metadata{}, "")); err != nil {
				t.Errorf("route after retire = %v, want nil", err)
			}
			if got := collector.Snapshot().EntriesDropped; got != 1 {
				t.Errorf("EntriesDropped = %d, want 1", got)
			}
		})
	}
}

func TestBufferingStoreErrorReturned(t *testing.T) {
	store := &brokenStore{err: errors.New("read-only filesystem")}
	cfg := syncConfig(newMockTransport("T"))
	cfg.Buffering = &BufferingConfig{Enabled: true, Store: store}
	m := configuredManager(t, cfg)

	if err := mustLogger(t, m, "x").Info("m"); !errors.Is(err, store.err) {
		t.Errorf("Info error = %v, want store error", err)
	}
}

type brokenStore struct{ err error }

func (s *brokenStore) Load(ctx context.Context) ([]types.LogEntry, error) { return nil, nil }
func (s *brokenStore) Save(ctx context.Context, entries []types.LogEntry) error {
	return s.err
}
func (s *brokenStore) Clear(ctx context.Context) error { return nil }

func TestBufferingBacklogDeliveredFirst(t *testing.T) {
	ctx := context.Background()
	store := stores.NewMemoryStore()
	backlog := []types.LogEntry{testEntry("crashed-1"), testEntry("crashed-2")}
	if err := store.Save(ctx, backlog); err != nil {
		t.Fatal(err)
	}

	transport := newMockTransport("T")
	cfg := syncConfig(transport)
	cfg.Buffering = &BufferingConfig{Enabled: true, MaxBufferSize: 10, Store: store}
	m := configuredManager(t, cfg)

	if err := mustLogger(t, m, "x").Info("fresh"); err != nil {
		t.Fatal(err)
	}
	if err := m.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	if got := strings.Join(transport.Messages(), ","); got != "crashed-1,crashed-2,fresh" {
		t.Errorf("delivered %s", got)
	}
}

func TestReconfigureDiscardsLoggers(t *testing.T) {
	first := newMockTransport("first")
	cfg := syncConfig(first)
	cfg.Buffering = &BufferingConfig{Enabled: true, MaxBufferSize: 100}
	m := configuredManager(t, cfg)

	before := mustLogger(t, m, "x")
	if err := before.Info("buffered under first"); err != nil {
		t.Fatal(err)
	}

	second := newMockTransport("second")
	cfg2 := syncConfig(second)
	cfg2.Buffering = &BufferingConfig{Enabled: true, MaxBufferSize: 100}
	if err := m.Configure(cfg2); err != nil {
		t.Fatal(err)
	}

	after := mustLogger(t, m, "x")
	if before == after {
		t.Fatal("logger survived reconfiguration")
	}
	if before.state.buffer == after.state.buffer {
		t.Fatal("loggers share a buffer controller across configurations")
	}
	if !before.IsStale() || after.IsStale() {
		t.Errorf("stale flags: before=%v after=%v", before.IsStale(), after.IsStale())
	}

	// The old configuration's pending entry is flushed to the old transports
	waitFor(t, time.Second, func() bool { return first.Count() == 1 })

	if err := before.Info("ignored"); err != nil {
		t.Errorf("stale logger returned %v", err)
	}
	if before.Enabled(types.LevelError) {
		t.Error("stale logger reports enabled")
	}
	if err := after.Info("buffered under second"); err != nil {
		t.Fatal(err)
	}
	if after.state.buffered() != 1 {
		t.Errorf("new buffer holds %d entries, want 1", after.state.buffered())
	}

	if err := m.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := second.Messages(); len(got) != 1 || got[0] != "buffered under second" {
		t.Errorf("second transport received %v", got)
	}
	if first.Count() != 1 {
		t.Errorf("first transport received %d entries, stale logger leaked", first.Count())
	}
}

func TestShutdown(t *testing.T) {
	transport := newMockTransport("T")
	cfg := syncConfig(transport)
	cfg.Buffering = &BufferingConfig{Enabled: true, MaxBufferSize: 100, FlushInterval: time.Hour}

	m := NewManager()
	if err := m.Configure(cfg); err != nil {
		t.Fatal(err)
	}
	logger := mustLogger(t, m, "x")
	logger.Info("pending at shutdown")

	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if transport.Count() != 1 {
		t.Errorf("final flush delivered %d entries, want 1", transport.Count())
	}
	transport.mu.Lock()
	closed := transport.closed
	transport.mu.Unlock()
	if closed != 1 {
		t.Errorf("transport closed %d times, want 1", closed)
	}

	if _, err := m.GetLogger("x"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("GetLogger after shutdown error = %v", err)
	}
	if !logger.IsStale() {
		t.Error("logger not stale after shutdown")
	}
	if err := m.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}

func TestShutdownHonorsContext(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	defer close(release)

	cfg := syncConfig(&blockingTransport{entered: entered, release: release})
	cfg.AsyncMode = AsyncBackground
	m := NewManager()
	if err := m.Configure(cfg); err != nil {
		t.Fatal(err)
	}
	mustLogger(t, m, "x").Info("stuck")
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Shutdown error = %v, want deadline exceeded", err)
	}
}

func TestConcurrentLoggingAndReconfigure(t *testing.T) {
	m := configuredManager(t, syncConfig(newMockTransport("T0")))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				logger, err := m.GetLogger(fmt.Sprintf("g%d", g))
				if err != nil {
					t.Errorf("GetLogger: %v", err)
					return
				}
				logger.Info("tick")
			}
		}(g)
	}

	for i := 1; i <= 5; i++ {
		cfg := syncConfig(newMockTransport(fmt.Sprintf("T%d", i)))
		if i%2 == 0 {
			cfg.AsyncMode = AsyncBackground
		} else {
			cfg.Buffering = &BufferingConfig{Enabled: true, MaxBufferSize: 4}
		}
		if err := m.Configure(cfg); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	close(stop)
	wg.Wait()

	if m.Generation() != 6 {
		t.Errorf("Generation() = %d, want 6", m.Generation())
	}
}

func TestDefaultManagerFunctions(t *testing.T) {
	transport := newMockTransport("T")
	if err := Configure(syncConfig(transport)); err != nil {
		t.Fatal(err)
	}
	defer Shutdown(context.Background())

	if Default().MustGetLogger("") != MustGetLogger(RootLoggerName) {
		t.Error("package functions do not share the default manager")
	}

	Debug("filtered")
	Info("i")
	Warn("w")
	Error("e")
	if err := Flush(context.Background()); err != nil {
		t.Fatal(err)
	}

	got := transport.Entries()
	if len(got) != 3 {
		t.Fatalf("root logger delivered %d entries, want 3", len(got))
	}
	for _, e := range got {
		if e.LoggerName != RootLoggerName {
			t.Errorf("logger name = %q", e.LoggerName)
		}
	}

	if err := Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := Info("after shutdown"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Info after shutdown error = %v", err)
	}
	if _, err := GetLogger("x"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("GetLogger after shutdown error = %v", err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
