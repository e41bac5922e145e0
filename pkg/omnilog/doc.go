// Package omnilog is a structured logging library built around a small
// dispatch pipeline: named loggers filter entries by level, build immutable
// entries and hand them to an ordered list of transports, directly or through
// a buffer controller that batches and persists pending entries.
//
// Key Features:
//
//   - Named loggers with per-name minimum level overrides
//   - Sync or background dispatch with per-transport failure isolation
//   - Optional buffering with size and timer triggered flushes
//   - Pluggable buffer stores (memory, JSON file, SQLite) for crash-safe backlogs
//   - Console, file, NATS and zap transports
//   - Atomic reconfiguration: old loggers become inert no-ops
//
// Basic Usage:
//
//	cfg := omnilog.DefaultConfig()
//	cfg.Transports = []types.Transport{transports.NewConsole(transports.ConsoleOptions{})}
//	if err := omnilog.Configure(cfg); err != nil {
//		log.Fatal(err)
//	}
//	defer omnilog.Shutdown(context.Background())
//
//	logger := omnilog.MustGetLogger("auth")
//	logger.Info("user logged in", types.Metadata{
//		Context: map[string]interface{}{"user_id": 42},
//	})
//
// Overrides:
//
//	cfg.Level = types.LevelInfo
//	cfg.Overrides = map[string]types.Level{"auth": types.LevelDebug}
//
// Only the "auth" logger emits debug entries; every other name keeps info.
//
// Buffering:
//
//	store, _ := stores.NewSQLiteStore("/var/lib/app/log-buffer.db")
//	cfg.Buffering = omnilog.DefaultBufferingConfig()
//	cfg.Buffering.Store = store
//
// Entries are persisted on every log call and flushed every 2 seconds, when
// 100 entries are pending, on Flush and on Shutdown. A backlog left by a
// crashed process is delivered ahead of new entries.
//
// Errors:
//
// Configure returns ErrNoTransports for an empty transport list and GetLogger
// returns ErrNotConfigured before Configure. Transport failures are never
// returned to the caller; they are passed to Config.OnError or, when unset,
// to Config.ErrorHandler.
package omnilog
