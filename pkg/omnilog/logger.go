package omnilog

import (
	"context"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

// Logger is a named façade over the configuration that was active when it was
// created. After the next Configure or Shutdown it becomes stale and every
// method turns into a no-op; fetch a new one with GetLogger.
type Logger struct {
	name    string
	state   *configState
	manager *Manager
}

// Name returns the logger name.
func (l *Logger) Name() string {
	return l.name
}

// IsStale reports whether the configuration this logger was created under
// has been replaced.
func (l *Logger) IsStale() bool {
	return l.manager.generation.Load() != l.state.generation
}

// Enabled reports whether an entry at level would pass the level filter.
func (l *Logger) Enabled(level types.Level) bool {
	if l.IsStale() {
		return false
	}
	return l.state.cfg.ShouldLog(l.name, level)
}

// Log emits an entry at level. md is optional; several values are merged.
//
// The returned error only reflects buffering: with buffering enabled it is the
// result of the enqueue and any flush the enqueue triggered. Transport failures
// are never returned; they go to the configured OnError hook.
//
// Example:
//
//	err := logger.Log(ctx, types.LevelWarn, "disk almost full", types.Metadata{
//		Tags: []string{"storage"},
//		Meta: map[string]interface{}{"free_bytes": free},
//	})
func (l *Logger) Log(ctx context.Context, level types.Level, msg string, md ...types.Metadata) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if l.IsStale() {
		return nil
	}

	s := l.state
	if !s.cfg.ShouldLog(l.name, level) {
		s.metrics.TrackFiltered()
		return nil
	}

	entry := newEntry(ctx, l.name, level, msg, mergeMetadata(md), s.cfg.Env)
	s.metrics.TrackEntry(level)
	return s.route(ctx, entry)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, md ...types.Metadata) error {
	return l.Log(context.Background(), types.LevelDebug, msg, md...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, md ...types.Metadata) error {
	return l.Log(context.Background(), types.LevelInfo, msg, md...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, md ...types.Metadata) error {
	return l.Log(context.Background(), types.LevelWarn, msg, md...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, md ...types.Metadata) error {
	return l.Log(context.Background(), types.LevelError, msg, md...)
}

// DebugContext logs a debug message with ctx.
func (l *Logger) DebugContext(ctx context.Context, msg string, md ...types.Metadata) error {
	return l.Log(ctx, types.LevelDebug, msg, md...)
}

// InfoContext logs an info message with ctx.
func (l *Logger) InfoContext(ctx context.Context, msg string, md ...types.Metadata) error {
	return l.Log(ctx, types.LevelInfo, msg, md...)
}

// WarnContext logs a warning message with ctx.
func (l *Logger) WarnContext(ctx context.Context, msg string, md ...types.Metadata) error {
	return l.Log(ctx, types.LevelWarn, msg, md...)
}

// ErrorContext logs an error message with ctx.
func (l *Logger) ErrorContext(ctx context.Context, msg string, md ...types.Metadata) error {
	return l.Log(ctx, types.LevelError, msg, md...)
}

// Flush drains buffered and background entries of the logger's configuration.
func (l *Logger) Flush(ctx context.Context) error {
	if l.IsStale() {
		return nil
	}
	return l.state.flush(ctx)
}
