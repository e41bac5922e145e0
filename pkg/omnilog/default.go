package omnilog

import (
	"context"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

var defaultManager = NewManager()

// Default returns the process-wide Manager used by the package-level functions.
func Default() *Manager {
	return defaultManager
}

// Configure installs cfg on the default Manager.
func Configure(cfg Config) error {
	return defaultManager.Configure(cfg)
}

// GetLogger returns a logger from the default Manager.
func GetLogger(name string) (*Logger, error) {
	return defaultManager.GetLogger(name)
}

// MustGetLogger returns a logger from the default Manager or panics.
func MustGetLogger(name string) *Logger {
	return defaultManager.MustGetLogger(name)
}

// Flush drains the default Manager.
func Flush(ctx context.Context) error {
	return defaultManager.Flush(ctx)
}

// Shutdown shuts the default Manager down.
func Shutdown(ctx context.Context) error {
	return defaultManager.Shutdown(ctx)
}

// Debug logs through the root logger of the default Manager.
func Debug(msg string, md ...types.Metadata) error {
	return logRoot(types.LevelDebug, msg, md)
}

// Info logs through the root logger of the default Manager.
func Info(msg string, md ...types.Metadata) error {
	return logRoot(types.LevelInfo, msg, md)
}

// Warn logs through the root logger of the default Manager.
func Warn(msg string, md ...types.Metadata) error {
	return logRoot(types.LevelWarn, msg, md)
}

// Error logs through the root logger of the default Manager.
func Error(msg string, md ...types.Metadata) error {
	return logRoot(types.LevelError, msg, md)
}

func logRoot(level types.Level, msg string, md []types.Metadata) error {
	logger, err := defaultManager.GetLogger(RootLoggerName)
	if err != nil {
		return err
	}
	return logger.Log(context.Background(), level, msg, md...)
}
