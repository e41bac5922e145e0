package transports

import (
	"context"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

// ZapTransport forwards entries to a zap logger, for applications whose
// existing log pipeline is built on zap.
type ZapTransport struct {
	name   string
	logger *zap.Logger
}

// NewZap creates a transport writing to logger.
func NewZap(logger *zap.Logger) *ZapTransport {
	return &ZapTransport{name: "zap", logger: logger}
}

// NewZapNamed is NewZap with a custom transport name.
func NewZapNamed(name string, logger *zap.Logger) *ZapTransport {
	t := NewZap(logger)
	if name != "" {
		t.name = name
	}
	return t
}

// Name implements types.Transport.
func (t *ZapTransport) Name() string {
	return t.name
}

// Log implements types.Transport.
func (t *ZapTransport) Log(ctx context.Context, entry types.LogEntry) error {
	ce := t.logger.Named(entry.LoggerName).Check(zapLevel(entry.Level), entry.Message)
	if ce == nil {
		return nil
	}
	ce.Write(zapFields(entry)...)
	return nil
}

// Close flushes the zap logger. Sync errors from terminals and pipes, which
// cannot be fsynced, are ignored.
func (t *ZapTransport) Close() error {
	err := t.logger.Sync()
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
		return nil
	}
	return errors.Wrap(err, "sync zap logger")
}

func zapLevel(level types.Level) zapcore.Level {
	switch level {
	case types.LevelDebug:
		return zapcore.DebugLevel
	case types.LevelWarn:
		return zapcore.WarnLevel
	case types.LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func zapFields(entry types.LogEntry) []zap.Field {
	fields := make([]zap.Field, 0, 8)
	fields = append(fields,
		zap.String("entry_id", entry.ID),
		zap.String("entry_time", entry.Timestamp),
	)
	if entry.Tags != nil {
		fields = append(fields, zap.Strings("tags", entry.Tags))
	}
	if entry.Context != nil {
		fields = append(fields, zap.Any("context", entry.Context))
	}
	if entry.Meta != nil {
		fields = append(fields, zap.Any("meta", entry.Meta))
	}
	if entry.Error != nil {
		fields = append(fields, zap.Object("error", errorInfoMarshaler(*entry.Error)))
	}
	if entry.Env != "" {
		fields = append(fields, zap.String("env", entry.Env))
	}
	if entry.CorrelationID != "" {
		fields = append(fields, zap.String("correlation_id", entry.CorrelationID))
	}
	return fields
}

type errorInfoMarshaler types.ErrorInfo

func (e errorInfoMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("name", e.Name)
	enc.AddString("message", e.Message)
	if e.Stack != "" {
		enc.AddString("stack", e.Stack)
	}
	return nil
}
