package omnilog

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

var (
	// ErrNoTransports is returned by Configure when the transport list is empty.
	ErrNoTransports = errors.New("omnilog: at least one transport is required")

	// ErrNotConfigured is returned by GetLogger before Configure or after Shutdown.
	ErrNotConfigured = errors.New("omnilog: not configured, call Configure first")

	// ErrNilTransport is returned by Configure when a transport is nil.
	ErrNilTransport = errors.New("omnilog: nil transport")

	// ErrInvalidAsyncMode is returned by Configure for an unknown AsyncMode.
	ErrInvalidAsyncMode = errors.New("omnilog: invalid async mode")

	// ErrQueueFull is reported when the background queue cannot accept an entry.
	ErrQueueFull = errors.New("omnilog: background queue full, entry dropped")

	// ErrDeliveryFailed is returned by a batch dispatch when at least one entry
	// reached none of the transports.
	ErrDeliveryFailed = errors.New("omnilog: entry not delivered to any transport")
)

// ErrorHook receives transport failures. entry is the entry being dispatched and
// transportName the Name() of the failing transport. A hook must not block for
// long; it runs on the dispatch path.
type ErrorHook func(err error, entry *types.LogEntry, transportName string)

// ErrorLevel is the severity of an internal diagnostic.
type ErrorLevel int

const (
	// ErrorLevelLow represents minor errors that don't affect delivery
	ErrorLevelLow ErrorLevel = iota
	// ErrorLevelWarn represents dropped or delayed entries
	ErrorLevelWarn
	// ErrorLevelMedium represents a failed transport or flush
	ErrorLevelMedium
	// ErrorLevelHigh represents failures of the logging pipeline itself
	ErrorLevelHigh
)

// LogError describes a failure inside the logging pipeline.
type LogError struct {
	Operation   string     // The operation that failed (dispatch, flush, enqueue, ...)
	Destination string     // The transport or component where the error occurred
	Message     string     // Human readable error message
	Err         error      // The underlying error
	Level       ErrorLevel // The severity level of the error
	Timestamp   time.Time  // When the error occurred
}

// Error implements the error interface
func (e LogError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s", e.Operation, e.Destination, e.Message)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Operation, e.Destination, e.Message, e.Err)
}

// Unwrap returns the underlying error
func (e LogError) Unwrap() error {
	return e.Err
}

// ErrorHandler defines a function type for handling internal logging errors
type ErrorHandler func(err LogError)

// SilentErrorHandler discards all errors (used in tests)
var SilentErrorHandler ErrorHandler = func(err LogError) {}

// StderrErrorHandler writes errors to stderr
var StderrErrorHandler ErrorHandler = func(err LogError) {
	fmt.Fprintf(os.Stderr, "omnilog error: %s\n", err.Error())
}

func newLogError(operation, destination, message string, err error, level ErrorLevel) LogError {
	return LogError{
		Operation:   operation,
		Destination: destination,
		Message:     message,
		Err:         err,
		Level:       level,
		Timestamp:   time.Now(),
	}
}
