package transports

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/wayneeseguin/omnilog/pkg/formatters"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

const (
	// DefaultRotateAfterBytes is the size a log file may reach before rotation.
	DefaultRotateAfterBytes = 5_000_000
	// DefaultMaxFiles is the number of rotated files kept (path.1 … path.N).
	DefaultMaxFiles = 5
)

// ErrClosed is returned by transports used after Close.
var ErrClosed = errors.New("transport closed")

// FileOptions configures a FileTransport.
type FileOptions struct {
	// Path of the active log file (required)
	Path string

	// Name identifies the transport in error reports (default "file")
	Name string

	// RotateAfterBytes rotates before a write would grow the file past it
	RotateAfterBytes int64

	// MaxFiles is the number of rotated files kept
	MaxFiles int

	// Formatter renders lines (default formatters.TextFormatter)
	Formatter formatters.Formatter
}

// FileTransport appends formatted lines to a file and rotates it by size.
// Writes are serialized within the process by a mutex and across processes
// by an flock on "<path>.lock", so several processes may share one log file.
type FileTransport struct {
	name        string
	path        string
	rotateAfter int64
	maxFiles    int
	formatter   formatters.Formatter

	mu     sync.Mutex
	lock   *flock.Flock
	closed bool
}

// NewFile creates a FileTransport. The directory is created on demand.
func NewFile(opts FileOptions) (*FileTransport, error) {
	if opts.Path == "" {
		return nil, errors.New("file transport: path is required")
	}

	path := filepath.Clean(opts.Path)
	// #nosec G301 - log directories need to be accessible by other processes
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "create log directory")
	}

	t := &FileTransport{
		name:        opts.Name,
		path:        path,
		rotateAfter: opts.RotateAfterBytes,
		maxFiles:    opts.MaxFiles,
		formatter:   opts.Formatter,
		lock:        flock.New(path + ".lock"),
	}
	if t.name == "" {
		t.name = "file"
	}
	if t.rotateAfter <= 0 {
		t.rotateAfter = DefaultRotateAfterBytes
	}
	if t.maxFiles <= 0 {
		t.maxFiles = DefaultMaxFiles
	}
	if t.formatter == nil {
		t.formatter = formatters.NewTextFormatter()
	}
	return t, nil
}

// Name implements types.Transport.
func (t *FileTransport) Name() string {
	return t.name
}

// Path returns the active log file path.
func (t *FileTransport) Path() string {
	return t.path
}

// Log implements types.Transport.
func (t *FileTransport) Log(ctx context.Context, entry types.LogEntry) error {
	line, err := t.formatter.Format(entry)
	if err != nil {
		return errors.Wrap(err, "format entry")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := t.lock.Lock(); err != nil {
		return errors.Wrap(err, "acquire file lock")
	}
	defer func() {
		_ = t.lock.Unlock() // Best effort unlock
	}()

	// #nosec G301 - the directory may have been removed since creation
	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return errors.Wrap(err, "create log directory")
	}
	if err := t.rotateIfNeeded(int64(len(line))); err != nil {
		return err
	}
	return t.appendLine(line)
}

// rotateIfNeeded shifts path.i to path.i+1 and path to path.1 when adding
// n bytes would exceed the rotation size. Must be called with the locks held.
func (t *FileTransport) rotateIfNeeded(n int64) error {
	info, err := os.Stat(t.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "stat log file")
	}
	if info.Size()+n <= t.rotateAfter {
		return nil
	}

	for i := t.maxFiles - 1; i >= 1; i-- {
		if err := renameIfExists(t.rotatedPath(i), t.rotatedPath(i+1)); err != nil {
			return err
		}
	}
	return renameIfExists(t.path, t.rotatedPath(1))
}

func (t *FileTransport) rotatedPath(index int) string {
	return t.path + "." + strconv.Itoa(index)
}

func (t *FileTransport) appendLine(line []byte) error {
	// #nosec G302 - log files need to be readable
	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrap(err, "open log file")
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close() // Best effort close on error path
		return errors.Wrap(err, "write log file")
	}
	return errors.Wrap(f.Close(), "close log file")
}

// Close releases the lock file handle. Later Log calls return ErrClosed.
func (t *FileTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	return errors.Wrap(t.lock.Close(), "close file lock")
}

func renameIfExists(from, to string) error {
	err := os.Rename(from, to)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return errors.Wrapf(err, "rotate %s", filepath.Base(from))
}
