package stores

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

// FileStore persists pending entries as a JSON array in a single file.
// Writes go to a temporary file that is renamed over the target, and every
// operation holds an flock on "<path>.lock" so several processes can share
// one backlog file.
type FileStore struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
}

// NewFileStore creates a FileStore at path, creating the parent directory.
func NewFileStore(path string) (*FileStore, error) {
	cleanPath := filepath.Clean(path)

	// #nosec G301 - buffer directories may be shared between processes
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0755); err != nil {
		return nil, errors.Wrap(err, "create buffer directory")
	}

	return &FileStore{
		path: cleanPath,
		lock: flock.New(cleanPath + ".lock"),
	}, nil
}

// Path returns the backlog file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the backlog. A missing or empty file is an empty backlog.
func (s *FileStore) Load(ctx context.Context) ([]types.LogEntry, error) {
	var entries []types.LogEntry
	err := s.withLock(ctx, func() error {
		data, err := os.ReadFile(s.path)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "read buffer file")
		}
		if len(data) == 0 {
			return nil
		}
		return errors.Wrapf(json.Unmarshal(data, &entries), "decode buffer file %s", s.path)
	})
	return entries, err
}

// Save atomically replaces the backlog with entries.
func (s *FileStore) Save(ctx context.Context, entries []types.LogEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return errors.Wrap(err, "encode buffered entries")
	}

	return s.withLock(ctx, func() error {
		tmp := s.path + ".tmp"
		// #nosec G306 - buffer files hold log data readable by operators
		if err := os.WriteFile(tmp, data, 0644); err != nil {
			return errors.Wrap(err, "write buffer file")
		}
		return errors.Wrap(os.Rename(tmp, s.path), "replace buffer file")
	})
}

// Clear removes the backlog file.
func (s *FileStore) Clear(ctx context.Context) error {
	return s.withLock(ctx, func() error {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "remove buffer file")
		}
		return nil
	})
}

func (s *FileStore) withLock(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return errors.Wrap(err, "acquire buffer file lock")
	}
	defer func() {
		_ = s.lock.Unlock() // Best effort unlock
	}()

	return fn()
}
