package stores

import (
	"context"
	"sync"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

// MemoryStore is the default, non-durable BufferStore.
type MemoryStore struct {
	mu      sync.Mutex
	entries []types.LogEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the stored entries.
func (s *MemoryStore) Load(ctx context.Context) ([]types.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyEntries(s.entries), nil
}

// Save replaces the stored entries with a copy of entries.
func (s *MemoryStore) Save(ctx context.Context, entries []types.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = copyEntries(entries)
	return nil
}

// Clear removes all stored entries.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func copyEntries(entries []types.LogEntry) []types.LogEntry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]types.LogEntry, len(entries))
	copy(out, entries)
	return out
}
