package stores

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

// SQLiteStore persists pending entries in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the database at path in WAL mode.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		// #nosec G301 - buffer directories may be shared between processes
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.Wrap(err, "create buffer directory")
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "open buffer database")
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initialize buffer schema")
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pending_entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		payload TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns pending entries in insertion order.
func (s *SQLiteStore) Load(ctx context.Context) ([]types.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM pending_entries ORDER BY seq ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "query pending entries")
	}
	defer rows.Close()

	var entries []types.LogEntry
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, "scan pending entry")
		}
		var entry types.LogEntry
		if err := json.Unmarshal([]byte(payload), &entry); err != nil {
			return nil, errors.Wrap(err, "decode pending entry")
		}
		entries = append(entries, entry)
	}

	return entries, errors.Wrap(rows.Err(), "iterate pending entries")
}

// Save replaces all pending entries in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, entries []types.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_entries`); err != nil {
		return errors.Wrap(err, "delete pending entries")
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO pending_entries (id, payload) VALUES (?, ?)`)
	if err != nil {
		return errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()

	for _, entry := range entries {
		payload, err := json.Marshal(entry)
		if err != nil {
			return errors.Wrapf(err, "encode entry %s", entry.ID)
		}
		if _, err := stmt.ExecContext(ctx, entry.ID, string(payload)); err != nil {
			return errors.Wrapf(err, "insert entry %s", entry.ID)
		}
	}

	return errors.Wrap(tx.Commit(), "commit pending entries")
}

// Clear deletes all pending entries.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_entries`)
	return errors.Wrap(err, "clear pending entries")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
