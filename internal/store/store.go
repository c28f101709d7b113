// Package store provides SQLite persistence for docfeed's client-side state:
// session-scoped storage slots and the last tag list seen per server.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abelbrown/docfeed/internal/catalog"
	_ "modernc.org/sqlite"
)

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for file-based databases.
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so every pooled connection sees the same database.
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

// createTables creates the required tables if they don't exist.
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS slots (
		session TEXT NOT NULL,
		name TEXT NOT NULL,
		value BLOB NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (session, name)
	);

	CREATE TABLE IF NOT EXISTS tag_snapshots (
		server TEXT PRIMARY KEY,
		tags BLOB NOT NULL,
		saved_at DATETIME NOT NULL
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Get returns the raw value of a slot. A missing slot returns (nil, nil).
func (s *Store) Get(session, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value []byte
	err := s.db.QueryRow(
		"SELECT value FROM slots WHERE session = ? AND name = ?",
		session, name,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read slot %s/%s: %w", session, name, err)
	}
	return value, nil
}

// Put replaces the value of a slot.
func (s *Store) Put(session, name string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO slots (session, name, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(session, name) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, session, name, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("write slot %s/%s: %w", session, name, err)
	}
	return nil
}

// Delete removes a slot. Deleting a missing slot is not an error.
func (s *Store) Delete(session, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM slots WHERE session = ? AND name = ?", session, name)
	return err
}

// Sessions lists sessions that hold at least one slot, most recently used first.
func (s *Store) Sessions() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT session FROM slots
		GROUP BY session
		ORDER BY MAX(updated_at) DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		sessions = append(sessions, name)
	}
	return sessions, rows.Err()
}

// Slot binds one (session, name) pair so it can be handed to a component
// that persists a single value.
type Slot struct {
	store   *Store
	session string
	name    string
}

// Slot returns a handle to the named slot of a session.
func (s *Store) Slot(session, name string) *Slot {
	return &Slot{store: s, session: session, name: name}
}

// Load returns the slot value, or nil if it was never written.
func (sl *Slot) Load() ([]byte, error) {
	return sl.store.Get(sl.session, sl.name)
}

// Save overwrites the slot value.
func (sl *Slot) Save(value []byte) error {
	return sl.store.Put(sl.session, sl.name, value)
}

// SaveTags records the tag list served by server, replacing any earlier snapshot.
func (s *Store) SaveTags(server string, tags []catalog.Tag) error {
	data, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO tag_snapshots (server, tags, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(server) DO UPDATE SET
			tags = excluded.tags,
			saved_at = excluded.saved_at
	`, server, data, time.Now().UTC())
	return err
}

// LoadTags returns the last snapshot for server and when it was taken.
// ok is false when no snapshot exists.
func (s *Store) LoadTags(server string) (tags []catalog.Tag, savedAt time.Time, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data []byte
	err = s.db.QueryRow(
		"SELECT tags, saved_at FROM tag_snapshots WHERE server = ?", server,
	).Scan(&data, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, time.Time{}, false, fmt.Errorf("decode tag snapshot: %w", err)
	}
	return tags, savedAt, true, nil
}
