// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dismiss persists per-project dismissed sets: paper IDs the user
// has suppressed from discovery views, and channel IDs whose ingestion
// notification banner was dismissed. Dismissal is permanent until the
// project record is explicitly reset.
//
// The store is best-effort by contract: every failure is reported as a
// *StorageError so callers can log it, but reads always return a usable
// (possibly empty) set and callers are expected to continue with in-memory
// state as the fallback source of truth.
package dismiss

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paperflow/pkg/types"
)

const dbFile = "paperflow.db"

// Record kinds. One durable record exists per (project, kind): a JSON array
// of dismissed IDs.
const (
	kindPapers        = "papers"
	kindNotifications = "notifications"
)

// StorageError wraps a durable-store failure. Callers choose whether to
// log it; swallowing it is legitimate because in-memory state covers the
// rest of the session.
type StorageError struct {
	Op  string
	Err error
}

// Error describes the failed operation.
func (e *StorageError) Error() string {
	return fmt.Sprintf("dismissal store %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying error.
func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// Store manages the dismissal database. Reads and writes are
// read-modify-write atomic relative to the store mutex; no external writer
// races them.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens or creates the dismissal database at stateDir/paperflow.db,
// creating the directory and schema as needed.
func NewStore(cfg types.StorageConfig) (*Store, error) {
	stateDir := cfg.StateDir
	if stateDir == "" {
		stateDir = types.DefaultStateDir
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	dbPath := filepath.Join(stateDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS dismissals (
		project    TEXT NOT NULL,
		kind       TEXT NOT NULL,
		ids        TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (project, kind)
	)`)
	return err
}

// DismissedPapers returns the set of dismissed paper IDs for the project.
// On failure it returns an empty set along with the error.
func (s *Store) DismissedPapers(project string) (map[string]struct{}, error) {
	return s.load(project, kindPapers)
}

// DismissedNotifications returns the set of channel IDs whose notification
// banner was dismissed. On failure it returns an empty set along with the
// error.
func (s *Store) DismissedNotifications(project string) (map[string]struct{}, error) {
	return s.load(project, kindNotifications)
}

// AddDismissedPaper adds paperID to the project's dismissed-paper record.
// Adding an already-dismissed ID is a no-op.
func (s *Store) AddDismissedPaper(project, paperID string) error {
	return s.add(project, kindPapers, paperID)
}

// AddDismissedNotification records that the channel's notification banner
// was dismissed.
func (s *Store) AddDismissedNotification(project, channelID string) error {
	return s.add(project, kindNotifications, channelID)
}

// Reset deletes both dismissal records for the project, making every
// previously dismissed paper and notification visible again.
func (s *Store) Reset(project string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM dismissals WHERE project = ?`, project); err != nil {
		return storageErr("reset", err)
	}
	return nil
}

func (s *Store) load(project, kind string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.loadLocked(project, kind)
	if err != nil {
		return map[string]struct{}{}, err
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (s *Store) add(project, kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.loadLocked(project, kind)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)
	sort.Strings(ids)

	data, err := json.Marshal(ids)
	if err != nil {
		return storageErr("encode", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO dismissals (project, kind, ids, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(project, kind) DO UPDATE SET ids = excluded.ids, updated_at = excluded.updated_at`,
		project, kind, string(data), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return storageErr("write", err)
	}
	return nil
}

// loadLocked reads one record's ID list. A missing record or a corrupt
// payload both yield an empty list; corruption is reported so the caller
// can log it.
func (s *Store) loadLocked(project, kind string) ([]string, error) {
	var raw string
	err := s.db.QueryRow(
		`SELECT ids FROM dismissals WHERE project = ? AND kind = ?`, project, kind,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("read", err)
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, storageErr("decode", err)
	}
	return ids, nil
}
