// Package processed is the durable record of already-processed sources. It
// lets a pass skip work it has already done and makes re-runs idempotent.
package processed

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/s0len/Playbook/internal/logging"
)

const schemaVersion = 1

// Record is one processed-source entry.
type Record struct {
	SourceFingerprint string
	SourcePath        string
	DestinationPath   string
	LinkMode          string
	PatternID         string
	Priority          int
	ExactSession      bool
	CreatedAt         time.Time
}

// Store is the SQLite-backed processed cache at cache_dir/processed.db.
// Reads go straight to the database; writes batch in memory and commit in
// a single transaction at pass end.
type Store struct {
	db  *sql.DB
	log *logging.Logger

	mu      sync.Mutex
	pending []Record
	deletes []string
}

// Open opens (or recreates) the store. A corrupt database is renamed aside
// and replaced with an empty one: the cache is an optimization, never a
// source of truth.
func Open(cacheDir string, log *logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.Nop()
	}
	path := filepath.Join(cacheDir, "processed.db")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create cache dir: %w", err)
	}

	db, err := open(path)
	if err != nil {
		log.Warn("processed", "Cache unreadable, starting empty", logging.F("error", err))
		os.Rename(path, path+".corrupt")
		db, err = open(path)
		if err != nil {
			return nil, fmt.Errorf("unable to recreate processed cache: %w", err)
		}
	}

	return &Store{db: db, log: log}, nil
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)`); err != nil {
		return err
	}

	var current int
	row := db.QueryRow("SELECT version FROM schema_version LIMIT 1")
	if err := row.Scan(&current); err != nil && err != sql.ErrNoRows {
		return err
	}

	if current < schemaVersion {
		if _, err := db.Exec(`
			CREATE TABLE IF NOT EXISTS processed_files (
				source_fingerprint TEXT PRIMARY KEY,
				source_path        TEXT NOT NULL,
				destination_path   TEXT NOT NULL,
				link_mode          TEXT NOT NULL,
				pattern_id         TEXT NOT NULL,
				priority           INTEGER NOT NULL DEFAULT 0,
				exact_session      INTEGER NOT NULL DEFAULT 0,
				created_at         TEXT NOT NULL
			)`); err != nil {
			return err
		}
		if _, err := db.Exec(`
			CREATE INDEX IF NOT EXISTS idx_processed_files_destination
			ON processed_files(destination_path)`); err != nil {
			return err
		}
		if _, err := db.Exec("DELETE FROM schema_version"); err != nil {
			return err
		}
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the record for a source fingerprint, or nil.
func (s *Store) Get(sourceFingerprint string) (*Record, error) {
	row := s.db.QueryRow(`
		SELECT source_fingerprint, source_path, destination_path, link_mode,
		       pattern_id, priority, exact_session, created_at
		FROM processed_files WHERE source_fingerprint = ?`, sourceFingerprint)
	return scanRecord(row)
}

// ByDestination returns the record owning a destination path, or nil.
func (s *Store) ByDestination(destination string) (*Record, error) {
	row := s.db.QueryRow(`
		SELECT source_fingerprint, source_path, destination_path, link_mode,
		       pattern_id, priority, exact_session, created_at
		FROM processed_files WHERE destination_path = ?
		ORDER BY created_at DESC LIMIT 1`, destination)
	return scanRecord(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var record Record
	var exact int
	var createdAt string
	err := row.Scan(
		&record.SourceFingerprint, &record.SourcePath, &record.DestinationPath,
		&record.LinkMode, &record.PatternID, &record.Priority, &exact, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	record.ExactSession = exact != 0
	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		record.CreatedAt = t
	}
	return &record, nil
}

// IsProcessed reports whether a source fingerprint already produced the
// given destination.
func (s *Store) IsProcessed(sourceFingerprint, destination string) bool {
	record, err := s.Get(sourceFingerprint)
	if err != nil || record == nil {
		return false
	}
	return record.DestinationPath == destination
}

// Queue stages a record for the pass-end commit.
func (s *Store) Queue(record Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	s.pending = append(s.pending, record)
}

// QueueDelete stages removal of a record (used when a source's destination
// moved and the old record no longer describes reality).
func (s *Store) QueueDelete(sourceFingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, sourceFingerprint)
}

// Commit writes every staged mutation in one transaction. Called once at
// pass end by the single writer.
func (s *Store) Commit() error {
	s.mu.Lock()
	pending := s.pending
	deletes := s.deletes
	s.pending = nil
	s.deletes = nil
	s.mu.Unlock()

	if len(pending) == 0 && len(deletes) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("unable to begin commit: %w", err)
	}
	for _, fp := range deletes {
		if _, err := tx.Exec("DELETE FROM processed_files WHERE source_fingerprint = ?", fp); err != nil {
			tx.Rollback()
			return err
		}
	}
	for _, record := range pending {
		exact := 0
		if record.ExactSession {
			exact = 1
		}
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO processed_files
			(source_fingerprint, source_path, destination_path, link_mode,
			 pattern_id, priority, exact_session, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			record.SourceFingerprint, record.SourcePath, record.DestinationPath,
			record.LinkMode, record.PatternID, record.Priority, exact,
			record.CreatedAt.Format(time.RFC3339),
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Clear removes every record.
func (s *Store) Clear() error {
	_, err := s.db.Exec("DELETE FROM processed_files")
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
