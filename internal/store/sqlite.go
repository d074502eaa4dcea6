// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides action history persistence with automatic schema creation

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS action_log (
			id           TEXT PRIMARY KEY,
			agent        TEXT NOT NULL DEFAULT '',
			action       TEXT NOT NULL,
			selector     TEXT NOT NULL,
			url          TEXT NOT NULL DEFAULT '',
			has_value    INTEGER NOT NULL DEFAULT 0,
			success      INTEGER NOT NULL,
			outcome      TEXT NOT NULL,
			error        TEXT NOT NULL DEFAULT '',
			element_type TEXT NOT NULL DEFAULT '',
			duration_ms  INTEGER NOT NULL,
			created_at   TEXT NOT NULL,

			CHECK (action IN ('read', 'write', 'click'))
		);

		CREATE INDEX IF NOT EXISTS idx_action_log_created ON action_log(created_at);
		CREATE INDEX IF NOT EXISTS idx_action_log_outcome ON action_log(outcome, created_at);

		CREATE TABLE IF NOT EXISTS extension_sessions (
			id              TEXT PRIMARY KEY,
			remote_addr     TEXT NOT NULL,
			connected_at    TEXT NOT NULL,
			disconnected_at TEXT,
			drained         INTEGER NOT NULL DEFAULT 0,
			reason          TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_extension_sessions_connected ON extension_sessions(connected_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
