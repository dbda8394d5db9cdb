/**
 * PostgreSQL store for the textscan OCR server
 *
 * Holds the two independent tables: the content-addressed result cache and
 * the per-event history log. Raw SQL via lib/pq; writers rely on Postgres for
 * serialization, readers run concurrently.
 */

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Store wraps the database handle shared by the cache and history accessors.
type Store struct {
	db *sql.DB
}

// NewStore connects to PostgreSQL and verifies the connection.
func NewStore(databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Migrate creates the cache and history tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS result_cache (
			fingerprint     TEXT PRIMARY KEY,
			text            TEXT NOT NULL,
			confidence      DOUBLE PRECISION NOT NULL,
			word_count      INTEGER NOT NULL,
			char_count      INTEGER NOT NULL,
			line_count      INTEGER NOT NULL,
			detection_count INTEGER NOT NULL,
			detections_json JSONB NOT NULL DEFAULT '[]'::jsonb,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS history (
			id                  UUID PRIMARY KEY,
			filename            TEXT NOT NULL,
			original_filename   TEXT NOT NULL,
			text                TEXT NOT NULL,
			confidence          DOUBLE PRECISION NOT NULL,
			word_count          INTEGER NOT NULL,
			char_count          INTEGER NOT NULL,
			created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			artifact_path       TEXT NOT NULL DEFAULT '',
			content_fingerprint TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS history_created_at_idx ON history (created_at DESC, id DESC)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Cache returns the content-addressed result cache accessor.
func (s *Store) Cache() *ResultCache {
	return &ResultCache{db: s.db}
}

// History returns the history log accessor.
func (s *Store) History() *HistoryLog {
	return &HistoryLog{db: s.db}
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (s *Store) GetStats() sql.DBStats {
	return s.db.Stats()
}
