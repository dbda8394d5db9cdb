/**
 * History Log
 *
 * Append-mostly record of every processing event. Independent of the result
 * cache: deleting a history entry never touches the cache and vice versa.
 */

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HistoryEntry is one processing event. Created once per successful request,
// immutable afterwards.
type HistoryEntry struct {
	ID               string    `json:"id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	Text             string    `json:"text"`
	Confidence       float64   `json:"confidence"`
	WordCount        int       `json:"word_count"`
	CharCount        int       `json:"char_count"`
	CreatedAt        time.Time `json:"created_at"`
	ArtifactPath     string    `json:"artifact_path"`
	Fingerprint      string    `json:"content_fingerprint"`
}

// HistoryLog records processing events in PostgreSQL.
type HistoryLog struct {
	db *sql.DB
}

// Append records a processing event. A missing ID or timestamp is filled in.
func (h *HistoryLog) Append(ctx context.Context, entry *HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO history (
			id, filename, original_filename, text, confidence,
			word_count, char_count, created_at, artifact_path, content_fingerprint
		) VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := h.db.ExecContext(ctx, query,
		entry.ID,
		entry.Filename,
		entry.OriginalFilename,
		entry.Text,
		entry.Confidence,
		entry.WordCount,
		entry.CharCount,
		entry.CreatedAt,
		entry.ArtifactPath,
		entry.Fingerprint,
	)
	if err != nil {
		return fmt.Errorf("history append failed (id=%s): %w", entry.ID, err)
	}

	return nil
}

// List returns up to limit entries, most recent first. Ties on created_at are
// broken by id so repeated calls against unchanged data order identically.
func (h *HistoryLog) List(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, filename, original_filename, text, confidence,
		       word_count, char_count, created_at, artifact_path, content_fingerprint
		FROM history
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	rows, err := h.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("history list failed: %w", err)
	}
	defer rows.Close()

	entries := []HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(
			&e.ID, &e.Filename, &e.OriginalFilename, &e.Text, &e.Confidence,
			&e.WordCount, &e.CharCount, &e.CreatedAt, &e.ArtifactPath, &e.Fingerprint,
		); err != nil {
			return nil, fmt.Errorf("history scan failed: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history list failed: %w", err)
	}

	return entries, nil
}

// Get returns the entry with the given id, or (nil, nil) when absent.
func (h *HistoryLog) Get(ctx context.Context, id string) (*HistoryEntry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	query := `
		SELECT id, filename, original_filename, text, confidence,
		       word_count, char_count, created_at, artifact_path, content_fingerprint
		FROM history
		WHERE id = $1::uuid
	`

	var e HistoryEntry
	err := h.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.Filename, &e.OriginalFilename, &e.Text, &e.Confidence,
		&e.WordCount, &e.CharCount, &e.CreatedAt, &e.ArtifactPath, &e.Fingerprint,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history get failed (id=%s): %w", id, err)
	}

	return &e, nil
}

// Delete removes the entry with the given id. Deleting a non-existent id is a
// no-op, not an error.
func (h *HistoryLog) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}

	if _, err := h.db.ExecContext(ctx, `DELETE FROM history WHERE id = $1::uuid`, id); err != nil {
		return fmt.Errorf("history delete failed (id=%s): %w", id, err)
	}

	return nil
}

// Clear removes every history entry.
func (h *HistoryLog) Clear(ctx context.Context) error {
	if _, err := h.db.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return fmt.Errorf("history clear failed: %w", err)
	}
	return nil
}
