/**
 * Content-Addressed Result Cache
 *
 * Maps an image-content fingerprint to its reconstructed document so
 * byte-identical uploads never re-run recognition. Detections are persisted
 * alongside the text, so a cache hit can also serve visual annotation without
 * re-invoking the engine.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/textscan/ocr-server/internal/ocr"
)

// ResultCache stores one document result per content fingerprint.
type ResultCache struct {
	db *sql.DB
}

// Lookup returns the cached result for fingerprint, or (nil, nil) on a miss.
// Pure read; no side effects.
func (c *ResultCache) Lookup(ctx context.Context, fp string) (*ocr.DocumentResult, error) {
	query := `
		SELECT text, confidence, word_count, char_count, line_count, detection_count, detections_json
		FROM result_cache
		WHERE fingerprint = $1
	`

	var (
		result         ocr.DocumentResult
		detectionsJSON []byte
	)

	err := c.db.QueryRowContext(ctx, query, fp).Scan(
		&result.Text,
		&result.Stats.AvgConfidence,
		&result.Stats.WordCount,
		&result.Stats.CharCount,
		&result.Stats.LineCount,
		&result.Stats.DetectionCount,
		&detectionsJSON,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup failed: %w", err)
	}

	result.Detections = []ocr.PlacedDetection{}
	if len(detectionsJSON) > 0 {
		if err := json.Unmarshal(detectionsJSON, &result.Detections); err != nil {
			return nil, fmt.Errorf("cache entry has corrupt detections: %w", err)
		}
	}

	return &result, nil
}

// Store upserts the result for fingerprint. Last writer wins: a later
// population for the same fingerprint replaces the earlier row whole, never
// merging with it.
func (c *ResultCache) Store(ctx context.Context, fp string, result *ocr.DocumentResult) error {
	detectionsJSON, err := json.Marshal(result.Detections)
	if err != nil {
		return fmt.Errorf("failed to marshal detections: %w", err)
	}

	query := `
		INSERT INTO result_cache (
			fingerprint, text, confidence, word_count, char_count,
			line_count, detection_count, detections_json, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, NOW())
		ON CONFLICT (fingerprint) DO UPDATE SET
			text            = EXCLUDED.text,
			confidence      = EXCLUDED.confidence,
			word_count      = EXCLUDED.word_count,
			char_count      = EXCLUDED.char_count,
			line_count      = EXCLUDED.line_count,
			detection_count = EXCLUDED.detection_count,
			detections_json = EXCLUDED.detections_json,
			created_at      = NOW()
	`

	_, err = c.db.ExecContext(ctx, query,
		fp,
		result.Text,
		result.Stats.AvgConfidence,
		result.Stats.WordCount,
		result.Stats.CharCount,
		result.Stats.LineCount,
		result.Stats.DetectionCount,
		detectionsJSON,
	)
	if err != nil {
		return fmt.Errorf("cache store failed (fingerprint=%s): %w", fp, err)
	}

	return nil
}

// Stats reports the cache entry count.
func (c *ResultCache) Stats(ctx context.Context) (int64, error) {
	var count int64
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM result_cache`).Scan(&count); err != nil {
		return 0, fmt.Errorf("cache stats failed: %w", err)
	}
	return count, nil
}

// Clear evicts every cache entry. Irreversible.
func (c *ResultCache) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM result_cache`); err != nil {
		return fmt.Errorf("cache clear failed: %w", err)
	}
	return nil
}
