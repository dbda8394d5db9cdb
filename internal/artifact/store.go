/**
 * Artifact storage
 *
 * Two directories back the service: raw uploads and processed outputs.
 * Stored names combine a timestamp with a random suffix so user-controlled
 * filenames can never collide; processed variants carry a "pre_" (enhanced
 * only) or "boxed_" (detection boxes drawn) prefix.
 */

package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// PrefixPreprocessed marks enhanced-only outputs.
	PrefixPreprocessed = "pre_"
	// PrefixBoxed marks outputs with detection boxes drawn.
	PrefixBoxed = "boxed_"
)

// Store manages the upload and processed artifact directories.
type Store struct {
	uploadDir    string
	processedDir string
}

// NewStore creates both artifact directories if needed.
func NewStore(uploadDir, processedDir string) (*Store, error) {
	for _, dir := range []string{uploadDir, processedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
		}
	}
	return &Store{uploadDir: uploadDir, processedDir: processedDir}, nil
}

// UploadDir returns the raw upload directory path.
func (s *Store) UploadDir() string { return s.uploadDir }

// ProcessedDir returns the processed output directory path.
func (s *Store) ProcessedDir() string { return s.processedDir }

// UniqueName derives a collision-safe stored name from an original filename,
// preserving only its extension.
func UniqueName(originalFilename string) string {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	return fmt.Sprintf("%d_%s%s", time.Now().UnixNano(), uuid.NewString()[:8], ext)
}

// SaveUpload writes raw upload bytes under a collision-safe name and returns
// the stored name and full path.
func (s *Store) SaveUpload(originalFilename string, data []byte) (name string, path string, err error) {
	name = UniqueName(originalFilename)
	path = filepath.Join(s.uploadDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", fmt.Errorf("failed to save upload: %w", err)
	}
	return name, path, nil
}

// SaveProcessed writes a processed variant of a stored upload. prefix selects
// the variant (PrefixPreprocessed or PrefixBoxed).
func (s *Store) SaveProcessed(prefix, storedName string, data []byte) (name string, path string, err error) {
	name = prefix + storedName
	path = filepath.Join(s.processedDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", fmt.Errorf("failed to save processed artifact: %w", err)
	}
	return name, path, nil
}

// UploadPath resolves a stored upload name inside the upload directory,
// rejecting path traversal.
func (s *Store) UploadPath(name string) (string, bool) {
	return resolve(s.uploadDir, name)
}

// ProcessedPath resolves a stored processed name inside the processed
// directory, rejecting path traversal.
func (s *Store) ProcessedPath(name string) (string, bool) {
	return resolve(s.processedDir, name)
}

func resolve(dir, name string) (string, bool) {
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) {
		return "", false
	}
	return filepath.Join(dir, name), true
}
