/**
 * Retention Scheduler
 *
 * Reclaims disk used by artifact files independent of any database state. A
 * file's last-modified time is the ground truth for expiry; cache and history
 * rows referencing a purged file become dangling by design.
 */

package retention

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/textscan/ocr-server/internal/logging"
)

// Sweeper deletes artifact files older than MaxAge on a fixed interval.
type Sweeper struct {
	dirs     []string
	maxAge   time.Duration
	interval time.Duration
	logger   *logging.Logger

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewSweeper builds a sweeper over the given artifact directories.
func NewSweeper(dirs []string, maxAge, interval time.Duration) *Sweeper {
	return &Sweeper{
		dirs:     dirs,
		maxAge:   maxAge,
		interval: interval,
		logger:   logging.NewLogger("retention"),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop in the background: one eager sweep to clear any
// backlog from before the process existed, then one sweep per interval. The
// shutdown signal is only checked between sweeps, never mid-sweep.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		removed := s.Sweep()
		s.logger.Info("startup sweep complete", "removed", removed)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				removed := s.Sweep()
				if removed > 0 {
					s.logger.Info("sweep complete", "removed", removed)
				}
			}
		}
	}()
}

// Stop signals the loop and waits for any in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
}

// Sweep scans every artifact directory once and deletes expired files.
// Per-file failures (a file deleted or locked concurrently by a foreground
// request) are logged and skipped; they never abort the sweep. Returns the
// number of files removed.
func (s *Sweeper) Sweep() int {
	cutoff := time.Now().Add(-s.maxAge)
	removed := 0

	for _, dir := range s.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			// A missing directory is routine before the first upload.
			if !os.IsNotExist(err) {
				s.logger.Warn("failed to list artifact directory", "dir", dir, "error", err)
			}
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}

			info, err := entry.Info()
			if err != nil {
				// File disappeared between listing and stat; routine under
				// concurrent foreground mutation.
				continue
			}

			if !info.ModTime().Before(cutoff) {
				continue
			}

			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil {
				if !os.IsNotExist(err) {
					s.logger.Warn("failed to delete expired artifact", "path", path, "error", err)
				}
				continue
			}
			removed++
		}
	}

	return removed
}
