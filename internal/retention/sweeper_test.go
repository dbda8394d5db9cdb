package retention

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFileAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("artifact"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	mtime := time.Now().Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", name, err)
	}
	return path
}

func TestSweepBoundary(t *testing.T) {
	uploads := t.TempDir()
	processed := t.TempDir()
	maxAge := time.Hour

	expiredUpload := writeFileAged(t, uploads, "old.png", maxAge+time.Second)
	expiredBoxed := writeFileAged(t, processed, "boxed_old.png", 2*maxAge)
	fresh := writeFileAged(t, uploads, "fresh.png", maxAge-time.Second)

	sweeper := NewSweeper([]string{uploads, processed}, maxAge, time.Minute)
	removed := sweeper.Sweep()

	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	for _, gone := range []string{expiredUpload, expiredBoxed} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Errorf("expired file %s survived the sweep", gone)
		}
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh file was deleted: %v", err)
	}
}

func TestSweepSkipsSubdirectories(t *testing.T) {
	uploads := t.TempDir()
	sub := filepath.Join(uploads, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(sub, old, old); err != nil {
		t.Fatal(err)
	}

	sweeper := NewSweeper([]string{uploads}, time.Hour, time.Minute)
	if removed := sweeper.Sweep(); removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
	if _, err := os.Stat(sub); err != nil {
		t.Errorf("subdirectory was deleted: %v", err)
	}
}

func TestSweepMissingDirectoryIsRoutine(t *testing.T) {
	sweeper := NewSweeper([]string{filepath.Join(t.TempDir(), "does-not-exist")}, time.Hour, time.Minute)
	if removed := sweeper.Sweep(); removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}

func TestStartRunsEagerSweepAndStops(t *testing.T) {
	uploads := t.TempDir()
	expired := writeFileAged(t, uploads, "backlog.png", 2*time.Hour)

	sweeper := NewSweeper([]string{uploads}, time.Hour, time.Hour)
	sweeper.Start()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(expired); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("eager startup sweep did not delete backlog file")
		}
		time.Sleep(10 * time.Millisecond)
	}

	sweeper.Stop()
	// Stop is idempotent.
	sweeper.Stop()
}
