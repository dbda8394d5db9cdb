package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	base := t.TempDir()
	store, err := NewStore(filepath.Join(base, "uploads"), filepath.Join(base, "processed"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestUniqueNamePreservesExtension(t *testing.T) {
	name := UniqueName("Invoice Scan.JPEG")
	if !strings.HasSuffix(name, ".jpeg") {
		t.Errorf("name %q does not carry lowercased original extension", name)
	}
	if strings.Contains(name, "Invoice") {
		t.Errorf("name %q leaks the user-controlled filename", name)
	}
}

func TestUniqueNameCollisionResistance(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		name := UniqueName("same.png")
		if seen[name] {
			t.Fatalf("duplicate generated name %q", name)
		}
		seen[name] = true
	}
}

func TestSaveUploadAndProcessed(t *testing.T) {
	store := newTestStore(t)

	name, path, err := store.SaveUpload("doc.png", []byte("raw-bytes"))
	if err != nil {
		t.Fatalf("SaveUpload: %v", err)
	}
	if got, _ := os.ReadFile(path); string(got) != "raw-bytes" {
		t.Errorf("upload content = %q", got)
	}

	boxedName, boxedPath, err := store.SaveProcessed(PrefixBoxed, name, []byte("boxed-bytes"))
	if err != nil {
		t.Fatalf("SaveProcessed: %v", err)
	}
	if boxedName != PrefixBoxed+name {
		t.Errorf("processed name = %q, want prefix %q + %q", boxedName, PrefixBoxed, name)
	}
	if got, _ := os.ReadFile(boxedPath); string(got) != "boxed-bytes" {
		t.Errorf("processed content = %q", got)
	}
}

func TestPathResolutionRejectsTraversal(t *testing.T) {
	store := newTestStore(t)

	for _, bad := range []string{"", "../secret", "a/b.png", "..", "./x"} {
		if _, ok := store.UploadPath(bad); ok {
			t.Errorf("UploadPath accepted %q", bad)
		}
	}

	if _, ok := store.ProcessedPath("boxed_123.png"); !ok {
		t.Errorf("ProcessedPath rejected a plain name")
	}
}
