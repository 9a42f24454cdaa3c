package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveSourceFallsBackToEmbedded(t *testing.T) {
	fsys, dir := resolveSource(filepath.Join(t.TempDir(), "missing"))
	if dir != embeddedDir {
		t.Fatalf("expected embedded dir, got %q", dir)
	}
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("expected embedded migrations")
	}
}

func TestResolveSourcePrefersDisk(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "00001_init.sql"), []byte("-- +goose Up\n"), 0o600); err != nil {
		t.Fatalf("write migration: %v", err)
	}
	fsys, dir := resolveSource(root)
	if dir != "." {
		t.Fatalf("expected disk dir, got %q", dir)
	}
	if _, err := fs.Stat(fsys, "00001_init.sql"); err != nil {
		t.Fatalf("expected migration on disk: %v", err)
	}
}
