package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadFileScoped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	if err := os.WriteFile(path, []byte(`{"runs":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := ReadFileScoped(path)
	if err != nil {
		t.Fatalf("ReadFileScoped: %v", err)
	}
	if string(data) != `{"runs":{}}` {
		t.Errorf("unexpected content: %s", data)
	}
}

func TestReadFileScopedMissingFile(t *testing.T) {
	_, err := ReadFileScoped(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestReadFileScopedRejectsDirectory(t *testing.T) {
	if _, err := ReadFileScoped(t.TempDir() + string(filepath.Separator)); err == nil {
		t.Fatal("expected error for directory path")
	}
}
