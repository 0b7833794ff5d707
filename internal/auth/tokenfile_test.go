package auth

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTokenFileRoundTrip(t *testing.T) {
	f := &TokenFile{Path: filepath.Join(t.TempDir(), "nested", "token")}

	token, err := f.Load()
	if err != nil {
		t.Fatalf("Load of missing file failed: %v", err)
	}
	if token != "" {
		t.Errorf("Expected empty token, got %q", token)
	}

	if err := f.Save("abc123"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(f.Path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
	}

	token, err = f.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if token != "abc123" {
		t.Errorf("Expected 'abc123', got %q", token)
	}

	if err := f.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if err := f.Clear(); err != nil {
		t.Errorf("Clear of missing file failed: %v", err)
	}
	if token, _ := f.Load(); token != "" {
		t.Errorf("Expected empty token after Clear, got %q", token)
	}
}
