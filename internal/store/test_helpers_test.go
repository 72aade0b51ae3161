package store

import (
	"os"
	"path/filepath"
	"testing"
)

// SetupTestStore opens an in-memory store and a scratch directory holding a
// copy of the testdata fixtures.
func SetupTestStore(t *testing.T) (*Store, string, func()) {
	t.Helper()

	dir := t.TempDir()

	files := []string{"messages.csv"}
	for _, file := range files {
		data, err := os.ReadFile(filepath.Join("testdata", file))
		if err != nil {
			t.Fatalf("failed to read %s: %v", file, err)
		}
		if err := os.WriteFile(filepath.Join(dir, file), data, 0644); err != nil {
			t.Fatalf("failed to write %s: %v", file, err)
		}
	}

	s, err := Open(nil)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}

	cleanup := func() {
		s.Close()
	}

	return s, dir, cleanup
}
