package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/twinshot/internal/engine"
	"github.com/roach88/twinshot/internal/testutil"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testRun creates a run with minimal required fields.
func testRun(id string) Run {
	return Run{
		ID:        id,
		Scenario:  "homepage",
		BaseHost:  "https://prod.example.com",
		TestHost:  "http://localhost:3000",
		Options:   engine.DefaultOptions(),
		StartedAt: testutil.Epoch,
	}
}
