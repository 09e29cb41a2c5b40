package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/seqgate/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testItem(source string, seq uint64) ir.Item {
	return ir.Item{ID: source + "-tx", SourceID: source, Sequence: seq}
}
