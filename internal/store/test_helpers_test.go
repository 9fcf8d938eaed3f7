package store

import (
	"path/filepath"
	"sync"
	"testing"
)

// createTestStore creates a new temp-file store for testing.
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

// changeRecorder collects changes delivered to a watcher.
type changeRecorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *changeRecorder) record(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *changeRecorder) all() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Change, len(r.changes))
	copy(out, r.changes)
	return out
}

// watch registers a recorder for pattern and fails the test on error.
func watch(t *testing.T, s *Store, pattern string) *changeRecorder {
	t.Helper()
	rec := &changeRecorder{}
	cancel, err := s.OnChange(pattern, rec.record)
	if err != nil {
		t.Fatalf("OnChange(%q) failed: %v", pattern, err)
	}
	t.Cleanup(cancel)
	return rec
}
