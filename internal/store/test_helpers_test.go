package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// createTestStore creates a new store in a temp dir for testing.
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

// createTestEvent creates an event with the fields the journal indexes.
func createTestEvent(id string, kind int) *nostr.Event {
	return &nostr.Event{
		ID:        id,
		PubKey:    "author",
		Kind:      kind,
		CreatedAt: nostr.Timestamp(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC).Unix()),
		Tags:      nostr.Tags{{"d", id}},
		Content:   "content of " + id,
	}
}
