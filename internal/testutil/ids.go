package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs generates "<prefix>-1", "<prefix>-2", ... so that events
// built in tests have stable d tags.
//
// Thread-safety: SequenceIDs is safe for concurrent use.
type SequenceIDs struct {
	mu sync.Mutex
	n  int
}

// NewSequenceIDs creates a generator starting at 1.
func NewSequenceIDs() *SequenceIDs {
	return &SequenceIDs{}
}

// NewID returns the next identifier with prefix.
func (g *SequenceIDs) NewID(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", prefix, g.n)
}
