// Package ledger tracks which event ids a session has already processed.
package ledger

import "sync"

// Ledger is a set of seen event ids. Safe for concurrent use.
type Ledger struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{seen: make(map[string]struct{})}
}

// Seen reports whether id has been marked.
func (l *Ledger) Seen(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[id]
	return ok
}

// Mark records id and reports whether it was new.
func (l *Ledger) Mark(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[id]; ok {
		return false
	}
	l.seen[id] = struct{}{}
	return true
}

// Len returns the number of marked ids.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

// Reset forgets every id.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = make(map[string]struct{})
}
