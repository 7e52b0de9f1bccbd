package session

import (
	"sync"

	"github.com/nbd-wtf/go-nostr"
)

// delivery is one inbox item. An item with a nil event and a non-nil ack
// is a barrier: the Run loop closes ack when it reaches it.
type delivery struct {
	gen   uint64
	relay string
	ev    *nostr.Event
	ack   chan struct{}
}

// inbox is an unbounded FIFO of deliveries.
//
// Relay readers enqueue from their own goroutines while Run dequeues, so
// Enqueue must never block. The buffered signal channel lets Run wait
// with select alongside ctx.Done.
type inbox struct {
	mu     sync.Mutex
	items  []delivery
	closed bool
	signal chan struct{}
}

func newInbox() *inbox {
	return &inbox{
		items:  make([]delivery, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends d. Returns false once the inbox is closed.
func (q *inbox) Enqueue(d delivery) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, d)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue pops the front item without blocking.
func (q *inbox) TryDequeue() (delivery, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return delivery{}, false
	}
	d := q.items[0]
	q.items[0] = delivery{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return d, true
}

// Wait signals that items may be available. Closed by Close.
func (q *inbox) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued items.
func (q *inbox) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops further enqueues and wakes the waiter.
func (q *inbox) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
