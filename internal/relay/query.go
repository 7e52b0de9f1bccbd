package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// DefaultQueryWait is the fallback deadline for a query's EOSE signals.
const DefaultQueryWait = 3 * time.Second

// Sink receives every event a query yields. It is called from the
// per-connection reader goroutines and must not block.
type Sink func(relayURL string, ev *nostr.Event)

// Query is one REQ fanned out to every live connection.
//
// Done closes once every connection has sent EOSE (or ended its
// subscription), or when the fallback deadline passes, whichever is first.
// Events keep flowing to the sink after Done until Close.
type Query struct {
	done    chan struct{}
	once    sync.Once
	cancel  context.CancelFunc
	timer   *time.Timer
	wg      sync.WaitGroup
	mu      sync.Mutex
	pending int
	subs    []Subscription
}

type querySub struct {
	url string
	sub Subscription
}

// Query subscribes filters on every connection. wait <= 0 disables the
// fallback deadline.
func (p *Pool) Query(ctx context.Context, filters nostr.Filters, wait time.Duration, sink Sink) *Query {
	qctx, cancel := context.WithCancel(ctx)
	q := &Query{done: make(chan struct{}), cancel: cancel}

	var opened []querySub
	for _, conn := range p.Conns() {
		sub, err := conn.Subscribe(qctx, filters)
		if err != nil {
			slog.Warn("relay subscribe failed", "relay", conn.URL(), "error", err)
			continue
		}
		opened = append(opened, querySub{url: conn.URL(), sub: sub})
		q.subs = append(q.subs, sub)
	}
	q.pending = len(opened)
	if q.pending == 0 {
		q.finish()
		return q
	}
	if wait > 0 {
		q.timer = time.AfterFunc(wait, func() {
			slog.Debug("query wait elapsed before all relays sent EOSE")
			q.finish()
		})
	}

	for _, o := range opened {
		q.wg.Add(1)
		go q.read(qctx, o.url, o.sub, sink)
	}
	return q
}

func (q *Query) read(ctx context.Context, url string, sub Subscription, sink Sink) {
	defer q.wg.Done()
	eose := sub.EndOfStored()
	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case <-eose:
			eose = nil
			drain(events, url, sink)
			q.stored(url)
		case ev, ok := <-events:
			if !ok {
				if eose != nil {
					q.stored(url)
				}
				return
			}
			sink(url, ev)
		}
	}
}

// drain delivers events already buffered ahead of an EOSE.
func drain(events <-chan *nostr.Event, url string, sink Sink) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			sink(url, ev)
		default:
			return
		}
	}
}

// stored records one connection's EOSE.
func (q *Query) stored(url string) {
	slog.Debug("relay sent EOSE", "relay", url)
	q.mu.Lock()
	q.pending--
	last := q.pending == 0
	q.mu.Unlock()
	if last {
		q.finish()
	}
}

func (q *Query) finish() {
	q.once.Do(func() {
		if q.timer != nil {
			q.timer.Stop()
		}
		close(q.done)
	})
}

// Done closes when stored events have been delivered or the wait elapsed.
func (q *Query) Done() <-chan struct{} {
	return q.done
}

// Wait blocks until Done or ctx ends.
func (q *Query) Wait(ctx context.Context) error {
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends every subscription and waits for the readers to exit.
func (q *Query) Close() {
	q.cancel()
	for _, sub := range q.subs {
		sub.Unsub()
	}
	q.wg.Wait()
	q.finish()
}
