package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nbd-wtf/go-nostr"

	"github.com/roach88/nostrcal/internal/relay"
)

// FakeConn is a scripted relay connection.
//
// Each Subscribe replays Stored followed by EOSE (unless SkipEOSE).
// Publish returns PublishErr, or blocks until the context ends when
// HangOnPublish is set.
type FakeConn struct {
	url string

	mu            sync.Mutex
	Stored        []*nostr.Event
	SkipEOSE      bool
	PublishErr    error
	HangOnPublish bool
	Published     []nostr.Event
	Filters       []nostr.Filters
	subs          []*FakeSub
	closed        bool
}

// NewFakeConn creates a connection for url that serves stored.
func NewFakeConn(url string, stored ...*nostr.Event) *FakeConn {
	return &FakeConn{url: url, Stored: stored}
}

// URL implements relay.Conn.
func (c *FakeConn) URL() string { return c.url }

// Subscribe implements relay.Conn.
func (c *FakeConn) Subscribe(ctx context.Context, filters nostr.Filters) (relay.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("connection closed")
	}
	c.Filters = append(c.Filters, filters)

	sub := &FakeSub{
		events: make(chan *nostr.Event, len(c.Stored)+64),
		eose:   make(chan struct{}, 1),
	}
	for _, ev := range c.Stored {
		sub.events <- ev
	}
	if !c.SkipEOSE {
		sub.eose <- struct{}{}
	}
	c.subs = append(c.subs, sub)
	return sub, nil
}

// Push delivers a live event to every open subscription.
func (c *FakeConn) Push(ev *nostr.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sub := range c.subs {
		sub.send(ev)
	}
}

// Publish implements relay.Conn.
func (c *FakeConn) Publish(ctx context.Context, ev nostr.Event) error {
	c.mu.Lock()
	hang, err := c.HangOnPublish, c.PublishErr
	c.Published = append(c.Published, ev)
	c.mu.Unlock()

	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

// PublishedEvents returns a copy of everything published so far.
func (c *FakeConn) PublishedEvents() []nostr.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]nostr.Event(nil), c.Published...)
}

// Close implements relay.Conn.
func (c *FakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for _, sub := range c.subs {
		sub.Unsub()
	}
	return nil
}

// Closed reports whether Close was called.
func (c *FakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// FakeSub is a FakeConn subscription.
type FakeSub struct {
	mu     sync.Mutex
	events chan *nostr.Event
	eose   chan struct{}
	done   bool
}

// Events implements relay.Subscription.
func (s *FakeSub) Events() <-chan *nostr.Event { return s.events }

// EndOfStored implements relay.Subscription.
func (s *FakeSub) EndOfStored() <-chan struct{} { return s.eose }

// Unsub implements relay.Subscription.
func (s *FakeSub) Unsub() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.done {
		s.done = true
		close(s.events)
	}
}

func (s *FakeSub) send(ev *nostr.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.done {
		s.events <- ev
	}
}

// FakeNetwork maps URLs to fake connections. URLs listed in Down fail to
// dial; URLs in Hang block until the dial context ends.
type FakeNetwork struct {
	mu    sync.Mutex
	Conns map[string]*FakeConn
	Down  map[string]bool
	Hang  map[string]bool
}

// NewFakeNetwork creates a network serving conns.
func NewFakeNetwork(conns ...*FakeConn) *FakeNetwork {
	n := &FakeNetwork{
		Conns: make(map[string]*FakeConn),
		Down:  make(map[string]bool),
		Hang:  make(map[string]bool),
	}
	for _, c := range conns {
		n.Conns[c.URL()] = c
	}
	return n
}

// Dial implements relay.Dialer.
func (n *FakeNetwork) Dial(ctx context.Context, url string) (relay.Conn, error) {
	n.mu.Lock()
	conn, ok := n.Conns[url]
	down, hang := n.Down[url], n.Hang[url]
	n.mu.Unlock()

	switch {
	case hang:
		<-ctx.Done()
		return nil, ctx.Err()
	case down || !ok:
		return nil, fmt.Errorf("dial %s: connection refused", url)
	}
	return conn, nil
}
