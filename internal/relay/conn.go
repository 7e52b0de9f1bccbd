// Package relay connects to relays, runs EOSE-tracked queries and
// broadcasts events.
//
// Conn and Subscription abstract one live connection so the pool can be
// driven by go-nostr in production and by scripted fakes in tests.
package relay

import (
	"context"

	"github.com/nbd-wtf/go-nostr"
)

// Conn is one open relay connection.
type Conn interface {
	URL() string
	Subscribe(ctx context.Context, filters nostr.Filters) (Subscription, error)
	Publish(ctx context.Context, ev nostr.Event) error
	Close() error
}

// Subscription is one REQ on one connection.
type Subscription interface {
	// Events delivers stored and live events. Closed when the
	// subscription ends.
	Events() <-chan *nostr.Event
	// EndOfStored fires once the relay sends EOSE.
	EndOfStored() <-chan struct{}
	Unsub()
}

// Dialer opens a connection.
type Dialer func(ctx context.Context, url string) (Conn, error)

// Dial opens a websocket connection with go-nostr.
func Dial(ctx context.Context, url string) (Conn, error) {
	r, err := nostr.RelayConnect(ctx, url)
	if err != nil {
		return nil, err
	}
	return &nostrConn{relay: r}, nil
}

type nostrConn struct {
	relay *nostr.Relay
}

func (c *nostrConn) URL() string { return c.relay.URL }

func (c *nostrConn) Subscribe(ctx context.Context, filters nostr.Filters) (Subscription, error) {
	sub, err := c.relay.Subscribe(ctx, filters)
	if err != nil {
		return nil, err
	}
	return &nostrSub{sub: sub}, nil
}

func (c *nostrConn) Publish(ctx context.Context, ev nostr.Event) error {
	return c.relay.Publish(ctx, ev)
}

func (c *nostrConn) Close() error { return c.relay.Close() }

type nostrSub struct {
	sub *nostr.Subscription
}

func (s *nostrSub) Events() <-chan *nostr.Event { return s.sub.Events }

func (s *nostrSub) EndOfStored() <-chan struct{} { return s.sub.EndOfStoredEvents }

func (s *nostrSub) Unsub() { s.sub.Unsub() }
