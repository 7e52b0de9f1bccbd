package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nbd-wtf/go-nostr"

	"github.com/roach88/nostrcal/internal/relay"
	"github.com/roach88/nostrcal/internal/signer"
)

// Transport is the relay surface a Client drives. *relay.Pool implements it.
type Transport interface {
	Query(ctx context.Context, filters nostr.Filters, wait time.Duration, sink relay.Sink) *relay.Query
	Publish(ctx context.Context, ev nostr.Event, timeout time.Duration) relay.Report
	URLs() []string
}

// IDGenerator mints d tags for new events.
type IDGenerator interface {
	NewID(prefix string) string
}

type uuidIDs struct{}

func (uuidIDs) NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// QueryWait is the fallback deadline for EOSE on Load.
	QueryWait time.Duration

	// PublishTimeout bounds each relay's OK.
	PublishTimeout time.Duration

	// HistoryDays bounds how far back a host loads all-day events.
	HistoryDays int

	// TemplateID names the template a booker session loads.
	TemplateID string

	// IDs defaults to random UUIDs.
	IDs IDGenerator
}

// Client couples a session with relays and a signer. Load fills the
// session; the commands publish new events and ingest them on success.
//
// The session's Run loop must be running for Load to complete.
type Client struct {
	s         *Session
	transport Transport
	signer    signer.Signer
	opts      ClientOptions

	mu   sync.Mutex
	live []*relay.Query
}

// NewClient creates a client. sg may be nil for read-only bookers.
func NewClient(s *Session, t Transport, sg signer.Signer, opts ClientOptions) *Client {
	if opts.QueryWait <= 0 {
		opts.QueryWait = relay.DefaultQueryWait
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = relay.DefaultPublishTimeout
	}
	if opts.IDs == nil {
		opts.IDs = uuidIDs{}
	}
	return &Client{s: s, transport: t, signer: sg, opts: opts}
}

// Session returns the client's session.
func (c *Client) Session() *Session {
	return c.s
}

// Filters returns the subscription filters for the session role.
func (c *Client) Filters() nostr.Filters {
	if c.s.Role() == RoleBooker {
		return BookerFilters(c.s.Owner(), c.opts.TemplateID, c.s.Now())
	}
	return HostFilters(c.s.Self(), c.s.Now(), c.opts.HistoryDays)
}

// Load subscribes on every relay and returns once each has sent EOSE (or
// the query wait elapsed) and everything received so far is ingested.
// The subscription stays open until Refresh, Reset or Close, and later
// events still reach the session.
func (c *Client) Load(ctx context.Context) error {
	q := c.transport.Query(ctx, c.Filters(), c.opts.QueryWait, c.s.Sink())
	c.mu.Lock()
	c.live = append(c.live, q)
	c.mu.Unlock()

	if err := q.Wait(ctx); err != nil {
		return err
	}
	return c.s.Sync(ctx)
}

// Refresh replaces the open subscriptions with a fresh Load. Events seen
// before are deduplicated by the session.
func (c *Client) Refresh(ctx context.Context) error {
	c.closeQueries()
	return c.Load(ctx)
}

// Reset closes the subscriptions and clears the session. Responses to the
// closed subscriptions that are still queued are dropped.
func (c *Client) Reset() {
	c.closeQueries()
	c.s.Reset()
}

// Close ends every open subscription.
func (c *Client) Close() {
	c.closeQueries()
}

func (c *Client) closeQueries() {
	c.mu.Lock()
	live := c.live
	c.live = nil
	c.mu.Unlock()

	for _, q := range live {
		q.Close()
	}
}
