package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/nostrcal/internal/fault"
)

// DefaultConnectTimeout bounds each connection attempt.
const DefaultConnectTimeout = 5 * time.Second

// Observer receives connection and publish outcomes. Optional.
type Observer interface {
	ConnectFailed(url string)
	PublishResult(url string, outcome Outcome)
}

// Pool owns the set of live connections.
type Pool struct {
	dial     Dialer
	timeout  time.Duration
	observer Observer

	mu    sync.Mutex
	conns []Conn
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithConnectTimeout overrides DefaultConnectTimeout.
func WithConnectTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithObserver attaches an observer.
func WithObserver(o Observer) PoolOption {
	return func(p *Pool) { p.observer = o }
}

// NewPool creates a pool that opens connections with dial.
func NewPool(dial Dialer, opts ...PoolOption) *Pool {
	if dial == nil {
		dial = Dial
	}
	p := &Pool{dial: dial, timeout: DefaultConnectTimeout}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Connect dials every url in parallel, each bounded by the connect timeout.
// Failed relays are logged and left out. It fails only when no relay
// connects, and returns how many did.
func (p *Pool) Connect(ctx context.Context, urls []string) (int, error) {
	type result struct {
		conn Conn
		err  error
		url  string
	}

	results := make([]result, len(urls))
	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dctx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()
			conn, err := p.dial(dctx, url)
			if err == nil && dctx.Err() != nil {
				conn.Close()
				err = dctx.Err()
			}
			results[i] = result{conn: conn, err: err, url: url}
		}()
	}
	wg.Wait()

	var errs []error
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range results {
		if r.err != nil {
			slog.Warn("relay connect failed", "relay", r.url, "error", r.err)
			if p.observer != nil {
				p.observer.ConnectFailed(r.url)
			}
			errs = append(errs, fault.ConnectionFailed(r.url, r.err))
			continue
		}
		slog.Debug("relay connected", "relay", r.url)
		p.conns = append(p.conns, r.conn)
	}

	if len(p.conns) == 0 {
		return 0, fault.ConnectionFailed("", errors.Join(errs...))
	}
	return len(p.conns), nil
}

// Conns returns a snapshot of the live connections.
func (p *Pool) Conns() []Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.conns)
}

// URLs returns the URLs of the live connections.
func (p *Pool) URLs() []string {
	conns := p.Conns()
	urls := make([]string, len(conns))
	for i, c := range conns {
		urls[i] = c.URL()
	}
	return urls
}

// Close closes every connection and empties the pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	conns := p.conns
	p.conns = nil
	p.mu.Unlock()

	var errs []error
	for _, c := range conns {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.URL(), err))
		}
	}
	return errors.Join(errs...)
}
