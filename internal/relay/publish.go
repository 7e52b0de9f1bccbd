package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/roach88/nostrcal/internal/fault"
)

// DefaultPublishTimeout bounds the wait for each relay's OK.
const DefaultPublishTimeout = 5 * time.Second

// Outcome is one relay's answer to a publish.
type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeRejected
	OutcomeTimedOut
)

// MarshalText renders the outcome name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	default:
		return "timed_out"
	}
}

// Result is the outcome for one relay.
type Result struct {
	Relay   string  `json:"relay"`
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
}

// Report collects every relay's outcome for one event.
type Report struct {
	EventID string   `json:"event_id"`
	Results []Result `json:"results"`
}

// Count returns how many relays answered with o.
func (r Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Confirmed reports whether at least one relay accepted.
func (r Report) Confirmed() bool {
	return r.Count(OutcomeAccepted) > 0
}

// Err is nil when any relay accepted. When none accepted it carries every
// rejection reason. A publish that only timed out is treated as sent.
func (r Report) Err() error {
	if len(r.Results) == 0 {
		return fault.ConnectionFailed("", errors.New("no open relay connections"))
	}
	if r.Confirmed() {
		return nil
	}
	var reasons []string
	for _, res := range r.Results {
		if res.Outcome == OutcomeRejected {
			reasons = append(reasons, fmt.Sprintf("%s: %s", res.Relay, res.Reason))
		}
	}
	if len(reasons) == 0 {
		return nil
	}
	return fault.PublishRejected(r.EventID, reasons)
}

// Publish sends ev to every connection in parallel and waits up to timeout
// for each OK. timeout <= 0 uses DefaultPublishTimeout.
func (p *Pool) Publish(ctx context.Context, ev nostr.Event, timeout time.Duration) Report {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	conns := p.Conns()
	report := Report{EventID: ev.ID, Results: make([]Result, len(conns))}

	var wg sync.WaitGroup
	for i, conn := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			report.Results[i] = classify(conn.URL(), conn.Publish(pctx, ev))
		}()
	}
	wg.Wait()

	for _, res := range report.Results {
		if p.observer != nil {
			p.observer.PublishResult(res.Relay, res.Outcome)
		}
		switch res.Outcome {
		case OutcomeAccepted:
			slog.Debug("relay accepted event", "relay", res.Relay, "event", ev.ID)
		case OutcomeRejected:
			slog.Warn("relay rejected event", "relay", res.Relay, "event", ev.ID, "reason", res.Reason)
		default:
			slog.Warn("relay did not acknowledge event", "relay", res.Relay, "event", ev.ID)
		}
	}
	return report
}

func classify(url string, err error) Result {
	switch {
	case err == nil:
		return Result{Relay: url, Outcome: OutcomeAccepted}
	case errors.Is(err, context.DeadlineExceeded):
		return Result{Relay: url, Outcome: OutcomeTimedOut, Reason: err.Error()}
	default:
		return Result{Relay: url, Outcome: OutcomeRejected, Reason: strings.TrimPrefix(err.Error(), "msg: ")}
	}
}
