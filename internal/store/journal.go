package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nbd-wtf/go-nostr"
)

// Entry is one journaled event.
type Entry struct {
	Seq   int64
	Relay string
	Event nostr.Event
}

// Append journals ev as received from relayURL and reports whether it was
// new. Uses ON CONFLICT(id) DO NOTHING; a later copy of the same id keeps
// the first row.
func (s *Store) Append(ctx context.Context, relayURL string, ev *nostr.Event) (bool, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return false, fmt.Errorf("append event: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, seq, relay, kind, pubkey, created_at, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		ev.ID,
		s.clock.Next(),
		relayURL,
		ev.Kind,
		ev.PubKey,
		int64(ev.CreatedAt),
		string(raw),
	)
	if err != nil {
		return false, fmt.Errorf("append event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append event: %w", err)
	}
	return n == 1, nil
}

// Events returns every journaled event in seq order.
func (s *Store) Events(ctx context.Context) ([]Entry, error) {
	var out []Entry
	err := s.Replay(ctx, func(e Entry) error {
		out = append(out, e)
		return nil
	})
	return out, err
}

// Replay streams every journaled event in seq order to fn, stopping at the
// first error.
func (s *Store) Replay(ctx context.Context, fn func(Entry) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, relay, raw FROM events
		ORDER BY seq ASC, id ASC COLLATE BINARY
	`)
	if err != nil {
		return fmt.Errorf("replay events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e   Entry
			raw string
		)
		if err := rows.Scan(&e.Seq, &e.Relay, &raw); err != nil {
			return fmt.Errorf("replay events: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &e.Event); err != nil {
			return fmt.Errorf("replay event at seq %d: %w", e.Seq, err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("replay events: %w", err)
	}
	return nil
}

// Count returns the number of journaled events.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// CountByKind returns how many events of each kind are journaled.
func (s *Store) CountByKind(ctx context.Context) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM events
		GROUP BY kind
		ORDER BY kind ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("count events by kind: %w", err)
	}
	defer rows.Close()

	out := make(map[int]int)
	for rows.Next() {
		var kind, n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("count events by kind: %w", err)
		}
		out[kind] = n
	}
	return out, rows.Err()
}
