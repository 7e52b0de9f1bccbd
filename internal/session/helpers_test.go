package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nostrcal/internal/record"
	"github.com/roach88/nostrcal/internal/signer"
	"github.com/roach88/nostrcal/internal/testutil"
)

var (
	hostSigner   = mustSigner("0000000000000000000000000000000000000000000000000000000000000001")
	bookerSigner = mustSigner("0000000000000000000000000000000000000000000000000000000000000002")

	hostKey    = hostSigner.Pub()
	bookerKey  = bookerSigner.Pub()
	strangerPK = mustSigner("0000000000000000000000000000000000000000000000000000000000000003").Pub()
)

func mustSigner(secret string) *signer.KeySigner {
	s, err := signer.FromKey(secret)
	if err != nil {
		panic(err)
	}
	return s
}

// monday is Monday 2025-03-10 00:00 UTC.
var monday = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func at(day, hour, minute int) time.Time {
	return monday.AddDate(0, 0, day).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

var ctx = context.Background()

func newHostSession(t *testing.T, clock *testutil.FixedClock) *Session {
	t.Helper()
	s, err := New(Options{Role: RoleHost, Self: hostKey, Location: time.UTC, Now: clock.Now})
	require.NoError(t, err)
	return s
}

func newBookerSession(t *testing.T, clock *testutil.FixedClock) *Session {
	t.Helper()
	s, err := New(Options{Role: RoleBooker, Self: bookerKey, Owner: hostKey, Location: time.UTC, Now: clock.Now})
	require.NoError(t, err)
	return s
}

// templateAddr is the address of the template built by templateEvent.
var templateAddr = record.Address{Kind: record.KindAvailabilityTemplate, Author: hostKey, Identifier: "tpl-1"}.String()

// templateEvent is a 30 minute weekday template, 09:00-17:00, no limits.
func templateEvent(id string, createdAt time.Time) *nostr.Event {
	tags := []nostr.Tag{
		{"d", "tpl-1"},
		{"title", "Office Hours"},
		{"duration", "PT30M"},
		{"max_advance", "P0D"},
	}
	for _, day := range []string{"MO", "TU", "WE", "TH", "FR"} {
		tags = append(tags, nostr.Tag{"sch", day, "09:00", "17:00"})
	}
	return testutil.Event(id, record.KindAvailabilityTemplate, hostKey, createdAt, tags...)
}

func ownerEvent(id, dTag string, start time.Time, minutes int) *nostr.Event {
	return testutil.Event(id, record.KindTimeEvent, hostKey, start.Add(-time.Hour),
		nostr.Tag{"d", dTag},
		nostr.Tag{"title", "Standup"},
		nostr.Tag{"start", testutil.Unix(start)},
		nostr.Tag{"end", testutil.Unix(start.Add(time.Duration(minutes) * time.Minute))},
	)
}

func dateEvent(id, author, dTag, first, last string, tags ...nostr.Tag) *nostr.Event {
	all := append([]nostr.Tag{
		{"d", dTag},
		{"title", "Offsite"},
		{"start", first},
		{"end", last},
	}, tags...)
	return testutil.Event(id, record.KindDateEvent, author, monday, all...)
}

func requestEvent(id, booker, dTag string, start time.Time, minutes int) *nostr.Event {
	return testutil.Event(id, record.KindTimeEvent, booker, monday.Add(-24*time.Hour),
		nostr.Tag{"d", dTag},
		nostr.Tag{"title", "Meeting Request"},
		nostr.Tag{"start", testutil.Unix(start)},
		nostr.Tag{"end", testutil.Unix(start.Add(time.Duration(minutes) * time.Minute))},
		nostr.Tag{"p", hostKey, "", "attendee"},
		nostr.Tag{"p", booker, "", "organizer"},
		nostr.Tag{"a", templateAddr},
		nostr.Tag{"t", record.BookingRequestTopic},
	)
}

func rsvpEvent(id, author string, req *nostr.Event, status, fb string, createdAt time.Time) *nostr.Event {
	dTag := ""
	for _, tag := range req.Tags {
		if tag[0] == "d" {
			dTag = tag[1]
		}
	}
	return testutil.Event(id, record.KindRSVP, author, createdAt,
		nostr.Tag{"d", "rsvp-" + id},
		nostr.Tag{"a", fmt.Sprintf("%d:%s:%s", record.KindTimeEvent, req.PubKey, dTag)},
		nostr.Tag{"e", req.ID},
		nostr.Tag{"p", req.PubKey},
		nostr.Tag{"status", status},
		nostr.Tag{"fb", fb},
	)
}

func deletionEvent(id, author string, createdAt time.Time, tags ...nostr.Tag) *nostr.Event {
	return testutil.Event(id, record.KindDeletion, author, createdAt, tags...)
}

// countingObserver tallies ingest outcomes.
type countingObserver struct {
	mu        sync.Mutex
	ingested  map[int]int
	duplicate int
	malformed map[int]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{ingested: make(map[int]int), malformed: make(map[int]int)}
}

func (o *countingObserver) Ingested(kind int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ingested[kind]++
}

func (o *countingObserver) Duplicate() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.duplicate++
}

func (o *countingObserver) Malformed(kind int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.malformed[kind]++
}
