package session

import (
	"context"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nostrcal/internal/busy"
	"github.com/roach88/nostrcal/internal/record"
	"github.com/roach88/nostrcal/internal/testutil"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Role: RoleHost})
	assert.Error(t, err)

	_, err = New(Options{Role: RoleHost, Self: hostKey, Owner: bookerKey})
	assert.Error(t, err)

	_, err = New(Options{Role: RoleBooker})
	assert.Error(t, err)

	s, err := New(Options{Role: RoleHost, Self: hostKey})
	require.NoError(t, err)
	assert.Equal(t, hostKey, s.Owner())
	assert.Equal(t, time.UTC, s.Location())
}

func TestIngest_Idempotent(t *testing.T) {
	s := newHostSession(t, testutil.NewFixedClock(at(0, 8, 0)))
	req := requestEvent("req-1", bookerKey, "booking-1", at(0, 10, 0), 30)
	events := []*nostr.Event{
		templateEvent("tpl-ev", monday),
		ownerEvent("own-1", "standup", at(0, 9, 0), 15),
		req,
		rsvpEvent("rsvp-1", hostKey, req, "accepted", "busy", monday),
	}

	for _, ev := range events {
		assert.Equal(t, OutcomeApplied, s.Ingest(ctx, "wss://a", ev), ev.ID)
	}
	entries := s.AllEntries()
	busyOnce := s.BusyOn(monday)

	for _, ev := range events {
		assert.Equal(t, OutcomeDuplicate, s.Ingest(ctx, "wss://b", ev), ev.ID)
	}
	assert.Equal(t, entries, s.AllEntries())
	assert.Equal(t, busyOnce, s.BusyOn(monday))
	assert.Equal(t, len(events), s.Seen())
}

func TestIngest_HostRouting(t *testing.T) {
	s := newHostSession(t, testutil.NewFixedClock(at(0, 8, 0)))

	s.Ingest(ctx, "", ownerEvent("own-1", "standup", at(0, 9, 0), 15))
	s.Ingest(ctx, "", requestEvent("req-1", bookerKey, "booking-1", at(0, 10, 0), 30))
	unrelated := testutil.Event("other-1", record.KindTimeEvent, strangerPK, monday,
		nostr.Tag{"d", "x"}, nostr.Tag{"start", testutil.Unix(at(0, 11, 0))})
	assert.Equal(t, OutcomeIgnored, s.Ingest(ctx, "", unrelated))

	require.Len(t, s.OwnerEvents(), 1)
	bookings := s.Bookings()
	require.Len(t, bookings, 1)
	assert.Equal(t, record.StatusPending, bookings[0].Status)
	assert.Equal(t, bookerKey, bookings[0].Booker())

	intervals := s.BusyOn(monday)
	require.Len(t, intervals, 1, "a pending request does not occupy the host")
	assert.Equal(t, "own-1", intervals[0].SourceID)
	assert.Equal(t, busy.ReasonOwnerTimeEvent, intervals[0].Reason)
}

func TestIngest_MalformedDropped(t *testing.T) {
	obs := newCountingObserver()
	s, err := New(Options{Role: RoleHost, Self: hostKey, Observer: obs})
	require.NoError(t, err)

	noStart := testutil.Event("bad-1", record.KindTimeEvent, hostKey, monday, nostr.Tag{"d", "x"})
	assert.Equal(t, OutcomeMalformed, s.Ingest(ctx, "", noStart))
	assert.Equal(t, OutcomeDuplicate, s.Ingest(ctx, "", noStart))
	assert.Equal(t, OutcomeIgnored, s.Ingest(ctx, "", testutil.Event("note", 1, hostKey, monday)))

	assert.Equal(t, 1, obs.malformed[record.KindTimeEvent])
	assert.Equal(t, 1, obs.duplicate)
	assert.Empty(t, s.OwnerEvents())
}

func TestIngest_VerifySignatures(t *testing.T) {
	s, err := New(Options{Role: RoleHost, Self: hostKey, VerifySignatures: true})
	require.NoError(t, err)

	forged := ownerEvent("forged", "standup", at(0, 9, 0), 15)
	assert.Equal(t, OutcomeMalformed, s.Ingest(ctx, "", forged))
	assert.Empty(t, s.OwnerEvents())
}

type recordingJournal struct {
	ids []string
}

func (j *recordingJournal) Append(_ context.Context, _ string, ev *nostr.Event) (bool, error) {
	j.ids = append(j.ids, ev.ID)
	return true, nil
}

func TestIngest_JournalsOnlyVerifiedDecodableEvents(t *testing.T) {
	j := &recordingJournal{}
	s, err := New(Options{Role: RoleHost, Self: hostKey, VerifySignatures: true, Journal: j})
	require.NoError(t, err)

	forged := ownerEvent("forged", "standup", at(0, 9, 0), 15)
	assert.Equal(t, OutcomeMalformed, s.Ingest(ctx, "", forged))

	noStart := testutil.Event("", record.KindTimeEvent, hostKey, monday, nostr.Tag{"d", "broken"})
	require.NoError(t, hostSigner.SignEvent(ctx, noStart))
	assert.Equal(t, OutcomeMalformed, s.Ingest(ctx, "", noStart))

	good := ownerEvent("", "standup", at(0, 9, 0), 15)
	require.NoError(t, hostSigner.SignEvent(ctx, good))
	assert.Equal(t, OutcomeApplied, s.Ingest(ctx, "", good))

	assert.Equal(t, []string{good.ID}, j.ids)
}

func TestRSVP_AcceptThenDeclineFreesTime(t *testing.T) {
	s := newHostSession(t, testutil.NewFixedClock(at(0, 8, 0)))
	req := requestEvent("req-1", bookerKey, "booking-1", at(0, 10, 0), 30)
	s.Ingest(ctx, "", req)

	s.Ingest(ctx, "", rsvpEvent("r1", hostKey, req, "accepted", "busy", monday.Add(time.Minute)))
	b, ok := s.Booking("req-1")
	require.True(t, ok)
	assert.Equal(t, record.StatusAccepted, b.Status)
	require.Len(t, s.BusyOn(monday), 1)
	assert.Equal(t, busy.ReasonAcceptedBooking, s.BusyOn(monday)[0].Reason)

	s.Ingest(ctx, "", rsvpEvent("r2", hostKey, req, "declined", "free", monday.Add(2*time.Minute)))
	b, _ = s.Booking("req-1")
	assert.Equal(t, record.StatusDeclined, b.Status)
	assert.Empty(t, s.BusyOn(monday))
}

func TestRSVP_LatestTimestampWinsRegardlessOfArrival(t *testing.T) {
	s := newHostSession(t, testutil.NewFixedClock(at(0, 8, 0)))
	req := requestEvent("req-1", bookerKey, "booking-1", at(0, 10, 0), 30)
	s.Ingest(ctx, "", req)

	s.Ingest(ctx, "", rsvpEvent("late", hostKey, req, "declined", "free", monday.Add(2*time.Minute)))
	s.Ingest(ctx, "", rsvpEvent("early", hostKey, req, "accepted", "busy", monday.Add(time.Minute)))

	b, _ := s.Booking("req-1")
	assert.Equal(t, record.StatusDeclined, b.Status)
	assert.Empty(t, s.BusyOn(monday))
	assert.Len(t, s.RSVPHistory("req-1"), 1, "host sessions prune superseded responses")
}

func TestRSVP_BeforeRequest(t *testing.T) {
	s := newHostSession(t, testutil.NewFixedClock(at(0, 8, 0)))
	req := requestEvent("req-1", bookerKey, "booking-1", at(0, 10, 0), 30)

	s.Ingest(ctx, "", rsvpEvent("r1", hostKey, req, "accepted", "busy", monday))
	assert.Empty(t, s.BusyOn(monday))

	s.Ingest(ctx, "", req)
	require.Len(t, s.BusyOn(monday), 1)
	assert.Equal(t, "req-1", s.BusyOn(monday)[0].SourceID)
}

func TestRSVP_AcceptedButFreeDoesNotBlock(t *testing.T) {
	s := newHostSession(t, testutil.NewFixedClock(at(0, 8, 0)))
	req := requestEvent("req-1", bookerKey, "booking-1", at(0, 10, 0), 30)
	s.Ingest(ctx, "", req)
	s.Ingest(ctx, "", rsvpEvent("r1", hostKey, req, "accepted", "free", monday))

	b, _ := s.Booking("req-1")
	assert.Equal(t, record.StatusAccepted, b.Status)
	assert.Empty(t, s.BusyOn(monday))
}

func TestRSVP_FromOthersIgnored(t *testing.T) {
	s := newHostSession(t, testutil.NewFixedClock(at(0, 8, 0)))
	req := requestEvent("req-1", bookerKey, "booking-1", at(0, 10, 0), 30)
	s.Ingest(ctx, "", req)

	assert.Equal(t, OutcomeIgnored, s.Ingest(ctx, "", rsvpEvent("r1", strangerPK, req, "accepted", "busy", monday)))
	b, _ := s.Booking("req-1")
	assert.Equal(t, record.StatusPending, b.Status)
}

func TestBooker_KeepsFullHistory(t *testing.T) {
	s := newBookerSession(t, testutil.NewFixedClock(at(0, 8, 0)))
	req := requestEvent("req-1", bookerKey, "booking-1", at(0, 10, 0), 30)
	s.Ingest(ctx, "", req)
	s.Ingest(ctx, "", rsvpEvent("r1", hostKey, req, "accepted", "busy", monday.Add(time.Minute)))
	s.Ingest(ctx, "", rsvpEvent("r2", hostKey, req, "declined", "free", monday.Add(2*time.Minute)))

	history := s.RSVPHistory("req-1")
	require.Len(t, history, 2)
	assert.Equal(t, "r2", history[0].ID)
	assert.Empty(t, s.BusyOn(monday))
}

func TestBooker_SeesOwnersBusyTime(t *testing.T) {
	s := newBookerSession(t, testutil.NewFixedClock(at(0, 8, 0)))
	s.Ingest(ctx, "", templateEvent("tpl-ev", monday))
	s.Ingest(ctx, "", ownerEvent("own-1", "standup", at(0, 10, 0), 30))

	other := requestEvent("req-2", strangerPK, "booking-2", at(0, 11, 0), 30)
	s.Ingest(ctx, "", other)
	s.Ingest(ctx, "", rsvpEvent("r1", hostKey, other, "accepted", "busy", monday))

	res, ok := s.Resolver("tpl-1")
	require.True(t, ok)
	unavailable := map[string]bool{}
	for _, slot := range res.Slots(monday, at(0, 8, 0)) {
		if !slot.Available {
			unavailable[slot.Label] = true
		}
	}
	assert.Equal(t, map[string]bool{"10:00 AM": true, "11:00 AM": true}, unavailable)
}

func TestValidation_SurfacedNotBlocking(t *testing.T) {
	s := newHostSession(t, testutil.NewFixedClock(at(0, 8, 0)))
	s.Ingest(ctx, "", templateEvent("tpl-ev", monday))
	s.Ingest(ctx, "", requestEvent("ok", bookerKey, "b1", at(0, 10, 0), 30))
	s.Ingest(ctx, "", requestEvent("long", bookerKey, "b2", at(0, 11, 0), 31))
	s.Ingest(ctx, "", requestEvent("weekend", bookerKey, "b3", at(5, 10, 0), 30))

	byID := map[string]Booking{}
	for _, b := range s.Bookings() {
		byID[b.ID] = b
	}
	require.Len(t, byID, 3)
	assert.True(t, byID["ok"].Valid)
	assert.False(t, byID["long"].Valid)
	assert.Contains(t, byID["long"].Problem, "duration")
	assert.False(t, byID["weekend"].Valid)
	assert.Contains(t, byID["weekend"].Problem, "SA")
}

func TestReplacement_LastSeenWinsByDTag(t *testing.T) {
	s := newHostSession(t, testutil.NewFixedClock(at(0, 8, 0)))
	s.Ingest(ctx, "", ownerEvent("v1", "standup", at(0, 9, 0), 15))
	s.Ingest(ctx, "", ownerEvent("v2", "standup", at(0, 13, 0), 15))

	events := s.OwnerEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "v2", events[0].ID)

	intervals := s.BusyOn(monday)
	require.Len(t, intervals, 1)
	assert.Equal(t, "v2", intervals[0].SourceID)
}

func TestDateEvents_SpanAndParticipation(t *testing.T) {
	s := newHostSession(t, testutil.NewFixedClock(at(0, 8, 0)))
	s.Ingest(ctx, "", dateEvent("d1", hostKey, "offsite", "2025-03-11", "2025-03-12"))
	s.Ingest(ctx, "", dateEvent("d2", strangerPK, "wedding", "2025-03-14", "2025-03-14", nostr.Tag{"p", hostKey}))
	assert.Equal(t, OutcomeIgnored, s.Ingest(ctx, "", dateEvent("d3", strangerPK, "party", "2025-03-14", "2025-03-14")))

	assert.Len(t, s.DateEvents(), 2)
	assert.Equal(t, []string{"2025-03-11", "2025-03-12", "2025-03-14"}, s.BusyDates())

	on := s.EventsOn(at(2, 12, 0))
	require.Len(t, on, 1)
	assert.Equal(t, EntryAllDay, on[0].Type)
	assert.True(t, on[0].AllDay)
}

func TestDeletion_RemovesOwnTargetsOnly(t *testing.T) {
	s := newHostSession(t, testutil.NewFixedClock(at(0, 8, 0)))
	s.Ingest(ctx, "", ownerEvent("own-1", "standup", at(0, 9, 0), 15))
	s.Ingest(ctx, "", requestEvent("req-1", bookerKey, "booking-1", at(0, 10, 0), 30))

	s.Ingest(ctx, "", deletionEvent("del-x", strangerPK, monday, nostr.Tag{"e", "own-1"}))
	assert.Len(t, s.OwnerEvents(), 1)

	s.Ingest(ctx, "", deletionEvent("del-1", hostKey, monday, nostr.Tag{"e", "own-1"}, nostr.Tag{"k", "31923"}))
	assert.Empty(t, s.OwnerEvents())
	assert.Empty(t, s.BusyOn(monday))

	s.Ingest(ctx, "", deletionEvent("del-2", bookerKey, monday,
		nostr.Tag{"a", "31923:" + bookerKey + ":booking-1"}))
	assert.Empty(t, s.Bookings())
}

func TestDeletion_ForeignDeletionKeepsTombstone(t *testing.T) {
	s := newHostSession(t, testutil.NewFixedClock(at(0, 8, 0)))
	s.Ingest(ctx, "", deletionEvent("del-1", hostKey, monday, nostr.Tag{"e", "own-1"}))
	s.Ingest(ctx, "", deletionEvent("del-x", strangerPK, monday, nostr.Tag{"e", "own-1"}))

	assert.Equal(t, OutcomeIgnored, s.Ingest(ctx, "", ownerEvent("own-1", "standup", at(0, 9, 0), 15)))
	assert.Empty(t, s.OwnerEvents())
}

func TestDeletion_BeforeTarget(t *testing.T) {
	s := newHostSession(t, testutil.NewFixedClock(at(0, 8, 0)))
	s.Ingest(ctx, "", deletionEvent("del-1", hostKey, monday, nostr.Tag{"a", templateAddr}))

	assert.Equal(t, OutcomeIgnored, s.Ingest(ctx, "", templateEvent("old", monday.Add(-time.Hour))))
	assert.Empty(t, s.Templates())

	assert.Equal(t, OutcomeApplied, s.Ingest(ctx, "", templateEvent("new", monday.Add(time.Hour))))
	assert.Len(t, s.Templates(), 1)
}

func TestReset_ClearsStateAndDropsStaleDeliveries(t *testing.T) {
	s := newHostSession(t, testutil.NewFixedClock(at(0, 8, 0)))
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(runCtx)

	sink := s.Sink()
	sink("wss://a", ownerEvent("own-1", "standup", at(0, 9, 0), 15))
	require.NoError(t, s.Sync(runCtx))
	require.Len(t, s.OwnerEvents(), 1)

	s.Reset()
	assert.Empty(t, s.OwnerEvents())
	assert.Empty(t, s.BusyDates())
	assert.Zero(t, s.Seen())

	sink("wss://a", ownerEvent("own-2", "retro", at(0, 14, 0), 15))
	require.NoError(t, s.Sync(runCtx))
	assert.Empty(t, s.OwnerEvents(), "sink bound before the reset must be ignored")

	s.Sink()("wss://a", ownerEvent("own-1", "standup", at(0, 9, 0), 15))
	require.NoError(t, s.Sync(runCtx))
	assert.Len(t, s.OwnerEvents(), 1, "ledger was cleared by the reset")
}

func TestRun_StopDrainsAndReturns(t *testing.T) {
	s := newHostSession(t, testutil.NewFixedClock(at(0, 8, 0)))
	s.Deliver("wss://a", ownerEvent("own-1", "standup", at(0, 9, 0), 15))
	s.Stop()

	require.NoError(t, s.Run(context.Background()))
	assert.Len(t, s.OwnerEvents(), 1)
	assert.ErrorIs(t, s.Sync(context.Background()), ErrStopped)
}

func TestUpdates_Signalled(t *testing.T) {
	s := newHostSession(t, testutil.NewFixedClock(at(0, 8, 0)))
	s.Ingest(ctx, "", ownerEvent("own-1", "standup", at(0, 9, 0), 15))

	select {
	case <-s.Updates():
	default:
		t.Fatal("expected an update signal")
	}
}
