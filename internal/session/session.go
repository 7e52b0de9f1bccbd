package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/roach88/nostrcal/internal/booking"
	"github.com/roach88/nostrcal/internal/busy"
	"github.com/roach88/nostrcal/internal/ledger"
	"github.com/roach88/nostrcal/internal/record"
	"github.com/roach88/nostrcal/internal/relay"
	"github.com/roach88/nostrcal/internal/rsvp"
)

var (
	// ErrNotFound is returned by commands that name an unknown entity.
	ErrNotFound = errors.New("not found")

	// ErrStopped is returned by Sync once the inbox is closed.
	ErrStopped = errors.New("session stopped")
)

// Role selects whose calendar the session reconstructs.
type Role int

const (
	RoleHost Role = iota
	RoleBooker
)

func (r Role) String() string {
	if r == RoleBooker {
		return "booker"
	}
	return "host"
}

// Observer receives ingest outcomes. Optional.
type Observer interface {
	Ingested(kind int)
	Duplicate()
	Malformed(kind int)
}

// Journal persists raw events the first time they are seen with a valid
// signature and decodable tags. Optional.
type Journal interface {
	Append(ctx context.Context, relayURL string, ev *nostr.Event) (bool, error)
}

// Options configures a Session.
type Options struct {
	Role Role

	// Self is the signed-in identity. Required for hosts.
	Self string

	// Owner is whose time is being reconstructed. Hosts default to Self;
	// bookers must name the template author.
	Owner string

	// Location interprets dates, weekdays and window clock times.
	Location *time.Location

	// Now defaults to time.Now.
	Now func() time.Time

	// VerifySignatures drops events whose signature does not check out.
	VerifySignatures bool

	Observer Observer
	Journal  Journal
}

// Outcome is what Ingest did with an event.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeDuplicate
	OutcomeMalformed
	OutcomeIgnored
	OutcomeStale
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeStale:
		return "stale"
	default:
		return "ignored"
	}
}

// Session is the single-writer view of one owner's calendar.
//
// Thread-safety model:
//   - Deliver, Sink, Sync, Stop: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//   - Ingest, Reset and the accessors: safe from any goroutine, serialized
//     by the session lock
type Session struct {
	role     Role
	self     string
	owner    string
	loc      *time.Location
	now      func() time.Time
	verify   bool
	observer Observer
	journal  Journal

	decoder   *record.Decoder
	validator *booking.Validator
	queue     *inbox
	updates   chan struct{}

	mu          sync.RWMutex
	gen         uint64
	ledger      *ledger.Ledger
	rsvps       *rsvp.Engine
	busy        *busy.Set
	calendars   map[string]record.Calendar
	templates   map[string]record.AvailabilityTemplate
	dateEvents  map[string]record.DateEvent
	ownerEvents map[string]record.TimeEvent
	requests    map[string]record.BookingRequest
	tombIDs     map[tombKey]struct{}
	tombAddrs   map[string]time.Time
}

// tombKey is an event id deleted by one author. Only the event's own
// author can retract it, so a deletion by anyone else never masks it.
type tombKey struct {
	id     string
	author string
}

// New creates a session.
func New(opts Options) (*Session, error) {
	owner := opts.Owner
	switch opts.Role {
	case RoleHost:
		if opts.Self == "" {
			return nil, errors.New("host session requires a signed-in identity")
		}
		if owner == "" {
			owner = opts.Self
		}
		if owner != opts.Self {
			return nil, errors.New("host session owner must be the signed-in identity")
		}
	case RoleBooker:
		if owner == "" {
			return nil, errors.New("booker session requires an owner")
		}
	default:
		return nil, fmt.Errorf("unknown role %d", opts.Role)
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	mode := rsvp.PruneToEffective
	if opts.Role == RoleBooker {
		mode = rsvp.KeepFullHistory
	}

	s := &Session{
		role:      opts.Role,
		self:      opts.Self,
		owner:     owner,
		loc:       loc,
		now:       now,
		verify:    opts.VerifySignatures,
		observer:  opts.Observer,
		journal:   opts.Journal,
		decoder:   record.NewDecoder(loc),
		validator: booking.NewValidator(loc),
		queue:     newInbox(),
		updates:   make(chan struct{}, 1),
		ledger:    ledger.New(),
		rsvps:     rsvp.New(mode),
		busy:      busy.NewSet(loc),
	}
	s.clear()
	return s, nil
}

func (s *Session) clear() {
	s.calendars = make(map[string]record.Calendar)
	s.templates = make(map[string]record.AvailabilityTemplate)
	s.dateEvents = make(map[string]record.DateEvent)
	s.ownerEvents = make(map[string]record.TimeEvent)
	s.requests = make(map[string]record.BookingRequest)
	s.tombIDs = make(map[tombKey]struct{})
	s.tombAddrs = make(map[string]time.Time)
}

// Role returns the session role.
func (s *Session) Role() Role { return s.role }

// Self returns the signed-in identity, empty for anonymous bookers.
func (s *Session) Self() string { return s.self }

// Owner returns the identity whose calendar is reconstructed.
func (s *Session) Owner() string { return s.owner }

// Location returns the session location.
func (s *Session) Location() *time.Location { return s.loc }

// Now returns the session's current time.
func (s *Session) Now() time.Time { return s.now() }

// Updates signals after state changes. Signals coalesce.
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

func (s *Session) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Ingest processes one raw event under the current generation.
func (s *Session) Ingest(ctx context.Context, relayURL string, ev *nostr.Event) Outcome {
	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()
	return s.ingest(ctx, gen, relayURL, ev)
}

func (s *Session) ingest(ctx context.Context, gen uint64, relayURL string, ev *nostr.Event) Outcome {
	if ev == nil {
		return OutcomeIgnored
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		slog.Debug("dropping event from before reset", "relay", relayURL, "event", ev.ID)
		return OutcomeStale
	}
	if !s.ledger.Mark(ev.ID) {
		if s.observer != nil {
			s.observer.Duplicate()
		}
		return OutcomeDuplicate
	}
	if s.verify {
		if ok, err := ev.CheckSignature(); err != nil || !ok {
			slog.Debug("dropping event with bad signature", "relay", relayURL, "event", ev.ID, "kind", ev.Kind)
			if s.observer != nil {
				s.observer.Malformed(ev.Kind)
			}
			return OutcomeMalformed
		}
	}

	rec, err := s.decoder.Decode(ev)
	if err != nil {
		slog.Debug("dropping malformed event", "relay", relayURL, "event", ev.ID, "kind", ev.Kind, "error", err)
		if s.observer != nil {
			s.observer.Malformed(ev.Kind)
		}
		return OutcomeMalformed
	}
	if rec == nil {
		return OutcomeIgnored
	}
	if s.journal != nil {
		if _, err := s.journal.Append(ctx, relayURL, ev); err != nil {
			slog.Warn("journal append failed", "event", ev.ID, "error", err)
		}
	}
	if !s.apply(rec) {
		return OutcomeIgnored
	}

	if s.observer != nil {
		s.observer.Ingested(ev.Kind)
	}
	s.notify()
	return OutcomeApplied
}

// apply routes a decoded record. Caller holds s.mu.
func (s *Session) apply(rec record.Record) bool {
	switch r := rec.(type) {
	case record.Calendar:
		if r.Author != s.owner || s.tombstoned(r.EventRef, r.Author, r.Address(), r.CreatedAt) {
			return false
		}
		s.calendars[r.ID] = r
		return true

	case record.AvailabilityTemplate:
		if r.Author != s.owner || s.tombstoned(r.EventRef, r.Author, r.Address(), r.CreatedAt) {
			return false
		}
		s.templates[r.Address().String()] = r
		return true

	case record.DateEvent:
		return s.applyDateEvent(r)

	case record.TimeEvent:
		return s.applyTimeEvent(r)

	case record.RSVP:
		return s.applyRSVP(r)

	case record.Deletion:
		return s.applyDeletion(r)
	}
	return false
}

func (s *Session) applyDateEvent(ev record.DateEvent) bool {
	isBusy, reason := busy.Classify(busy.Subject{
		Kind:         record.KindDateEvent,
		Author:       ev.Author,
		Owner:        s.owner,
		Participants: ev.Participants,
	})
	if !isBusy || s.tombstoned(ev.ID, ev.Author, ev.Address(), ev.CreatedAt) {
		return false
	}
	if old, ok := s.dateEvents[ev.DTag]; ok {
		s.busy.Remove(old.ID)
	}
	s.dateEvents[ev.DTag] = ev
	s.busy.Add(busy.Interval{
		Start:     ev.Start,
		End:       ev.End,
		SourceID:  ev.ID,
		Title:     ev.Title,
		Kind:      record.KindDateEvent,
		Reason:    reason,
		CreatedAt: ev.CreatedAt,
	})
	return true
}

func (s *Session) applyTimeEvent(ev record.TimeEvent) bool {
	if s.tombstoned(ev.ID, ev.Author, ev.Address(), ev.CreatedAt) {
		return false
	}
	if ev.Author == s.owner {
		_, reason := busy.Classify(busy.Subject{Kind: record.KindTimeEvent, Author: ev.Author, Owner: s.owner})
		if old, ok := s.ownerEvents[ev.DTag]; ok {
			s.busy.Remove(old.ID)
		}
		s.ownerEvents[ev.DTag] = ev
		s.busy.Add(timeInterval(ev, reason))
		return true
	}

	req, ok := record.AsBookingRequest(ev, s.owner)
	if !ok {
		return false
	}
	s.requests[req.ID] = req
	s.reclassify(req)
	return true
}

func (s *Session) applyRSVP(r record.RSVP) bool {
	if r.Author != s.owner {
		return false
	}
	for _, t := range s.rsvps.Record(r) {
		if !t.StatusChanged() {
			continue
		}
		for _, req := range s.requestsFor(t.Ref) {
			slog.Debug("booking status changed", "booking", req.ID, "status", t.After.Status, "fb", t.After.FreeBusy)
			s.reclassify(req)
		}
	}
	return true
}

// requestsFor finds the requests a reference names, by id or address.
func (s *Session) requestsFor(ref string) []record.BookingRequest {
	if req, ok := s.requests[ref]; ok {
		return []record.BookingRequest{req}
	}
	var out []record.BookingRequest
	for _, req := range s.requests {
		if req.Address().String() == ref {
			out = append(out, req)
		}
	}
	return out
}

// reclassify recomputes a request's busy membership from its effective RSVP.
func (s *Session) reclassify(req record.BookingRequest) {
	subject := busy.Subject{
		Kind:         record.KindTimeEvent,
		Author:       req.Author,
		Owner:        s.owner,
		Participants: req.Participants,
	}
	if eff, ok := s.rsvps.Effective(req.ID, req.Address().String()); ok {
		subject.Effective = &eff
	}
	isBusy, reason := busy.Classify(subject)
	s.busy.Remove(req.ID)
	if isBusy {
		s.busy.Add(timeInterval(req.TimeEvent, reason))
	}
}

func timeInterval(ev record.TimeEvent, reason string) busy.Interval {
	return busy.Interval{
		Start:     ev.Start,
		End:       ev.End,
		SourceID:  ev.ID,
		Title:     ev.Title,
		Kind:      record.KindTimeEvent,
		Reason:    reason,
		CreatedAt: ev.CreatedAt,
	}
}

// applyDeletion removes targets authored by the deletion's author and
// remembers them so a copy arriving later from another relay stays gone.
func (s *Session) applyDeletion(d record.Deletion) bool {
	for _, id := range d.EventIDs {
		s.tombIDs[tombKey{id: id, author: d.Author}] = struct{}{}
	}
	for _, addr := range d.Addresses {
		if addr.Author != d.Author {
			continue
		}
		key := addr.String()
		if prev, ok := s.tombAddrs[key]; !ok || d.CreatedAt.After(prev) {
			s.tombAddrs[key] = d.CreatedAt
		}
	}

	removed := 0
	for key, c := range s.calendars {
		if c.Author == d.Author && d.Targets(c.EventRef, c.Address()) {
			delete(s.calendars, key)
			removed++
		}
	}
	for key, t := range s.templates {
		if t.Author == d.Author && d.Targets(t.EventRef, t.Address()) {
			delete(s.templates, key)
			removed++
		}
	}
	for key, ev := range s.dateEvents {
		if ev.Author == d.Author && d.Targets(ev.ID, ev.Address()) {
			delete(s.dateEvents, key)
			s.busy.Remove(ev.ID)
			removed++
		}
	}
	for key, ev := range s.ownerEvents {
		if ev.Author == d.Author && d.Targets(ev.ID, ev.Address()) {
			delete(s.ownerEvents, key)
			s.busy.Remove(ev.ID)
			removed++
		}
	}
	for key, req := range s.requests {
		if req.Author == d.Author && d.Targets(req.ID, req.Address()) {
			delete(s.requests, key)
			s.busy.Remove(req.ID)
			s.rsvps.Forget(req.ID)
			s.rsvps.Forget(req.Address().String())
			removed++
		}
	}
	slog.Debug("deletion applied", "event", d.ID, "author", d.Author, "removed", removed)
	return true
}

// tombstoned reports whether an earlier deletion covers the record. An
// address deletion only covers versions created at or before it.
func (s *Session) tombstoned(id, author string, addr record.Address, createdAt time.Time) bool {
	if _, ok := s.tombIDs[tombKey{id: id, author: author}]; ok {
		return true
	}
	if at, ok := s.tombAddrs[addr.String()]; ok && !createdAt.After(at) {
		return true
	}
	return false
}

// Reset clears all derived state and starts a new generation.
func (s *Session) Reset() {
	s.mu.Lock()
	s.gen++
	s.ledger.Reset()
	s.rsvps.Reset()
	s.busy.Reset()
	s.clear()
	gen := s.gen
	s.mu.Unlock()

	slog.Debug("session reset", "generation", gen)
	s.notify()
}

// Deliver queues ev for the Run loop under the current generation.
func (s *Session) Deliver(relayURL string, ev *nostr.Event) bool {
	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()
	return s.queue.Enqueue(delivery{gen: gen, relay: relayURL, ev: ev})
}

// Sink returns a relay sink bound to the current generation. Events it
// receives after a Reset are dropped.
func (s *Session) Sink() relay.Sink {
	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()
	return func(relayURL string, ev *nostr.Event) {
		s.queue.Enqueue(delivery{gen: gen, relay: relayURL, ev: ev})
	}
}

// Sync blocks until everything queued before the call has been ingested.
// Requires Run.
func (s *Session) Sync(ctx context.Context) error {
	ack := make(chan struct{})
	if !s.queue.Enqueue(delivery{ack: ack}) {
		return ErrStopped
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the inbox until ctx ends or Stop is called.
//
// Must be called from exactly one goroutine.
func (s *Session) Run(ctx context.Context) error {
	slog.Debug("session starting", "role", s.role, "owner", s.owner)

	for {
		if d, ok := s.queue.TryDequeue(); ok {
			s.process(ctx, d)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Debug("session stopping: context cancelled")
			s.queue.Close()
			return ctx.Err()

		case _, open := <-s.queue.Wait():
			if !open && s.queue.Len() == 0 {
				slog.Debug("session stopping: inbox closed")
				return nil
			}
		}
	}
}

func (s *Session) process(ctx context.Context, d delivery) {
	if d.ev == nil {
		if d.ack != nil {
			close(d.ack)
		}
		return
	}
	s.ingest(ctx, d.gen, d.relay, d.ev)
}

// Stop closes the inbox. Run returns once it is drained.
func (s *Session) Stop() {
	s.queue.Close()
}
