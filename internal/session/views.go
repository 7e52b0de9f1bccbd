package session

import (
	"cmp"
	"errors"
	"slices"
	"time"

	"github.com/roach88/nostrcal/internal/availability"
	"github.com/roach88/nostrcal/internal/booking"
	"github.com/roach88/nostrcal/internal/busy"
	"github.com/roach88/nostrcal/internal/fault"
	"github.com/roach88/nostrcal/internal/record"
)

// Booking is a booking request with its live-resolved status.
type Booking struct {
	record.BookingRequest

	Status record.Status
	Valid  bool

	// Problem names the first failed validation rule of an invalid request.
	Problem string

	Effective *record.RSVP
}

// Tab places the booking in a host tab.
func (b Booking) Tab(now time.Time) (booking.Tab, bool) {
	return booking.TabOf(b.Status, b.Valid, b.Start, b.End, now)
}

// Calendars returns the owner's calendars ordered by title.
func (s *Session) Calendars() []record.Calendar {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]record.Calendar, 0, len(s.calendars))
	for _, c := range s.calendars {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b record.Calendar) int {
		return cmp.Or(cmp.Compare(a.Title, b.Title), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// Calendar returns the owner's calendar with d tag id.
func (s *Session) Calendar(id string) (record.Calendar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.calendars[id]
	return c, ok
}

// Templates returns the owner's availability templates ordered by title.
func (s *Session) Templates() []record.AvailabilityTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]record.AvailabilityTemplate, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b record.AvailabilityTemplate) int {
		return cmp.Or(cmp.Compare(a.Title, b.Title), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// Template returns the owner's template with d tag id.
func (s *Session) Template(id string) (record.AvailabilityTemplate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookupTemplate(id)
}

// lookupTemplate is a booking.TemplateLookup. Caller holds s.mu.
func (s *Session) lookupTemplate(id string) (record.AvailabilityTemplate, bool) {
	addr := record.Address{Kind: record.KindAvailabilityTemplate, Author: s.owner, Identifier: id}
	t, ok := s.templates[addr.String()]
	return t, ok
}

// DateEvents returns the all-day events occupying the owner, by start.
func (s *Session) DateEvents() []record.DateEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]record.DateEvent, 0, len(s.dateEvents))
	for _, ev := range s.dateEvents {
		out = append(out, ev)
	}
	slices.SortFunc(out, func(a, b record.DateEvent) int {
		return cmp.Or(a.Start.Compare(b.Start), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// OwnerEvents returns the owner's own timed events, by start.
func (s *Session) OwnerEvents() []record.TimeEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]record.TimeEvent, 0, len(s.ownerEvents))
	for _, ev := range s.ownerEvents {
		out = append(out, ev)
	}
	slices.SortFunc(out, func(a, b record.TimeEvent) int {
		return cmp.Or(a.Start.Compare(b.Start), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// Bookings returns every booking request with its resolved status, by start.
func (s *Session) Bookings() []Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bookings()
}

func (s *Session) bookings() []Booking {
	out := make([]Booking, 0, len(s.requests))
	for _, req := range s.requests {
		out = append(out, s.bookingOf(req))
	}
	slices.SortFunc(out, func(a, b Booking) int {
		return cmp.Or(a.Start.Compare(b.Start), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// Booking returns the booking request with event id id.
func (s *Session) Booking(id string) (Booking, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return Booking{}, false
	}
	return s.bookingOf(req), true
}

func (s *Session) bookingOf(req record.BookingRequest) Booking {
	b := Booking{BookingRequest: req}
	if eff, ok := s.rsvps.Effective(req.ID, req.Address().String()); ok {
		b.Effective = &eff
	}
	b.Status = booking.StatusOf(b.Effective)

	err := s.validator.Check(req, s.lookupTemplate)
	var fe *fault.Error
	switch {
	case err == nil:
		b.Valid = true
	case errors.As(err, &fe):
		b.Problem = fe.Message
	default:
		b.Problem = err.Error()
	}
	return b
}

// RSVPHistory returns the RSVPs recorded for ref, newest first. Host
// sessions keep only the effective one.
func (s *Session) RSVPHistory(ref string) []record.RSVP {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rsvps.History(ref)
}

// BusyOn returns the owner's busy intervals touching date.
func (s *Session) BusyOn(date time.Time) []busy.Interval {
	return s.lockedBusy().On(busy.DateKey(date, s.loc))
}

// BusyDates returns every date key with a busy interval.
func (s *Session) BusyDates() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy.Dates()
}

// Seen returns the number of distinct event ids processed.
func (s *Session) Seen() int {
	return s.ledger.Len()
}

// Resolver returns an availability resolver for the owner's template id,
// reading the live busy set.
func (s *Session) Resolver(templateID string) (*availability.Resolver, bool) {
	tpl, ok := s.Template(templateID)
	if !ok {
		return nil, false
	}
	return availability.NewResolver(tpl, s.lockedBusy(), s.loc), true
}

// lockedBusy reads the busy set under the session lock.
type lockedBusy struct {
	s *Session
}

func (s *Session) lockedBusy() lockedBusy {
	return lockedBusy{s: s}
}

func (l lockedBusy) On(dateKey string) []busy.Interval {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	return l.s.busy.On(dateKey)
}
