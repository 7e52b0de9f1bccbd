package session

import (
	"cmp"
	"slices"
	"time"

	"github.com/roach88/nostrcal/internal/booking"
	"github.com/roach88/nostrcal/internal/busy"
	"github.com/roach88/nostrcal/internal/record"
)

// EntryType classifies a calendar entry for display.
type EntryType string

const (
	EntryBookingRequest   EntryType = "booking-request"
	EntryInvalidRequest   EntryType = "invalid-request"
	EntryConfirmedMeeting EntryType = "confirmed-meeting"
	EntryOwnerEvent       EntryType = "owner-event"
	EntryAllDay           EntryType = "all-day-event"
)

// Entry is one row of the projected calendar.
type Entry struct {
	Type         EntryType     `json:"type"`
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Start        time.Time     `json:"start"`
	End          time.Time     `json:"end"`
	AllDay       bool          `json:"all_day"`
	Location     string        `json:"location,omitempty"`
	Description  string        `json:"description,omitempty"`
	Counterparty string        `json:"counterparty,omitempty"`
	Status       record.Status `json:"status,omitempty"`
	Problem      string        `json:"problem,omitempty"`
}

// AllEntries projects every owner event, all-day event and booking into
// calendar entries ordered by start then id. Declined bookings are left out.
func (s *Session) AllEntries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for _, ev := range s.ownerEvents {
		out = append(out, Entry{
			Type:        EntryOwnerEvent,
			ID:          ev.ID,
			Title:       ev.Title,
			Start:       ev.Start,
			End:         ev.End,
			Location:    ev.Location,
			Description: ev.Description,
		})
	}
	for _, ev := range s.dateEvents {
		e := Entry{
			Type:        EntryAllDay,
			ID:          ev.ID,
			Title:       ev.Title,
			Start:       ev.Start,
			End:         ev.End,
			AllDay:      true,
			Location:    ev.Location,
			Description: ev.Description,
		}
		if ev.Author != s.owner {
			e.Counterparty = ev.Author
		}
		out = append(out, e)
	}
	for _, b := range s.bookings() {
		e := Entry{
			ID:           b.ID,
			Title:        b.Title,
			Start:        b.Start,
			End:          b.End,
			Location:     b.Location,
			Description:  b.Description,
			Counterparty: b.Booker(),
			Status:       b.Status,
		}
		switch {
		case b.Status == record.StatusDeclined:
			continue
		case b.Status == record.StatusAccepted:
			e.Type = EntryConfirmedMeeting
		case b.Valid:
			e.Type = EntryBookingRequest
		default:
			e.Type = EntryInvalidRequest
			e.Problem = b.Problem
		}
		out = append(out, e)
	}

	slices.SortFunc(out, func(a, b Entry) int {
		return cmp.Or(a.Start.Compare(b.Start), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// EventsOn returns the entries on date: timed entries starting that day and
// all-day entries whose span covers it.
func (s *Session) EventsOn(date time.Time) []Entry {
	key := busy.DateKey(date, s.loc)

	var out []Entry
	for _, e := range s.AllEntries() {
		first := busy.DateKey(e.Start, s.loc)
		if e.AllDay {
			if first <= key && key <= busy.DateKey(e.End, s.loc) {
				out = append(out, e)
			}
			continue
		}
		if first == key {
			out = append(out, e)
		}
	}
	return out
}

// BookingTab returns the bookings in tab. Upcoming and unconfirmed list
// soonest first; past and canceled list most recent first.
func (s *Session) BookingTab(tab booking.Tab, now time.Time) []Booking {
	var out []Booking
	for _, b := range s.Bookings() {
		if t, ok := b.Tab(now); ok && t == tab {
			out = append(out, b)
		}
	}
	if tab == booking.TabPast || tab == booking.TabCanceled {
		slices.Reverse(out)
	}
	return out
}
