package record

import (
	"slices"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/roach88/nostrcal/internal/period"
)

// Record is any decoded event.
type Record interface {
	EventID() string
	EventKind() int
}

// Calendar is a named collection (kind 31924), keyed by its d tag.
type Calendar struct {
	ID          string
	EventRef    string
	Author      string
	Title       string
	Description string
	CreatedAt   time.Time
	Source      *nostr.Event
}

func (c Calendar) EventID() string { return c.EventRef }
func (c Calendar) EventKind() int  { return KindCalendar }

// Address returns the calendar's replaceable address.
func (c Calendar) Address() Address {
	return Address{Kind: KindCalendar, Author: c.Author, Identifier: c.ID}
}

// AvailabilityTemplate is a recurring weekly booking definition (kind 31926).
type AvailabilityTemplate struct {
	ID                  string
	EventRef            string
	Author              string
	CalendarRef         string
	Title               string
	Description         string
	Location            string
	Timezone            string
	AmountSats          int
	DurationMinutes     int
	IntervalMinutes     int
	BufferBeforeMinutes int
	BufferAfterMinutes  int
	MinNoticeMinutes    int

	// MaxAdvanceDays limits how far ahead a booking may be placed.
	// Nil means unlimited.
	MaxAdvanceDays *int

	// MaxAdvanceText is the raw max_advance token, kept for the editor.
	MaxAdvanceText string

	// MaxAdvanceBusinessDays counts MaxAdvanceDays in weekdays only.
	MaxAdvanceBusinessDays bool

	Weekly    Weekly
	CreatedAt time.Time
	Source    *nostr.Event
}

func (t AvailabilityTemplate) EventID() string { return t.EventRef }
func (t AvailabilityTemplate) EventKind() int  { return KindAvailabilityTemplate }

// Address returns the template's replaceable address.
func (t AvailabilityTemplate) Address() Address {
	return Address{Kind: KindAvailabilityTemplate, Author: t.Author, Identifier: t.ID}
}

// EditorMaxAdvanceDays is the editor's reading of max_advance: a missing or
// unreadable token shows as the default and P0D shows as 0.
func (t AvailabilityTemplate) EditorMaxAdvanceDays() int {
	return period.ParseAdvancePeriod(t.MaxAdvanceText, period.DefaultAdvanceDays)
}

// DateEvent is an all-day event (kind 31922). Start is midnight of the
// first day and End is 23:59:59 of the last day, both inclusive.
type DateEvent struct {
	ID           string
	DTag         string
	Author       string
	Title        string
	Location     string
	Description  string
	StartDate    string
	EndDate      string
	Start        time.Time
	End          time.Time
	Participants []string
	CreatedAt    time.Time
	Source       *nostr.Event
}

func (e DateEvent) EventID() string { return e.ID }
func (e DateEvent) EventKind() int  { return KindDateEvent }

// Address returns the event's replaceable address.
func (e DateEvent) Address() Address {
	return Address{Kind: KindDateEvent, Author: e.Author, Identifier: e.DTag}
}

// TimeEvent is a timed event (kind 31923).
type TimeEvent struct {
	ID           string
	DTag         string
	Author       string
	Title        string
	Summary      string
	Location     string
	Description  string
	StartTZ      string
	Start        time.Time
	End          time.Time
	Participants []string
	TemplateRef  string
	CreatedAt    time.Time
	Source       *nostr.Event
}

func (e TimeEvent) EventID() string { return e.ID }
func (e TimeEvent) EventKind() int  { return KindTimeEvent }

// Address returns the event's replaceable address.
func (e TimeEvent) Address() Address {
	return Address{Kind: KindTimeEvent, Author: e.Author, Identifier: e.DTag}
}

// HasParticipant reports whether key is tagged as a participant.
func (e TimeEvent) HasParticipant(key string) bool {
	return slices.Contains(e.Participants, key)
}

// BookingRequest is a time event authored by a booker that tags the owner.
type BookingRequest struct {
	TimeEvent
	Owner string
}

// Booker returns the requesting identity.
func (b BookingRequest) Booker() string { return b.Author }

// TemplateID returns the identifier segment of the template reference.
func (b BookingRequest) TemplateID() string {
	addr, err := ParseAddress(b.TemplateRef)
	if err != nil {
		return ""
	}
	return addr.Identifier
}

// AsBookingRequest classifies ev relative to owner. It succeeds when ev is
// authored by someone else and tags owner as a participant.
func AsBookingRequest(ev TimeEvent, owner string) (BookingRequest, bool) {
	if ev.Author == owner || !ev.HasParticipant(owner) {
		return BookingRequest{}, false
	}
	return BookingRequest{TimeEvent: ev, Owner: owner}, true
}

// RSVP is a response to a booking (kind 31925).
type RSVP struct {
	ID         string
	DTag       string
	Author     string
	Status     Status
	FreeBusy   FreeBusy
	EventRef   string
	AddressRef string
	Invitee    string
	Content    string
	CreatedAt  time.Time
	Source     *nostr.Event
}

func (r RSVP) EventID() string { return r.ID }
func (r RSVP) EventKind() int  { return KindRSVP }

// Refs returns the references the RSVP answers, direct id first.
func (r RSVP) Refs() []string {
	refs := make([]string, 0, 2)
	if r.EventRef != "" {
		refs = append(refs, r.EventRef)
	}
	if r.AddressRef != "" {
		refs = append(refs, r.AddressRef)
	}
	return refs
}

// Blocks reports whether the response commits the owner's time.
func (r RSVP) Blocks() bool {
	return r.Status == StatusAccepted && r.FreeBusy == FreeBusyBusy
}

// Deletion retracts earlier events (kind 5).
type Deletion struct {
	ID        string
	Author    string
	EventIDs  []string
	Addresses []Address
	Kinds     []int
	Reason    string
	CreatedAt time.Time
	Source    *nostr.Event
}

func (d Deletion) EventID() string { return d.ID }
func (d Deletion) EventKind() int  { return KindDeletion }

// Targets reports whether the deletion names id or addr.
func (d Deletion) Targets(id string, addr Address) bool {
	if slices.Contains(d.EventIDs, id) {
		return true
	}
	return !addr.IsZero() && slices.Contains(d.Addresses, addr)
}
