package busy

import (
	"slices"

	"github.com/roach88/nostrcal/internal/record"
)

// Subject is what the classifier needs to know about an event.
type Subject struct {
	Kind         int
	Author       string
	Owner        string
	Participants []string

	// Effective is the effective RSVP for a booking, if any.
	Effective *record.RSVP
}

// Classification reasons.
const (
	ReasonOwnerDateEvent      = "owner date-based calendar event"
	ReasonOwnerTimeEvent      = "owner time-based calendar event"
	ReasonParticipantDate     = "date-based event involving owner"
	ReasonAcceptedBooking     = "booking request with effective accepted RSVP"
	ReasonNonBlockingResponse = "booking request with non-blocking RSVP"
	ReasonNoResponse          = "booking request without RSVP response"
	ReasonUnrelated           = "event not related to owner"
	ReasonNotCalendarKind     = "not a calendar event kind"
)

// Classify decides whether an event occupies the owner's time.
//
//	kind        author==owner  owner tagged  effective RSVP          busy
//	date event  yes            -             -                       yes
//	date event  no             yes           -                       yes
//	time event  yes            -             -                       yes
//	time event  no             yes           accepted and fb=busy    yes
//	time event  no             yes           anything else or none   no
func Classify(s Subject) (bool, string) {
	switch s.Kind {
	case record.KindDateEvent, record.KindTimeEvent:
	default:
		return false, ReasonNotCalendarKind
	}

	if s.Author == s.Owner {
		if s.Kind == record.KindDateEvent {
			return true, ReasonOwnerDateEvent
		}
		return true, ReasonOwnerTimeEvent
	}
	if !slices.Contains(s.Participants, s.Owner) {
		return false, ReasonUnrelated
	}
	if s.Kind == record.KindDateEvent {
		return true, ReasonParticipantDate
	}
	switch {
	case s.Effective == nil:
		return false, ReasonNoResponse
	case s.Effective.Blocks():
		return true, ReasonAcceptedBooking
	default:
		return false, ReasonNonBlockingResponse
	}
}
