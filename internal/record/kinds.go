package record

// Event kinds understood by the client.
const (
	KindDeletion             = 5
	KindDateEvent            = 31922
	KindTimeEvent            = 31923
	KindCalendar             = 31924
	KindRSVP                 = 31925
	KindAvailabilityTemplate = 31926
)

// KindName returns a short label for logs.
func KindName(kind int) string {
	switch kind {
	case KindDeletion:
		return "deletion"
	case KindDateEvent:
		return "date_event"
	case KindTimeEvent:
		return "time_event"
	case KindCalendar:
		return "calendar"
	case KindRSVP:
		return "rsvp"
	case KindAvailabilityTemplate:
		return "availability_template"
	default:
		return "unknown"
	}
}

// Status is a booking or RSVP status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusDeclined  Status = "declined"
	StatusTentative Status = "tentative"
	StatusUnknown   Status = "unknown"
)

// FreeBusy is the optional fb tag of an RSVP.
type FreeBusy string

const (
	FreeBusyUnset FreeBusy = ""
	FreeBusyBusy  FreeBusy = "busy"
	FreeBusyFree  FreeBusy = "free"
)

func parseStatus(s string) Status {
	switch Status(s) {
	case StatusAccepted, StatusDeclined, StatusTentative:
		return Status(s)
	default:
		return StatusUnknown
	}
}

func parseFreeBusy(s string) FreeBusy {
	switch FreeBusy(s) {
	case FreeBusyBusy, FreeBusyFree:
		return FreeBusy(s)
	default:
		return FreeBusyUnset
	}
}
