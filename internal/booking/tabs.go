package booking

import (
	"time"

	"github.com/roach88/nostrcal/internal/record"
)

// Tab is a host-side grouping of bookings.
type Tab string

const (
	TabUpcoming    Tab = "upcoming"
	TabUnconfirmed Tab = "unconfirmed"
	TabPast        Tab = "past"
	TabCanceled    Tab = "canceled"
)

// Tabs lists every tab in display order.
var Tabs = []Tab{TabUpcoming, TabUnconfirmed, TabPast, TabCanceled}

// ParseTab validates a tab name.
func ParseTab(s string) (Tab, bool) {
	for _, t := range Tabs {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// StatusOf derives a booking's status from its effective RSVP.
func StatusOf(effective *record.RSVP) record.Status {
	if effective == nil {
		return record.StatusPending
	}
	switch effective.Status {
	case record.StatusAccepted, record.StatusDeclined:
		return effective.Status
	default:
		return record.StatusPending
	}
}

// TabOf places a booking. Invalid pending requests and accepted bookings
// currently in progress belong to no tab.
func TabOf(status record.Status, valid bool, start, end, now time.Time) (Tab, bool) {
	switch status {
	case record.StatusAccepted:
		if start.After(now) {
			return TabUpcoming, true
		}
		if !end.After(now) {
			return TabPast, true
		}
		return "", false
	case record.StatusDeclined:
		return TabCanceled, true
	default:
		if valid {
			return TabUnconfirmed, true
		}
		return "", false
	}
}
