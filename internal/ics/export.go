// Package ics renders projected calendar entries as an iCalendar feed.
package ics

import (
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/roach88/nostrcal/internal/record"
	"github.com/roach88/nostrcal/internal/session"
)

// ProductID identifies the exporter in PRODID.
const ProductID = "-//nostrcal//NIP-52 export//EN"

// Export builds a VCALENDAR with one VEVENT per entry. stamp is written
// as DTSTAMP so output is reproducible.
func Export(name string, entries []session.Entry, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, e := range entries {
		ev := cal.AddEvent(e.ID + "@nostrcal")
		ev.SetDtStampTime(stamp)
		if e.AllDay {
			ev.SetAllDayStartAt(e.Start)
			// DTEND is exclusive for all-day events.
			y, m, d := e.End.Date()
			ev.SetAllDayEndAt(time.Date(y, m, d+1, 0, 0, 0, 0, e.End.Location()))
		} else {
			ev.SetStartAt(e.Start)
			ev.SetEndAt(e.End)
		}
		ev.SetSummary(e.Title)
		if e.Location != "" {
			ev.SetLocation(e.Location)
		}
		if desc := description(e); desc != "" {
			ev.SetDescription(desc)
		}
		ev.SetStatus(status(e))
		ev.SetProperty(ical.ComponentProperty("X-NOSTRCAL-TYPE"), string(e.Type))
	}
	return cal
}

// Write serializes the calendar to w.
func Write(w io.Writer, name string, entries []session.Entry, stamp time.Time) error {
	_, err := io.WriteString(w, Export(name, entries, stamp).Serialize())
	return err
}

func status(e session.Entry) ical.ObjectStatus {
	switch e.Type {
	case session.EntryBookingRequest, session.EntryInvalidRequest:
		return ical.ObjectStatusTentative
	}
	if e.Status == record.StatusDeclined {
		return ical.ObjectStatusCancelled
	}
	return ical.ObjectStatusConfirmed
}

func description(e session.Entry) string {
	var parts []string
	if e.Description != "" {
		parts = append(parts, e.Description)
	}
	if e.Counterparty != "" {
		parts = append(parts, "With: "+e.Counterparty)
	}
	if e.Problem != "" {
		parts = append(parts, "Problem: "+e.Problem)
	}
	return strings.Join(parts, "\n")
}
