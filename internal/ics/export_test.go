package ics

import (
	"bytes"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nostrcal/internal/record"
	"github.com/roach88/nostrcal/internal/session"
)

var stamp = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func entries() []session.Entry {
	return []session.Entry{
		{
			Type:   session.EntryAllDay,
			ID:     "holiday",
			Title:  "Holiday",
			Start:  time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
			End:    time.Date(2025, 3, 13, 23, 59, 59, 0, time.UTC),
			AllDay: true,
		},
		{
			Type:         session.EntryConfirmedMeeting,
			ID:           "req-1",
			Title:        "Meeting Request",
			Start:        time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
			End:          time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC),
			Location:     "Online Meeting",
			Description:  "Intro call",
			Counterparty: "npub1booker",
			Status:       record.StatusAccepted,
		},
		{
			Type:    session.EntryInvalidRequest,
			ID:      "req-2",
			Title:   "Meeting Request",
			Start:   time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC),
			End:     time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC),
			Status:  record.StatusPending,
			Problem: "SA is not an available day",
		},
	}
}

func TestExport_ParsesBack(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "Host", entries(), stamp))

	cal, err := ical.ParseCalendar(&buf)
	require.NoError(t, err)

	events := cal.Events()
	require.Len(t, events, 3)

	byID := make(map[string]*ical.VEvent)
	for _, ev := range events {
		byID[ev.Id()] = ev
	}

	holiday := byID["holiday@nostrcal"]
	require.NotNil(t, holiday)
	assert.Equal(t, "20250312", holiday.GetProperty(ical.ComponentPropertyDtStart).Value)
	assert.Equal(t, "20250314", holiday.GetProperty(ical.ComponentPropertyDtEnd).Value)

	meeting := byID["req-1@nostrcal"]
	require.NotNil(t, meeting)
	assert.Equal(t, "CONFIRMED", meeting.GetProperty(ical.ComponentPropertyStatus).Value)
	assert.Equal(t, "Online Meeting", meeting.GetProperty(ical.ComponentPropertyLocation).Value)
	start, err := meeting.GetStartAt()
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)))

	invalid := byID["req-2@nostrcal"]
	require.NotNil(t, invalid)
	assert.Equal(t, "TENTATIVE", invalid.GetProperty(ical.ComponentPropertyStatus).Value)
	assert.Contains(t, invalid.GetProperty(ical.ComponentPropertyDescription).Value, "SA is not an available day")
}

func TestExport_Empty(t *testing.T) {
	out := Export("", nil, stamp).Serialize()
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, ProductID)
	assert.NotContains(t, out, "BEGIN:VEVENT")
}
