package record

import (
	"strconv"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/roach88/nostrcal/internal/period"
)

// BookingRequestTopic marks booking requests in a t tag.
const BookingRequestTopic = "booking-request"

// Event builds the unsigned kind 31924 event for c.
func (c Calendar) Event(at time.Time) nostr.Event {
	return nostr.Event{
		Kind:      KindCalendar,
		CreatedAt: nostr.Timestamp(at.Unix()),
		Tags: nostr.Tags{
			{"d", c.ID},
			{"title", c.Title},
		},
		Content: c.Description,
	}
}

// Event builds the unsigned kind 31926 event for t.
func (t AvailabilityTemplate) Event(at time.Time) nostr.Event {
	tags := nostr.Tags{{"d", t.ID}}
	if t.CalendarRef != "" {
		tags = append(tags, nostr.Tag{"a", t.CalendarRef})
	}
	maxAdvance := period.FormatAdvancePeriod(0)
	if t.MaxAdvanceDays != nil {
		maxAdvance = period.FormatAdvancePeriod(*t.MaxAdvanceDays)
	}
	tz := t.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	tags = append(tags,
		nostr.Tag{"title", t.Title},
		nostr.Tag{"tzid", tz},
		nostr.Tag{"duration", period.FormatDuration(t.DurationMinutes)},
		nostr.Tag{"interval", period.FormatDuration(t.IntervalMinutes)},
		nostr.Tag{"amount_sats", strconv.Itoa(t.AmountSats)},
		nostr.Tag{"buffer_before", period.FormatDuration(t.BufferBeforeMinutes)},
		nostr.Tag{"buffer_after", period.FormatDuration(t.BufferAfterMinutes)},
		nostr.Tag{"min_notice", period.FormatDuration(t.MinNoticeMinutes)},
		nostr.Tag{"max_advance", maxAdvance},
		nostr.Tag{"max_advance_business", strconv.FormatBool(t.MaxAdvanceBusinessDays)},
	)
	if t.Location != "" {
		tags = append(tags, nostr.Tag{"location", t.Location})
	}
	for i, win := range t.Weekly {
		if win.Enabled {
			tags = append(tags, nostr.Tag{"sch", string(DayCodes[i]), win.Start.String(), win.End.String()})
		}
	}
	return nostr.Event{
		Kind:      KindAvailabilityTemplate,
		CreatedAt: nostr.Timestamp(at.Unix()),
		Tags:      tags,
		Content:   t.Description,
	}
}

// Event builds the unsigned kind 31923 event for a booking request.
func (b BookingRequest) Event(at time.Time) nostr.Event {
	tz := b.StartTZ
	if tz == "" {
		tz = b.Start.Location().String()
	}
	tags := nostr.Tags{
		{"d", b.DTag},
		{"title", b.Title},
		{"start", strconv.FormatInt(b.Start.Unix(), 10)},
		{"end", strconv.FormatInt(b.End.Unix(), 10)},
		{"start_tzid", tz},
		{"end_tzid", tz},
	}
	if b.Summary != "" {
		tags = append(tags, nostr.Tag{"summary", b.Summary})
	}
	if b.Location != "" {
		tags = append(tags, nostr.Tag{"location", b.Location})
	}
	tags = append(tags,
		nostr.Tag{"p", b.Owner, "", "attendee"},
		nostr.Tag{"p", b.Author, "", "organizer"},
	)
	if b.TemplateRef != "" {
		tags = append(tags, nostr.Tag{"a", b.TemplateRef})
	}
	tags = append(tags, nostr.Tag{"t", BookingRequestTopic})
	return nostr.Event{
		Kind:      KindTimeEvent,
		CreatedAt: nostr.Timestamp(at.Unix()),
		Tags:      tags,
		Content:   b.Description,
	}
}

// Event builds the unsigned kind 31925 event for r.
func (r RSVP) Event(at time.Time) nostr.Event {
	tags := nostr.Tags{{"d", r.DTag}}
	if r.AddressRef != "" {
		tags = append(tags, nostr.Tag{"a", r.AddressRef})
	}
	if r.EventRef != "" {
		tags = append(tags, nostr.Tag{"e", r.EventRef})
	}
	if r.Invitee != "" {
		tags = append(tags, nostr.Tag{"p", r.Invitee})
	}
	tags = append(tags, nostr.Tag{"status", string(r.Status)})
	if r.FreeBusy != FreeBusyUnset {
		tags = append(tags, nostr.Tag{"fb", string(r.FreeBusy)})
	}
	return nostr.Event{
		Kind:      KindRSVP,
		CreatedAt: nostr.Timestamp(at.Unix()),
		Tags:      tags,
		Content:   r.Content,
	}
}

// Event builds the unsigned kind 5 event for d.
func (d Deletion) Event(at time.Time) nostr.Event {
	var tags nostr.Tags
	for _, id := range d.EventIDs {
		tags = append(tags, nostr.Tag{"e", id})
	}
	for _, addr := range d.Addresses {
		tags = append(tags, nostr.Tag{"a", addr.String()})
	}
	for _, k := range d.Kinds {
		tags = append(tags, nostr.Tag{"k", strconv.Itoa(k)})
	}
	return nostr.Event{
		Kind:      KindDeletion,
		CreatedAt: nostr.Timestamp(at.Unix()),
		Tags:      tags,
		Content:   d.Reason,
	}
}
