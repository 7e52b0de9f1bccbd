package record

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/nostrcal/internal/fault"
	"github.com/roach88/nostrcal/internal/period"
)

// Tag defaults applied when an optional tag is absent.
const (
	DefaultCalendarTitle  = "Untitled Calendar"
	DefaultTemplateTitle  = "Untitled Template"
	DefaultDateEventTitle = "All-Day Event"
	DefaultTimeEventTitle = "Meeting"
	DefaultDuration       = "PT30M"
	DefaultTimezone       = "UTC"
	DefaultMaxAdvance     = "P30D"
	DefaultLocation       = "Online Meeting"

	// DefaultEventLength is the span given to a time event without an end tag.
	DefaultEventLength = 60 * time.Minute
)

const dateLayout = "2006-01-02"

// Decoder turns raw events into records. Date-only tags are interpreted in
// the decoder's location.
type Decoder struct {
	loc *time.Location
}

// NewDecoder creates a decoder for loc. A nil loc means UTC.
func NewDecoder(loc *time.Location) *Decoder {
	if loc == nil {
		loc = time.UTC
	}
	return &Decoder{loc: loc}
}

// Location returns the decoder's location.
func (d *Decoder) Location() *time.Location {
	return d.loc
}

// Decode dispatches on ev.Kind. Unknown kinds return (nil, nil).
func (d *Decoder) Decode(ev *nostr.Event) (Record, error) {
	switch ev.Kind {
	case KindCalendar:
		return d.Calendar(ev)
	case KindAvailabilityTemplate:
		return d.Template(ev)
	case KindDateEvent:
		return d.DateEvent(ev)
	case KindTimeEvent:
		return d.TimeEvent(ev)
	case KindRSVP:
		return d.RSVP(ev)
	case KindDeletion:
		return d.Deletion(ev)
	default:
		return nil, nil
	}
}

// Calendar decodes a kind 31924 event.
func (d *Decoder) Calendar(ev *nostr.Event) (Calendar, error) {
	id, ok := tagValue(ev.Tags, "d")
	if !ok {
		return Calendar{}, fault.Malformed(ev.Kind, ev.ID, "d tag")
	}
	return Calendar{
		ID:          id,
		EventRef:    ev.ID,
		Author:      ev.PubKey,
		Title:       text(tagOr(ev.Tags, "title", DefaultCalendarTitle)),
		Description: text(ev.Content),
		CreatedAt:   ev.CreatedAt.Time(),
		Source:      ev,
	}, nil
}

// Template decodes a kind 31926 event.
func (d *Decoder) Template(ev *nostr.Event) (AvailabilityTemplate, error) {
	id, ok := tagValue(ev.Tags, "d")
	if !ok {
		return AvailabilityTemplate{}, fault.Malformed(ev.Kind, ev.ID, "d tag")
	}

	durationText := tagOr(ev.Tags, "duration", DefaultDuration)
	duration := period.ParseDuration(durationText)
	if duration <= 0 {
		duration = period.ParseDuration(DefaultDuration)
	}
	interval := period.ParseDuration(tagOr(ev.Tags, "interval", durationText))
	if interval <= 0 {
		interval = duration
	}
	amount, _ := strconv.Atoi(tagOr(ev.Tags, "amount_sats", "0"))
	maxAdvance := tagOr(ev.Tags, "max_advance", DefaultMaxAdvance)

	calendarRef, _ := tagValue(ev.Tags, "a")
	return AvailabilityTemplate{
		ID:                     id,
		EventRef:               ev.ID,
		Author:                 ev.PubKey,
		CalendarRef:            calendarRef,
		Title:                  text(tagOr(ev.Tags, "title", DefaultTemplateTitle)),
		Description:            text(ev.Content),
		Location:               tagOr(ev.Tags, "location", DefaultLocation),
		Timezone:               tagOr(ev.Tags, "tzid", DefaultTimezone),
		AmountSats:             amount,
		DurationMinutes:        duration,
		IntervalMinutes:        interval,
		BufferBeforeMinutes:    period.ParseDuration(tagOr(ev.Tags, "buffer_before", "PT0S")),
		BufferAfterMinutes:     period.ParseDuration(tagOr(ev.Tags, "buffer_after", "PT0S")),
		MinNoticeMinutes:       period.ParseDuration(tagOr(ev.Tags, "min_notice", "PT0S")),
		MaxAdvanceDays:         period.ParseAdvanceLimit(maxAdvance),
		MaxAdvanceText:         maxAdvance,
		MaxAdvanceBusinessDays: tagOr(ev.Tags, "max_advance_business", "false") == "true",
		Weekly:                 parseSchedule(ev.Tags),
		CreatedAt:              ev.CreatedAt.Time(),
		Source:                 ev,
	}, nil
}

// parseSchedule reads sch tags. Every day starts disabled; each tag enables
// its day, filling missing bounds with the default window.
func parseSchedule(tags nostr.Tags) Weekly {
	var w Weekly
	for _, tag := range tags {
		if len(tag) < 2 || tag[0] != "sch" {
			continue
		}
		wd, ok := WeekdayOf(DayCode(tag[1]))
		if !ok {
			continue
		}
		start, end := DefaultWindowStart, DefaultWindowEnd
		if len(tag) > 2 && tag[2] != "" {
			if c, err := ParseClock(tag[2]); err == nil {
				start = c
			}
		}
		if len(tag) > 3 && tag[3] != "" {
			if c, err := ParseClock(tag[3]); err == nil {
				end = c
			}
		}
		w.Set(wd, start, end)
	}
	return w
}

// DateEvent decodes a kind 31922 event.
func (d *Decoder) DateEvent(ev *nostr.Event) (DateEvent, error) {
	dTag, ok := tagValue(ev.Tags, "d")
	if !ok {
		return DateEvent{}, fault.Malformed(ev.Kind, ev.ID, "d tag")
	}
	startDate, ok := tagValue(ev.Tags, "start")
	if !ok {
		return DateEvent{}, fault.Malformed(ev.Kind, ev.ID, "start tag")
	}
	start, err := time.ParseInLocation(dateLayout, startDate, d.loc)
	if err != nil {
		return DateEvent{}, fmt.Errorf("%w: %v", fault.Malformed(ev.Kind, ev.ID, "valid start date"), err)
	}

	endDate := tagOr(ev.Tags, "end", startDate)
	last, err := time.ParseInLocation(dateLayout, endDate, d.loc)
	if err != nil || last.Before(start) {
		endDate, last = startDate, start
	}
	location, _ := tagValue(ev.Tags, "location")

	return DateEvent{
		ID:           ev.ID,
		DTag:         dTag,
		Author:       ev.PubKey,
		Title:        text(tagOr(ev.Tags, "title", DefaultDateEventTitle)),
		Location:     location,
		Description:  text(ev.Content),
		StartDate:    startDate,
		EndDate:      endDate,
		Start:        start,
		End:          time.Date(last.Year(), last.Month(), last.Day(), 23, 59, 59, 0, d.loc),
		Participants: tagValues(ev.Tags, "p"),
		CreatedAt:    ev.CreatedAt.Time(),
		Source:       ev,
	}, nil
}

// TimeEvent decodes a kind 31923 event. Start and end are unix seconds.
func (d *Decoder) TimeEvent(ev *nostr.Event) (TimeEvent, error) {
	dTag, ok := tagValue(ev.Tags, "d")
	if !ok {
		return TimeEvent{}, fault.Malformed(ev.Kind, ev.ID, "d tag")
	}
	startText, ok := tagValue(ev.Tags, "start")
	if !ok {
		return TimeEvent{}, fault.Malformed(ev.Kind, ev.ID, "start tag")
	}
	startUnix, err := strconv.ParseInt(startText, 10, 64)
	if err != nil {
		return TimeEvent{}, fmt.Errorf("%w: %v", fault.Malformed(ev.Kind, ev.ID, "numeric start tag"), err)
	}
	start := time.Unix(startUnix, 0).In(d.loc)

	end := start.Add(DefaultEventLength)
	if endText, ok := tagValue(ev.Tags, "end"); ok {
		if endUnix, err := strconv.ParseInt(endText, 10, 64); err == nil && endUnix > startUnix {
			end = time.Unix(endUnix, 0).In(d.loc)
		}
	}

	location, _ := tagValue(ev.Tags, "location")
	summary, _ := tagValue(ev.Tags, "summary")
	startTZ, _ := tagValue(ev.Tags, "start_tzid")
	templateRef, _ := tagValue(ev.Tags, "a")

	return TimeEvent{
		ID:           ev.ID,
		DTag:         dTag,
		Author:       ev.PubKey,
		Title:        text(tagOr(ev.Tags, "title", DefaultTimeEventTitle)),
		Summary:      text(summary),
		Location:     location,
		Description:  text(ev.Content),
		StartTZ:      startTZ,
		Start:        start,
		End:          end,
		Participants: tagValues(ev.Tags, "p"),
		TemplateRef:  templateRef,
		CreatedAt:    ev.CreatedAt.Time(),
		Source:       ev,
	}, nil
}

// RSVP decodes a kind 31925 event. At least one of an e tag or an a tag
// must be present to say which booking it answers.
func (d *Decoder) RSVP(ev *nostr.Event) (RSVP, error) {
	dTag, ok := tagValue(ev.Tags, "d")
	if !ok {
		return RSVP{}, fault.Malformed(ev.Kind, ev.ID, "d tag")
	}
	eventRef, _ := tagValue(ev.Tags, "e")
	addressRef, _ := tagValue(ev.Tags, "a")
	if eventRef == "" && addressRef == "" {
		return RSVP{}, fault.Malformed(ev.Kind, ev.ID, "e or a reference")
	}
	status, _ := tagValue(ev.Tags, "status")
	fb, _ := tagValue(ev.Tags, "fb")
	invitee, _ := tagValue(ev.Tags, "p")

	return RSVP{
		ID:         ev.ID,
		DTag:       dTag,
		Author:     ev.PubKey,
		Status:     parseStatus(status),
		FreeBusy:   parseFreeBusy(fb),
		EventRef:   eventRef,
		AddressRef: addressRef,
		Invitee:    invitee,
		Content:    ev.Content,
		CreatedAt:  ev.CreatedAt.Time(),
		Source:     ev,
	}, nil
}

// Deletion decodes a kind 5 event. Unparseable a and k tags are skipped.
func (d *Decoder) Deletion(ev *nostr.Event) (Deletion, error) {
	del := Deletion{
		ID:        ev.ID,
		Author:    ev.PubKey,
		EventIDs:  tagValues(ev.Tags, "e"),
		Reason:    ev.Content,
		CreatedAt: ev.CreatedAt.Time(),
		Source:    ev,
	}
	for _, v := range tagValues(ev.Tags, "a") {
		if addr, err := ParseAddress(v); err == nil {
			del.Addresses = append(del.Addresses, addr)
		}
	}
	for _, v := range tagValues(ev.Tags, "k") {
		if k, err := strconv.Atoi(v); err == nil {
			del.Kinds = append(del.Kinds, k)
		}
	}
	if len(del.EventIDs) == 0 && len(del.Addresses) == 0 {
		return Deletion{}, fault.Malformed(ev.Kind, ev.ID, "e or a target")
	}
	return del, nil
}

// tagValue returns the first non-empty value of the named tag.
func tagValue(tags nostr.Tags, name string) (string, bool) {
	for _, tag := range tags {
		if len(tag) >= 2 && tag[0] == name && tag[1] != "" {
			return tag[1], true
		}
	}
	return "", false
}

func tagOr(tags nostr.Tags, name, fallback string) string {
	if v, ok := tagValue(tags, name); ok {
		return v
	}
	return fallback
}

func tagValues(tags nostr.Tags, name string) []string {
	var out []string
	for _, tag := range tags {
		if len(tag) >= 2 && tag[0] == name && tag[1] != "" {
			out = append(out, tag[1])
		}
	}
	return out
}

// text trims and NFC-normalizes user-supplied strings.
func text(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
