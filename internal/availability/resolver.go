package availability

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/roach88/nostrcal/internal/busy"
	"github.com/roach88/nostrcal/internal/record"
)

// LabelLayout formats slot labels, e.g. "9:30 AM".
const LabelLayout = "3:04 PM"

// BusyLookup returns the busy intervals filed under a date key.
type BusyLookup interface {
	On(dateKey string) []busy.Interval
}

// Reason explains why a slot is unavailable.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonPast      Reason = "past"
	ReasonMinNotice Reason = "min_notice"
	ReasonConflict  Reason = "conflict"

	// ReasonBeyondMaxAdvance marks every slot of a date past the horizon.
	ReasonBeyondMaxAdvance Reason = "beyond_max_advance"
)

// Slot is a candidate booking.
type Slot struct {
	Start     time.Time
	End       time.Time
	Label     string
	Available bool
	Reason    Reason
}

// DateReason explains why a date is not offerable.
type DateReason string

const (
	DateOfferable        DateReason = ""
	DateBeforeToday      DateReason = "before_today"
	DateNoWindow         DateReason = "no_window"
	DateBeyondMaxAdvance DateReason = "beyond_max_advance"
	DateElapsed          DateReason = "elapsed"
	DateMinNotice        DateReason = "min_notice"
)

// Resolver computes slots for one template.
type Resolver struct {
	tpl  record.AvailabilityTemplate
	busy BusyLookup
	loc  *time.Location
}

// NewResolver creates a resolver. Windows and dates are read in loc.
func NewResolver(tpl record.AvailabilityTemplate, b BusyLookup, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{tpl: tpl, busy: b, loc: loc}
}

// Template returns the resolver's template.
func (r *Resolver) Template() record.AvailabilityTemplate {
	return r.tpl
}

// Slots walks the date's window in interval steps and flags each slot.
// A date without an enabled window yields no slots. On a date past the
// template's horizon every slot is unavailable.
func (r *Resolver) Slots(date, now time.Time) []Slot {
	day := r.midnight(date)
	win, ok := r.tpl.Weekly.Window(day.Weekday())
	if !ok {
		return nil
	}

	duration := time.Duration(r.tpl.DurationMinutes) * time.Minute
	earliest := now.Add(time.Duration(r.tpl.MinNoticeMinutes) * time.Minute)
	intervals := r.busyOn(day)
	limit, limited := r.Horizon(now)
	beyond := limited && day.After(limit)

	var slots []Slot
	for _, m := range r.starts(win) {
		start := m.On(day, r.loc)
		end := start.Add(duration)
		slot := Slot{
			Start:     start,
			End:       end,
			Label:     start.Format(LabelLayout),
			Available: true,
		}
		switch {
		case !start.After(now):
			slot.Available, slot.Reason = false, ReasonPast
		case beyond:
			slot.Available, slot.Reason = false, ReasonBeyondMaxAdvance
		case start.Before(earliest):
			slot.Available, slot.Reason = false, ReasonMinNotice
		case r.conflicts(start, end, intervals):
			slot.Available, slot.Reason = false, ReasonConflict
		}
		slots = append(slots, slot)
	}
	return slots
}

// SlotAt returns the slot that starts exactly at start.
func (r *Resolver) SlotAt(start, now time.Time) (Slot, bool) {
	for _, s := range r.Slots(start, now) {
		if s.Start.Equal(start) {
			return s, true
		}
	}
	return Slot{}, false
}

// starts lists the window-relative start times whose slot fits the window.
func (r *Resolver) starts(win record.DayWindow) []record.ClockTime {
	duration := record.ClockTime(r.tpl.DurationMinutes)
	step := record.ClockTime(r.tpl.IntervalMinutes)
	if step <= 0 {
		step = duration
	}
	if duration <= 0 || step <= 0 {
		return nil
	}
	var out []record.ClockTime
	for m := win.Start; m < win.End; m += step {
		if m+duration > win.End {
			break
		}
		out = append(out, m)
	}
	return out
}

func (r *Resolver) busyOn(day time.Time) []busy.Interval {
	if r.busy == nil {
		return nil
	}
	return r.busy.On(busy.DateKey(day, r.loc))
}

// conflicts reports whether [start,end) overlaps any busy interval widened
// by bufferAfter before it and bufferBefore after it.
func (r *Resolver) conflicts(start, end time.Time, intervals []busy.Interval) bool {
	before := time.Duration(r.tpl.BufferAfterMinutes) * time.Minute
	after := time.Duration(r.tpl.BufferBeforeMinutes) * time.Minute
	for _, iv := range intervals {
		bStart := iv.Start.Add(-before)
		bEnd := iv.End.Add(after)
		if start.Before(bEnd) && end.After(bStart) {
			return true
		}
	}
	return false
}

// Offerable reports whether date can be offered to a booker at all.
func (r *Resolver) Offerable(date, now time.Time) (bool, DateReason) {
	day := r.midnight(date)
	today := r.midnight(now)
	if day.Before(today) {
		return false, DateBeforeToday
	}
	win, ok := r.tpl.Weekly.Window(day.Weekday())
	if !ok {
		return false, DateNoWindow
	}
	starts := r.starts(win)
	if len(starts) == 0 {
		return false, DateNoWindow
	}
	if limit, ok := r.Horizon(now); ok && day.After(limit) {
		return false, DateBeyondMaxAdvance
	}

	last := starts[len(starts)-1].On(day, r.loc)
	earliest := now.Add(time.Duration(r.tpl.MinNoticeMinutes) * time.Minute)
	switch {
	case !last.After(now):
		return false, DateElapsed
	case last.Before(earliest):
		return false, DateMinNotice
	}
	return true, DateOfferable
}

// Horizon returns the last date that may be booked, or false when the
// template has no advance limit.
func (r *Resolver) Horizon(now time.Time) (time.Time, bool) {
	if r.tpl.MaxAdvanceDays == nil {
		return time.Time{}, false
	}
	today := r.midnight(now)
	n := *r.tpl.MaxAdvanceDays
	if !r.tpl.MaxAdvanceBusinessDays {
		return today.AddDate(0, 0, n), true
	}
	day := today
	for n > 0 {
		day = day.AddDate(0, 0, 1)
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n--
		}
	}
	return day, true
}

var rruleDays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// OfferableDates expands the template's enabled weekdays between from and
// to (inclusive) and keeps the offerable ones.
func (r *Resolver) OfferableDates(from, to, now time.Time) ([]time.Time, error) {
	days := r.tpl.Weekly.EnabledDays()
	if len(days) == 0 {
		return nil, nil
	}
	byDay := make([]rrule.Weekday, len(days))
	for i, wd := range days {
		byDay[i] = rruleDays[wd]
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   r.midnight(from),
		Until:     r.midnight(to),
		Byweekday: byDay,
	})
	if err != nil {
		return nil, fmt.Errorf("expand weekly template: %w", err)
	}

	var out []time.Time
	for _, day := range rule.All() {
		if ok, _ := r.Offerable(day, now); ok {
			out = append(out, r.midnight(day))
		}
	}
	return out, nil
}

func (r *Resolver) midnight(t time.Time) time.Time {
	y, m, d := t.In(r.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, r.loc)
}
