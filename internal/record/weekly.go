package record

import (
	"fmt"
	"time"
)

// DayCode is the two-letter weekday code used in sch tags.
type DayCode string

// DayCodes lists the codes indexed by time.Weekday.
var DayCodes = [7]DayCode{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// DayCodeOf returns the code for wd.
func DayCodeOf(wd time.Weekday) DayCode {
	return DayCodes[wd]
}

// WeekdayOf returns the weekday for a code.
func WeekdayOf(code DayCode) (time.Weekday, bool) {
	for i, c := range DayCodes {
		if c == code {
			return time.Weekday(i), true
		}
	}
	return 0, false
}

// ClockTime is a wall-clock time of day in minutes since midnight.
type ClockTime int

// ParseClock parses "HH:MM" (24-hour).
func ParseClock(s string) (ClockTime, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("clock %q: %w", s, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("clock %q: out of range", s)
	}
	return ClockTime(h*60 + m), nil
}

// ClockOf returns the wall-clock minutes of t in its own location.
func ClockOf(t time.Time) ClockTime {
	return ClockTime(t.Hour()*60 + t.Minute())
}

// String renders "HH:MM".
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// On returns the instant at this clock time on the calendar date of day,
// in loc.
func (c ClockTime) On(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, int(c)/60, int(c)%60, 0, 0, loc)
}

// Default window bounds for an sch tag that omits them.
const (
	DefaultWindowStart ClockTime = 9 * 60
	DefaultWindowEnd   ClockTime = 17 * 60
)

// DayWindow is the bookable window of one weekday.
type DayWindow struct {
	Enabled bool
	Start   ClockTime
	End     ClockTime
}

// Weekly holds one window per weekday, indexed by time.Weekday.
type Weekly [7]DayWindow

// Window returns the enabled window for wd.
func (w Weekly) Window(wd time.Weekday) (DayWindow, bool) {
	win := w[wd]
	return win, win.Enabled
}

// Set enables the window for a day.
func (w *Weekly) Set(wd time.Weekday, start, end ClockTime) {
	w[wd] = DayWindow{Enabled: true, Start: start, End: end}
}

// EnabledDays returns the weekdays with an enabled window, Sunday first.
func (w Weekly) EnabledDays() []time.Weekday {
	var days []time.Weekday
	for i, win := range w {
		if win.Enabled {
			days = append(days, time.Weekday(i))
		}
	}
	return days
}
