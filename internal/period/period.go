// Package period converts the compact ISO-8601 style tokens used in calendar
// tags ("PT30M", "PT1H", "P30D") to and from whole minutes and days.
//
// Only single-unit tokens are understood; "PT1H30M" parses as zero.
package period

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultAdvanceDays is the advance window assumed by the template editor
// when a max_advance tag is missing or unreadable.
const DefaultAdvanceDays = 30

var (
	secondsPattern = regexp.MustCompile(`PT(\d+)S`)
	minutesPattern = regexp.MustCompile(`PT(\d+)M`)
	hoursPattern   = regexp.MustCompile(`PT(\d+)H`)
	daysPattern    = regexp.MustCompile(`P(\d+)D`)
)

// ParseDuration returns the number of whole minutes in text.
// Seconds are floor-divided by 60. Empty or unreadable input yields 0.
func ParseDuration(text string) int {
	switch {
	case strings.Contains(text, "S"):
		return matchInt(secondsPattern, text) / 60
	case strings.Contains(text, "M"):
		return matchInt(minutesPattern, text)
	case strings.Contains(text, "H"):
		return matchInt(hoursPattern, text) * 60
	}
	return 0
}

// FormatDuration renders minutes as a "PT<n>M" token.
// Negative values are clamped to zero.
func FormatDuration(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("PT%dM", minutes)
}

// ParseAdvancePeriod returns the day count of a "P<n>D" token, or fallback
// when text does not contain one. "P0D" yields 0.
//
// This is the template editor's reading of max_advance. Booking uses
// ParseAdvanceLimit, which treats P0D as unlimited.
func ParseAdvancePeriod(text string, fallback int) int {
	m := daysPattern.FindStringSubmatch(text)
	if m == nil {
		return fallback
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return fallback
	}
	return n
}

// ParseAdvanceLimit returns the booking horizon in days for a max_advance
// token. A nil result means bookings are not limited: both "P0D" and
// unreadable tokens produce nil.
func ParseAdvanceLimit(text string) *int {
	n := ParseAdvancePeriod(text, 0)
	if n == 0 {
		return nil
	}
	return &n
}

// FormatAdvancePeriod renders days as a "P<n>D" token.
func FormatAdvancePeriod(days int) string {
	if days < 0 {
		days = 0
	}
	return fmt.Sprintf("P%dD", days)
}

func matchInt(re *regexp.Regexp, text string) int {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
