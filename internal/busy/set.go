// Package busy derives the owner's busy calendar from decoded events.
package busy

import (
	"slices"
	"time"
)

// DateLayout formats bucket keys.
const DateLayout = "2006-01-02"

// DateKey returns the ISO date of t in loc.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// Interval is a span during which the owner cannot be booked.
type Interval struct {
	Start     time.Time
	End       time.Time
	SourceID  string
	Title     string
	Kind      int
	Reason    string
	CreatedAt time.Time
}

func (iv Interval) sameSlot(o Interval) bool {
	return iv.SourceID == o.SourceID ||
		(iv.Start.Equal(o.Start) && iv.End.Equal(o.End) && iv.Title == o.Title)
}

// Set is a date-indexed collection of busy intervals. An interval is filed
// under every local date it touches, so a per-date lookup sees spans that
// began on an earlier day. Not safe for concurrent use.
type Set struct {
	loc     *time.Location
	buckets map[string][]Interval
}

// NewSet creates an empty set bucketed by dates in loc.
func NewSet(loc *time.Location) *Set {
	if loc == nil {
		loc = time.UTC
	}
	return &Set{loc: loc, buckets: make(map[string][]Interval)}
}

// Location returns the set's bucketing location.
func (s *Set) Location() *time.Location {
	return s.loc
}

// Add files iv and reports whether it was new. An interval with the same
// source id, or the same start, end and title, already filed under the
// interval's start date makes Add a no-op.
func (s *Set) Add(iv Interval) bool {
	if !iv.End.After(iv.Start) {
		iv.End = iv.Start
	}
	first := DateKey(iv.Start, s.loc)
	if slices.ContainsFunc(s.buckets[first], iv.sameSlot) {
		return false
	}
	for _, key := range s.dateKeys(iv) {
		bucket := append(s.buckets[key], iv)
		slices.SortStableFunc(bucket, func(a, b Interval) int {
			return a.Start.Compare(b.Start)
		})
		s.buckets[key] = bucket
	}
	return true
}

// dateKeys lists the local dates from iv.Start through iv.End.
func (s *Set) dateKeys(iv Interval) []string {
	start := iv.Start.In(s.loc)
	end := iv.End.In(s.loc)
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, s.loc)
	var keys []string
	for !day.After(end) {
		keys = append(keys, day.Format(DateLayout))
		day = day.AddDate(0, 0, 1)
	}
	if len(keys) == 0 {
		keys = append(keys, DateKey(iv.Start, s.loc))
	}
	return keys
}

// Remove drops every interval from sourceID and returns how many buckets
// changed.
func (s *Set) Remove(sourceID string) int {
	changed := 0
	for key, bucket := range s.buckets {
		kept := slices.DeleteFunc(bucket, func(iv Interval) bool { return iv.SourceID == sourceID })
		if len(kept) == len(bucket) {
			continue
		}
		changed++
		if len(kept) == 0 {
			delete(s.buckets, key)
		} else {
			s.buckets[key] = kept
		}
	}
	return changed
}

// Has reports whether any interval from sourceID is filed.
func (s *Set) Has(sourceID string) bool {
	for _, bucket := range s.buckets {
		if slices.ContainsFunc(bucket, func(iv Interval) bool { return iv.SourceID == sourceID }) {
			return true
		}
	}
	return false
}

// On returns a copy of the intervals filed under dateKey, sorted by start.
func (s *Set) On(dateKey string) []Interval {
	return slices.Clone(s.buckets[dateKey])
}

// Dates returns every non-empty bucket key, sorted.
func (s *Set) Dates() []string {
	keys := make([]string, 0, len(s.buckets))
	for k := range s.buckets {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Reset empties the set.
func (s *Set) Reset() {
	s.buckets = make(map[string][]Interval)
}
