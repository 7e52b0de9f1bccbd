package busy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nostrcal/internal/record"
)

func at(day, hour, min int) time.Time {
	return time.Date(2025, 3, day, hour, min, 0, 0, time.UTC)
}

func TestSet_AddIsIdempotent(t *testing.T) {
	s := NewSet(time.UTC)
	iv := Interval{Start: at(10, 10, 0), End: at(10, 10, 30), SourceID: "e1", Title: "Call"}

	assert.True(t, s.Add(iv))
	assert.False(t, s.Add(iv), "same source id")

	sameTriple := iv
	sameTriple.SourceID = "e2"
	assert.False(t, s.Add(sameTriple), "same start, end and title")

	otherTitle := sameTriple
	otherTitle.Title = "Other"
	assert.True(t, s.Add(otherTitle))

	assert.Len(t, s.On("2025-03-10"), 2)
}

func TestSet_SortedByStart(t *testing.T) {
	s := NewSet(time.UTC)
	s.Add(Interval{Start: at(10, 15, 0), End: at(10, 16, 0), SourceID: "late"})
	s.Add(Interval{Start: at(10, 9, 0), End: at(10, 10, 0), SourceID: "early"})
	s.Add(Interval{Start: at(10, 12, 0), End: at(10, 13, 0), SourceID: "mid"})

	got := s.On("2025-03-10")
	require.Len(t, got, 3)
	assert.Equal(t, []string{"early", "mid", "late"}, []string{got[0].SourceID, got[1].SourceID, got[2].SourceID})
}

func TestSet_MultiDaySpansEveryDate(t *testing.T) {
	s := NewSet(time.UTC)
	s.Add(Interval{Start: at(10, 0, 0), End: time.Date(2025, 3, 12, 23, 59, 59, 0, time.UTC), SourceID: "trip"})

	assert.Equal(t, []string{"2025-03-10", "2025-03-11", "2025-03-12"}, s.Dates())
	assert.True(t, s.Has("trip"))

	assert.Equal(t, 3, s.Remove("trip"))
	assert.Empty(t, s.Dates())
	assert.False(t, s.Has("trip"))
}

func TestSet_BucketsInLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	s := NewSet(tokyo)
	// 20:00 UTC on the 10th is 05:00 on the 11th in Tokyo.
	s.Add(Interval{Start: at(10, 20, 0), End: at(10, 21, 0), SourceID: "e"})
	assert.Equal(t, []string{"2025-03-11"}, s.Dates())
	assert.Equal(t, "2025-03-11", DateKey(at(10, 20, 0), tokyo))
}

func TestSet_Reset(t *testing.T) {
	s := NewSet(nil)
	s.Add(Interval{Start: at(10, 9, 0), End: at(10, 10, 0), SourceID: "e"})
	s.Reset()
	assert.Empty(t, s.On("2025-03-10"))
	assert.Equal(t, time.UTC, s.Location())
}

func TestClassify_DecisionTable(t *testing.T) {
	owner, other := "owner", "booker"
	accepted := &record.RSVP{Status: record.StatusAccepted, FreeBusy: record.FreeBusyBusy}
	acceptedFree := &record.RSVP{Status: record.StatusAccepted, FreeBusy: record.FreeBusyFree}
	declined := &record.RSVP{Status: record.StatusDeclined, FreeBusy: record.FreeBusyFree}

	tests := []struct {
		name string
		subj Subject
		busy bool
	}{
		{"owner date event", Subject{Kind: record.KindDateEvent, Author: owner, Owner: owner}, true},
		{"tagged date event", Subject{Kind: record.KindDateEvent, Author: other, Owner: owner, Participants: []string{owner}}, true},
		{"owner time event", Subject{Kind: record.KindTimeEvent, Author: owner, Owner: owner}, true},
		{"accepted busy booking", Subject{Kind: record.KindTimeEvent, Author: other, Owner: owner, Participants: []string{owner}, Effective: accepted}, true},
		{"accepted free booking", Subject{Kind: record.KindTimeEvent, Author: other, Owner: owner, Participants: []string{owner}, Effective: acceptedFree}, false},
		{"declined booking", Subject{Kind: record.KindTimeEvent, Author: other, Owner: owner, Participants: []string{owner}, Effective: declined}, false},
		{"unanswered booking", Subject{Kind: record.KindTimeEvent, Author: other, Owner: owner, Participants: []string{owner}}, false},
		{"unrelated", Subject{Kind: record.KindTimeEvent, Author: other, Owner: owner}, false},
		{"rsvp kind", Subject{Kind: record.KindRSVP, Author: owner, Owner: owner}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			busy, reason := Classify(tt.subj)
			assert.Equal(t, tt.busy, busy)
			assert.NotEmpty(t, reason)
		})
	}
}
