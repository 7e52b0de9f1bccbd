package session

import (
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/roach88/nostrcal/internal/record"
)

// DefaultHistoryDays bounds how far back a host loads all-day events.
const DefaultHistoryDays = 30

// Booker busy window around now.
const (
	bookerLookback  = 30 * 24 * time.Hour
	bookerLookahead = 90 * 24 * time.Hour
	bookerBusyLimit = 200
	bookerTplLimit  = 10
)

func stamp(t time.Time) *nostr.Timestamp {
	ts := nostr.Timestamp(t.Unix())
	return &ts
}

// HostFilters loads everything a host needs to rebuild their calendar.
func HostFilters(self string, now time.Time, historyDays int) nostr.Filters {
	if historyDays <= 0 {
		historyDays = DefaultHistoryDays
	}
	mine := []string{self}
	tagged := nostr.TagMap{"p": mine}
	return nostr.Filters{
		{Kinds: []int{record.KindCalendar}, Authors: mine},
		{Kinds: []int{record.KindAvailabilityTemplate}, Authors: mine},
		{Kinds: []int{record.KindTimeEvent}, Tags: tagged},
		{Kinds: []int{record.KindTimeEvent}, Authors: mine},
		{Kinds: []int{record.KindDateEvent}, Authors: mine, Since: stamp(now.AddDate(0, 0, -historyDays))},
		{Kinds: []int{record.KindRSVP}, Tags: tagged},
		{Kinds: []int{record.KindRSVP}, Authors: mine},
		{Kinds: []int{record.KindDeletion}, Authors: mine},
	}
}

// BookerFilters loads one template of owner and the owner's busy time.
func BookerFilters(owner, templateID string, now time.Time) nostr.Filters {
	theirs := []string{owner}
	return nostr.Filters{
		{
			Kinds:   []int{record.KindAvailabilityTemplate},
			Authors: theirs,
			Tags:    nostr.TagMap{"d": {templateID}},
			Limit:   bookerTplLimit,
		},
		{
			Kinds:   []int{record.KindDateEvent, record.KindTimeEvent, record.KindRSVP},
			Authors: theirs,
			Since:   stamp(now.Add(-bookerLookback)),
			Until:   stamp(now.Add(bookerLookahead)),
			Limit:   bookerBusyLimit,
		},
		{Kinds: []int{record.KindTimeEvent}, Tags: nostr.TagMap{"p": theirs}},
		{Kinds: []int{record.KindDeletion}, Authors: theirs},
	}
}
