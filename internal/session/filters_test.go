package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nostrcal/internal/record"
)

func TestHostFilters(t *testing.T) {
	now := at(0, 8, 0)
	filters := HostFilters(hostKey, now, 0)
	require.Len(t, filters, 8)

	assert.Equal(t, []int{record.KindCalendar}, filters[0].Kinds)
	assert.Equal(t, []string{hostKey}, filters[0].Authors)
	assert.Equal(t, []string{hostKey}, filters[2].Tags["p"])
	assert.Empty(t, filters[2].Authors)

	require.NotNil(t, filters[4].Since)
	assert.Equal(t, now.AddDate(0, 0, -DefaultHistoryDays).Unix(), int64(*filters[4].Since))
	assert.Equal(t, []int{record.KindDeletion}, filters[7].Kinds)
}

func TestBookerFilters(t *testing.T) {
	now := at(0, 8, 0)
	filters := BookerFilters(hostKey, "tpl-1", now)
	require.Len(t, filters, 4)

	assert.Equal(t, []string{"tpl-1"}, filters[0].Tags["d"])
	assert.Equal(t, 10, filters[0].Limit)

	busyWindow := filters[1]
	assert.ElementsMatch(t, []int{record.KindDateEvent, record.KindTimeEvent, record.KindRSVP}, busyWindow.Kinds)
	assert.Equal(t, 200, busyWindow.Limit)
	assert.Equal(t, now.AddDate(0, 0, -30).Unix(), int64(*busyWindow.Since))
	assert.Equal(t, now.AddDate(0, 0, 90).Unix(), int64(*busyWindow.Until))
}
