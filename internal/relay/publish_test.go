package relay_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nostrcal/internal/fault"
	"github.com/roach88/nostrcal/internal/relay"
	"github.com/roach88/nostrcal/internal/testutil"
)

func TestPublish_OneAcceptIsSuccess(t *testing.T) {
	a := testutil.NewFakeConn("wss://a")
	b := testutil.NewFakeConn("wss://b")
	b.PublishErr = errors.New("msg: blocked: not on whitelist")
	c := testutil.NewFakeConn("wss://c")
	c.PublishErr = errors.New("msg: rate-limited")
	pool := connected(t, a, b, c)

	report := pool.Publish(context.Background(), nostr.Event{ID: "ev1"}, time.Second)

	require.NoError(t, report.Err())
	assert.True(t, report.Confirmed())
	assert.Equal(t, 1, report.Count(relay.OutcomeAccepted))
	assert.Equal(t, 2, report.Count(relay.OutcomeRejected))
	for _, conn := range []*testutil.FakeConn{a, b, c} {
		assert.Len(t, conn.PublishedEvents(), 1)
	}
}

func TestPublish_AllRejectedCarriesEveryReason(t *testing.T) {
	a := testutil.NewFakeConn("wss://a")
	a.PublishErr = errors.New("msg: blocked")
	b := testutil.NewFakeConn("wss://b")
	b.PublishErr = errors.New("msg: pow: difficulty 20 required")
	c := testutil.NewFakeConn("wss://c")
	c.PublishErr = errors.New("invalid: bad signature")
	pool := connected(t, a, b, c)

	report := pool.Publish(context.Background(), nostr.Event{ID: "ev1"}, time.Second)
	err := report.Err()

	require.Error(t, err)
	assert.True(t, fault.IsPublishRejected(err))
	var fe *fault.Error
	require.ErrorAs(t, err, &fe)
	assert.ElementsMatch(t, []string{
		"wss://a: blocked",
		"wss://b: pow: difficulty 20 required",
		"wss://c: invalid: bad signature",
	}, fe.Reasons)
}

func TestPublish_TimeoutIsBestEffortSuccess(t *testing.T) {
	slow := testutil.NewFakeConn("wss://slow")
	slow.HangOnPublish = true
	pool := connected(t, slow)

	report := pool.Publish(context.Background(), nostr.Event{ID: "ev1"}, 20*time.Millisecond)

	assert.NoError(t, report.Err())
	assert.False(t, report.Confirmed())
	assert.Equal(t, 1, report.Count(relay.OutcomeTimedOut))
}

func TestPublish_RejectAndTimeoutFails(t *testing.T) {
	slow := testutil.NewFakeConn("wss://slow")
	slow.HangOnPublish = true
	bad := testutil.NewFakeConn("wss://bad")
	bad.PublishErr = errors.New("msg: blocked")
	pool := connected(t, slow, bad)

	report := pool.Publish(context.Background(), nostr.Event{ID: "ev1"}, 20*time.Millisecond)
	assert.True(t, fault.IsPublishRejected(report.Err()))
}

func TestPublish_NoConnections(t *testing.T) {
	pool := relay.NewPool(testutil.NewFakeNetwork().Dial)
	report := pool.Publish(context.Background(), nostr.Event{ID: "ev1"}, time.Second)
	assert.True(t, fault.IsConnectionFailure(report.Err()))
}

func TestPublish_ReportsToObserver(t *testing.T) {
	a := testutil.NewFakeConn("wss://a")
	b := testutil.NewFakeConn("wss://b")
	b.PublishErr = errors.New("msg: no")
	obs := newRecordingObserver()
	pool := relay.NewPool(testutil.NewFakeNetwork(a, b).Dial, relay.WithObserver(obs))
	_, err := pool.Connect(context.Background(), []string{"wss://a", "wss://b"})
	require.NoError(t, err)

	pool.Publish(context.Background(), nostr.Event{ID: "ev1"}, time.Second)
	assert.Equal(t, relay.OutcomeAccepted, obs.outcomes["wss://a"])
	assert.Equal(t, relay.OutcomeRejected, obs.outcomes["wss://b"])
}

func TestOutcome_MarshalText(t *testing.T) {
	text, err := relay.OutcomeTimedOut.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "timed_out", string(text))
}
