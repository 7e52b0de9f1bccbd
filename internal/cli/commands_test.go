package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nostrcal/internal/fault"
	"github.com/roach88/nostrcal/internal/record"
)

// hostWithTemplate publishes calendar cal-1 and template tpl-2 (30 min,
// MO-FR 09:00-17:00, no advance limit) and returns the template address.
func hostWithTemplate(t *testing.T, env *testEnv) string {
	t.Helper()
	out, err := env.run(t, hostSecret, "calendar", "create", "--title", "Work")
	require.NoError(t, err, out)
	assert.Contains(t, out, `Created calendar "Work" (cal-1)`)

	var res TemplateResult
	env.runJSON(t, hostSecret, &res, "template", "create",
		"--title", "Office Hours", "--calendar", "cal-1", "--max-advance=-1")
	require.Equal(t, "tpl-2", res.Template.ID)
	return res.Template.Address().String()
}

func TestHostAndBookerFlow(t *testing.T) {
	env := newTestEnv(t)
	host := pubOf(t, hostSecret)
	tpl := hostWithTemplate(t, env)
	assert.Equal(t, "31926:"+host+":tpl-2", tpl)

	var slots SlotList
	env.runJSON(t, bookerSecret, &slots, "slots", "--naddr", tpl, "--date", "2025-03-10")
	require.Len(t, slots.Slots, 16)
	assert.Equal(t, "9:00 AM", slots.Slots[0].Label)
	assert.True(t, slots.Slots[0].Available)

	var booked BookResult
	env.runJSON(t, bookerSecret, &booked, "book", "--naddr", tpl, "--start", "2025-03-10 09:00", "--note", "Intro")
	require.NotEmpty(t, booked.Request.ID)
	assert.Equal(t, "booking-3", booked.Request.DTag)

	var pending BookingList
	env.runJSON(t, hostSecret, &pending, "bookings", "--tab", "unconfirmed")
	require.Len(t, pending.Bookings, 1)
	assert.Equal(t, booked.Request.ID, pending.Bookings[0].ID)
	assert.True(t, pending.Bookings[0].Valid)

	out, err := env.run(t, hostSecret, "respond", booked.Request.ID, "--accept")
	require.NoError(t, err, out)
	assert.Contains(t, out, "marked accepted")

	var upcoming BookingList
	env.runJSON(t, hostSecret, &upcoming, "bookings", "--tab", "upcoming")
	require.Len(t, upcoming.Bookings, 1)
	assert.Equal(t, record.StatusAccepted, upcoming.Bookings[0].Status)

	env.runJSON(t, bookerSecret, &slots, "slots", "--naddr", tpl, "--date", "2025-03-10")
	assert.False(t, slots.Slots[0].Available, "accepted booking blocks the slot")
	assert.Equal(t, "conflict", string(slots.Slots[0].Reason))
	assert.True(t, slots.Slots[1].Available)

	var entries []map[string]any
	env.runJSON(t, hostSecret, &entries, "events", "--date", "2025-03-10")
	require.Len(t, entries, 1)
	assert.Equal(t, "confirmed-meeting", entries[0]["type"])

	out, err = env.run(t, hostSecret, "cancel", booked.Request.ID)
	require.NoError(t, err, out)

	var canceled BookingList
	env.runJSON(t, hostSecret, &canceled, "bookings", "--tab", "canceled")
	require.Len(t, canceled.Bookings, 1)
	assert.Equal(t, record.StatusDeclined, canceled.Bookings[0].Status)
}

func TestBook_UnavailableSlot(t *testing.T) {
	env := newTestEnv(t)
	tpl := hostWithTemplate(t, env)
	before := env.relay.count()

	// Saturday has no window.
	out, err := env.run(t, bookerSecret, "--format", "json", "book", "--naddr", tpl, "--start", "2025-03-15 09:00")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, string(fault.CodeValidationFailure))
	assert.Equal(t, before, env.relay.count(), "nothing published")
}

func TestBook_RequiresKey(t *testing.T) {
	env := newTestEnv(t)
	tpl := hostWithTemplate(t, env)

	_, err := env.run(t, "", "book", "--naddr", tpl, "--start", "2025-03-10 09:00")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSlots_UnknownTemplate(t *testing.T) {
	env := newTestEnv(t)
	host := pubOf(t, hostSecret)

	out, err := env.run(t, "", "--format", "json", "slots", "--naddr", "31926:"+host+":missing")
	require.Error(t, err)
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestDates(t *testing.T) {
	env := newTestEnv(t)
	tpl := hostWithTemplate(t, env)

	var dates DateList
	env.runJSON(t, "", &dates, "dates", "--naddr", tpl, "--days", "7")
	assert.Equal(t, []string{"2025-03-10", "2025-03-11", "2025-03-12", "2025-03-13", "2025-03-14", "2025-03-17"}, dates.Dates)
}

func TestRespond_UnknownBooking(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, hostSecret, "respond", "nope", "--decline")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeNotFound+"]")
}

func TestRespond_NeedsOneDecision(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, hostSecret, "respond", "x", "--accept", "--decline")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestHostCommands_RequireKey(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "calendar", "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "NOSTRCAL_NSEC is not set")
}

func TestNoRelayReachable(t *testing.T) {
	env := newTestEnv(t)
	env.relay.down = true

	out, err := env.run(t, hostSecret, "calendar", "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, string(fault.CodeConnectionFailure))
}

func TestTemplateLifecycle(t *testing.T) {
	env := newTestEnv(t)
	hostWithTemplate(t, env)

	var list TemplateList
	env.runJSON(t, hostSecret, &list, "template", "list")
	require.Len(t, list, 1)
	assert.Equal(t, "MO 09:00-17:00, TU 09:00-17:00, WE 09:00-17:00, TH 09:00-17:00, FR 09:00-17:00", list[0].Days)
	assert.Equal(t, 0, list[0].MaxAdvance, "unlimited")

	out, err := env.run(t, hostSecret, "template", "edit", "tpl-2",
		"--title", "Office Hours", "--duration", "60", "--sch", "MO=10:00-12:00", "--sch", "th")
	require.NoError(t, err, out)

	env.runJSON(t, hostSecret, &list, "template", "list")
	require.Len(t, list, 1)
	assert.Equal(t, 60, list[0].Duration)
	assert.Equal(t, "MO 10:00-12:00, TH 09:00-17:00", list[0].Days)
	assert.Equal(t, 30, list[0].MaxAdvance)

	out, err = env.run(t, hostSecret, "template", "delete", "tpl-2")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Deleted tpl-2")

	out, err = env.run(t, hostSecret, "template", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No templates.")
}

func TestTemplateCreate_BadSchedule(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, hostSecret, "template", "create", "--title", "X", "--sch", "XX")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err := env.run(t, hostSecret, "--format", "json", "template", "create", "--title", "X", "--sch", "MO=17:00-09:00")
	require.Error(t, err)
	assert.Contains(t, out, string(fault.CodeValidationFailure))
}

func TestDeleteCalendar(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.run(t, hostSecret, "calendar", "create", "--title", "Side")
	require.NoError(t, err, out)

	var cals []record.Calendar
	env.runJSON(t, hostSecret, &cals, "calendar", "list")
	require.Len(t, cals, 1)

	out, err = env.run(t, hostSecret, "delete", cals[0].EventRef, "--kind", "calendar")
	require.NoError(t, err, out)

	out, err = env.run(t, hostSecret, "calendar", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No calendars.")
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)
	tpl := hostWithTemplate(t, env)
	_, err := env.run(t, bookerSecret, "book", "--naddr", tpl, "--start", "2025-03-11 10:00")
	require.NoError(t, err)

	path := filepath.Join(env.dir, "out.ics")
	out, err := env.run(t, hostSecret, "export", "--out", path)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Wrote 1 entries")

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "BEGIN:VEVENT")
	assert.Contains(t, string(body), "X-WR-CALNAME:Work")
	assert.Contains(t, string(body), "STATUS:TENTATIVE")
}

func TestNaddr_EncodeDecode(t *testing.T) {
	env := newTestEnv(t)
	host := pubOf(t, hostSecret)

	var enc NaddrResult
	env.runJSON(t, hostSecret, &enc, "naddr", "tpl-2")
	assert.Equal(t, "31926:"+host+":tpl-2", enc.Address)
	assert.Equal(t, []string{relayURL}, enc.Relays)

	var dec NaddrResult
	env.runJSON(t, "", &dec, "naddr", "nostr:"+enc.Naddr)
	assert.Equal(t, enc.Address, dec.Address)
	assert.Equal(t, enc.Relays, dec.Relays)
	assert.Equal(t, enc.Naddr, dec.Naddr)
}

func TestReplay_Journal(t *testing.T) {
	env := newTestEnv(t)
	tpl := hostWithTemplate(t, env)
	_, err := env.run(t, bookerSecret, "book", "--naddr", tpl, "--start", "2025-03-11 10:00")
	require.NoError(t, err)
	// Host load journals the booking request too.
	_, err = env.run(t, hostSecret, "bookings")
	require.NoError(t, err)

	var res ReplayResult
	env.runJSON(t, hostSecret, &res, "replay")
	assert.True(t, res.Deterministic)
	assert.Equal(t, "host", res.Role)
	assert.Equal(t, 3, res.Events)
	assert.Equal(t, map[string]int{"calendar": 1, "availability_template": 1, "time_event": 1}, res.Kinds)
	assert.Equal(t, 1, res.Bookings)

	out, err := env.run(t, "", "replay", "--owner", pubOf(t, hostSecret))
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ Replay verified deterministic")
}

func TestReplay_EmptyJournal(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.run(t, hostSecret, "replay", "--journal", filepath.Join(env.dir, "empty.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "No events found in journal.")
}

func TestWatch_StopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	hostWithTemplate(t, env)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	out, err := env.runContext(t, ctx, hostSecret, "--format", "json", "watch",
		"--metrics-addr", "127.0.0.1:0", "--cron", "@every 1h")
	require.NoError(t, err, out)

	var resp struct {
		Data WatchResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "host", resp.Data.Role)
	assert.Equal(t, 2, resp.Data.Events)
}

func TestWatch_BadSchedule(t *testing.T) {
	env := newTestEnv(t)
	hostWithTemplate(t, env)

	_, err := env.run(t, hostSecret, "watch", "--metrics-addr", "off", "--cron", "not a schedule")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
