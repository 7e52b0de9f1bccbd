package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nostrcal/internal/config"
	"github.com/roach88/nostrcal/internal/relay"
	"github.com/roach88/nostrcal/internal/signer"
	"github.com/roach88/nostrcal/internal/testutil"
)

const (
	hostSecret   = "0000000000000000000000000000000000000000000000000000000000000001"
	bookerSecret = "0000000000000000000000000000000000000000000000000000000000000002"
	relayURL     = "wss://mem.test"
)

func pubOf(t *testing.T, secret string) string {
	t.Helper()
	k, err := signer.FromKey(secret)
	require.NoError(t, err)
	return k.Pub()
}

// memRelay is a relay whose stored events survive across commands. Each
// dial serves everything published so far.
type memRelay struct {
	mu     sync.Mutex
	events []*nostr.Event
	conns  []*testutil.FakeConn
	down   bool
}

func (r *memRelay) Dial(ctx context.Context, url string) (relay.Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down || url != relayURL {
		return nil, fmt.Errorf("dial %s: connection refused", url)
	}
	c := testutil.NewFakeConn(url, r.events...)
	r.conns = append(r.conns, c)
	return c, nil
}

// absorb stores what the last command published.
func (r *memRelay) absorb() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conns {
		for _, ev := range c.PublishedEvents() {
			r.events = append(r.events, &ev)
		}
	}
	r.conns = nil
}

func (r *memRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type testEnv struct {
	dir        string
	configPath string
	journal    string
	relay      *memRelay
	clock      *testutil.FixedClock
	ids        *testutil.SequenceIDs
}

// monday0800 is Monday 2025-03-10 08:00 UTC.
var monday0800 = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv(config.EnvSecretKey, "")

	dir := t.TempDir()
	env := &testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
		journal:    filepath.Join(dir, "events.db"),
		relay:      &memRelay{},
		clock:      testutil.NewFixedClock(monday0800),
		ids:        testutil.NewSequenceIDs(),
	}

	cfg := config.DefaultConfig()
	cfg.Relays = []string{relayURL}
	cfg.QueryWait = time.Second
	cfg.PublishTimeout = time.Second
	cfg.ConnectTimeout = time.Second
	cfg.Journal = env.journal
	require.NoError(t, config.Save(env.configPath, cfg))
	return env
}

// run executes one CLI invocation signed with secret ("" for none).
func (e *testEnv) run(t *testing.T, secret string, args ...string) (string, error) {
	t.Helper()
	return e.runContext(t, context.Background(), secret, args...)
}

func (e *testEnv) runContext(t *testing.T, ctx context.Context, secret string, args ...string) (string, error) {
	t.Helper()
	opts := &RootOptions{
		Dial:      e.relay.Dial,
		Now:       e.clock.Now,
		SecretKey: secret,
		IDs:       e.ids,
	}
	cmd := NewRootCommandWith(opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", e.configPath, "--env-file", filepath.Join(e.dir, ".env")}, args...))

	err := cmd.ExecuteContext(ctx)
	e.relay.absorb()
	// Each command stamps its events one minute after the last.
	e.clock.Advance(time.Minute)
	return out.String(), err
}

// runJSON runs with --format json and decodes the data payload into v.
func (e *testEnv) runJSON(t *testing.T, secret string, v any, args ...string) {
	t.Helper()
	out, err := e.run(t, secret, append([]string{"--format", "json"}, args...)...)
	require.NoError(t, err, out)

	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}
