package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/spf13/cobra"

	"github.com/roach88/nostrcal/internal/record"
	"github.com/roach88/nostrcal/internal/session"
	"github.com/roach88/nostrcal/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Journal string
	Owner   string
}

// ReplayResult holds the replay result.
type ReplayResult struct {
	Journal       string         `json:"journal"`
	Role          string         `json:"role"`
	Events        int            `json:"events"`
	Kinds         map[string]int `json:"kinds"`
	Entries       int            `json:"entries"`
	Bookings      int            `json:"bookings"`
	Deterministic bool           `json:"deterministic"`
}

func (r ReplayResult) Text(w io.Writer) {
	if r.Events == 0 {
		fmt.Fprintln(w, "No events found in journal.")
		return
	}
	fmt.Fprintf(w, "Replay Summary: %d event(s) as %s\n", r.Events, r.Role)
	kinds := make([]string, 0, len(r.Kinds))
	for k := range r.Kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %s: %d\n", k, r.Kinds[k])
	}
	fmt.Fprintf(w, "  Projected: %d entries, %d bookings\n\n", r.Entries, r.Bookings)
	if r.Deterministic {
		fmt.Fprintln(w, "✓ Replay verified deterministic")
		return
	}
	fmt.Fprintln(w, "✗ Determinism verification failed")
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the event journal and verify determinism",
		Long: `Replay the event journal and verify determinism.

Every journaled event is ingested in seq order into a fresh session, and
again into a second session that receives the whole journal twice. The
projected calendars of both must be identical.

The session is a host session for your own key unless --owner names
someone else, in which case it is rebuilt as a booker of that owner.

Exit codes:
  0 - Replay is deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (journal not found, etc.)`,
		Example: `  nostrcal replay --journal ./events.db
  nostrcal replay --journal ./events.db --owner npub1... --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to the SQLite journal (default: config journal)")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "owner pubkey (hex or npub) to rebuild as a booker")
	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	f := opts.formatter(cmd)

	path := opts.Journal
	if path == "" {
		path = opts.settings().Journal
	}
	if path == "" {
		return f.Fail(NewExitError(ExitCommandError, "no journal: pass --journal or set journal in the config"))
	}

	sopts, err := opts.replaySession()
	if err != nil {
		return f.Fail(err)
	}

	st, err := store.Open(path)
	if err != nil {
		return f.Fail(WrapExitError(ExitCommandError, "failed to open journal", err))
	}
	defer st.Close()

	entries, err := st.Events(ctx)
	if err != nil {
		return f.Fail(WrapExitError(ExitCommandError, "failed to read journal", err))
	}
	byKind, err := st.CountByKind(ctx)
	if err != nil {
		return f.Fail(WrapExitError(ExitCommandError, "failed to read journal", err))
	}

	first, err := replayInto(ctx, sopts, entries, 1)
	if err != nil {
		return f.Fail(err)
	}
	second, err := replayInto(ctx, sopts, entries, 2)
	if err != nil {
		return f.Fail(err)
	}
	a, err := projection(first)
	if err != nil {
		return f.Fail(err)
	}
	b, err := projection(second)
	if err != nil {
		return f.Fail(err)
	}

	result := ReplayResult{
		Journal:       path,
		Role:          sopts.Role.String(),
		Events:        len(entries),
		Kinds:         make(map[string]int),
		Entries:       len(first.AllEntries()),
		Bookings:      len(first.Bookings()),
		Deterministic: bytes.Equal(a, b),
	}
	for kind, n := range byKind {
		result.Kinds[record.KindName(kind)] += n
	}

	if err := f.Success(result); err != nil {
		return err
	}
	if !result.Deterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// replaySession picks the session options the journal is rebuilt with.
func (o *ReplayOptions) replaySession() (session.Options, error) {
	cfg := o.settings()
	loc, err := cfg.Location()
	if err != nil {
		return session.Options{}, WrapExitError(ExitCommandError, "invalid timezone", err)
	}
	key, err := o.key()
	if err != nil {
		return session.Options{}, err
	}
	sopts := session.Options{Location: loc, Now: o.now, VerifySignatures: true}
	if key != nil {
		sopts.Self = key.Pub()
	}

	owner := o.Owner
	if prefix, value, err := nip19.Decode(owner); err == nil && prefix == "npub" {
		owner = value.(string)
	}
	switch {
	case owner != "" && owner != sopts.Self:
		sopts.Role, sopts.Owner = session.RoleBooker, owner
	case sopts.Self != "":
		sopts.Role = session.RoleHost
	default:
		return session.Options{}, NewExitError(ExitCommandError, "pass --owner or set NOSTRCAL_NSEC")
	}
	return sopts, nil
}

// replayInto ingests the journal passes times into a fresh session.
func replayInto(ctx context.Context, opts session.Options, entries []store.Entry, passes int) (*session.Session, error) {
	s, err := session.New(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to start session", err)
	}
	for range passes {
		for _, e := range entries {
			ev := e.Event
			s.Ingest(ctx, e.Relay, &ev)
		}
	}
	return s, nil
}

// projection renders everything a user can see of a session.
func projection(s *session.Session) ([]byte, error) {
	type booking struct {
		ID      string        `json:"id"`
		Status  record.Status `json:"status"`
		Valid   bool          `json:"valid"`
		Problem string        `json:"problem"`
	}
	view := struct {
		Entries  []session.Entry `json:"entries"`
		Bookings []booking       `json:"bookings"`
		Busy     []string        `json:"busy"`
	}{
		Entries: s.AllEntries(),
		Busy:    s.BusyDates(),
	}
	for _, b := range s.Bookings() {
		view.Bookings = append(view.Bookings, booking{ID: b.ID, Status: b.Status, Valid: b.Valid, Problem: b.Problem})
	}
	return json.Marshal(view)
}
