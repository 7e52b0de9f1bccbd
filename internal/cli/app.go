package cli

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/nostrcal/internal/config"
	"github.com/roach88/nostrcal/internal/metrics"
	"github.com/roach88/nostrcal/internal/relay"
	"github.com/roach88/nostrcal/internal/session"
	"github.com/roach88/nostrcal/internal/signer"
	"github.com/roach88/nostrcal/internal/store"
)

// app is one connected client: relays, a running session and the
// optional journal.
type app struct {
	cfg     *config.Config
	loc     *time.Location
	key     *signer.KeySigner
	metrics *metrics.Metrics
	journal *store.Store
	pool    *relay.Pool
	session *session.Session
	client  *session.Client

	stop    context.CancelFunc
	running chan error
}

// appSpec says which session a command needs.
type appSpec struct {
	role       session.Role
	owner      string
	templateID string
	needKey    bool

	// relays are hints added to the configured relays, e.g. from an naddr.
	relays []string
}

// key resolves the configured secret key. Returns nil when none is set.
func (o *RootOptions) key() (*signer.KeySigner, error) {
	secret := o.SecretKey
	if secret == "" {
		secret = config.SecretKey()
	}
	if secret == "" {
		return nil, nil
	}
	k, err := signer.FromKey(secret)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid "+config.EnvSecretKey, err)
	}
	return k, nil
}

// openApp connects to the configured relays, starts a session and loads
// it. Callers must close the returned app.
func (o *RootOptions) openApp(ctx context.Context, spec appSpec) (*app, error) {
	cfg := o.settings()
	loc, err := cfg.Location()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid timezone", err)
	}
	key, err := o.key()
	if err != nil {
		return nil, err
	}
	if key == nil && (spec.needKey || spec.role == session.RoleHost) {
		return nil, NewExitError(ExitCommandError, config.EnvSecretKey+" is not set")
	}

	a := &app{cfg: cfg, loc: loc, key: key, metrics: o.Metrics}
	if a.metrics == nil {
		a.metrics = metrics.New()
	}

	sopts := session.Options{
		Role:             spec.role,
		Owner:            spec.owner,
		Location:         loc,
		Now:              o.now,
		VerifySignatures: true,
		Observer:         a.metrics,
	}
	if key != nil {
		sopts.Self = key.Pub()
	}
	if cfg.Journal != "" {
		j, err := store.Open(cfg.Journal)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		a.journal = j
		sopts.Journal = j
	}

	s, err := session.New(sopts)
	if err != nil {
		a.closeJournal()
		return nil, WrapExitError(ExitCommandError, "failed to start session", err)
	}
	a.session = s

	a.pool = relay.NewPool(o.Dial,
		relay.WithConnectTimeout(cfg.ConnectTimeout),
		relay.WithObserver(a.metrics))
	urls := mergeRelays(cfg.Relays, spec.relays)
	n, err := a.pool.Connect(ctx, urls)
	if err != nil {
		a.closeJournal()
		return nil, err
	}
	slog.Debug("relays connected", "connected", n, "configured", len(urls))

	runCtx, cancel := context.WithCancel(context.Background())
	a.stop = cancel
	a.running = make(chan error, 1)
	go func() { a.running <- s.Run(runCtx) }()

	var sg signer.Signer
	if key != nil {
		sg = key
	}
	a.client = session.NewClient(s, a.pool, sg, session.ClientOptions{
		QueryWait:      cfg.QueryWait,
		PublishTimeout: cfg.PublishTimeout,
		HistoryDays:    cfg.HistoryDays,
		TemplateID:     spec.templateID,
		IDs:            o.IDs,
	})

	if err := a.client.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}
	slog.Debug("session loaded", "role", spec.role, "events", s.Seen())
	return a, nil
}

// Close ends subscriptions, drains the session and closes relays and the
// journal.
func (a *app) Close() {
	a.client.Close()
	a.session.Stop()
	if err := <-a.running; err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("session loop ended", "error", err)
	}
	a.stop()
	if err := a.pool.Close(); err != nil {
		slog.Warn("closing relays", "error", err)
	}
	a.closeJournal()
}

// mergeRelays appends hints not already configured.
func mergeRelays(configured, hints []string) []string {
	out := slices.Clone(configured)
	for _, h := range hints {
		if !slices.Contains(out, h) {
			out = append(out, h)
		}
	}
	return out
}

func (a *app) closeJournal() {
	if a.journal == nil {
		return
	}
	if err := a.journal.Close(); err != nil {
		slog.Warn("closing journal", "error", err)
	}
}
