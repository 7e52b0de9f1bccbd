package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/roach88/nostrcal/internal/session"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Naddr       string
	MetricsAddr string
	Cron        string
}

// WatchResult is printed when watch stops.
type WatchResult struct {
	Role      string `json:"role"`
	Events    int    `json:"events"`
	Updates   int    `json:"updates"`
	Refreshes int    `json:"refreshes"`
}

func (r WatchResult) Text(w io.Writer) {
	fmt.Fprintf(w, "Stopped watching as %s: %d events, %d updates, %d refreshes\n", r.Role, r.Events, r.Updates, r.Refreshes)
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep subscriptions open and serve metrics",
		Long: `Keep relay subscriptions open until interrupted.

Live events update the session as they arrive. Relays are re-queried on
the refresh_cron schedule, and Prometheus metrics are served on
metrics_addr at /metrics. With --naddr the session watches a host's
template as a booker; otherwise it watches your own calendar.`,
		Example: `  nostrcal watch
  nostrcal watch --metrics-addr :9464 --cron "*/10 * * * *"
  nostrcal watch --naddr naddr1...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Naddr, "naddr", "", "watch a host template as a booker")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "metrics listen address, \"off\" to disable (default: config metrics_addr)")
	cmd.Flags().StringVar(&opts.Cron, "cron", "", "refresh schedule (default: config refresh_cron)")
	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := opts.settings()
	schedule := opts.Cron
	if schedule == "" {
		schedule = cfg.RefreshCron
	}
	addr := opts.MetricsAddr
	if addr == "" {
		addr = cfg.MetricsAddr
	}

	var (
		a   *app
		err error
	)
	if opts.Naddr != "" {
		a, _, _, err = opts.openBooker(cmd, opts.Naddr, false)
	} else {
		a, err = opts.openApp(ctx, appSpec{role: session.RoleHost})
	}
	if err != nil {
		return f.Fail(err)
	}
	defer a.Close()

	if addr != "off" {
		srv, err := serveMetrics(addr, a)
		if err != nil {
			return f.Fail(WrapExitError(ExitCommandError, "failed to serve metrics", err))
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	refreshes := make(chan error, 1)
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		err := a.client.Refresh(ctx)
		a.metrics.Refreshed(err)
		if err != nil {
			slog.Warn("refresh failed", "error", err)
		}
		select {
		case refreshes <- err:
		default:
		}
	}); err != nil {
		return f.Fail(WrapExitError(ExitCommandError, fmt.Sprintf("invalid refresh schedule %q", schedule), err))
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()

	slog.Info("watching", "role", a.session.Role(), "relays", len(a.pool.URLs()), "refresh", schedule)

	result := WatchResult{Role: a.session.Role().String()}
	for {
		select {
		case <-ctx.Done():
			result.Events = a.session.Seen()
			return f.Success(result)
		case <-a.session.Updates():
			result.Updates++
			slog.Info("calendar updated", "entries", len(a.session.AllEntries()), "bookings", len(a.session.Bookings()))
		case <-refreshes:
			result.Refreshes++
		}
	}
}

// serveMetrics starts the /metrics endpoint in the background.
func serveMetrics(addr string, a *app) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", a.metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", ln.Addr().String())
	return srv, nil
}
