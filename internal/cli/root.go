package cli

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/roach88/nostrcal/internal/config"
	"github.com/roach88/nostrcal/internal/metrics"
	"github.com/roach88/nostrcal/internal/relay"
	"github.com/roach88/nostrcal/internal/session"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	EnvFile    string

	// Dial overrides how relay connections are opened (for testing).
	Dial relay.Dialer

	// Now overrides the wall clock (for testing).
	Now func() time.Time

	// SecretKey overrides NOSTRCAL_NSEC (for testing).
	SecretKey string

	// IDs overrides the d-tag generator (for testing).
	IDs session.IDGenerator

	// Metrics overrides the counters a command reports to (for testing).
	Metrics *metrics.Metrics

	cfg *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the nostrcal CLI.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(&RootOptions{})
}

// NewRootCommandWith creates the root command around opts.
func NewRootCommandWith(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nostrcal",
		Short: "nostrcal - NIP-52 calendars and bookings over Nostr",
		Long: `A Nostr calendar client. Hosts publish calendars and availability
templates and answer booking requests; bookers pick a free slot from a
host's template and request it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				err := NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return err
			}
			if err := opts.setup(cmd); err != nil {
				return opts.formatter(cmd).Fail(err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default "+config.DefaultPath()+")")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "file NOSTRCAL_NSEC may be loaded from")

	cmd.AddCommand(NewCalendarCommand(opts))
	cmd.AddCommand(NewTemplateCommand(opts))
	cmd.AddCommand(NewBookingsCommand(opts))
	cmd.AddCommand(NewRespondCommand(opts))
	cmd.AddCommand(NewCancelCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewSlotsCommand(opts))
	cmd.AddCommand(NewDatesCommand(opts))
	cmd.AddCommand(NewBookCommand(opts))
	cmd.AddCommand(NewNaddrCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))

	return cmd
}

// setup loads the config and env file and installs the logger.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	path := o.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	o.cfg = cfg

	if err := config.LoadEnv(o.EnvFile); err != nil {
		return WrapExitError(ExitCommandError, "failed to load env file", err)
	}

	level := cfg.Level()
	if o.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(cmd.ErrOrStderr(), &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	})))
	return nil
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func (o *RootOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *RootOptions) settings() *config.Config {
	if o.cfg == nil {
		o.cfg = config.DefaultConfig()
	}
	return o.cfg
}
