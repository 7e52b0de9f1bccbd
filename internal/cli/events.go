package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/nostrcal/internal/ics"
	"github.com/roach88/nostrcal/internal/record"
	"github.com/roach88/nostrcal/internal/session"
)

// EntryList is the output of the events command.
type EntryList []session.Entry

func (l EntryList) Text(w io.Writer) {
	if len(l) == 0 {
		fmt.Fprintln(w, "No events.")
		return
	}
	for _, e := range l {
		when := e.Start.Format("Mon Jan 2 2006 3:04 PM") + "-" + e.End.Format("3:04 PM")
		if e.AllDay {
			when = e.Start.Format("Mon Jan 2 2006")
			if e.End.Format(time.DateOnly) != e.Start.Format(time.DateOnly) {
				when += " to " + e.End.Format("Mon Jan 2 2006")
			}
		}
		fmt.Fprintf(w, "%s  %s  (%s)\n", when, e.Title, e.Type)
		if e.Problem != "" {
			fmt.Fprintf(w, "  invalid: %s\n", e.Problem)
		}
	}
}

// parseDate reads YYYY-MM-DD in loc.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, WrapExitError(ExitCommandError, fmt.Sprintf("invalid date %q", s), err)
	}
	return d, nil
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show your calendar",
		Example: `  nostrcal events
  nostrcal events --date 2025-03-10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			a, err := rootOpts.openApp(cmd.Context(), appSpec{role: session.RoleHost})
			if err != nil {
				return f.Fail(err)
			}
			defer a.Close()

			if date == "" {
				return f.Success(EntryList(a.session.AllEntries()))
			}
			day, err := parseDate(date, a.loc)
			if err != nil {
				return f.Fail(err)
			}
			return f.Success(EntryList(a.session.EventsOn(day)))
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "only show entries on this date (YYYY-MM-DD)")
	return cmd
}

// DeleteResult is the output of delete and template delete.
type DeleteResult struct {
	ID      string          `json:"id"`
	Receipt session.Receipt `json:"receipt"`
}

func (r DeleteResult) Text(w io.Writer) {
	fmt.Fprintf(w, "✓ Deleted %s\n", r.ID)
	writeReport(w, r.Receipt)
}

// parseKind accepts a kind number or one of date, time, calendar.
func parseKind(s string) (int, error) {
	switch s {
	case "date":
		return record.KindDateEvent, nil
	case "time":
		return record.KindTimeEvent, nil
	case "calendar":
		return record.KindCalendar, nil
	}
	k, err := strconv.Atoi(s)
	if err != nil {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("unknown kind %q: want date, time, calendar or a kind number", s))
	}
	return k, nil
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var kindName string
	cmd := &cobra.Command{
		Use:   "delete <event-id>",
		Short: "Publish a deletion for one of your events",
		Example: `  nostrcal delete <id> --kind time
  nostrcal delete <id> --kind date`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			kind, err := parseKind(kindName)
			if err != nil {
				return f.Fail(err)
			}
			a, err := rootOpts.openApp(cmd.Context(), appSpec{role: session.RoleHost})
			if err != nil {
				return f.Fail(err)
			}
			defer a.Close()

			receipt, err := a.client.DeleteEvent(cmd.Context(), args[0], kind)
			if err != nil {
				return f.Fail(err)
			}
			return f.Success(DeleteResult{ID: args[0], Receipt: receipt})
		},
	}
	cmd.Flags().StringVar(&kindName, "kind", "time", "event kind: date, time, calendar")
	return cmd
}

// ExportResult is the output of export.
type ExportResult struct {
	Path    string `json:"path"`
	Entries int    `json:"entries"`
}

func (r ExportResult) Text(w io.Writer) {
	fmt.Fprintf(w, "✓ Wrote %d entries to %s\n", r.Entries, r.Path)
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:     "export",
		Short:   "Write your calendar as an iCalendar file",
		Example: `  nostrcal export --out calendar.ics`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			a, err := rootOpts.openApp(cmd.Context(), appSpec{role: session.RoleHost})
			if err != nil {
				return f.Fail(err)
			}
			defer a.Close()

			entries := a.session.AllEntries()
			name := "nostrcal"
			if cals := a.session.Calendars(); len(cals) > 0 {
				name = cals[0].Title
			}

			file, err := os.Create(out)
			if err != nil {
				return f.Fail(WrapExitError(ExitCommandError, "failed to create output file", err))
			}
			if err := ics.Write(file, name, entries, rootOpts.now()); err != nil {
				file.Close()
				return f.Fail(WrapExitError(ExitCommandError, "failed to write output file", err))
			}
			if err := file.Close(); err != nil {
				return f.Fail(WrapExitError(ExitCommandError, "failed to write output file", err))
			}
			return f.Success(ExportResult{Path: out, Entries: len(entries)})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output .ics path (required)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
