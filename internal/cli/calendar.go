package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/nostrcal/internal/record"
	"github.com/roach88/nostrcal/internal/session"
)

// CalendarOptions holds flags for the calendar commands.
type CalendarOptions struct {
	*RootOptions
	Title       string
	Description string
}

// CalendarResult is the output of calendar create.
type CalendarResult struct {
	Calendar record.Calendar `json:"calendar"`
	Receipt  session.Receipt `json:"receipt"`
}

func (r CalendarResult) Text(w io.Writer) {
	fmt.Fprintf(w, "✓ Created calendar %q (%s)\n", r.Calendar.Title, r.Calendar.ID)
	writeReport(w, r.Receipt)
}

// CalendarList is the output of calendar list.
type CalendarList []record.Calendar

func (l CalendarList) Text(w io.Writer) {
	if len(l) == 0 {
		fmt.Fprintln(w, "No calendars.")
		return
	}
	for _, c := range l {
		fmt.Fprintf(w, "%s  %s\n", c.ID, c.Title)
	}
}

// NewCalendarCommand creates the calendar command group.
func NewCalendarCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Manage your calendars",
	}
	cmd.AddCommand(newCalendarCreateCommand(rootOpts))
	cmd.AddCommand(newCalendarListCommand(rootOpts))
	return cmd
}

func newCalendarCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CalendarOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a new calendar",
		Example: `  nostrcal calendar create --title "Office hours"
  nostrcal calendar create --title Work --description "Work meetings"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			a, err := opts.openApp(cmd.Context(), appSpec{role: session.RoleHost})
			if err != nil {
				return f.Fail(err)
			}
			defer a.Close()

			cal, receipt, err := a.client.CreateCalendar(cmd.Context(), opts.Title, opts.Description)
			if err != nil {
				return f.Fail(err)
			}
			return f.Success(CalendarResult{Calendar: cal, Receipt: receipt})
		},
	}

	cmd.Flags().StringVar(&opts.Title, "title", "", "calendar title (required)")
	_ = cmd.MarkFlagRequired("title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "calendar description")
	return cmd
}

func newCalendarListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your calendars",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			a, err := rootOpts.openApp(cmd.Context(), appSpec{role: session.RoleHost})
			if err != nil {
				return f.Fail(err)
			}
			defer a.Close()
			return f.Success(CalendarList(a.session.Calendars()))
		},
	}
}

// writeReport prints one line per relay outcome.
func writeReport(w io.Writer, r session.Receipt) {
	for _, res := range r.Report.Results {
		if res.Reason != "" {
			fmt.Fprintf(w, "  %s: %s (%s)\n", res.Relay, res.Outcome, res.Reason)
			continue
		}
		fmt.Fprintf(w, "  %s: %s\n", res.Relay, res.Outcome)
	}
}
