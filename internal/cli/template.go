package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/nostrcal/internal/record"
	"github.com/roach88/nostrcal/internal/session"
)

// TemplateOptions holds flags for template create and edit.
type TemplateOptions struct {
	*RootOptions
	Calendar     string
	Title        string
	Description  string
	Location     string
	Timezone     string
	AmountSats   int
	Duration     int
	Interval     int
	BufferBefore int
	BufferAfter  int
	MinNotice    int
	MaxAdvance   int
	BusinessDays bool
	Schedule     []string
}

// DefaultSchedule is used when no --sch flag is given.
var DefaultSchedule = []string{"MO", "TU", "WE", "TH", "FR"}

// spec turns the flags into a template spec. A negative --max-advance
// means unlimited.
func (o *TemplateOptions) spec() (session.TemplateSpec, error) {
	weekly, err := parseSchedule(o.Schedule)
	if err != nil {
		return session.TemplateSpec{}, err
	}
	sp := session.TemplateSpec{
		CalendarID:             o.Calendar,
		Title:                  o.Title,
		Description:            o.Description,
		Location:               o.Location,
		Timezone:               o.Timezone,
		AmountSats:             o.AmountSats,
		DurationMinutes:        o.Duration,
		IntervalMinutes:        o.Interval,
		BufferBeforeMinutes:    o.BufferBefore,
		BufferAfterMinutes:     o.BufferAfter,
		MinNoticeMinutes:       o.MinNotice,
		MaxAdvanceBusinessDays: o.BusinessDays,
		Weekly:                 weekly,
	}
	if o.MaxAdvance >= 0 {
		days := o.MaxAdvance
		sp.MaxAdvanceDays = &days
	}
	return sp, nil
}

// parseSchedule reads "MO" or "MO=09:00-17:00" entries.
func parseSchedule(entries []string) (record.Weekly, error) {
	if len(entries) == 0 {
		entries = DefaultSchedule
	}
	var w record.Weekly
	for _, entry := range entries {
		code, window, hasWindow := strings.Cut(strings.TrimSpace(entry), "=")
		wd, ok := record.WeekdayOf(record.DayCode(strings.ToUpper(code)))
		if !ok {
			return w, NewExitError(ExitCommandError, fmt.Sprintf("unknown day %q in --sch", code))
		}
		start, end := record.DefaultWindowStart, record.DefaultWindowEnd
		if hasWindow {
			from, to, ok := strings.Cut(window, "-")
			if !ok {
				return w, NewExitError(ExitCommandError, fmt.Sprintf("--sch %q: want DAY=HH:MM-HH:MM", entry))
			}
			var err error
			if start, err = record.ParseClock(from); err != nil {
				return w, WrapExitError(ExitCommandError, "invalid --sch", err)
			}
			if end, err = record.ParseClock(to); err != nil {
				return w, WrapExitError(ExitCommandError, "invalid --sch", err)
			}
		}
		w.Set(wd, start, end)
	}
	return w, nil
}

func (o *TemplateOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Calendar, "calendar", "", "d tag of the calendar the template belongs to")
	cmd.Flags().StringVar(&o.Title, "title", "", "template title (required)")
	_ = cmd.MarkFlagRequired("title")
	cmd.Flags().StringVar(&o.Description, "description", "", "template description")
	cmd.Flags().StringVar(&o.Location, "location", "", "meeting location (default "+record.DefaultLocation+")")
	cmd.Flags().StringVar(&o.Timezone, "timezone", "", "IANA timezone (default: config timezone)")
	cmd.Flags().IntVar(&o.AmountSats, "amount-sats", 0, "price in sats")
	cmd.Flags().IntVar(&o.Duration, "duration", 30, "meeting length in minutes")
	cmd.Flags().IntVar(&o.Interval, "interval", 0, "minutes between slot starts (default: duration)")
	cmd.Flags().IntVar(&o.BufferBefore, "buffer-before", 0, "free minutes required before a meeting")
	cmd.Flags().IntVar(&o.BufferAfter, "buffer-after", 0, "free minutes required after a meeting")
	cmd.Flags().IntVar(&o.MinNotice, "min-notice", 0, "minimum minutes between booking and meeting")
	cmd.Flags().IntVar(&o.MaxAdvance, "max-advance", 30, "how many days ahead bookings are accepted (negative: unlimited)")
	cmd.Flags().BoolVar(&o.BusinessDays, "business-days", false, "count --max-advance in weekdays")
	cmd.Flags().StringSliceVar(&o.Schedule, "sch", nil, "weekly window, e.g. MO=09:00-17:00 (repeatable; default MO-FR 09:00-17:00)")
}

// TemplateResult is the output of template create and edit.
type TemplateResult struct {
	Template record.AvailabilityTemplate `json:"template"`
	Naddr    string                      `json:"naddr"`
	Receipt  session.Receipt             `json:"receipt"`
}

func (r TemplateResult) Text(w io.Writer) {
	fmt.Fprintf(w, "✓ Published template %q (%s)\n", r.Template.Title, r.Template.ID)
	fmt.Fprintf(w, "  Share: %s\n", r.Naddr)
	writeReport(w, r.Receipt)
}

// TemplateRow is one line of template list.
type TemplateRow struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Duration   int    `json:"duration_minutes"`
	Days       string `json:"days"`
	// MaxAdvance is in days; 0 means unlimited.
	MaxAdvance int    `json:"max_advance_days"`
	Naddr      string `json:"naddr"`
}

// TemplateList is the output of template list.
type TemplateList []TemplateRow

func (l TemplateList) Text(w io.Writer) {
	if len(l) == 0 {
		fmt.Fprintln(w, "No templates.")
		return
	}
	for _, r := range l {
		limit := "no limit"
		if r.MaxAdvance > 0 {
			limit = fmt.Sprintf("%dd ahead", r.MaxAdvance)
		}
		fmt.Fprintf(w, "%s  %s  %dm  %s  (%s)\n  %s\n", r.ID, r.Title, r.Duration, r.Days, limit, r.Naddr)
	}
}

func templateRow(tpl record.AvailabilityTemplate, relays []string) TemplateRow {
	var days []string
	for _, wd := range tpl.Weekly.EnabledDays() {
		win, _ := tpl.Weekly.Window(wd)
		days = append(days, fmt.Sprintf("%s %s-%s", record.DayCodeOf(wd), win.Start, win.End))
	}
	naddr, _ := tpl.Address().Naddr(relays)
	return TemplateRow{
		ID:         tpl.ID,
		Title:      tpl.Title,
		Duration:   tpl.DurationMinutes,
		Days:       strings.Join(days, ", "),
		MaxAdvance: tpl.EditorMaxAdvanceDays(),
		Naddr:      naddr,
	}
}

// NewTemplateCommand creates the template command group.
func NewTemplateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage availability templates",
	}
	cmd.AddCommand(newTemplateCreateCommand(rootOpts))
	cmd.AddCommand(newTemplateEditCommand(rootOpts))
	cmd.AddCommand(newTemplateDeleteCommand(rootOpts))
	cmd.AddCommand(newTemplateListCommand(rootOpts))
	return cmd
}

func newTemplateCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TemplateOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a new availability template",
		Example: `  nostrcal template create --title "Intro call" --duration 30
  nostrcal template create --title Consult --duration 60 --sch MO=10:00-12:00 --sch TH=14:00-18:00`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplatePublish(opts, cmd, "")
		},
	}
	opts.bind(cmd)
	return cmd
}

func newTemplateEditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TemplateOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "edit <template-id>",
		Short: "Republish a template with new settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplatePublish(opts, cmd, args[0])
		},
	}
	opts.bind(cmd)
	return cmd
}

func runTemplatePublish(opts *TemplateOptions, cmd *cobra.Command, id string) error {
	f := opts.formatter(cmd)
	sp, err := opts.spec()
	if err != nil {
		return f.Fail(err)
	}
	a, err := opts.openApp(cmd.Context(), appSpec{role: session.RoleHost})
	if err != nil {
		return f.Fail(err)
	}
	defer a.Close()

	var (
		tpl     record.AvailabilityTemplate
		receipt session.Receipt
	)
	if id == "" {
		tpl, receipt, err = a.client.CreateTemplate(cmd.Context(), sp)
	} else {
		tpl, receipt, err = a.client.EditTemplate(cmd.Context(), id, sp)
	}
	if err != nil {
		return f.Fail(err)
	}
	naddr, err := tpl.Address().Naddr(a.cfg.Relays)
	if err != nil {
		return f.Fail(err)
	}
	return f.Success(TemplateResult{Template: tpl, Naddr: naddr, Receipt: receipt})
}

func newTemplateDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <template-id>",
		Short: "Publish a deletion for a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			a, err := rootOpts.openApp(cmd.Context(), appSpec{role: session.RoleHost})
			if err != nil {
				return f.Fail(err)
			}
			defer a.Close()

			receipt, err := a.client.DeleteTemplate(cmd.Context(), args[0])
			if err != nil {
				return f.Fail(err)
			}
			return f.Success(DeleteResult{ID: args[0], Receipt: receipt})
		},
	}
}

func newTemplateListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your availability templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			a, err := rootOpts.openApp(cmd.Context(), appSpec{role: session.RoleHost})
			if err != nil {
				return f.Fail(err)
			}
			defer a.Close()

			rows := TemplateList{}
			for _, tpl := range a.session.Templates() {
				rows = append(rows, templateRow(tpl, a.cfg.Relays))
			}
			return f.Success(rows)
		},
	}
}
