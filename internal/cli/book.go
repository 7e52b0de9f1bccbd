package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/nostrcal/internal/availability"
	"github.com/roach88/nostrcal/internal/record"
	"github.com/roach88/nostrcal/internal/session"
)

// templateTarget resolves --naddr into a template address and relay hints.
// The plain "31926:<pubkey>:<d>" form is accepted too.
func templateTarget(ref string) (record.Address, []string, error) {
	ref = strings.TrimSpace(ref)
	var (
		addr   record.Address
		relays []string
		err    error
	)
	if strings.HasPrefix(ref, "naddr1") || strings.HasPrefix(ref, "nostr:") {
		addr, relays, err = record.DecodeNaddr(ref)
	} else {
		addr, err = record.ParseAddress(ref)
	}
	if err != nil {
		return record.Address{}, nil, WrapExitError(ExitCommandError, "invalid --naddr", err)
	}
	if addr.Kind != record.KindAvailabilityTemplate {
		return record.Address{}, nil, NewExitError(ExitCommandError, fmt.Sprintf("--naddr points at kind %d, not an availability template", addr.Kind))
	}
	return addr, relays, nil
}

// openBooker loads the template's owner as a booker session.
func (o *RootOptions) openBooker(cmd *cobra.Command, ref string, needKey bool) (*app, record.Address, *availability.Resolver, error) {
	addr, relays, err := templateTarget(ref)
	if err != nil {
		return nil, addr, nil, err
	}
	a, err := o.openApp(cmd.Context(), appSpec{
		role:       session.RoleBooker,
		owner:      addr.Author,
		templateID: addr.Identifier,
		needKey:    needKey,
		relays:     relays,
	})
	if err != nil {
		return nil, addr, nil, err
	}
	res, ok := a.session.Resolver(addr.Identifier)
	if !ok {
		a.Close()
		return nil, addr, nil, fmt.Errorf("%w: template %s not found on any relay", session.ErrNotFound, addr)
	}
	return a, addr, res, nil
}

// SlotRow is one slot as shown by the slots command.
type SlotRow struct {
	Start     time.Time           `json:"start"`
	End       time.Time           `json:"end"`
	Label     string              `json:"label"`
	Available bool                `json:"available"`
	Reason    availability.Reason `json:"reason,omitempty"`
}

// SlotList is the output of the slots command.
type SlotList struct {
	Template string    `json:"template"`
	Date     string    `json:"date"`
	Slots    []SlotRow `json:"slots"`
}

func (l SlotList) Text(w io.Writer) {
	fmt.Fprintf(w, "%s on %s\n", l.Template, l.Date)
	if len(l.Slots) == 0 {
		fmt.Fprintln(w, "  No slots on this day.")
		return
	}
	for _, s := range l.Slots {
		if s.Available {
			fmt.Fprintf(w, "  ✓ %s\n", s.Label)
			continue
		}
		fmt.Fprintf(w, "  ✗ %s (%s)\n", s.Label, s.Reason)
	}
}

// NewSlotsCommand creates the slots command.
func NewSlotsCommand(rootOpts *RootOptions) *cobra.Command {
	var ref, date string
	cmd := &cobra.Command{
		Use:     "slots",
		Short:   "List a template's slots on a date",
		Example: `  nostrcal slots --naddr naddr1... --date 2025-03-10`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			a, _, res, err := rootOpts.openBooker(cmd, ref, false)
			if err != nil {
				return f.Fail(err)
			}
			defer a.Close()

			now := rootOpts.now()
			day := now.In(a.loc)
			if date != "" {
				if day, err = parseDate(date, a.loc); err != nil {
					return f.Fail(err)
				}
			}
			out := SlotList{Template: res.Template().Title, Date: day.Format(time.DateOnly), Slots: []SlotRow{}}
			for _, s := range res.Slots(day, now) {
				out.Slots = append(out.Slots, SlotRow{
					Start:     s.Start,
					End:       s.End,
					Label:     s.Label,
					Available: s.Available,
					Reason:    s.Reason,
				})
			}
			return f.Success(out)
		},
	}
	cmd.Flags().StringVar(&ref, "naddr", "", "template naddr or 31926:<pubkey>:<id> (required)")
	_ = cmd.MarkFlagRequired("naddr")
	cmd.Flags().StringVar(&date, "date", "", "date to list (YYYY-MM-DD, default today)")
	return cmd
}

// DateList is the output of the dates command.
type DateList struct {
	Template string   `json:"template"`
	Dates    []string `json:"dates"`
}

func (l DateList) Text(w io.Writer) {
	if len(l.Dates) == 0 {
		fmt.Fprintf(w, "%s has no bookable dates in range.\n", l.Template)
		return
	}
	fmt.Fprintf(w, "%s is bookable on:\n", l.Template)
	for _, d := range l.Dates {
		fmt.Fprintf(w, "  %s\n", d)
	}
}

// NewDatesCommand creates the dates command.
func NewDatesCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		ref  string
		days int
	)
	cmd := &cobra.Command{
		Use:     "dates",
		Short:   "List the dates a template can be booked on",
		Example: `  nostrcal dates --naddr naddr1... --days 14`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			a, _, res, err := rootOpts.openBooker(cmd, ref, false)
			if err != nil {
				return f.Fail(err)
			}
			defer a.Close()

			if days <= 0 {
				days = a.cfg.LookaheadDays
			}
			now := rootOpts.now()
			dates, err := res.OfferableDates(now, now.AddDate(0, 0, days), now)
			if err != nil {
				return f.Fail(err)
			}
			out := DateList{Template: res.Template().Title, Dates: []string{}}
			for _, d := range dates {
				out.Dates = append(out.Dates, d.Format(time.DateOnly))
			}
			return f.Success(out)
		},
	}
	cmd.Flags().StringVar(&ref, "naddr", "", "template naddr or 31926:<pubkey>:<id> (required)")
	_ = cmd.MarkFlagRequired("naddr")
	cmd.Flags().IntVar(&days, "days", 0, "how many days ahead to look (default: config lookahead_days)")
	return cmd
}

// startLayouts are the accepted --start formats besides RFC 3339.
var startLayouts = []string{"2006-01-02 15:04", "2006-01-02T15:04"}

func parseStart(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid --start %q: want RFC 3339 or YYYY-MM-DD HH:MM", s))
}

// BookResult is the output of the book command.
type BookResult struct {
	Request record.BookingRequest `json:"request"`
	Receipt session.Receipt       `json:"receipt"`
}

func (r BookResult) Text(w io.Writer) {
	fmt.Fprintf(w, "✓ Requested %s %s-%s\n", r.Request.Start.Format("Mon Jan 2 2006"), r.Request.Start.Format("3:04 PM"), r.Request.End.Format("3:04 PM"))
	fmt.Fprintf(w, "  id: %s\n", r.Request.ID)
	writeReport(w, r.Receipt)
}

// NewBookCommand creates the book command.
func NewBookCommand(rootOpts *RootOptions) *cobra.Command {
	var ref, start, note string
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Request a slot from a host's template",
		Example: `  nostrcal book --naddr naddr1... --start "2025-03-10 09:30"
  nostrcal book --naddr naddr1... --start 2025-03-10T09:30:00Z --note "Intro"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			a, addr, _, err := rootOpts.openBooker(cmd, ref, true)
			if err != nil {
				return f.Fail(err)
			}
			defer a.Close()

			at, err := parseStart(start, a.loc)
			if err != nil {
				return f.Fail(err)
			}
			req, receipt, err := a.client.CreateBookingRequest(cmd.Context(), addr.String(), at, note)
			if err != nil {
				return f.Fail(err)
			}
			return f.Success(BookResult{Request: req, Receipt: receipt})
		},
	}
	cmd.Flags().StringVar(&ref, "naddr", "", "template naddr or 31926:<pubkey>:<id> (required)")
	_ = cmd.MarkFlagRequired("naddr")
	cmd.Flags().StringVar(&start, "start", "", "slot start (required)")
	_ = cmd.MarkFlagRequired("start")
	cmd.Flags().StringVar(&note, "note", "", "message for the host")
	return cmd
}
