package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/spf13/cobra"

	"github.com/roach88/nostrcal/internal/booking"
	"github.com/roach88/nostrcal/internal/record"
	"github.com/roach88/nostrcal/internal/session"
)

// BookingRow is one booking as shown by the bookings command.
type BookingRow struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Booker   string        `json:"booker"`
	Status   record.Status `json:"status"`
	Valid    bool          `json:"valid"`
	Problem  string        `json:"problem,omitempty"`
	Template string        `json:"template,omitempty"`
	Note     string        `json:"note,omitempty"`
}

func bookingRow(b session.Booking, loc *time.Location) BookingRow {
	booker := b.Booker()
	if npub, err := nip19.EncodePublicKey(booker); err == nil {
		booker = npub
	}
	return BookingRow{
		ID:       b.ID,
		Title:    b.Title,
		Start:    b.Start.In(loc),
		End:      b.End.In(loc),
		Booker:   booker,
		Status:   b.Status,
		Valid:    b.Valid,
		Problem:  b.Problem,
		Template: b.TemplateRef,
		Note:     b.Description,
	}
}

// BookingList is the output of the bookings command.
type BookingList struct {
	Tab      booking.Tab  `json:"tab"`
	Bookings []BookingRow `json:"bookings"`
}

func (l BookingList) Text(w io.Writer) {
	if len(l.Bookings) == 0 {
		fmt.Fprintf(w, "No %s bookings.\n", l.Tab)
		return
	}
	for _, b := range l.Bookings {
		fmt.Fprintf(w, "%s  %s-%s  %s  [%s]\n",
			b.Start.Format("Mon Jan 2 2006 3:04 PM"), b.Start.Format("3:04 PM"), b.End.Format("3:04 PM"), b.Title, b.Status)
		fmt.Fprintf(w, "  id: %s\n  from: %s\n", b.ID, b.Booker)
		if b.Problem != "" {
			fmt.Fprintf(w, "  invalid: %s\n", b.Problem)
		}
	}
}

// NewBookingsCommand creates the bookings command.
func NewBookingsCommand(rootOpts *RootOptions) *cobra.Command {
	var tabName string
	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "List booking requests by tab",
		Example: `  nostrcal bookings
  nostrcal bookings --tab upcoming --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			tab, ok := booking.ParseTab(tabName)
			if !ok {
				return f.Fail(NewExitError(ExitCommandError, fmt.Sprintf("unknown tab %q: must be one of %v", tabName, booking.Tabs)))
			}
			a, err := rootOpts.openApp(cmd.Context(), appSpec{role: session.RoleHost})
			if err != nil {
				return f.Fail(err)
			}
			defer a.Close()

			out := BookingList{Tab: tab, Bookings: []BookingRow{}}
			for _, b := range a.session.BookingTab(tab, rootOpts.now()) {
				out.Bookings = append(out.Bookings, bookingRow(b, a.loc))
			}
			return f.Success(out)
		},
	}
	cmd.Flags().StringVar(&tabName, "tab", string(booking.TabUnconfirmed), "upcoming|unconfirmed|past|canceled")
	return cmd
}

// RSVPResult is the output of respond and cancel.
type RSVPResult struct {
	RSVP    record.RSVP     `json:"rsvp"`
	Receipt session.Receipt `json:"receipt"`
}

func (r RSVPResult) Text(w io.Writer) {
	fmt.Fprintf(w, "✓ Booking %s marked %s\n", r.RSVP.EventRef, r.RSVP.Status)
	writeReport(w, r.Receipt)
}

// NewRespondCommand creates the respond command.
func NewRespondCommand(rootOpts *RootOptions) *cobra.Command {
	var accept, decline bool
	cmd := &cobra.Command{
		Use:   "respond <booking-id>",
		Short: "Accept or decline a booking request",
		Example: `  nostrcal respond <id> --accept
  nostrcal respond <id> --decline`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			if accept == decline {
				return f.Fail(NewExitError(ExitCommandError, "pass exactly one of --accept or --decline"))
			}
			status := record.StatusAccepted
			if decline {
				status = record.StatusDeclined
			}

			a, err := rootOpts.openApp(cmd.Context(), appSpec{role: session.RoleHost})
			if err != nil {
				return f.Fail(err)
			}
			defer a.Close()

			r, receipt, err := a.client.RespondToBooking(cmd.Context(), args[0], status)
			if err != nil {
				return f.Fail(err)
			}
			return f.Success(RSVPResult{RSVP: r, Receipt: receipt})
		},
	}
	cmd.Flags().BoolVar(&accept, "accept", false, "accept the request")
	cmd.Flags().BoolVar(&decline, "decline", false, "decline the request")
	return cmd
}

// NewCancelCommand creates the cancel command.
func NewCancelCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <booking-id>",
		Short: "Cancel an accepted booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			a, err := rootOpts.openApp(cmd.Context(), appSpec{role: session.RoleHost})
			if err != nil {
				return f.Fail(err)
			}
			defer a.Close()

			r, receipt, err := a.client.CancelBooking(cmd.Context(), args[0])
			if err != nil {
				return f.Fail(err)
			}
			return f.Success(RSVPResult{RSVP: r, Receipt: receipt})
		},
	}
}
