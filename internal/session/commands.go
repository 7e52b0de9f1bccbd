package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/roach88/nostrcal/internal/fault"
	"github.com/roach88/nostrcal/internal/record"
	"github.com/roach88/nostrcal/internal/relay"
)

// Receipt is the signed event and what the relays made of it.
type Receipt struct {
	Event  nostr.Event  `json:"event"`
	Report relay.Report `json:"report"`
}

// publish signs ev, broadcasts it and ingests it once the broadcast counts
// as a success.
func (c *Client) publish(ctx context.Context, ev nostr.Event) (Receipt, error) {
	if c.signer == nil {
		return Receipt{}, fault.SigningFailed(ev.Kind, errors.New("no signer configured"))
	}
	if err := c.signer.SignEvent(ctx, &ev); err != nil {
		return Receipt{}, err
	}

	report := c.transport.Publish(ctx, ev, c.opts.PublishTimeout)
	receipt := Receipt{Event: ev, Report: report}
	if err := report.Err(); err != nil {
		return receipt, err
	}

	c.s.Ingest(ctx, "", &ev)
	slog.Info("event published",
		"kind", record.KindName(ev.Kind),
		"event", ev.ID,
		"accepted", report.Count(relay.OutcomeAccepted),
		"relays", len(report.Results))
	return receipt, nil
}

// requireHost rejects commands that only the calendar owner may run.
func (c *Client) requireHost(op string) error {
	if c.s.Role() != RoleHost {
		return fmt.Errorf("%s: only a host session can do this", op)
	}
	return nil
}

// CreateCalendar publishes a new calendar.
func (c *Client) CreateCalendar(ctx context.Context, title, description string) (record.Calendar, Receipt, error) {
	if err := c.requireHost("create calendar"); err != nil {
		return record.Calendar{}, Receipt{}, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return record.Calendar{}, Receipt{}, fault.ValidationFailed("", "calendar title is required")
	}
	if strings.TrimSpace(description) == "" {
		description = "Calendar for " + title
	}

	cal := record.Calendar{
		ID:          c.opts.IDs.NewID("cal"),
		Author:      c.s.Self(),
		Title:       title,
		Description: description,
	}
	receipt, err := c.publish(ctx, cal.Event(c.s.Now()))
	cal.EventRef = receipt.Event.ID
	return cal, receipt, err
}

// TemplateSpec is the editable part of an availability template.
type TemplateSpec struct {
	// CalendarID is the d tag of the owning calendar. Optional.
	CalendarID string

	Title       string
	Description string
	Location    string

	// Timezone defaults to the session location.
	Timezone string

	AmountSats          int
	DurationMinutes     int
	IntervalMinutes     int
	BufferBeforeMinutes int
	BufferAfterMinutes  int
	MinNoticeMinutes    int

	// MaxAdvanceDays nil publishes P0D, read back as unlimited.
	MaxAdvanceDays         *int
	MaxAdvanceBusinessDays bool

	Weekly record.Weekly
}

func (sp TemplateSpec) validate() error {
	if strings.TrimSpace(sp.Title) == "" {
		return fault.ValidationFailed("", "template title is required")
	}
	if sp.DurationMinutes <= 0 {
		return fault.ValidationFailed("", "template duration must be positive")
	}
	if sp.IntervalMinutes < 0 || sp.BufferBeforeMinutes < 0 || sp.BufferAfterMinutes < 0 || sp.MinNoticeMinutes < 0 {
		return fault.ValidationFailed("", "template intervals and buffers cannot be negative")
	}
	if sp.MaxAdvanceDays != nil && *sp.MaxAdvanceDays < 0 {
		return fault.ValidationFailed("", "max advance cannot be negative")
	}
	days := sp.Weekly.EnabledDays()
	if len(days) == 0 {
		return fault.ValidationFailed("", "at least one weekday must be enabled")
	}
	for _, wd := range days {
		win, _ := sp.Weekly.Window(wd)
		if win.End <= win.Start {
			return fault.ValidationFailed("", fmt.Sprintf("%s window %s-%s is empty", record.DayCodeOf(wd), win.Start, win.End))
		}
	}
	return nil
}

func (c *Client) templateFrom(id string, sp TemplateSpec) record.AvailabilityTemplate {
	interval := sp.IntervalMinutes
	if interval == 0 {
		interval = sp.DurationMinutes
	}
	tz := sp.Timezone
	if tz == "" {
		tz = c.s.Location().String()
	}
	location := sp.Location
	if location == "" {
		location = record.DefaultLocation
	}
	tpl := record.AvailabilityTemplate{
		ID:                     id,
		Author:                 c.s.Self(),
		Title:                  strings.TrimSpace(sp.Title),
		Description:            sp.Description,
		Location:               location,
		Timezone:               tz,
		AmountSats:             sp.AmountSats,
		DurationMinutes:        sp.DurationMinutes,
		IntervalMinutes:        interval,
		BufferBeforeMinutes:    sp.BufferBeforeMinutes,
		BufferAfterMinutes:     sp.BufferAfterMinutes,
		MinNoticeMinutes:       sp.MinNoticeMinutes,
		MaxAdvanceDays:         sp.MaxAdvanceDays,
		MaxAdvanceBusinessDays: sp.MaxAdvanceBusinessDays,
		Weekly:                 sp.Weekly,
	}
	if sp.CalendarID != "" {
		tpl.CalendarRef = record.Address{Kind: record.KindCalendar, Author: c.s.Self(), Identifier: sp.CalendarID}.String()
	}
	return tpl
}

// CreateTemplate publishes a new availability template.
func (c *Client) CreateTemplate(ctx context.Context, sp TemplateSpec) (record.AvailabilityTemplate, Receipt, error) {
	if err := c.requireHost("create template"); err != nil {
		return record.AvailabilityTemplate{}, Receipt{}, err
	}
	if err := sp.validate(); err != nil {
		return record.AvailabilityTemplate{}, Receipt{}, err
	}
	tpl := c.templateFrom(c.opts.IDs.NewID("tpl"), sp)
	receipt, err := c.publish(ctx, tpl.Event(c.s.Now()))
	tpl.EventRef = receipt.Event.ID
	return tpl, receipt, err
}

// EditTemplate republishes template id with a new spec, keeping its d tag.
func (c *Client) EditTemplate(ctx context.Context, id string, sp TemplateSpec) (record.AvailabilityTemplate, Receipt, error) {
	if err := c.requireHost("edit template"); err != nil {
		return record.AvailabilityTemplate{}, Receipt{}, err
	}
	if _, ok := c.s.Template(id); !ok {
		return record.AvailabilityTemplate{}, Receipt{}, fmt.Errorf("%w: template %q", ErrNotFound, id)
	}
	if err := sp.validate(); err != nil {
		return record.AvailabilityTemplate{}, Receipt{}, err
	}
	tpl := c.templateFrom(id, sp)
	receipt, err := c.publish(ctx, tpl.Event(c.s.Now()))
	tpl.EventRef = receipt.Event.ID
	return tpl, receipt, err
}

// DeleteTemplate publishes a deletion for template id.
func (c *Client) DeleteTemplate(ctx context.Context, id string) (Receipt, error) {
	if err := c.requireHost("delete template"); err != nil {
		return Receipt{}, err
	}
	tpl, ok := c.s.Template(id)
	if !ok {
		return Receipt{}, fmt.Errorf("%w: template %q", ErrNotFound, id)
	}
	del := record.Deletion{
		EventIDs:  []string{tpl.EventRef},
		Addresses: []record.Address{tpl.Address()},
		Kinds:     []int{record.KindAvailabilityTemplate},
		Reason:    "Deleted availability template: " + tpl.Title,
	}
	return c.publish(ctx, del.Event(c.s.Now()))
}

// DeleteEvent publishes a deletion for one of the owner's own events.
func (c *Client) DeleteEvent(ctx context.Context, id string, kind int) (Receipt, error) {
	if err := c.requireHost("delete event"); err != nil {
		return Receipt{}, err
	}

	var (
		addr  record.Address
		title string
		found bool
	)
	switch kind {
	case record.KindDateEvent:
		for _, ev := range c.s.DateEvents() {
			if ev.ID == id && ev.Author == c.s.Self() {
				addr, title, found = ev.Address(), ev.Title, true
			}
		}
	case record.KindTimeEvent:
		for _, ev := range c.s.OwnerEvents() {
			if ev.ID == id {
				addr, title, found = ev.Address(), ev.Title, true
			}
		}
	case record.KindCalendar:
		for _, cal := range c.s.Calendars() {
			if cal.EventRef == id {
				addr, title, found = cal.Address(), cal.Title, true
			}
		}
	default:
		return Receipt{}, fault.ValidationFailed(id, fmt.Sprintf("cannot delete kind %d events", kind))
	}
	if !found {
		return Receipt{}, fmt.Errorf("%w: %s %q", ErrNotFound, record.KindName(kind), id)
	}

	label := "event"
	if kind == record.KindDateEvent {
		label = "all-day event"
	} else if kind == record.KindCalendar {
		label = "calendar"
	}
	del := record.Deletion{
		EventIDs:  []string{id},
		Addresses: []record.Address{addr},
		Kinds:     []int{kind},
		Reason:    fmt.Sprintf("Deleted %s: %s", label, title),
	}
	return c.publish(ctx, del.Event(c.s.Now()))
}

// RespondToBooking accepts or declines booking request id.
func (c *Client) RespondToBooking(ctx context.Context, id string, status record.Status) (record.RSVP, Receipt, error) {
	var content string
	switch status {
	case record.StatusAccepted:
		content = "Confirmed! Looking forward to our meeting."
	case record.StatusDeclined:
		content = "Sorry, this time is not available."
	default:
		return record.RSVP{}, Receipt{}, fault.ValidationFailed(id, fmt.Sprintf("cannot respond with status %q", status))
	}
	return c.respond(ctx, "respond to booking", "rsvp", id, status, content)
}

// CancelBooking declines a previously accepted booking.
func (c *Client) CancelBooking(ctx context.Context, id string) (record.RSVP, Receipt, error) {
	return c.respond(ctx, "cancel booking", "cancel", id, record.StatusDeclined, "Meeting has been canceled by the host.")
}

func (c *Client) respond(ctx context.Context, op, prefix, id string, status record.Status, content string) (record.RSVP, Receipt, error) {
	if err := c.requireHost(op); err != nil {
		return record.RSVP{}, Receipt{}, err
	}
	b, ok := c.s.Booking(id)
	if !ok {
		return record.RSVP{}, Receipt{}, fmt.Errorf("%w: booking %q", ErrNotFound, id)
	}

	fb := record.FreeBusyFree
	if status == record.StatusAccepted {
		fb = record.FreeBusyBusy
	}
	r := record.RSVP{
		DTag:       c.opts.IDs.NewID(prefix),
		Author:     c.s.Self(),
		Status:     status,
		FreeBusy:   fb,
		EventRef:   b.ID,
		AddressRef: b.Address().String(),
		Invitee:    b.Booker(),
		Content:    content,
	}
	receipt, err := c.publish(ctx, r.Event(c.s.Now()))
	r.ID = receipt.Event.ID
	return r, receipt, err
}

// CreateBookingRequest asks the template's author for the slot starting at
// start. The slot must be available right now.
func (c *Client) CreateBookingRequest(ctx context.Context, templateRef string, start time.Time, note string) (record.BookingRequest, Receipt, error) {
	addr, err := record.ParseAddress(templateRef)
	if err != nil {
		return record.BookingRequest{}, Receipt{}, fault.ValidationFailed("", err.Error())
	}
	if addr.Author != c.s.Owner() {
		return record.BookingRequest{}, Receipt{}, fault.ValidationFailed("", "template belongs to another owner than this session")
	}
	if c.s.Self() == "" {
		return record.BookingRequest{}, Receipt{}, fault.SigningFailed(record.KindTimeEvent, errors.New("no signed-in identity"))
	}
	res, ok := c.s.Resolver(addr.Identifier)
	if !ok {
		return record.BookingRequest{}, Receipt{}, fmt.Errorf("%w: template %q", ErrNotFound, templateRef)
	}

	now := c.s.Now()
	slot, ok := res.SlotAt(start, now)
	if !ok {
		return record.BookingRequest{}, Receipt{}, fault.ValidationFailed("", fmt.Sprintf("%s is not a slot of this template", start.In(c.s.Location()).Format(time.RFC3339)))
	}
	if !slot.Available {
		return record.BookingRequest{}, Receipt{}, fault.ValidationFailed("", fmt.Sprintf("slot %s is not available: %s", slot.Label, slot.Reason))
	}

	tpl := res.Template()
	detail := strings.TrimSpace(note)
	if detail == "" {
		detail = tpl.Description
	}
	self := c.s.Self()
	req := record.BookingRequest{
		TimeEvent: record.TimeEvent{
			DTag:        c.opts.IDs.NewID("booking"),
			Author:      self,
			Title:       "Meeting Request",
			Summary:     fmt.Sprintf("Booking request from %s...", self[:min(8, len(self))]),
			Location:    tpl.Location,
			Description: strings.TrimSpace(fmt.Sprintf("Meeting request for %s on %s. %s", slot.Label, slot.Start.Format(time.DateOnly), detail)),
			StartTZ:     tpl.Timezone,
			Start:       slot.Start,
			End:         slot.End,
			TemplateRef: addr.String(),
		},
		Owner: addr.Author,
	}
	receipt, err := c.publish(ctx, req.Event(now))
	req.ID = receipt.Event.ID
	req.Participants = []string{addr.Author, self}
	return req, receipt, err
}
