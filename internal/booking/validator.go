// Package booking checks booking requests against their templates and sorts
// them into the host's tabs.
package booking

import (
	"fmt"
	"math"
	"time"

	"github.com/roach88/nostrcal/internal/fault"
	"github.com/roach88/nostrcal/internal/record"
)

// TemplateLookup resolves a template by its d tag.
type TemplateLookup func(id string) (record.AvailabilityTemplate, bool)

// Validator cross-checks requests against templates. Clock times and
// weekdays are read in the validator's location.
type Validator struct {
	loc *time.Location
}

// NewValidator creates a validator for loc. A nil loc means UTC.
func NewValidator(loc *time.Location) *Validator {
	if loc == nil {
		loc = time.UTC
	}
	return &Validator{loc: loc}
}

// Check returns nil when req fits its template, or a VALIDATION_FAILURE
// naming the first failed rule. All rules must hold.
func (v *Validator) Check(req record.BookingRequest, lookup TemplateLookup) error {
	id := req.TemplateID()
	if id == "" {
		return fault.ValidationFailed(req.ID, "missing template reference")
	}
	tpl, ok := lookup(id)
	if !ok {
		return fault.ValidationFailed(req.ID, fmt.Sprintf("template %q not found", id))
	}

	minutes := int(math.Round(req.End.Sub(req.Start).Minutes()))
	if minutes != tpl.DurationMinutes {
		return fault.ValidationFailed(req.ID,
			fmt.Sprintf("duration %d min does not match template %d min", minutes, tpl.DurationMinutes))
	}

	start := req.Start.In(v.loc)
	win, ok := tpl.Weekly.Window(start.Weekday())
	if !ok {
		return fault.ValidationFailed(req.ID,
			fmt.Sprintf("%s is not an available day", record.DayCodeOf(start.Weekday())))
	}

	// The end is measured from the start so a slot ending at midnight
	// reads as 24:00.
	from := record.ClockOf(start)
	to := from + record.ClockTime(minutes)
	if from < win.Start || to > win.End {
		return fault.ValidationFailed(req.ID,
			fmt.Sprintf("%s-%s outside window %s-%s", from, to, win.Start, win.End))
	}
	return nil
}

// IsValid reports whether Check passes.
func (v *Validator) IsValid(req record.BookingRequest, lookup TemplateLookup) bool {
	return v.Check(req, lookup) == nil
}

// LookupIn builds a TemplateLookup over a slice.
func LookupIn(templates []record.AvailabilityTemplate) TemplateLookup {
	return func(id string) (record.AvailabilityTemplate, bool) {
		for _, t := range templates {
			if t.ID == id {
				return t, true
			}
		}
		return record.AvailabilityTemplate{}, false
	}
}
