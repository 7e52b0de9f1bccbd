// Package rsvp resolves competing RSVP records for the same booking.
//
// Records are bucketed by every reference they carry (the booking's event
// id and its kind:author:identifier address). Within a bucket the record
// with the greatest createdAt is effective; on equal timestamps the record
// inserted last wins. Delivery order across relays therefore never decides
// the outcome unless timestamps tie.
package rsvp

import (
	"slices"

	"github.com/roach88/nostrcal/internal/record"
)

// RetentionMode selects how much history a bucket keeps.
type RetentionMode int

const (
	// KeepFullHistory retains every record per reference.
	KeepFullHistory RetentionMode = iota
	// PruneToEffective retains only the effective record per reference.
	PruneToEffective
)

func (m RetentionMode) String() string {
	if m == PruneToEffective {
		return "prune"
	}
	return "full"
}

type entry struct {
	rec record.RSVP
	seq uint64
}

// newer reports whether a outranks b.
func (a entry) newer(b entry) bool {
	if !a.rec.CreatedAt.Equal(b.rec.CreatedAt) {
		return a.rec.CreatedAt.After(b.rec.CreatedAt)
	}
	return a.seq > b.seq
}

// Transition describes a change of the effective record for a reference.
type Transition struct {
	Ref    string
	Before *record.RSVP
	After  record.RSVP
}

// StatusChanged reports whether the effective status or free/busy flag moved.
func (t Transition) StatusChanged() bool {
	if t.Before == nil {
		return true
	}
	return t.Before.Status != t.After.Status || t.Before.FreeBusy != t.After.FreeBusy
}

// Engine holds RSVP buckets. Not safe for concurrent use; the owning
// session serializes access.
type Engine struct {
	mode    RetentionMode
	buckets map[string][]entry
	seq     uint64
}

// New creates an engine with the given retention mode.
func New(mode RetentionMode) *Engine {
	return &Engine{mode: mode, buckets: make(map[string][]entry)}
}

// Mode returns the retention mode.
func (e *Engine) Mode() RetentionMode {
	return e.mode
}

// Record inserts r under each of its references and returns one transition
// per reference whose effective record changed. Re-recording an id already
// present in a bucket is a no-op for that bucket.
func (e *Engine) Record(r record.RSVP) []Transition {
	e.seq++
	in := entry{rec: r, seq: e.seq}

	var out []Transition
	for _, ref := range r.Refs() {
		bucket := e.buckets[ref]
		if slices.ContainsFunc(bucket, func(x entry) bool { return x.rec.ID == r.ID }) {
			continue
		}

		var before *record.RSVP
		if len(bucket) > 0 {
			head := bucket[0].rec
			before = &head
		}

		bucket = append(bucket, in)
		slices.SortStableFunc(bucket, func(a, b entry) int {
			switch {
			case a.newer(b):
				return -1
			case b.newer(a):
				return 1
			default:
				return 0
			}
		})
		if e.mode == PruneToEffective {
			bucket = bucket[:1:1]
		}
		e.buckets[ref] = bucket

		if before == nil || bucket[0].rec.ID != before.ID {
			out = append(out, Transition{Ref: ref, Before: before, After: bucket[0].rec})
		}
	}
	return out
}

// Effective returns the effective record across refs: the newest head of
// any of the named buckets.
func (e *Engine) Effective(refs ...string) (record.RSVP, bool) {
	var best entry
	found := false
	for _, ref := range refs {
		bucket := e.buckets[ref]
		if len(bucket) == 0 {
			continue
		}
		if !found || bucket[0].newer(best) {
			best = bucket[0]
			found = true
		}
	}
	return best.rec, found
}

// History returns the records for ref, newest first.
func (e *Engine) History(ref string) []record.RSVP {
	bucket := e.buckets[ref]
	out := make([]record.RSVP, len(bucket))
	for i, x := range bucket {
		out[i] = x.rec
	}
	return out
}

// Refs returns every reference with at least one record, sorted.
func (e *Engine) Refs() []string {
	refs := make([]string, 0, len(e.buckets))
	for ref := range e.buckets {
		refs = append(refs, ref)
	}
	slices.Sort(refs)
	return refs
}

// Forget drops the bucket for ref.
func (e *Engine) Forget(ref string) {
	delete(e.buckets, ref)
}

// Reset drops every bucket.
func (e *Engine) Reset() {
	e.buckets = make(map[string][]entry)
	e.seq = 0
}
