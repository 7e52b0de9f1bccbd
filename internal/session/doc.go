// Package session owns the reconstructed view of one identity's calendar.
//
// A Session is the only writer of its dedup ledger, RSVP engine, busy set
// and entity collections. Relay readers hand raw events to the inbox with
// Deliver; the Run loop drains the inbox and ingests them one at a time.
// Commands published by the Client are ingested directly once a relay has
// accepted them.
//
// # Roles
//
// A host session reconstructs its own calendar: the owner is the signed-in
// identity, booking requests are time events from others that tag it, and
// superseded RSVPs are pruned. A booker session reconstructs somebody
// else's availability: the owner is the template author and every RSVP is
// kept.
//
// # Reset
//
// Reset clears every collection and bumps the session generation. Events
// delivered under an earlier generation are dropped when dequeued, so
// responses to queries issued before the reset never reach the new state.
package session
