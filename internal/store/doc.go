// Package store journals raw relay events in SQLite.
//
// The journal is append-only and keyed by event id: the first copy of an
// event wins and later copies from other relays are ignored. Every row
// carries a logical seq so a journal can be replayed into a fresh session
// in exactly the order it was first ingested.
//
// # Ordering
//
//   - Ordering uses seq, never created_at or wall time
//   - All reads use ORDER BY seq ASC, id ASC COLLATE BINARY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
