package testutil

import (
	"strconv"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// Event builds an unsigned event with a fixed id, for sessions that do not
// verify signatures.
func Event(id string, kind int, author string, createdAt time.Time, tags ...nostr.Tag) *nostr.Event {
	return &nostr.Event{
		ID:        id,
		Kind:      kind,
		PubKey:    author,
		CreatedAt: nostr.Timestamp(createdAt.Unix()),
		Tags:      tags,
	}
}

// Unix renders t as a decimal unix timestamp tag value.
func Unix(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
