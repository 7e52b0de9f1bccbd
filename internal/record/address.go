package record

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// Address is a "kind:author:identifier" reference to a replaceable event.
type Address struct {
	Kind       int
	Author     string
	Identifier string
}

// ParseAddress parses "kind:author:identifier". The identifier is the
// remainder after the second colon and must not be empty.
func ParseAddress(s string) (Address, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return Address{}, fmt.Errorf("address %q: want kind:author:identifier", s)
	}
	kind, err := strconv.Atoi(parts[0])
	if err != nil {
		return Address{}, fmt.Errorf("address %q: bad kind: %w", s, err)
	}
	if parts[1] == "" || parts[2] == "" {
		return Address{}, fmt.Errorf("address %q: empty author or identifier", s)
	}
	return Address{Kind: kind, Author: parts[1], Identifier: parts[2]}, nil
}

// String renders the address in tag form.
func (a Address) String() string {
	return fmt.Sprintf("%d:%s:%s", a.Kind, a.Author, a.Identifier)
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Naddr encodes the address as a NIP-19 naddr with optional relay hints.
func (a Address) Naddr(relays []string) (string, error) {
	code, err := nip19.EncodeEntity(a.Author, a.Kind, a.Identifier, relays)
	if err != nil {
		return "", fmt.Errorf("encode naddr: %w", err)
	}
	return code, nil
}

// DecodeNaddr decodes a NIP-19 naddr into an address and its relay hints.
// A leading "nostr:" URI scheme is accepted.
func DecodeNaddr(code string) (Address, []string, error) {
	code = strings.TrimPrefix(strings.TrimSpace(code), "nostr:")
	prefix, value, err := nip19.Decode(code)
	if err != nil {
		return Address{}, nil, fmt.Errorf("decode naddr: %w", err)
	}
	if prefix != "naddr" {
		return Address{}, nil, fmt.Errorf("decode naddr: unexpected prefix %q", prefix)
	}
	ptr, ok := value.(nostr.EntityPointer)
	if !ok {
		return Address{}, nil, fmt.Errorf("decode naddr: unexpected value %T", value)
	}
	return Address{Kind: ptr.Kind, Author: ptr.PublicKey, Identifier: ptr.Identifier}, ptr.Relays, nil
}
