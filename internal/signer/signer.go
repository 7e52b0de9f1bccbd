// Package signer holds the key that signs outgoing calendar events.
package signer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"

	"github.com/roach88/nostrcal/internal/fault"
)

// Signer is the external signing capability. The client never needs the
// key itself, only its public half and signatures.
type Signer interface {
	PublicKey(ctx context.Context) (string, error)
	SignEvent(ctx context.Context, ev *nostr.Event) error
}

// KeySigner signs with a secret key held in memory.
type KeySigner struct {
	secret string
	public string
}

// FromKey builds a signer from a hex secret key or an nsec string.
func FromKey(key string) (*KeySigner, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("empty secret key")
	}
	if strings.HasPrefix(key, "nsec1") {
		prefix, value, err := nip19.Decode(key)
		if err != nil {
			return nil, fmt.Errorf("decode nsec: %w", err)
		}
		sk, ok := value.(string)
		if prefix != "nsec" || !ok {
			return nil, fmt.Errorf("decode nsec: unexpected %q entity", prefix)
		}
		key = sk
	}
	if raw, err := hex.DecodeString(key); err != nil || len(raw) != 32 {
		return nil, errors.New("secret key must be 64 hex characters or an nsec")
	}
	pub, err := nostr.GetPublicKey(key)
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	return &KeySigner{secret: key, public: pub}, nil
}

// Generate creates a signer with a fresh random key.
func Generate() *KeySigner {
	s, err := FromKey(nostr.GeneratePrivateKey())
	if err != nil {
		panic(err)
	}
	return s
}

// PublicKey returns the hex public key.
func (s *KeySigner) PublicKey(context.Context) (string, error) {
	return s.public, nil
}

// Pub is PublicKey without the context, for callers that hold a KeySigner.
func (s *KeySigner) Pub() string {
	return s.public
}

// Npub returns the bech32 public key.
func (s *KeySigner) Npub() string {
	npub, _ := nip19.EncodePublicKey(s.public)
	return npub
}

// SignEvent stamps the author, id and signature onto ev.
func (s *KeySigner) SignEvent(ctx context.Context, ev *nostr.Event) error {
	if err := ctx.Err(); err != nil {
		return fault.SigningFailed(ev.Kind, err)
	}
	ev.PubKey = s.public
	if err := ev.Sign(s.secret); err != nil {
		return fault.SigningFailed(ev.Kind, err)
	}
	return nil
}
