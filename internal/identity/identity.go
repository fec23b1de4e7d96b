// Package identity derives the stable storage key for a tmux session.
//
// tmux session ids ($0, $1, ...) are reused across server restarts, so the
// metadata store is keyed by a hash of the session name instead. Keys written
// to disk must stay resolvable across releases: changing DefaultHasher
// orphans every existing record.
package identity

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// Key is the hex-encoded hash of a session name.
type Key string

func (k Key) String() string { return string(k) }

// Short returns the first 8 characters, for display and log fields.
func (k Key) Short() string {
	if len(k) <= 8 {
		return string(k)
	}
	return string(k[:8])
}

// Hasher turns a session name into a fixed-length digest.
type Hasher interface {
	Sum(name string) []byte
}

type blake3Hasher struct{}

func (blake3Hasher) Sum(name string) []byte {
	sum := blake3.Sum256([]byte(name))
	return sum[:]
}

// DefaultHasher is BLAKE3-256.
var DefaultHasher Hasher = blake3Hasher{}

// KeyFor returns the identity key of sessionName.
func KeyFor(sessionName string) Key {
	return Key(hex.EncodeToString(DefaultHasher.Sum(sessionName)))
}

// Valid reports whether s looks like a key produced by the default hasher.
func Valid(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
