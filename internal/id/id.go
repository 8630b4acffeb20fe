package id

import (
	"crypto/rand"
	"encoding/hex"
)

// New returns a random request identifier.
func New() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "req-fallback-id"
	}
	return hex.EncodeToString(b[:])
}
