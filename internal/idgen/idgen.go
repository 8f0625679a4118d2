// Package idgen generates opaque record identifiers.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
)

// WithPrefix returns prefix followed by 24 random hex characters,
// e.g. WithPrefix("asmt_") -> "asmt_3f9c...". The random part carries
// 96 bits of entropy.
func WithPrefix(prefix string) string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms; if it did,
		// IDs could collide and corrupt the audit trail.
		panic("idgen: " + err.Error())
	}
	return prefix + hex.EncodeToString(b[:])
}
