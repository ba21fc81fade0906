package random

import (
	"crypto/rand"
	"encoding/hex"
)

// NewRandomString returns a random hex string of the given length. Seeds are
// security material, so the source is always crypto/rand.
func NewRandomString(length int) string {
	b := make([]byte, (length+1)/2)

	if _, err := rand.Read(b); err != nil {
		panic("random: failed to read entropy: " + err.Error())
	}

	return hex.EncodeToString(b)[:length]
}
