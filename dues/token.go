package dues

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// newConfirmationToken returns a 32-char random hex string used as the
// single-use bearer credential for link-based payment confirmation.
func newConfirmationToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate confirmation token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// tokenMatches compares a presented token against the stored one in constant
// time. An emptied (already used) stored token never matches.
func tokenMatches(stored, presented string) bool {
	if stored == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
