// Package token generates opaque invitation tokens.
package token

import (
	"crypto/rand"
	"encoding/base64"
)

const tokenBytes = 32

// New returns a URL-safe random token suitable for embedding in an
// invitation link.
func New() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
