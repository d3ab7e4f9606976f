package apikey

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// Prefix marks a credential as an API key, allowing cheap format-based
	// routing between the token path and the key path before any lookup.
	Prefix = "sk_"

	// secretBytes is the raw entropy per key. 32 bytes is far beyond the
	// 128-bit floor where collisions stop being a practical concern.
	secretBytes = 32
)

// Generate returns a new opaque API key: the fixed prefix followed by
// 64 hex characters of cryptographically random data. Keys are never
// derived from user data and never reused.
func Generate() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return Prefix + hex.EncodeToString(buf), nil
}

// Match reports whether the credential has the API key format. It says
// nothing about validity; that is established by lookup.
func Match(credential string) bool {
	return strings.HasPrefix(credential, Prefix)
}
