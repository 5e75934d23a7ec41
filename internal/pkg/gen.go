package pkg

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateGameID - generates a short unguessable game identifier
// (32 bits of randomness, hex-encoded).
func GenerateGameID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return ""
	}

	return hex.EncodeToString(b)
}
