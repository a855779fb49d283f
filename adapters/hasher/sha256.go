package hasher

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/centralrestaurante/amigo-central/domain"
)

// New returns a domain.Hasher backed by SHA-256.
func New() domain.Hasher { return sha256Hasher{} }

type sha256Hasher struct{}

// Hash returns the first 16 hex characters of the digest, enough to tell
// system instructions apart in logs.
func (h sha256Hasher) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}
