package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint is the form in which refresh tokens are stored: a hex SHA-256
// digest, so a leaked row cannot be replayed as a token.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
