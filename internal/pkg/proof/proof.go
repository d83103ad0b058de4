package proof

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashCode returns the hex SHA-256 of a plaintext gift code, computed over
// the value exactly as delivered. The ledger stores only this hash.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// Matches reports whether a candidate code reproduces a stored hash.
// Verification recomputes the hash; the plaintext is never persisted.
func Matches(candidate, storedHash string) bool {
	computed := HashCode(candidate)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
