package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// bcryptCost of 10 balances gate-entry latency against brute force on a
	// leaked state document.
	bcryptCost = 10

	minSecretLen = 2
	maxSecretLen = 64
)

// HashSecret generates a bcrypt hash of a room gate secret.
func HashSecret(secret string) (string, error) {
	if len(secret) < minSecretLen || len(secret) > maxSecretLen {
		return "", fmt.Errorf("secret must be %d-%d characters", minSecretLen, maxSecretLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

// VerifySecret compares a stored hash with a submitted secret. Returns true
// only on an exact match; errors other than a mismatch are swallowed into
// false, a malformed hash must fail closed.
func VerifySecret(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
