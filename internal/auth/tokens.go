package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// GenerateAPIToken returns a bearer token and the digest stored for it.
// Only the digest is persisted; the token is shown to its owner once.
func GenerateAPIToken() (token, digest string, err error) {
	token, err = randomHex(32)
	if err != nil {
		return "", "", err
	}
	return token, HashToken(token), nil
}

// HashToken is the lookup key for a bearer token in the users table.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// GenerateSessionSecret returns a hex-encoded 32-byte key for cookie and CSRF signing.
func GenerateSessionSecret() (string, error) {
	return randomHex(32)
}
