package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

// StateLength is the length of the OAuth state nonce sent with each authorization request.
const StateLength = 30

const stateAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateState creates a cryptographically random alphanumeric string of n characters.
// The alphabet needs no escaping in query strings or URL fragments.
func GenerateState(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("state length must be positive, got %d", n)
	}

	max := big.NewInt(int64(len(stateAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		b[i] = stateAlphabet[idx.Int64()]
	}
	return string(b), nil
}

// EqualState compares a returned state value with the generated one in constant time.
// An empty expected value never matches.
func EqualState(expected, got string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}
