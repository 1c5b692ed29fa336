package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"staffdesk.org/internal/obs"
)

// DefaultBcryptCost is the work factor applied to new hashes (~12 log-rounds).
const DefaultBcryptCost = 12

var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// HashPassword hashes plaintext with bcrypt at the given cost. The salt is
// generated per call and embedded in the output, so hashing the same input
// twice yields different strings.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether plain matches the stored credential. Stored
// values in bcrypt format are verified through bcrypt; anything else is a
// legacy plaintext row (see MigratePasswords) and is compared in constant
// time. Internal failures, including malformed hash strings, are logged and
// swallowed into false rather than propagated.
func VerifyPassword(plain, stored string) bool {
	if stored == "" {
		return false
	}
	if IsHashed(stored) {
		err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(plain))
		if err == nil {
			return true
		}
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			obs.LogEvent(map[string]any{
				"level": "warn",
				"msg":   "password verification failed",
				"error": err.Error(),
			})
		}
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(plain)) == 1
}

// IsHashed reports whether candidate looks like a bcrypt hash. This is a
// prefix sniff, not a guarantee: a plaintext password that happens to start
// with a bcrypt scheme tag would be misclassified.
func IsHashed(candidate string) bool {
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(candidate, p) {
			return true
		}
	}
	return false
}
