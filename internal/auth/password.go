package auth

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/sha3"
)

// ErrPasswordMismatch is returned when a secret does not match its hash.
var ErrPasswordMismatch = errors.New("password mismatch")

// PasswordHasher hashes new secrets with bcrypt and verifies both bcrypt and
// legacy SHA3-256 hex digests.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher builds a hasher with the given bcrypt cost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash hashes a plaintext password with configured cost.
func (h *PasswordHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Compare verifies a password against its hashed value.
func (h *PasswordHasher) Compare(hashed, plain string) error {
	if strings.HasPrefix(hashed, "$2") {
		if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)); err != nil {
			return ErrPasswordMismatch
		}
		return nil
	}
	digest := LegacyDigest(plain)
	if subtle.ConstantTimeCompare([]byte(strings.ToUpper(hashed)), []byte(digest)) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

// LegacyDigest is the upper-case hex SHA3-256 digest older accounts were
// stored with.
func LegacyDigest(plain string) string {
	sum := sha3.Sum256([]byte(plain))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
