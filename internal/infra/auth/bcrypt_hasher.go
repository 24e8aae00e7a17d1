// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/LuJie0403/openclaw-expenses/internal/domain/service"
)

// bcrypt rejects inputs longer than 72 bytes, so longer passwords are
// truncated before hashing and checking. Truncation must be applied on both
// paths or long passwords would never verify.
const bcryptMaxPasswordBytes = 72

// bcryptHasher is a concrete implementation of the PasswordHasher interface using bcrypt.
type bcryptHasher struct {
	cost int
}

// NewBcryptHasher is the constructor for bcryptHasher.
// A cost of 0 falls back to bcrypt.DefaultCost.
func NewBcryptHasher(cost int) service.PasswordHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}

	return &bcryptHasher{cost: cost}
}

// Hash generates a salted hash from a plaintext password using bcrypt.
// bcrypt automatically handles salt generation.
func (h *bcryptHasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword(truncateForBcrypt(password), h.cost)

	return string(bytes), err
}

// Check compares a plaintext password with a bcrypt hash.
func (h *bcryptHasher) Check(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), truncateForBcrypt(password))
	// err is nil if the password and hash match.
	return err == nil
}

func truncateForBcrypt(password string) []byte {
	raw := []byte(password)
	if len(raw) > bcryptMaxPasswordBytes {
		raw = raw[:bcryptMaxPasswordBytes]
	}

	return raw
}
