package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims defines the custom claims carried by the bearer token. The subject
// claim is the username; UserID is carried alongside so handlers can verify
// the two still refer to the same record.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenService mints and validates bearer tokens. Both the password login and
// the QR ticket exchange issue tokens through this single service so the two
// paths produce interchangeable credentials.
type TokenService interface {
	// GenerateToken creates a signed bearer token for the given account.
	GenerateToken(userID uuid.UUID, username string) (token string, expiresIn time.Duration, err error)

	// ValidateToken parses and verifies a token string.
	ValidateToken(tokenString string) (*Claims, error)
}
