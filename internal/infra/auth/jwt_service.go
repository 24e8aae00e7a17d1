// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/LuJie0403/openclaw-expenses/config"
	"github.com/LuJie0403/openclaw-expenses/internal/domain/service"
)

// jwtService is a concrete implementation of the TokenService interface using the JWT standard.
// Both the password login and the QR login flow mint tokens through it, so the
// resulting bearer tokens are indistinguishable to API consumers.
type jwtService struct {
	secret    string
	accessTTL time.Duration
	clock     service.Clock
}

// NewJWTService is the constructor for jwtService.
func NewJWTService(cfg *config.Config, clock service.Clock) (service.TokenService, error) {
	if cfg.Auth == nil || cfg.Auth.SecretKey == "" {
		return nil, errors.New("jwt secret must be provided")
	}

	return &jwtService{
		secret:    cfg.Auth.SecretKey,
		accessTTL: cfg.Auth.AccessTokenTTL(),
		clock:     clock,
	}, nil
}

// GenerateToken creates a signed access token for a given user.
// The subject is the username for log friendliness; user_id carries the UUID.
func (s *jwtService) GenerateToken(userID uuid.UUID, username string) (string, time.Duration, error) {
	now := s.clock.Now()
	claims := &service.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.secret))
	if err != nil {
		return "", 0, errors.Wrap(err, "sign access token")
	}

	return signed, s.accessTTL, nil
}

// ValidateToken checks the token signature and expiry and returns the parsed claims.
func (s *jwtService) ValidateToken(tokenString string) (*service.Claims, error) {
	claims := &service.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		// Ensure the signing method is what we expect.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}

		return []byte(s.secret), nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		return nil, errors.Wrap(err, "parse access token")
	}
	if !token.Valid {
		return nil, errors.New("invalid access token")
	}

	return claims, nil
}
