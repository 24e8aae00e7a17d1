// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/LuJie0403/openclaw-expenses/internal/domain/service"
)

const (
	stateNonceHexLen     = 16
	stateSignatureHexLen = 32
	stateTokenLen        = stateNonceHexLen + stateSignatureHexLen
)

// hmacStateSigner produces tamper-evident state tokens bound to a login
// session. The token is nonce || hex(HMAC-SHA256(secret, sessionID:nonce))
// truncated to 32 hex chars, which keeps the QR payload short while still
// letting the callback tie the state back to exactly one session.
type hmacStateSigner struct {
	secret []byte
}

// NewHMACStateSigner is the constructor for hmacStateSigner.
func NewHMACStateSigner(secret string) (service.StateSigner, error) {
	if secret == "" {
		return nil, errors.New("state sign secret must be provided")
	}

	return &hmacStateSigner{secret: []byte(secret)}, nil
}

// Sign generates a fresh state token for the session.
func (s *hmacStateSigner) Sign(sessionID uuid.UUID) (string, error) {
	nonceRaw := make([]byte, stateNonceHexLen/2)
	if _, err := rand.Read(nonceRaw); err != nil {
		return "", errors.Wrap(err, "generate state nonce")
	}
	nonce := hex.EncodeToString(nonceRaw)

	return nonce + s.signature(sessionID, nonce), nil
}

// Verify reports whether token was produced by Sign for the given session.
// Comparison is constant-time to avoid leaking signature prefixes.
func (s *hmacStateSigner) Verify(sessionID uuid.UUID, token string) bool {
	if len(token) != stateTokenLen {
		return false
	}
	nonce := token[:stateNonceHexLen]
	got := token[stateNonceHexLen:]
	want := s.signature(sessionID, nonce)

	return hmac.Equal([]byte(got), []byte(want))
}

// Nonce returns the token's nonce component. Malformed tokens (wrong length
// or non-hex content) are rejected so the nonce is safe to use in a lookup.
func (s *hmacStateSigner) Nonce(token string) (string, bool) {
	if len(token) != stateTokenLen {
		return "", false
	}
	nonce := token[:stateNonceHexLen]
	if _, err := hex.DecodeString(nonce); err != nil {
		return "", false
	}

	return nonce, true
}

func (s *hmacStateSigner) signature(sessionID uuid.UUID, nonce string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(sessionID.String() + ":" + nonce))

	return hex.EncodeToString(mac.Sum(nil))[:stateSignatureHexLen]
}
