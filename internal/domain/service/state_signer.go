package service

import "github.com/google/uuid"

// StateSigner produces and verifies the tamper-evident state token embedded in
// the QR payload and echoed back by the provider redirect. The token binds one
// login session id to a random nonce under a server-held secret, so an
// attacker can neither address an arbitrary session nor replay another
// session's state.
type StateSigner interface {
	// Sign returns a fresh state token bound to the session id.
	Sign(sessionID uuid.UUID) (string, error)

	// Verify reports whether the token was produced by Sign for this session id.
	Verify(sessionID uuid.UUID, token string) bool

	// Nonce extracts the nonce component from a well-formed token so the
	// session a tampered token claims to address can still be looked up. The
	// second return is false when the token is malformed.
	Nonce(token string) (string, bool)
}
