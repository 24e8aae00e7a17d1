package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/LuJie0403/openclaw-expenses/internal/domain/entity"
)

// --- Input DTOs ---

// CallbackInput carries the provider redirect parameters.
type CallbackInput struct {
	Code  string
	State string
}

// ExchangeInput carries the ticket exchange request.
type ExchangeInput struct {
	SessionID uuid.UUID
	Ticket    string
}

// --- Output DTOs ---

// CreateSessionOutput returns a freshly issued QR login session.
type CreateSessionOutput struct {
	SessionID      uuid.UUID
	State          string
	AuthorizeURL   string
	ExpiresIn      int64 // seconds until the session expires
	PollIntervalMs int64 // suggested status polling interval
}

// SessionStatusOutput returns the current state of a QR login session. Ticket
// is populated only while the session holds a usable one.
type SessionStatusOutput struct {
	SessionID    uuid.UUID
	Status       entity.SessionStatus
	Ticket       *string
	ErrorCode    *string
	ErrorMessage *string
	ExpiresIn    int64 // seconds until the session expires, 0 once terminal
}

// CallbackOutput returns the outcome shown on the mobile-side result page.
type CallbackOutput struct {
	Status   entity.SessionStatus
	Nickname string
}

// QRLoginUsecase defines the interface for the WeChat QR cross-device login
// flow: the desktop creates and polls a session, the phone confirms it, and
// the desktop exchanges the resulting one-time ticket for a bearer token.
type QRLoginUsecase interface {
	CreateSession(ctx context.Context) (*CreateSessionOutput, error)

	GetStatus(ctx context.Context, sessionID uuid.UUID) (*SessionStatusOutput, error)

	// QRCodePNG renders the session's authorize URL as a PNG image. It only
	// serves sessions that are still pending.
	QRCodePNG(ctx context.Context, sessionID uuid.UUID) ([]byte, error)

	// HandleCallback processes the provider redirect on the mobile side,
	// resolving the external identity to a local account and confirming the
	// session.
	HandleCallback(ctx context.Context, input CallbackInput) (*CallbackOutput, error)

	// ExchangeTicket redeems a one-time ticket for a bearer token. A given
	// ticket succeeds at most once regardless of concurrency.
	ExchangeTicket(ctx context.Context, input ExchangeInput) (*TokenOutput, error)
}
