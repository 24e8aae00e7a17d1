package repository

import (
	"context"
	"errors"

	"github.com/LuJie0403/openclaw-expenses/internal/domain/entity"

	"github.com/google/uuid"
)

// Domain-specific errors for QR login session persistence.
var (
	// ErrSessionNotFound is returned when a login session does not exist.
	ErrSessionNotFound = errors.New("login session not found")
	// ErrDuplicateSession is returned when a unique column (state, ticket)
	// would collide on insert.
	ErrDuplicateSession = errors.New("login session uniqueness violated")
)

// LoginSessionRepository persists QR login attempts. Only the QR login state
// machine mutates these rows.
type LoginSessionRepository interface {
	// Create inserts a new PENDING session row.
	Create(ctx context.Context, session *entity.LoginSession) error

	// FindByID retrieves a session without locking it.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.LoginSession, error)

	// FindByIDForUpdate retrieves a session holding an exclusive row lock for
	// the remainder of the surrounding transaction. Every check-then-mutate
	// sequence goes through this.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.LoginSession, error)

	// FindByState retrieves the session addressed by a state token.
	FindByState(ctx context.Context, state string) (*entity.LoginSession, error)

	// FindByStateNonce retrieves the session whose state token starts with
	// the given nonce. This is how a token with a tampered signature is
	// attributed back to the session it claims to address.
	FindByStateNonce(ctx context.Context, nonce string) (*entity.LoginSession, error)

	// Save writes back a mutated session row.
	Save(ctx context.Context, session *entity.LoginSession) error
}
