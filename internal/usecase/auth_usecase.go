// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/LuJie0403/openclaw-expenses/internal/domain/entity"
)

// --- Input DTOs ---

// PasswordLoginInput defines the data required for a password login.
type PasswordLoginInput struct {
	Username string
	Password string
}

// --- Output DTOs ---

// TokenOutput returns a bearer token after a successful login. Both the
// password path and the QR exchange path produce this same shape.
type TokenOutput struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64 // seconds
	User        *entity.User
}

// AuthUsecase defines the interface for password-based authentication.
// This is the contract that the delivery layer (API handlers) depends on.
type AuthUsecase interface {
	Login(ctx context.Context, input PasswordLoginInput) (*TokenOutput, error)

	// CurrentUser resolves the authenticated account behind a validated
	// token, rejecting tokens whose user id no longer matches the account.
	CurrentUser(ctx context.Context, userID uuid.UUID, username string) (*entity.User, error)
}
