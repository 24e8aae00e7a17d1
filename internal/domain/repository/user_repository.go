// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"

	"github.com/LuJie0403/openclaw-expenses/internal/domain/entity"

	"github.com/google/uuid"
)

// Domain-specific errors for local account persistence.
var (
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateUser is returned when a unique column (username, email)
	// would collide on insert. Callers retry with fresh values.
	ErrDuplicateUser = errors.New("user uniqueness violated")
)

// UserRepository defines the standard operations for local account persistence.
// The application layer depends on this interface, not the concrete implementation.
type UserRepository interface {
	// FindByID retrieves a single user by their unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)

	// FindByUsername retrieves a single user by their unique username.
	FindByUsername(ctx context.Context, username string) (*entity.User, error)

	// Create persists a new user. The QR login flow uses it to create
	// placeholder accounts on first external login; it must never overwrite
	// an existing account.
	Create(ctx context.Context, user *entity.User) error
}
