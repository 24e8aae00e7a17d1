package repository

import (
	"context"
	"errors"

	"github.com/LuJie0403/openclaw-expenses/internal/domain/entity"
)

// ErrBindingNotFound is returned when no binding exists for an external identity.
var ErrBindingNotFound = errors.New("identity binding not found")

// IdentityBindingRepository persists the external-identity to local-account
// mapping. Bindings are created lazily and never deleted by the login flow.
type IdentityBindingRepository interface {
	// FindByProviderUser retrieves the binding for (provider, providerUserID).
	FindByProviderUser(ctx context.Context, provider, providerUserID string) (*entity.IdentityBinding, error)

	// Create inserts a new binding row.
	Create(ctx context.Context, binding *entity.IdentityBinding) error

	// Update refreshes the profile snapshot and last-login timestamp.
	Update(ctx context.Context, binding *entity.IdentityBinding) error
}
