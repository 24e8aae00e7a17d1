// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// AdminUsername is the distinguished account name whose reporting scope covers
// every ledger row instead of only its own.
const AdminUsername = "admin"

// User is a local account able to hold a session token. Accounts are either
// provisioned with a password or created as placeholders by the WeChat QR
// login flow on first confirmation.
type User struct {
	ID           uuid.UUID // The unique identifier for the account.
	Username     string    // Unique login name, also the JWT subject claim.
	Email        string    // Unique contact email.
	PasswordHash string    // bcrypt hash; random and never communicated for placeholder accounts.
	FullName     string    // Optional display name.
	IsActive     bool      // Disabled accounts cannot log in through any path.
	CreatedAt    time.Time // Timestamp of when this account was created.
	UpdatedAt    time.Time // Timestamp of the last modification to this account.
}

// IsAdmin reports whether the account carries the distinguished scope-bypass
// username. Matching is by username, not by id.
func (u *User) IsAdmin() bool {
	return u.Username == AdminUsername
}
