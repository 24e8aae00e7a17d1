package entity

import (
	"time"

	"github.com/google/uuid"
)

// IdentityBinding is the durable link between an external provider identity
// and a local account. It is created lazily on the first successful external
// login and refreshed on every subsequent confirmation; this flow never
// deletes it.
type IdentityBinding struct {
	ID             uuid.UUID // The unique ID for this binding record.
	UserID         uuid.UUID // The bound local account.
	Provider       string    // External provider tag, e.g. ChannelWechatOpen.
	ProviderUserID string    // Stable identifier at the provider; UnionID when present, OpenID otherwise.
	UnionID        string    // Cross-application WeChat identifier, empty on single-app configurations.
	Nickname       string    // Denormalized profile snapshot, refreshed on each login.
	AvatarURL      string    // Denormalized profile snapshot, refreshed on each login.
	LastLoginAt    time.Time // Timestamp of the most recent confirmed login through this binding.
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
