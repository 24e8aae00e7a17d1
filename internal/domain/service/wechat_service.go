package service

import "context"

// WechatProfile is the normalized external identity returned by the provider
// client. UnionID is copied out of the token response when the provider
// configuration carries it, so resolution has one place to look.
type WechatProfile struct {
	OpenID    string // Per-application identifier, always present.
	UnionID   string // Cross-application identifier, empty on single-app configurations.
	Nickname  string
	AvatarURL string
}

// WechatAuthService is the external identity provider client: it builds the
// authorize URL for the QR payload and exchanges a callback code for a
// profile. Transport failures and provider-reported business errors are both
// mapped to a ProviderError by the implementation.
type WechatAuthService interface {
	// BuildAuthorizeURL returns the provider authorize URL parameterized by
	// the signed state value. The desktop browser renders this URL as a QR code.
	BuildAuthorizeURL(state string) string

	// ExchangeCode exchanges an authorization code for the user's profile,
	// performing the token and userinfo calls in sequence.
	ExchangeCode(ctx context.Context, code string) (*WechatProfile, error)
}
