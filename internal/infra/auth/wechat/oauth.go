// Package wechat implements the WeChat Open Platform OAuth2 client used by the
// QR login flow.
package wechat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/LuJie0403/openclaw-expenses/config"
	"github.com/LuJie0403/openclaw-expenses/internal/domain/service"
)

const (
	defaultAuthorizeBaseURL = "https://open.weixin.qq.com/connect/qrconnect"
	defaultAPIBaseURL       = "https://api.weixin.qq.com"

	accessTokenPath = "/sns/oauth2/access_token"
	userInfoPath    = "/sns/userinfo"
)

// apiError carries a WeChat business error (HTTP 200 with errcode in the body).
type apiError struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("wechat api error %d: %s", e.ErrCode, e.ErrMsg)
}

func (e *apiError) businessError() error {
	if e.ErrCode != 0 {
		return e
	}

	return nil
}

// apiResponse is implemented by every WeChat payload via apiError embedding.
type apiResponse interface {
	businessError() error
}

type tokenResponse struct {
	apiError
	AccessToken string `json:"access_token"`
	OpenID      string `json:"openid"`
	UnionID     string `json:"unionid"`
}

type userInfoResponse struct {
	apiError
	OpenID    string `json:"openid"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"headimgurl"`
	UnionID   string `json:"unionid"`
}

// Client implements service.WechatAuthService against the real WeChat API.
type Client struct {
	appID       string
	appSecret   string
	redirectURI string
	scope       string

	authorizeBaseURL string
	apiBaseURL       string

	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes the client, mainly for tests.
type Option func(*Client)

// WithAPIBaseURL points the client at an alternative API host.
func WithAPIBaseURL(baseURL string) Option {
	return func(c *Client) { c.apiBaseURL = baseURL }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient creates a WeChat OAuth client from the feature configuration.
func NewClient(cfg *config.WechatConfig, logger *slog.Logger, opts ...Option) service.WechatAuthService {
	client := &Client{
		appID:            cfg.AppID,
		appSecret:        cfg.AppSecret,
		redirectURI:      cfg.RedirectURI,
		scope:            cfg.Scope,
		authorizeBaseURL: defaultAuthorizeBaseURL,
		apiBaseURL:       defaultAPIBaseURL,
		httpClient:       &http.Client{Timeout: cfg.HTTPTimeout()},
		logger:           logger,
	}
	for _, opt := range opts {
		opt(client)
	}

	return client
}

// BuildAuthorizeURL constructs the qrconnect URL the QR image encodes. The
// #wechat_redirect fragment is required by the platform and must come last.
func (c *Client) BuildAuthorizeURL(state string) string {
	query := url.Values{}
	query.Set("appid", c.appID)
	query.Set("redirect_uri", c.redirectURI)
	query.Set("response_type", "code")
	query.Set("scope", c.scope)
	query.Set("state", state)

	return c.authorizeBaseURL + "?" + query.Encode() + "#wechat_redirect"
}

// ExchangeCode redeems an authorization code for the user's identity. It calls
// the token endpoint, then the userinfo endpoint, and normalizes the UnionID
// from whichever response carried it.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*service.WechatProfile, error) {
	token := &tokenResponse{}
	tokenQuery := url.Values{}
	tokenQuery.Set("appid", c.appID)
	tokenQuery.Set("secret", c.appSecret)
	tokenQuery.Set("code", code)
	tokenQuery.Set("grant_type", "authorization_code")
	if err := c.getJSON(ctx, accessTokenPath, tokenQuery, token); err != nil {
		return nil, errors.Wrap(err, "exchange authorization code")
	}
	if token.AccessToken == "" || token.OpenID == "" {
		return nil, errors.New("wechat token response missing access_token or openid")
	}

	info := &userInfoResponse{}
	infoQuery := url.Values{}
	infoQuery.Set("access_token", token.AccessToken)
	infoQuery.Set("openid", token.OpenID)
	if err := c.getJSON(ctx, userInfoPath, infoQuery, info); err != nil {
		return nil, errors.Wrap(err, "fetch wechat user info")
	}

	profile := &service.WechatProfile{
		OpenID:    token.OpenID,
		UnionID:   token.UnionID,
		Nickname:  info.Nickname,
		AvatarURL: info.AvatarURL,
	}
	if profile.UnionID == "" {
		profile.UnionID = info.UnionID
	}

	c.logger.Info("wechat code exchanged",
		slog.String("openId", profile.OpenID),
		slog.Bool("hasUnionId", profile.UnionID != ""))

	return profile, nil
}

// getJSON performs a GET against the WeChat API and decodes the body, mapping
// business errors carried in a 200 response.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out apiResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "build wechat request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "call wechat api")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read wechat response")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("wechat api returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "decode wechat response")
	}

	return out.businessError()
}
