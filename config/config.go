package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	defaultPath = "."

	defaultWechatScope         = "snsapi_login"
	defaultSessionTTLSeconds   = 300
	defaultTicketTTLSeconds    = 60
	defaultHTTPTimeoutSeconds  = 5
	defaultAccessExpiryMinutes = 30
	defaultQRCodeSize          = 256
	defaultQRCodeRecoveryLevel = "M"
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port     int `json:"port" yaml:"port"`
		Timeouts struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	MySQL *MySQLConfig `json:"mysql" yaml:"mysql"`

	Auth *AuthConfig `json:"auth" yaml:"auth"`

	Wechat *WechatConfig `json:"wechat" yaml:"wechat"`

	// QRCode configuration for rendering login QR images
	QRCode *QRCodeConfig `json:"qrcode" yaml:"qrcode"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// MySQLConfig defines the ledger database connection.
type MySQLConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database" yaml:"database"`
}

// DSN builds the go-sql-driver connection string.
func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// AuthConfig defines token and password hashing settings shared by both login paths.
type AuthConfig struct {
	SecretKey                string `json:"secretKey" yaml:"secretKey"`
	AccessTokenExpireMinutes int    `json:"accessTokenExpireMinutes" yaml:"accessTokenExpireMinutes"`
	BcryptCost               int    `json:"bcryptCost" yaml:"bcryptCost"`
}

// AccessTokenTTL returns the configured bearer token lifetime.
func (c *AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// WechatConfig defines the WeChat Open Platform QR login feature. Validation
// runs only when the feature is enabled so local development stays
// frictionless.
type WechatConfig struct {
	Enabled              bool     `json:"enabled" yaml:"enabled"`
	AppID                string   `json:"appId" yaml:"appId"`
	AppSecret            string   `json:"appSecret" yaml:"appSecret"`
	RedirectURI          string   `json:"redirectUri" yaml:"redirectUri"`
	Scope                string   `json:"scope" yaml:"scope"`
	SessionTTLSeconds    int      `json:"sessionTtlSeconds" yaml:"sessionTtlSeconds"`
	TicketTTLSeconds     int      `json:"ticketTtlSeconds" yaml:"ticketTtlSeconds"`
	HTTPTimeoutSeconds   int      `json:"httpTimeoutSeconds" yaml:"httpTimeoutSeconds"`
	StateSignSecret      string   `json:"stateSignSecret" yaml:"stateSignSecret"`
	AllowedRedirectHosts []string `json:"allowedRedirectHosts" yaml:"allowedRedirectHosts"`
}

// SessionTTL returns the PENDING -> CONFIRMED deadline for new sessions.
func (c *WechatConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

// TicketTTL returns the one-time ticket lifetime.
func (c *WechatConfig) TicketTTL() time.Duration {
	return time.Duration(c.TicketTTLSeconds) * time.Second
}

// HTTPTimeout returns the deadline applied to provider HTTP calls.
func (c *WechatConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// Validate checks the feature configuration. It reports every missing field at
// once rather than failing on the first, and is a no-op while the feature is
// disabled.
func (c *WechatConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var missing []string
	if c.AppID == "" {
		missing = append(missing, "wechat.appId")
	}
	if c.AppSecret == "" {
		missing = append(missing, "wechat.appSecret")
	}
	if c.RedirectURI == "" {
		missing = append(missing, "wechat.redirectUri")
	}
	if c.StateSignSecret == "" {
		missing = append(missing, "wechat.stateSignSecret")
	}
	if len(missing) > 0 {
		return errors.Errorf("wechat login enabled but missing required config: %s", strings.Join(missing, ", "))
	}

	parsed, err := url.Parse(c.RedirectURI)
	if err != nil || parsed.Hostname() == "" {
		return errors.New("wechat.redirectUri is invalid")
	}
	if len(c.AllowedRedirectHosts) > 0 {
		host := strings.ToLower(parsed.Hostname())
		allowed := false
		for _, candidate := range c.AllowedRedirectHosts {
			if strings.ToLower(strings.TrimSpace(candidate)) == host {
				allowed = true

				break
			}
		}
		if !allowed {
			return errors.Errorf("wechat.redirectUri host %q is not in wechat.allowedRedirectHosts", host)
		}
	}

	if c.SessionTTLSeconds <= 0 {
		return errors.New("wechat.sessionTtlSeconds must be > 0")
	}
	if c.TicketTTLSeconds <= 0 {
		return errors.New("wechat.ticketTtlSeconds must be > 0")
	}
	if c.HTTPTimeoutSeconds <= 0 {
		return errors.New("wechat.httpTimeoutSeconds must be > 0")
	}

	return nil
}

// QRCodeConfig defines QR image rendering settings.
type QRCodeConfig struct {
	Size                 int    `json:"size" yaml:"size"`
	ErrorCorrectionLevel string `json:"errorCorrectionLevel" yaml:"errorCorrectionLevel"`
}

// LoadWithEnv loads .yaml files through koanf, then overlays environment
// variables whose underscore-separated segments are aligned with existing YAML
// keys (e.g. WECHAT_APPSECRET -> wechat.appSecret).
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	// Try to find and load the config file
	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	// Load YAML config file
	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Load environment variables
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// Convert ENV_VAR_NAME to a path and align each segment with
			// existing YAML keys. Example: WECHAT_SESSIONTTLSECONDS ->
			// wechat.sessionTtlSeconds (not wechat.sessionttlseconds).
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	// Unmarshal into the config struct (case-insensitive to match env vars)
	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			MatchName: func(mapKey, fieldName string) bool {
				// Case-insensitive matching for env var overrides
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

// New loads the application configuration, applies defaults, and validates
// the WeChat feature block up front so a misconfigured deployment fails at
// startup instead of on the first login attempt.
func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if cfg.Auth == nil || cfg.Auth.SecretKey == "" {
		return nil, errors.New("auth.secretKey must be set")
	}
	if err := cfg.Wechat.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Auth != nil && cfg.Auth.AccessTokenExpireMinutes <= 0 {
		cfg.Auth.AccessTokenExpireMinutes = defaultAccessExpiryMinutes
	}

	if cfg.Wechat != nil {
		if strings.TrimSpace(cfg.Wechat.Scope) == "" {
			cfg.Wechat.Scope = defaultWechatScope
		}
		if cfg.Wechat.SessionTTLSeconds == 0 {
			cfg.Wechat.SessionTTLSeconds = defaultSessionTTLSeconds
		}
		if cfg.Wechat.TicketTTLSeconds == 0 {
			cfg.Wechat.TicketTTLSeconds = defaultTicketTTLSeconds
		}
		if cfg.Wechat.HTTPTimeoutSeconds == 0 {
			cfg.Wechat.HTTPTimeoutSeconds = defaultHTTPTimeoutSeconds
		}
	}

	if cfg.QRCode == nil {
		cfg.QRCode = &QRCodeConfig{}
	}
	if cfg.QRCode.Size <= 0 {
		cfg.QRCode.Size = defaultQRCodeSize
	}
	if cfg.QRCode.ErrorCorrectionLevel == "" {
		cfg.QRCode.ErrorCorrectionLevel = defaultQRCodeRecoveryLevel
	}
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}
