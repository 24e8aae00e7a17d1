package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuJie0403/openclaw-expenses/config"
	"github.com/LuJie0403/openclaw-expenses/internal/domain/service"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestJWTService(t *testing.T, clock service.Clock) service.TokenService {
	t.Helper()

	cfg := &config.Config{
		Auth: &config.AuthConfig{
			SecretKey:                "test_secret_key_very_long_for_testing",
			AccessTokenExpireMinutes: 30,
		},
	}

	svc, err := NewJWTService(cfg, clock)
	require.NoError(t, err)

	return svc
}

func TestJWTService_GenerateAndValidateToken(t *testing.T) {
	clock := &fakeClock{now: time.Now().UTC()}
	svc := newTestJWTService(t, clock)

	userID := uuid.New()
	token, expiresIn, err := svc.GenerateToken(userID, "alice")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, 30*time.Minute, expiresIn)

	claims, err := svc.ValidateToken(token)
	assert.NoError(t, err)
	require.NotNil(t, claims)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "alice", claims.Subject)
}

func TestJWTService_ExpiredToken(t *testing.T) {
	clock := &fakeClock{now: time.Now().UTC()}
	svc := newTestJWTService(t, clock)

	token, _, err := svc.GenerateToken(uuid.New(), "alice")
	require.NoError(t, err)

	// Jump past the token expiry.
	clock.now = clock.now.Add(31 * time.Minute)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_InvalidToken(t *testing.T) {
	clock := &fakeClock{now: time.Now().UTC()}
	svc := newTestJWTService(t, clock)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.token"},
		{name: "tampered", token: func() string {
			token, _, err := svc.GenerateToken(uuid.New(), "alice")
			require.NoError(t, err)

			return token + "x"
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestJWTService_WrongSecretRejected(t *testing.T) {
	clock := &fakeClock{now: time.Now().UTC()}
	svc := newTestJWTService(t, clock)

	otherCfg := &config.Config{
		Auth: &config.AuthConfig{
			SecretKey:                "a_completely_different_secret_key",
			AccessTokenExpireMinutes: 30,
		},
	}
	other, err := NewJWTService(otherCfg, clock)
	require.NoError(t, err)

	token, _, err := other.GenerateToken(uuid.New(), "alice")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestNewJWTService_RequiresSecret(t *testing.T) {
	_, err := NewJWTService(&config.Config{Auth: &config.AuthConfig{}}, &fakeClock{now: time.Now()})
	assert.Error(t, err)
}
