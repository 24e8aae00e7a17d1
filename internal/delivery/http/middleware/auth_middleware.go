package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/LuJie0403/openclaw-expenses/internal/domain/entity"
	domainerrors "github.com/LuJie0403/openclaw-expenses/internal/domain/errors"
	"github.com/LuJie0403/openclaw-expenses/internal/domain/service"
	"github.com/LuJie0403/openclaw-expenses/internal/usecase"
)

const contextKeyCurrentUser = "currentUser"

// AuthMiddleware provides middleware for JWT authentication.
type AuthMiddleware struct {
	tokenSvc    service.TokenService
	authUsecase usecase.AuthUsecase
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(tokenSvc service.TokenService, authUsecase usecase.AuthUsecase) *AuthMiddleware {
	return &AuthMiddleware{tokenSvc: tokenSvc, authUsecase: authUsecase}
}

// Authenticate validates the bearer token and resolves the account behind it.
// The full account is loaded per request so a disabled or deleted account is
// rejected even while holding a formally valid token.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return domainerrors.ErrInvalidToken
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return domainerrors.ErrInvalidToken
		}

		claims, err := m.tokenSvc.ValidateToken(tokenString)
		if err != nil {
			return domainerrors.ErrInvalidToken
		}

		user, err := m.authUsecase.CurrentUser(c.Request().Context(), claims.UserID, claims.Subject)
		if err != nil {
			return err
		}

		c.Set(contextKeyCurrentUser, user)

		return next(c)
	}
}

// CurrentUser extracts the authenticated account set by Authenticate.
func CurrentUser(c echo.Context) (*entity.User, error) {
	user, ok := c.Get(contextKeyCurrentUser).(*entity.User)
	if !ok || user == nil {
		return nil, errors.WithStack(domainerrors.ErrInvalidToken)
	}

	return user, nil
}
