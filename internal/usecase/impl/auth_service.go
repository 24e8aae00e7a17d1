// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"

	deliverycontext "github.com/LuJie0403/openclaw-expenses/internal/delivery/context"
	"github.com/LuJie0403/openclaw-expenses/internal/domain/entity"
	domainerrors "github.com/LuJie0403/openclaw-expenses/internal/domain/errors"
	"github.com/LuJie0403/openclaw-expenses/internal/domain/repository"
	"github.com/LuJie0403/openclaw-expenses/internal/domain/service"
	"github.com/LuJie0403/openclaw-expenses/internal/usecase"
)

const tokenTypeBearer = "bearer"

// authService implements the AuthUsecase interface.
type authService struct {
	userRepo     repository.UserRepository
	hasher       service.PasswordHasher
	tokenService service.TokenService
	logger       *slog.Logger
}

// AuthServiceParams holds dependencies for authService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	UserRepo     repository.UserRepository
	Hasher       service.PasswordHasher
	TokenService service.TokenService
	Logger       *slog.Logger
}

// NewAuthService is the constructor for authService. It receives all dependencies as interfaces.
func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	return &authService{
		userRepo:     params.UserRepo,
		hasher:       params.Hasher,
		tokenService: params.TokenService,
		logger:       params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Login verifies a username/password pair and issues a bearer token.
// Unknown usernames and wrong passwords produce the same error so the
// endpoint does not leak which accounts exist.
func (srv *authService) Login(ctx context.Context, input usecase.PasswordLoginInput) (*usecase.TokenOutput, error) {
	user, err := srv.userRepo.FindByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domainerrors.ErrInvalidCredentials
		}

		return nil, errors.Wrap(err, "failed to find user for login")
	}

	if !srv.hasher.Check(input.Password, user.PasswordHash) {
		srv.log(ctx).Warn("password login rejected", slog.String("username", input.Username))

		return nil, domainerrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, domainerrors.ErrUserDisabled
	}

	return srv.issueToken(ctx, user)
}

// CurrentUser resolves the account behind a validated token. The account must
// still exist, still be active, and still carry the same id as when the token
// was minted.
func (srv *authService) CurrentUser(ctx context.Context, userID uuid.UUID, username string) (*entity.User, error) {
	user, err := srv.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domainerrors.ErrUserNotFound
		}

		return nil, errors.Wrap(err, "failed to find current user")
	}

	if user.ID != userID {
		return nil, domainerrors.ErrUserNotFound
	}
	if !user.IsActive {
		return nil, domainerrors.ErrUserDisabled
	}

	return user, nil
}

func (srv *authService) issueToken(ctx context.Context, user *entity.User) (*usecase.TokenOutput, error) {
	token, expiresIn, err := srv.tokenService.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate access token")
	}

	srv.log(ctx).Info("access token issued",
		slog.String("username", user.Username),
		slog.String("userID", user.ID.String()))

	return &usecase.TokenOutput{
		AccessToken: token,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int64(expiresIn.Seconds()),
		User:        user,
	}, nil
}
