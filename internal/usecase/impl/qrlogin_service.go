package impl

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"

	"github.com/LuJie0403/openclaw-expenses/config"
	deliverycontext "github.com/LuJie0403/openclaw-expenses/internal/delivery/context"
	"github.com/LuJie0403/openclaw-expenses/internal/domain/entity"
	domainerrors "github.com/LuJie0403/openclaw-expenses/internal/domain/errors"
	"github.com/LuJie0403/openclaw-expenses/internal/domain/repository"
	"github.com/LuJie0403/openclaw-expenses/internal/domain/service"
	"github.com/LuJie0403/openclaw-expenses/internal/usecase"
)

const (
	// pollInterval is the suggested delay between desktop status polls.
	pollInterval = 2 * time.Second

	// ticketBytes is the entropy of a one-time ticket (rendered as hex).
	ticketBytes = 16

	placeholderUsernamePrefix = "wx_"
	placeholderUsernameLen    = 16

	// placeholderCreateAttempts bounds the suffix retries when a generated
	// username or email collides with an existing account.
	placeholderCreateAttempts = 4

	placeholderEmailDomain = "wechat.invalid"
)

// qrLoginService implements the QRLoginUsecase interface. It owns every
// transition of the login session state machine; all check-then-mutate
// sequences run under a row lock inside a single transaction.
type qrLoginService struct {
	txManager     repository.TransactionManager
	sessionRepo   repository.LoginSessionRepository
	signer        service.StateSigner
	wechatService service.WechatAuthService
	qrcodeService service.QRCodeService
	tokenService  service.TokenService
	hasher        service.PasswordHasher
	clock         service.Clock
	sessionTTL    time.Duration
	ticketTTL     time.Duration
	logger        *slog.Logger
}

// QRLoginServiceParams holds dependencies for qrLoginService, injected by Fx.
type QRLoginServiceParams struct {
	fx.In

	TxManager     repository.TransactionManager
	SessionRepo   repository.LoginSessionRepository
	Signer        service.StateSigner
	WechatService service.WechatAuthService
	QRCodeService service.QRCodeService
	TokenService  service.TokenService
	Hasher        service.PasswordHasher
	Clock         service.Clock
	Config        *config.Config
	Logger        *slog.Logger
}

// NewQRLoginService is the constructor for qrLoginService.
func NewQRLoginService(params QRLoginServiceParams) usecase.QRLoginUsecase {
	return &qrLoginService{
		txManager:     params.TxManager,
		sessionRepo:   params.SessionRepo,
		signer:        params.Signer,
		wechatService: params.WechatService,
		qrcodeService: params.QRCodeService,
		tokenService:  params.TokenService,
		hasher:        params.Hasher,
		clock:         params.Clock,
		sessionTTL:    params.Config.Wechat.SessionTTL(),
		ticketTTL:     params.Config.Wechat.TicketTTL(),
		logger:        params.Logger,
	}
}

// CreateSession issues a fresh PENDING session whose state token is embedded
// in the WeChat authorize URL.
func (srv *qrLoginService) CreateSession(ctx context.Context) (*usecase.CreateSessionOutput, error) {
	sessionID := uuid.New()
	state, err := srv.signer.Sign(sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign session state")
	}

	now := srv.clock.Now()
	session := &entity.LoginSession{
		ID:        sessionID,
		Channel:   entity.ChannelWechatOpen,
		State:     state,
		Status:    entity.SessionPending,
		ExpiresAt: now.Add(srv.sessionTTL),
	}

	if err := srv.sessionRepo.Create(ctx, session); err != nil {
		return nil, errors.Wrap(err, "failed to create login session")
	}

	srv.logger.Info("qr login session created",
		slog.String("sessionID", sessionID.String()),
		slog.Time("expiresAt", session.ExpiresAt))

	return &usecase.CreateSessionOutput{
		SessionID:      sessionID,
		State:          state,
		AuthorizeURL:   srv.wechatService.BuildAuthorizeURL(state),
		ExpiresIn:      int64(srv.sessionTTL.Seconds()),
		PollIntervalMs: pollInterval.Milliseconds(),
	}, nil
}

// GetStatus reports the session's current lifecycle state. A PENDING session
// whose deadline has passed is transitioned to EXPIRED here, so expiry needs
// no background sweeper.
func (srv *qrLoginService) GetStatus(ctx context.Context, sessionID uuid.UUID) (*usecase.SessionStatusOutput, error) {
	session, err := srv.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, domainerrors.ErrSessionNotFound
		}

		return nil, errors.Wrap(err, "failed to load login session")
	}

	now := srv.clock.Now()
	if session.Status == entity.SessionPending && session.Expired(now) {
		expired, err := srv.expireSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		session = expired
	}

	out := &usecase.SessionStatusOutput{
		SessionID:    session.ID,
		Status:       session.Status,
		ErrorCode:    session.ErrorCode,
		ErrorMessage: session.ErrorMessage,
	}
	if !session.Status.IsTerminal() {
		out.ExpiresIn = int64(session.ExpiresAt.Sub(now).Seconds())
	}
	// The ticket is only disclosed while the exchange would still accept it.
	if session.TicketUsable(now) {
		out.Ticket = session.Ticket
	}

	return out, nil
}

// QRCodePNG renders the authorize URL of a still-pending session.
func (srv *qrLoginService) QRCodePNG(ctx context.Context, sessionID uuid.UUID) ([]byte, error) {
	session, err := srv.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, domainerrors.ErrSessionNotFound
		}

		return nil, errors.Wrap(err, "failed to load login session")
	}

	if session.Status != entity.SessionPending || session.Expired(srv.clock.Now()) {
		return nil, domainerrors.ErrSessionExpired
	}

	png, err := srv.qrcodeService.EncodePNG(srv.wechatService.BuildAuthorizeURL(session.State))
	if err != nil {
		return nil, errors.Wrap(err, "failed to render login qr code")
	}

	return png, nil
}

// HandleCallback processes the provider redirect: it authenticates the state
// token, redeems the authorization code, resolves the external identity to a
// local account, and confirms the session with a one-time ticket.
//
// The provider round-trip happens before the transaction so the row lock is
// never held across network I/O.
func (srv *qrLoginService) HandleCallback(ctx context.Context, input usecase.CallbackInput) (*usecase.CallbackOutput, error) {
	if input.State == "" {
		return nil, domainerrors.ErrInvalidState
	}

	session, err := srv.sessionRepo.FindByState(ctx, input.State)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			srv.failTamperedState(ctx, input.State)

			return nil, domainerrors.ErrInvalidState
		}

		return nil, errors.Wrap(err, "failed to load session by state")
	}

	if !srv.signer.Verify(session.ID, input.State) {
		srv.recordFailure(ctx, session.ID, domainerrors.ErrInvalidState.ErrorCode(), "state signature mismatch")

		return nil, domainerrors.ErrInvalidState
	}

	// Duplicate redirects after a successful confirmation are answered
	// idempotently without touching the provider again.
	if session.Status == entity.SessionConfirmed || session.Status == entity.SessionConsumed {
		return &usecase.CallbackOutput{Status: session.Status}, nil
	}
	if session.Status != entity.SessionPending {
		return nil, statusError(session.Status)
	}
	if session.Expired(srv.clock.Now()) {
		if _, err := srv.expireSession(ctx, session.ID); err != nil {
			return nil, err
		}

		return nil, domainerrors.ErrSessionExpired
	}

	if input.Code == "" {
		srv.recordFailure(ctx, session.ID, domainerrors.ErrMissingCode.ErrorCode(), "provider redirect carried no authorization code")

		return nil, domainerrors.ErrMissingCode
	}

	profile, err := srv.wechatService.ExchangeCode(ctx, input.Code)
	if err != nil {
		srv.log(ctx).Error("wechat code exchange failed",
			slog.String("sessionID", session.ID.String()),
			slog.Any("error", err))
		srv.recordFailure(ctx, session.ID, domainerrors.ErrProvider.ErrorCode(), err.Error())

		return nil, domainerrors.ErrProvider
	}

	var out *usecase.CallbackOutput
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		sessionRepo := repoFactory.LoginSessionRepo()

		locked, err := sessionRepo.FindByIDForUpdate(ctx, session.ID)
		if err != nil {
			return errors.Wrap(err, "failed to lock login session")
		}

		now := srv.clock.Now()
		// Re-check under the lock; a concurrent callback may have won. The
		// loser answers idempotently without overwriting the winner's work.
		if locked.Status == entity.SessionConfirmed || locked.Status == entity.SessionConsumed {
			out = &usecase.CallbackOutput{Status: locked.Status}

			return nil
		}
		if locked.Status != entity.SessionPending {
			return statusError(locked.Status)
		}
		if locked.Expired(now) {
			locked.Status = entity.SessionExpired
			if err := sessionRepo.Save(ctx, locked); err != nil {
				return errors.Wrap(err, "failed to expire login session")
			}

			return domainerrors.ErrSessionExpired
		}

		user, err := srv.resolveOrCreateUser(ctx, repoFactory, profile, now)
		if err != nil {
			return err
		}

		ticket, err := newTicket()
		if err != nil {
			return err
		}
		ticketExpiry := now.Add(srv.ticketTTL)

		locked.Status = entity.SessionConfirmed
		locked.UserID = &user.ID
		locked.Ticket = &ticket
		locked.TicketExpiresAt = &ticketExpiry
		if err := sessionRepo.Save(ctx, locked); err != nil {
			return errors.Wrap(err, "failed to confirm login session")
		}

		out = &usecase.CallbackOutput{
			Status:   entity.SessionConfirmed,
			Nickname: profile.Nickname,
		}

		return nil
	})
	if err != nil {
		// Leave sessions that lost a race in their winner's state, but mark
		// genuine failures so the polling desktop sees FAILED with a reason.
		var appErr domainerrors.AppError
		switch {
		case errors.Is(err, domainerrors.ErrUserDisabled):
			srv.recordFailure(ctx, session.ID, domainerrors.ErrUserDisabled.ErrorCode(), domainerrors.ErrUserDisabled.Message())
		case !errors.As(err, &appErr):
			srv.recordFailure(ctx, session.ID, domainerrors.ErrInternalError.ErrorCode(), err.Error())
		}

		return nil, err
	}

	srv.log(ctx).Info("qr login session confirmed", slog.String("sessionID", session.ID.String()))

	return out, nil
}

// ExchangeTicket redeems a one-time ticket for a bearer token. The session row
// is locked for the whole check-and-consume sequence, so of N concurrent
// exchanges exactly one succeeds and the rest observe CONSUMED.
func (srv *qrLoginService) ExchangeTicket(ctx context.Context, input usecase.ExchangeInput) (*usecase.TokenOutput, error) {
	if input.Ticket == "" {
		return nil, domainerrors.ErrTicketInvalid
	}

	var out *usecase.TokenOutput
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		sessionRepo := repoFactory.LoginSessionRepo()

		session, err := sessionRepo.FindByIDForUpdate(ctx, input.SessionID)
		if err != nil {
			if errors.Is(err, repository.ErrSessionNotFound) {
				return domainerrors.ErrSessionNotFound
			}

			return errors.Wrap(err, "failed to lock login session")
		}

		now := srv.clock.Now()
		switch session.Status {
		case entity.SessionPending:
			if session.Expired(now) {
				session.Status = entity.SessionExpired
				if err := sessionRepo.Save(ctx, session); err != nil {
					return errors.Wrap(err, "failed to expire login session")
				}

				return domainerrors.ErrSessionExpired
			}

			return domainerrors.ErrSessionNotConfirmed
		case entity.SessionConfirmed:
			// fall through below
		default:
			return statusError(session.Status)
		}

		if session.Ticket == nil ||
			subtle.ConstantTimeCompare([]byte(*session.Ticket), []byte(input.Ticket)) != 1 {
			return domainerrors.ErrTicketInvalid
		}
		if session.TicketExpiresAt == nil || !session.TicketExpiresAt.After(now) {
			return domainerrors.ErrTicketExpired
		}

		if session.UserID == nil {
			return domainerrors.ErrIntegrity
		}
		user, err := repoFactory.UserRepo().FindByID(ctx, *session.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return domainerrors.ErrIntegrity
			}

			return errors.Wrap(err, "failed to load session user")
		}
		if !user.IsActive {
			return domainerrors.ErrUserDisabled
		}

		token, expiresIn, err := srv.tokenService.GenerateToken(user.ID, user.Username)
		if err != nil {
			return errors.Wrap(err, "failed to generate access token")
		}

		consumedAt := now
		session.Status = entity.SessionConsumed
		session.ConsumedAt = &consumedAt
		if err := sessionRepo.Save(ctx, session); err != nil {
			return errors.Wrap(err, "failed to consume login session")
		}

		out = &usecase.TokenOutput{
			AccessToken: token,
			TokenType:   tokenTypeBearer,
			ExpiresIn:   int64(expiresIn.Seconds()),
			User:        user,
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	srv.log(ctx).Info("qr login ticket exchanged", slog.String("sessionID", input.SessionID.String()))

	return out, nil
}

// resolveOrCreateUser maps an external profile to a local account, creating a
// placeholder account and binding on first login. Runs inside the confirming
// transaction so a failed confirmation leaves no half-created identity.
func (srv *qrLoginService) resolveOrCreateUser(ctx context.Context, repoFactory repository.RepositoryFactory, profile *service.WechatProfile, now time.Time) (*entity.User, error) {
	bindingRepo := repoFactory.IdentityBindingRepo()
	userRepo := repoFactory.UserRepo()

	// UnionID is stable across apps of the same WeChat subject; prefer it.
	providerUserID := profile.UnionID
	if providerUserID == "" {
		providerUserID = profile.OpenID
	}

	binding, err := bindingRepo.FindByProviderUser(ctx, entity.ChannelWechatOpen, providerUserID)
	if err != nil && !errors.Is(err, repository.ErrBindingNotFound) {
		return nil, errors.Wrap(err, "failed to look up identity binding")
	}

	if binding != nil {
		user, err := userRepo.FindByID(ctx, binding.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil, domainerrors.ErrIntegrity
			}

			return nil, errors.Wrap(err, "failed to load bound user")
		}
		if !user.IsActive {
			return nil, domainerrors.ErrUserDisabled
		}

		binding.UnionID = profile.UnionID
		binding.Nickname = profile.Nickname
		binding.AvatarURL = profile.AvatarURL
		binding.LastLoginAt = now
		if err := bindingRepo.Update(ctx, binding); err != nil {
			return nil, errors.Wrap(err, "failed to refresh identity binding")
		}

		return user, nil
	}

	user, err := srv.createPlaceholderUser(ctx, userRepo, profile, providerUserID)
	if err != nil {
		return nil, err
	}

	newBinding := &entity.IdentityBinding{
		ID:             uuid.New(),
		UserID:         user.ID,
		Provider:       entity.ChannelWechatOpen,
		ProviderUserID: providerUserID,
		UnionID:        profile.UnionID,
		Nickname:       profile.Nickname,
		AvatarURL:      profile.AvatarURL,
		LastLoginAt:    now,
	}
	if err := bindingRepo.Create(ctx, newBinding); err != nil {
		return nil, errors.Wrap(err, "failed to create identity binding")
	}

	srv.log(ctx).Info("placeholder account created for external identity",
		slog.String("username", user.Username))

	return user, nil
}

// createPlaceholderUser provisions a local account for a first-time external
// login. The username is derived deterministically from the provider identity
// and the password is random and never disclosed, so the account is usable
// only through the external flow until an operator sets a real password.
// A colliding username or email is retried with a random suffix.
func (srv *qrLoginService) createPlaceholderUser(ctx context.Context, userRepo repository.UserRepository, profile *service.WechatProfile, providerUserID string) (*entity.User, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, errors.Wrap(err, "failed to generate placeholder password")
	}
	hash, err := srv.hasher.Hash(hex.EncodeToString(secret))
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash placeholder password")
	}

	base := placeholderUsername(providerUserID)
	for attempt := 0; attempt < placeholderCreateAttempts; attempt++ {
		username := base
		if attempt > 0 {
			suffixRaw := make([]byte, 2)
			if _, err := rand.Read(suffixRaw); err != nil {
				return nil, errors.Wrap(err, "failed to generate username suffix")
			}
			username = base + "_" + hex.EncodeToString(suffixRaw)
		}

		user := &entity.User{
			ID:           uuid.New(),
			Username:     username,
			Email:        username + "@" + placeholderEmailDomain,
			PasswordHash: hash,
			FullName:     profile.Nickname,
			IsActive:     true,
		}

		err := userRepo.Create(ctx, user)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, repository.ErrDuplicateUser) {
			return nil, errors.Wrap(err, "failed to create placeholder user")
		}

		srv.log(ctx).Warn("placeholder username collision, retrying",
			slog.String("username", username))
	}

	return nil, errors.New("failed to allocate a unique placeholder username")
}

// expireSession transitions a session to EXPIRED under a row lock, tolerating
// a concurrent transition that already moved it elsewhere.
func (srv *qrLoginService) expireSession(ctx context.Context, sessionID uuid.UUID) (*entity.LoginSession, error) {
	var result *entity.LoginSession
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		sessionRepo := repoFactory.LoginSessionRepo()

		session, err := sessionRepo.FindByIDForUpdate(ctx, sessionID)
		if err != nil {
			return errors.Wrap(err, "failed to lock login session")
		}

		if session.Status == entity.SessionPending && session.Expired(srv.clock.Now()) {
			session.Status = entity.SessionExpired
			if err := sessionRepo.Save(ctx, session); err != nil {
				return errors.Wrap(err, "failed to expire login session")
			}
		}
		result = session

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// failTamperedState attributes a state token that failed the exact lookup to
// the session its nonce claims to address. A verified mismatch means the
// signature portion was tampered with; the session is failed so status polls
// surface the reason. Tokens whose nonce matches no session are not
// attributable and mutate nothing.
func (srv *qrLoginService) failTamperedState(ctx context.Context, state string) {
	nonce, ok := srv.signer.Nonce(state)
	if !ok {
		return
	}

	session, err := srv.sessionRepo.FindByStateNonce(ctx, nonce)
	if err != nil {
		return
	}
	if srv.signer.Verify(session.ID, state) {
		return
	}

	srv.recordFailure(ctx, session.ID, domainerrors.ErrInvalidState.ErrorCode(), "state signature mismatch")
}

// recordFailure marks a still-pending session FAILED with a machine-readable
// reason. Best effort: a session that already left PENDING is left alone.
func (srv *qrLoginService) recordFailure(ctx context.Context, sessionID uuid.UUID, code, message string) {
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		sessionRepo := repoFactory.LoginSessionRepo()

		session, err := sessionRepo.FindByIDForUpdate(ctx, sessionID)
		if err != nil {
			return errors.Wrap(err, "failed to lock login session")
		}

		if session.Status != entity.SessionPending {
			return nil
		}

		session.Status = entity.SessionFailed
		session.ErrorCode = &code
		session.ErrorMessage = &message

		return sessionRepo.Save(ctx, session)
	})
	if err != nil {
		srv.log(ctx).Error("failed to record session failure",
			slog.String("sessionID", sessionID.String()),
			slog.Any("error", err))
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *qrLoginService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// statusError maps a non-pending session status to its domain error.
func statusError(status entity.SessionStatus) error {
	switch status {
	case entity.SessionExpired:
		return domainerrors.ErrSessionExpired
	case entity.SessionFailed:
		return domainerrors.ErrSessionFailed
	default:
		return domainerrors.ErrSessionConsumed
	}
}

// newTicket generates the one-time exchange credential.
func newTicket() (string, error) {
	raw := make([]byte, ticketBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", errors.Wrap(err, "failed to generate ticket")
	}

	return hex.EncodeToString(raw), nil
}

// placeholderUsername derives a stable local username from the provider
// identity. Hashing keeps provider identifiers out of the username space.
func placeholderUsername(providerUserID string) string {
	digest := sha256.Sum256([]byte(entity.ChannelWechatOpen + ":" + providerUserID))

	return placeholderUsernamePrefix + hex.EncodeToString(digest[:])[:placeholderUsernameLen]
}
