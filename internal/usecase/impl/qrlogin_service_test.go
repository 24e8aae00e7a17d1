package impl

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuJie0403/openclaw-expenses/config"
	"github.com/LuJie0403/openclaw-expenses/internal/domain/entity"
	domainerrors "github.com/LuJie0403/openclaw-expenses/internal/domain/errors"
	"github.com/LuJie0403/openclaw-expenses/internal/domain/service"
	"github.com/LuJie0403/openclaw-expenses/internal/usecase"
)

type qrLoginFixture struct {
	svc    usecase.QRLoginUsecase
	store  *memoryStore
	clock  *fakeClock
	wechat *fakeWechat
}

func newQRLoginFixture(t *testing.T) *qrLoginFixture {
	t.Helper()

	store := newMemoryStore()
	clock := newFakeClock()
	wechat := &fakeWechat{
		profile: &service.WechatProfile{
			OpenID:    "openid_1",
			UnionID:   "union_1",
			Nickname:  "小明",
			AvatarURL: "https://cdn.example/avatar.png",
		},
	}

	cfg := &config.Config{
		Wechat: &config.WechatConfig{
			Enabled:            true,
			AppID:              "wx_test",
			AppSecret:          "secret",
			RedirectURI:        "https://example.com/cb",
			StateSignSecret:    "sign",
			SessionTTLSeconds:  300,
			TicketTTLSeconds:   60,
			HTTPTimeoutSeconds: 5,
		},
	}

	svc := NewQRLoginService(QRLoginServiceParams{
		TxManager:     newMemTxManager(store),
		SessionRepo:   &memSessionRepo{store: store},
		Signer:        fakeSigner{},
		WechatService: wechat,
		QRCodeService: &fakeQRCode{},
		TokenService:  &fakeTokenService{ttl: 30 * time.Minute},
		Hasher:        fakeHasher{},
		Clock:         clock,
		Config:        cfg,
		Logger:        discardLogger(),
	})

	return &qrLoginFixture{svc: svc, store: store, clock: clock, wechat: wechat}
}

func (f *qrLoginFixture) session(t *testing.T, id uuid.UUID) entity.LoginSession {
	t.Helper()

	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	session, ok := f.store.sessions[id]
	require.True(t, ok, "session %s not in store", id)

	return session
}

func (f *qrLoginFixture) createAndConfirm(t *testing.T) (*usecase.CreateSessionOutput, string) {
	t.Helper()

	created, err := f.svc.CreateSession(context.Background())
	require.NoError(t, err)

	_, err = f.svc.HandleCallback(context.Background(), usecase.CallbackInput{
		Code:  "code123",
		State: created.State,
	})
	require.NoError(t, err)

	session := f.session(t, created.SessionID)
	require.NotNil(t, session.Ticket)

	return created, *session.Ticket
}

func TestQRLogin_CreateSession(t *testing.T) {
	f := newQRLoginFixture(t)

	out, err := f.svc.CreateSession(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, out.SessionID)
	assert.Equal(t, out.SessionID.String()+":sig", out.State)
	assert.Contains(t, out.AuthorizeURL, "state="+out.State)
	assert.True(t, strings.HasSuffix(out.AuthorizeURL, "#wechat_redirect"))
	assert.Equal(t, int64(300), out.ExpiresIn)
	assert.Equal(t, int64(2000), out.PollIntervalMs)

	session := f.session(t, out.SessionID)
	assert.Equal(t, entity.SessionPending, session.Status)
	assert.Equal(t, entity.ChannelWechatOpen, session.Channel)
	assert.Nil(t, session.Ticket)
	assert.Equal(t, f.clock.Now().Add(300*time.Second), session.ExpiresAt)
}

func TestQRLogin_GetStatus_Pending(t *testing.T) {
	f := newQRLoginFixture(t)

	created, err := f.svc.CreateSession(context.Background())
	require.NoError(t, err)

	status, err := f.svc.GetStatus(context.Background(), created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionPending, status.Status)
	assert.Nil(t, status.Ticket)
	assert.Equal(t, int64(300), status.ExpiresIn)
}

func TestQRLogin_GetStatus_LazyExpiry(t *testing.T) {
	f := newQRLoginFixture(t)

	created, err := f.svc.CreateSession(context.Background())
	require.NoError(t, err)

	f.clock.Advance(301 * time.Second)

	status, err := f.svc.GetStatus(context.Background(), created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionExpired, status.Status)
	assert.Zero(t, status.ExpiresIn)

	// The transition is persisted, not just reported.
	assert.Equal(t, entity.SessionExpired, f.session(t, created.SessionID).Status)
}

func TestQRLogin_GetStatus_UnknownSession(t *testing.T) {
	f := newQRLoginFixture(t)

	_, err := f.svc.GetStatus(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domainerrors.ErrSessionNotFound)
}

func TestQRLogin_QRCodePNG(t *testing.T) {
	f := newQRLoginFixture(t)

	created, err := f.svc.CreateSession(context.Background())
	require.NoError(t, err)

	png, err := f.svc.QRCodePNG(context.Background(), created.SessionID)
	require.NoError(t, err)
	assert.Contains(t, string(png), created.State)

	// Expired sessions no longer serve a QR image.
	f.clock.Advance(301 * time.Second)
	_, err = f.svc.QRCodePNG(context.Background(), created.SessionID)
	assert.ErrorIs(t, err, domainerrors.ErrSessionExpired)
}

func TestQRLogin_HandleCallback_ConfirmsSession(t *testing.T) {
	f := newQRLoginFixture(t)

	created, err := f.svc.CreateSession(context.Background())
	require.NoError(t, err)

	out, err := f.svc.HandleCallback(context.Background(), usecase.CallbackInput{
		Code:  "code123",
		State: created.State,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.SessionConfirmed, out.Status)
	assert.Equal(t, "小明", out.Nickname)

	session := f.session(t, created.SessionID)
	assert.Equal(t, entity.SessionConfirmed, session.Status)
	require.NotNil(t, session.Ticket)
	assert.Len(t, *session.Ticket, 32)
	require.NotNil(t, session.TicketExpiresAt)
	assert.Equal(t, f.clock.Now().Add(60*time.Second), *session.TicketExpiresAt)
	require.NotNil(t, session.UserID)

	// A placeholder account and binding were created for the new identity.
	f.store.mu.Lock()
	user, ok := f.store.users[*session.UserID]
	binding, bound := f.store.bindings[bindingKey(entity.ChannelWechatOpen, "union_1")]
	f.store.mu.Unlock()
	require.True(t, ok)
	require.True(t, bound)
	assert.True(t, strings.HasPrefix(user.Username, "wx_"))
	assert.Equal(t, user.Username+"@wechat.invalid", user.Email)
	assert.Equal(t, "小明", user.FullName)
	assert.True(t, user.IsActive)
	assert.Equal(t, user.ID, binding.UserID)
	assert.Equal(t, "union_1", binding.UnionID)
}

func TestQRLogin_HandleCallback_ReusesExistingBinding(t *testing.T) {
	f := newQRLoginFixture(t)

	// First login creates the account.
	created, _ := f.createAndConfirm(t)
	first := f.session(t, created.SessionID)

	// Second login through a fresh session with an updated profile.
	f.wechat.profile.Nickname = "小明二号"
	second, err := f.svc.CreateSession(context.Background())
	require.NoError(t, err)
	_, err = f.svc.HandleCallback(context.Background(), usecase.CallbackInput{
		Code:  "code456",
		State: second.State,
	})
	require.NoError(t, err)

	secondSession := f.session(t, second.SessionID)
	assert.Equal(t, *first.UserID, *secondSession.UserID, "same identity resolves to same account")

	f.store.mu.Lock()
	assert.Len(t, f.store.users, 1)
	binding := f.store.bindings[bindingKey(entity.ChannelWechatOpen, "union_1")]
	f.store.mu.Unlock()
	assert.Equal(t, "小明二号", binding.Nickname, "profile snapshot refreshed")
}

func TestQRLogin_HandleCallback_FallsBackToOpenID(t *testing.T) {
	f := newQRLoginFixture(t)
	f.wechat.profile.UnionID = ""

	created, err := f.svc.CreateSession(context.Background())
	require.NoError(t, err)
	_, err = f.svc.HandleCallback(context.Background(), usecase.CallbackInput{
		Code:  "code123",
		State: created.State,
	})
	require.NoError(t, err)

	f.store.mu.Lock()
	_, bound := f.store.bindings[bindingKey(entity.ChannelWechatOpen, "openid_1")]
	f.store.mu.Unlock()
	assert.True(t, bound, "binding keyed by OpenID when UnionID is absent")
}

func TestQRLogin_HandleCallback_PlaceholderUsernameCollision(t *testing.T) {
	f := newQRLoginFixture(t)

	// An unrelated account already occupies the derived username.
	taken := seedUser(f.store, placeholderUsername("union_1"), "pw", true)

	created, err := f.svc.CreateSession(context.Background())
	require.NoError(t, err)

	out, err := f.svc.HandleCallback(context.Background(), usecase.CallbackInput{
		Code:  "code123",
		State: created.State,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.SessionConfirmed, out.Status)

	session := f.session(t, created.SessionID)
	require.NotNil(t, session.UserID)
	assert.NotEqual(t, taken.ID, *session.UserID, "existing account must not be bound")

	f.store.mu.Lock()
	fresh := f.store.users[*session.UserID]
	f.store.mu.Unlock()
	// The retried username keeps the derived base plus a random suffix.
	assert.True(t, strings.HasPrefix(fresh.Username, taken.Username+"_"))
	assert.NotEqual(t, taken.Username, fresh.Username)
	assert.Equal(t, fresh.Username+"@wechat.invalid", fresh.Email)
}

func TestQRLogin_HandleCallback_InvalidState(t *testing.T) {
	f := newQRLoginFixture(t)

	_, err := f.svc.HandleCallback(context.Background(), usecase.CallbackInput{Code: "c", State: ""})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidState)

	_, err = f.svc.HandleCallback(context.Background(), usecase.CallbackInput{Code: "c", State: uuid.New().String() + ":sig"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidState)

	// No provider call happens for an unresolvable state.
	assert.Zero(t, f.wechat.exchanges)
}

func TestQRLogin_HandleCallback_MissingCode(t *testing.T) {
	f := newQRLoginFixture(t)

	created, err := f.svc.CreateSession(context.Background())
	require.NoError(t, err)

	_, err = f.svc.HandleCallback(context.Background(), usecase.CallbackInput{State: created.State})
	assert.ErrorIs(t, err, domainerrors.ErrMissingCode)

	session := f.session(t, created.SessionID)
	assert.Equal(t, entity.SessionFailed, session.Status)
	require.NotNil(t, session.ErrorCode)
	assert.Equal(t, "MISSING_CODE", *session.ErrorCode)
}

func TestQRLogin_HandleCallback_ProviderFailure(t *testing.T) {
	f := newQRLoginFixture(t)
	f.wechat.err = errors.New("wechat api error 40029: invalid code")

	created, err := f.svc.CreateSession(context.Background())
	require.NoError(t, err)

	_, err = f.svc.HandleCallback(context.Background(), usecase.CallbackInput{
		Code:  "bad",
		State: created.State,
	})
	assert.ErrorIs(t, err, domainerrors.ErrProvider)

	session := f.session(t, created.SessionID)
	assert.Equal(t, entity.SessionFailed, session.Status)
	require.NotNil(t, session.ErrorCode)
	assert.Equal(t, "PROVIDER_ERROR", *session.ErrorCode)
	require.NotNil(t, session.ErrorMessage)
	assert.Contains(t, *session.ErrorMessage, "40029")
}

func TestQRLogin_HandleCallback_ExpiredSession(t *testing.T) {
	f := newQRLoginFixture(t)

	created, err := f.svc.CreateSession(context.Background())
	require.NoError(t, err)

	f.clock.Advance(301 * time.Second)

	_, err = f.svc.HandleCallback(context.Background(), usecase.CallbackInput{
		Code:  "code123",
		State: created.State,
	})
	assert.ErrorIs(t, err, domainerrors.ErrSessionExpired)
	assert.Equal(t, entity.SessionExpired, f.session(t, created.SessionID).Status)
}

func TestQRLogin_HandleCallback_DuplicateRedirectIsIdempotent(t *testing.T) {
	f := newQRLoginFixture(t)

	created, ticket := f.createAndConfirm(t)
	exchangesAfterFirst := f.wechat.exchanges

	out, err := f.svc.HandleCallback(context.Background(), usecase.CallbackInput{
		Code:  "code123",
		State: created.State,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.SessionConfirmed, out.Status)
	// The duplicate redirect neither re-runs the provider exchange nor
	// replaces the ticket.
	assert.Equal(t, exchangesAfterFirst, f.wechat.exchanges)
	session := f.session(t, created.SessionID)
	assert.Equal(t, entity.SessionConfirmed, session.Status)
	require.NotNil(t, session.Ticket)
	assert.Equal(t, ticket, *session.Ticket)
}

func TestQRLogin_HandleCallback_TamperedStateFailsSession(t *testing.T) {
	f := newQRLoginFixture(t)

	created, err := f.svc.CreateSession(context.Background())
	require.NoError(t, err)

	_, err = f.svc.HandleCallback(context.Background(), usecase.CallbackInput{
		Code:  "code123",
		State: created.State + "x",
	})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidState)
	assert.Zero(t, f.wechat.exchanges)

	// The tampered token is attributed through its nonce and the session is
	// failed so the desktop poll surfaces the reason.
	session := f.session(t, created.SessionID)
	assert.Equal(t, entity.SessionFailed, session.Status)
	require.NotNil(t, session.ErrorCode)
	assert.Equal(t, "INVALID_STATE", *session.ErrorCode)

	status, err := f.svc.GetStatus(context.Background(), created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionFailed, status.Status)
	require.NotNil(t, status.ErrorCode)
	assert.Equal(t, "INVALID_STATE", *status.ErrorCode)
}

func TestQRLogin_HandleCallback_DisabledAccount(t *testing.T) {
	f := newQRLoginFixture(t)

	// First login provisions the account, then an operator disables it.
	created, _ := f.createAndConfirm(t)
	first := f.session(t, created.SessionID)
	f.store.mu.Lock()
	user := f.store.users[*first.UserID]
	user.IsActive = false
	f.store.users[user.ID] = user
	f.store.mu.Unlock()

	second, err := f.svc.CreateSession(context.Background())
	require.NoError(t, err)
	_, err = f.svc.HandleCallback(context.Background(), usecase.CallbackInput{
		Code:  "code456",
		State: second.State,
	})
	assert.ErrorIs(t, err, domainerrors.ErrUserDisabled)

	session := f.session(t, second.SessionID)
	assert.Equal(t, entity.SessionFailed, session.Status)
	require.NotNil(t, session.ErrorCode)
	assert.Equal(t, "USER_DISABLED", *session.ErrorCode)
}

func TestQRLogin_GetStatus_ConfirmedDisclosesTicketWhileUsable(t *testing.T) {
	f := newQRLoginFixture(t)

	created, ticket := f.createAndConfirm(t)

	status, err := f.svc.GetStatus(context.Background(), created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionConfirmed, status.Status)
	require.NotNil(t, status.Ticket)
	assert.Equal(t, ticket, *status.Ticket)

	// Past the ticket deadline the status stays CONFIRMED but the ticket is
	// no longer disclosed.
	f.clock.Advance(61 * time.Second)
	status, err = f.svc.GetStatus(context.Background(), created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionConfirmed, status.Status)
	assert.Nil(t, status.Ticket)
}

func TestQRLogin_ExchangeTicket_Succeeds(t *testing.T) {
	f := newQRLoginFixture(t)

	created, ticket := f.createAndConfirm(t)

	out, err := f.svc.ExchangeTicket(context.Background(), usecase.ExchangeInput{
		SessionID: created.SessionID,
		Ticket:    ticket,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out.AccessToken)
	assert.Equal(t, "bearer", out.TokenType)
	assert.Equal(t, int64(1800), out.ExpiresIn)
	require.NotNil(t, out.User)

	session := f.session(t, created.SessionID)
	assert.Equal(t, entity.SessionConsumed, session.Status)
	require.NotNil(t, session.ConsumedAt)
	assert.Equal(t, f.clock.Now(), *session.ConsumedAt)
}

func TestQRLogin_ExchangeTicket_SecondAttemptSeesConsumed(t *testing.T) {
	f := newQRLoginFixture(t)

	created, ticket := f.createAndConfirm(t)

	_, err := f.svc.ExchangeTicket(context.Background(), usecase.ExchangeInput{
		SessionID: created.SessionID,
		Ticket:    ticket,
	})
	require.NoError(t, err)

	_, err = f.svc.ExchangeTicket(context.Background(), usecase.ExchangeInput{
		SessionID: created.SessionID,
		Ticket:    ticket,
	})
	assert.ErrorIs(t, err, domainerrors.ErrSessionConsumed)
}

func TestQRLogin_ExchangeTicket_WrongTicket(t *testing.T) {
	f := newQRLoginFixture(t)

	created, _ := f.createAndConfirm(t)

	_, err := f.svc.ExchangeTicket(context.Background(), usecase.ExchangeInput{
		SessionID: created.SessionID,
		Ticket:    strings.Repeat("f", 32),
	})
	assert.ErrorIs(t, err, domainerrors.ErrTicketInvalid)

	// A failed exchange does not burn the session.
	assert.Equal(t, entity.SessionConfirmed, f.session(t, created.SessionID).Status)
}

func TestQRLogin_ExchangeTicket_ExpiredTicket(t *testing.T) {
	f := newQRLoginFixture(t)

	created, ticket := f.createAndConfirm(t)

	f.clock.Advance(61 * time.Second)

	_, err := f.svc.ExchangeTicket(context.Background(), usecase.ExchangeInput{
		SessionID: created.SessionID,
		Ticket:    ticket,
	})
	assert.ErrorIs(t, err, domainerrors.ErrTicketExpired)
}

func TestQRLogin_ExchangeTicket_BeforeConfirmation(t *testing.T) {
	f := newQRLoginFixture(t)

	created, err := f.svc.CreateSession(context.Background())
	require.NoError(t, err)

	_, err = f.svc.ExchangeTicket(context.Background(), usecase.ExchangeInput{
		SessionID: created.SessionID,
		Ticket:    strings.Repeat("a", 32),
	})
	assert.ErrorIs(t, err, domainerrors.ErrSessionNotConfirmed)
}

func TestQRLogin_ExchangeTicket_UnknownSession(t *testing.T) {
	f := newQRLoginFixture(t)

	_, err := f.svc.ExchangeTicket(context.Background(), usecase.ExchangeInput{
		SessionID: uuid.New(),
		Ticket:    strings.Repeat("a", 32),
	})
	assert.ErrorIs(t, err, domainerrors.ErrSessionNotFound)
}

func TestQRLogin_ExchangeTicket_EmptyTicket(t *testing.T) {
	f := newQRLoginFixture(t)

	created, _ := f.createAndConfirm(t)

	_, err := f.svc.ExchangeTicket(context.Background(), usecase.ExchangeInput{
		SessionID: created.SessionID,
	})
	assert.ErrorIs(t, err, domainerrors.ErrTicketInvalid)
}

func TestQRLogin_ExchangeTicket_ExactlyOnceUnderConcurrency(t *testing.T) {
	f := newQRLoginFixture(t)

	created, ticket := f.createAndConfirm(t)

	const attempts = 16

	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := range attempts {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, err := f.svc.ExchangeTicket(context.Background(), usecase.ExchangeInput{
				SessionID: created.SessionID,
				Ticket:    ticket,
			})
			results[slot] = err
		}(i)
	}
	wg.Wait()

	var succeeded, consumed int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domainerrors.ErrSessionConsumed):
			consumed++
		default:
			t.Fatalf("unexpected exchange error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one exchange wins")
	assert.Equal(t, attempts-1, consumed)
}
