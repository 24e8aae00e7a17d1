package impl

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LuJie0403/openclaw-expenses/internal/domain/entity"
	"github.com/LuJie0403/openclaw-expenses/internal/domain/repository"
	"github.com/LuJie0403/openclaw-expenses/internal/domain/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- clock ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- in-memory stores ---

type memoryStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]entity.User
	sessions map[uuid.UUID]entity.LoginSession
	bindings map[string]entity.IdentityBinding // keyed by provider + "/" + providerUserID
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:    make(map[uuid.UUID]entity.User),
		sessions: make(map[uuid.UUID]entity.LoginSession),
		bindings: make(map[string]entity.IdentityBinding),
	}
}

func bindingKey(provider, providerUserID string) string {
	return provider + "/" + providerUserID
}

// --- repositories ---

type memUserRepo struct{ store *memoryStore }

func (r *memUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	user, ok := r.store.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	return &user, nil
}

func (r *memUserRepo) FindByUsername(_ context.Context, username string) (*entity.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, user := range r.store.users {
		if user.Username == username {
			found := user

			return &found, nil
		}
	}

	return nil, repository.ErrUserNotFound
}

func (r *memUserRepo) Create(_ context.Context, user *entity.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, existing := range r.store.users {
		if existing.Username == user.Username || (user.Email != "" && existing.Email == user.Email) {
			return repository.ErrDuplicateUser
		}
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	r.store.users[user.ID] = *user

	return nil
}

type memSessionRepo struct{ store *memoryStore }

func (r *memSessionRepo) Create(_ context.Context, session *entity.LoginSession) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, existing := range r.store.sessions {
		if existing.State == session.State {
			return repository.ErrDuplicateSession
		}
	}
	r.store.sessions[session.ID] = *session

	return nil
}

func (r *memSessionRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.LoginSession, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	session, ok := r.store.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}

	return &session, nil
}

func (r *memSessionRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.LoginSession, error) {
	// The fake transaction manager serializes Execute calls, which stands in
	// for the row lock here.
	return r.FindByID(ctx, id)
}

func (r *memSessionRepo) FindByState(_ context.Context, state string) (*entity.LoginSession, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, session := range r.store.sessions {
		if session.State == state {
			found := session

			return &found, nil
		}
	}

	return nil, repository.ErrSessionNotFound
}

func (r *memSessionRepo) FindByStateNonce(_ context.Context, nonce string) (*entity.LoginSession, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, session := range r.store.sessions {
		if strings.HasPrefix(session.State, nonce) {
			found := session

			return &found, nil
		}
	}

	return nil, repository.ErrSessionNotFound
}

func (r *memSessionRepo) Save(_ context.Context, session *entity.LoginSession) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.sessions[session.ID] = *session

	return nil
}

type memBindingRepo struct{ store *memoryStore }

func (r *memBindingRepo) FindByProviderUser(_ context.Context, provider, providerUserID string) (*entity.IdentityBinding, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	binding, ok := r.store.bindings[bindingKey(provider, providerUserID)]
	if !ok {
		return nil, repository.ErrBindingNotFound
	}

	return &binding, nil
}

func (r *memBindingRepo) Create(_ context.Context, binding *entity.IdentityBinding) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if binding.ID == uuid.Nil {
		binding.ID = uuid.New()
	}
	r.store.bindings[bindingKey(binding.Provider, binding.ProviderUserID)] = *binding

	return nil
}

func (r *memBindingRepo) Update(_ context.Context, binding *entity.IdentityBinding) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.bindings[bindingKey(binding.Provider, binding.ProviderUserID)] = *binding

	return nil
}

// --- transaction manager ---

// memTxManager serializes Execute calls with a single mutex, emulating the
// exclusive row lock the MySQL implementation takes. It does not emulate
// rollback; tests that exercise failure paths assert on observable state.
type memTxManager struct {
	mu      sync.Mutex
	factory *memFactory
}

type memFactory struct{ store *memoryStore }

func (f *memFactory) UserRepo() repository.UserRepository { return &memUserRepo{store: f.store} }
func (f *memFactory) LoginSessionRepo() repository.LoginSessionRepository {
	return &memSessionRepo{store: f.store}
}
func (f *memFactory) IdentityBindingRepo() repository.IdentityBindingRepository {
	return &memBindingRepo{store: f.store}
}

func newMemTxManager(store *memoryStore) *memTxManager {
	return &memTxManager{factory: &memFactory{store: store}}
}

func (tm *memTxManager) Execute(_ context.Context, fn func(repository.RepositoryFactory) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	return fn(tm.factory)
}

// --- domain service fakes ---

// fakeSigner produces deterministic per-session tokens; Verify accepts only a
// token that Sign produced for the same session id.
// fakeSigner mimics the nonce+signature token shape so nonce attribution of
// tampered tokens can be exercised: the part before ":" is the nonce.
type fakeSigner struct{}

func (fakeSigner) Sign(sessionID uuid.UUID) (string, error) {
	return sessionID.String() + ":sig", nil
}

func (fakeSigner) Verify(sessionID uuid.UUID, token string) bool {
	return token == sessionID.String()+":sig"
}

func (fakeSigner) Nonce(token string) (string, bool) {
	nonce, _, ok := strings.Cut(token, ":")
	if !ok || nonce == "" {
		return "", false
	}

	return nonce, true
}

type fakeWechat struct {
	mu        sync.Mutex
	profile   *service.WechatProfile
	err       error
	exchanges int
}

func (w *fakeWechat) BuildAuthorizeURL(state string) string {
	return "https://open.weixin.qq.com/connect/qrconnect?appid=wx_test&state=" + state + "#wechat_redirect"
}

func (w *fakeWechat) ExchangeCode(_ context.Context, _ string) (*service.WechatProfile, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.exchanges++
	if w.err != nil {
		return nil, w.err
	}

	return w.profile, nil
}

type fakeTokenService struct {
	ttl time.Duration
	err error
}

func (s *fakeTokenService) GenerateToken(userID uuid.UUID, username string) (string, time.Duration, error) {
	if s.err != nil {
		return "", 0, s.err
	}

	return "token-for-" + username + "-" + userID.String(), s.ttl, nil
}

func (s *fakeTokenService) ValidateToken(string) (*service.Claims, error) {
	return nil, nil
}

type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }
func (fakeHasher) Check(password, hash string) bool     { return "hashed:"+password == hash }

type fakeQRCode struct{ err error }

func (q *fakeQRCode) EncodePNG(payload string) ([]byte, error) {
	if q.err != nil {
		return nil, q.err
	}

	return append([]byte{0x89, 'P', 'N', 'G'}, []byte(payload)...), nil
}
