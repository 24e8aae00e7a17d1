package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuJie0403/openclaw-expenses/internal/delivery/http/validator"
	"github.com/LuJie0403/openclaw-expenses/internal/domain/entity"
	domainerrors "github.com/LuJie0403/openclaw-expenses/internal/domain/errors"
	"github.com/LuJie0403/openclaw-expenses/internal/usecase"
)

// fakeQRLoginUsecase returns canned outputs so the handler's HTTP mapping can
// be tested without the real state machine.
type fakeQRLoginUsecase struct {
	createOutput   *usecase.CreateSessionOutput
	statusOutput   *usecase.SessionStatusOutput
	callbackOutput *usecase.CallbackOutput
	callbackErr    error
	exchangeOutput *usecase.TokenOutput
	exchangeErr    error
	lastExchange   usecase.ExchangeInput
}

func (f *fakeQRLoginUsecase) CreateSession(ctx context.Context) (*usecase.CreateSessionOutput, error) {
	return f.createOutput, nil
}

func (f *fakeQRLoginUsecase) GetStatus(ctx context.Context, sessionID uuid.UUID) (*usecase.SessionStatusOutput, error) {
	return f.statusOutput, nil
}

func (f *fakeQRLoginUsecase) QRCodePNG(ctx context.Context, sessionID uuid.UUID) ([]byte, error) {
	return []byte{0x89, 0x50, 0x4E, 0x47}, nil
}

func (f *fakeQRLoginUsecase) HandleCallback(ctx context.Context, input usecase.CallbackInput) (*usecase.CallbackOutput, error) {
	if f.callbackErr != nil {
		return nil, f.callbackErr
	}

	return f.callbackOutput, nil
}

func (f *fakeQRLoginUsecase) ExchangeTicket(ctx context.Context, input usecase.ExchangeInput) (*usecase.TokenOutput, error) {
	f.lastExchange = input
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}

	return f.exchangeOutput, nil
}

func newQRLoginTestContext(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := echo.New()
	e.Validator = validator.New()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()

	return e.NewContext(req, rec), rec
}

func TestQRLoginHandler_CreateSession_Integration(t *testing.T) {
	sessionID := uuid.New()
	fake := &fakeQRLoginUsecase{
		createOutput: &usecase.CreateSessionOutput{
			SessionID:      sessionID,
			State:          "abcdef0123456789" + strings.Repeat("0", 32),
			AuthorizeURL:   "https://open.weixin.qq.com/connect/qrconnect?appid=wx_test#wechat_redirect",
			ExpiresIn:      300,
			PollIntervalMs: 2000,
		},
	}
	handler := NewQRLoginHandler(fake, slog.Default())

	c, rec := newQRLoginTestContext(t, http.MethodPost, "/api/auth/wechat/qr/session", "")
	require.NoError(t, handler.CreateSession(c))

	assert.Equal(t, http.StatusCreated, rec.Code)

	responseBody := rec.Body.String()
	assert.Contains(t, responseBody, sessionID.String())
	assert.Contains(t, responseBody, `"poll_interval_ms":2000`)
	assert.Contains(t, responseBody, `"expires_in":300`)
	// The QR image URL is derived from the session id.
	assert.Contains(t, responseBody, "/api/auth/wechat/qr/session/"+sessionID.String()+"/qrcode.png")
}

func TestQRLoginHandler_GetStatus_InvalidSessionID(t *testing.T) {
	handler := NewQRLoginHandler(&fakeQRLoginUsecase{}, slog.Default())

	c, rec := newQRLoginTestContext(t, http.MethodGet, "/", "")
	c.SetParamNames("session_id")
	c.SetParamValues("not-a-uuid")

	require.NoError(t, handler.GetStatus(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
}

func TestQRLoginHandler_GetStatus_OmitsEmptyTicket(t *testing.T) {
	sessionID := uuid.New()
	fake := &fakeQRLoginUsecase{
		statusOutput: &usecase.SessionStatusOutput{
			SessionID: sessionID,
			Status:    entity.SessionPending,
			ExpiresIn: 120,
		},
	}
	handler := NewQRLoginHandler(fake, slog.Default())

	c, rec := newQRLoginTestContext(t, http.MethodGet, "/", "")
	c.SetParamNames("session_id")
	c.SetParamValues(sessionID.String())

	require.NoError(t, handler.GetStatus(c))

	assert.Equal(t, http.StatusOK, rec.Code)

	responseBody := rec.Body.String()
	assert.Contains(t, responseBody, `"status":"PENDING"`)
	assert.NotContains(t, responseBody, "ticket")
	assert.NotContains(t, responseBody, "error_code")
}

func TestQRLoginHandler_Exchange_Integration(t *testing.T) {
	sessionID := uuid.New()
	fake := &fakeQRLoginUsecase{
		exchangeOutput: &usecase.TokenOutput{
			AccessToken: "signed.jwt.token",
			TokenType:   "bearer",
			ExpiresIn:   1800,
			User: &entity.User{
				ID:       uuid.New(),
				Username: "wx_0123456789abcdef",
				IsActive: true,
			},
		},
	}
	handler := NewQRLoginHandler(fake, slog.Default())

	body := `{"session_id":"` + sessionID.String() + `","ticket":"deadbeef"}`
	c, rec := newQRLoginTestContext(t, http.MethodPost, "/api/auth/wechat/qr/exchange", body)

	require.NoError(t, handler.Exchange(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sessionID, fake.lastExchange.SessionID)
	assert.Equal(t, "deadbeef", fake.lastExchange.Ticket)

	responseBody := rec.Body.String()
	assert.Contains(t, responseBody, "signed.jwt.token")
	assert.Contains(t, responseBody, `"token_type":"bearer"`)
	assert.Contains(t, responseBody, "wx_0123456789abcdef")
}

func TestQRLoginHandler_Exchange_MissingTicket(t *testing.T) {
	handler := NewQRLoginHandler(&fakeQRLoginUsecase{}, slog.Default())

	body := `{"session_id":"` + uuid.New().String() + `"}`
	c, rec := newQRLoginTestContext(t, http.MethodPost, "/api/auth/wechat/qr/exchange", body)

	require.NoError(t, handler.Exchange(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
}

func TestQRLoginHandler_Callback_RendersResultPage(t *testing.T) {
	fake := &fakeQRLoginUsecase{
		callbackOutput: &usecase.CallbackOutput{
			Status:   entity.SessionConfirmed,
			Nickname: "小明",
		},
	}
	handler := NewQRLoginHandler(fake, slog.Default())

	c, rec := newQRLoginTestContext(t, http.MethodGet, "/api/auth/wechat/callback?code=abc&state=xyz", "")

	require.NoError(t, handler.Callback(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), echo.MIMETextHTML)

	responseBody := rec.Body.String()
	assert.Contains(t, responseBody, "小明")
	assert.Contains(t, responseBody, "确认成功")
}

func TestQRLoginHandler_Callback_DuplicateRedirectWithoutNickname(t *testing.T) {
	// A duplicate redirect answers without re-fetching the profile, so the
	// page must read cleanly with no nickname available.
	fake := &fakeQRLoginUsecase{
		callbackOutput: &usecase.CallbackOutput{Status: entity.SessionConfirmed},
	}
	handler := NewQRLoginHandler(fake, slog.Default())

	c, rec := newQRLoginTestContext(t, http.MethodGet, "/api/auth/wechat/callback?code=abc&state=xyz", "")

	require.NoError(t, handler.Callback(c))

	assert.Equal(t, http.StatusOK, rec.Code)

	responseBody := rec.Body.String()
	assert.Contains(t, responseBody, "确认成功")
	assert.NotContains(t, responseBody, "，确认成功")
}

func TestQRLoginHandler_Callback_ExpiredSessionPage(t *testing.T) {
	fake := &fakeQRLoginUsecase{callbackErr: domainerrors.ErrSessionExpired}
	handler := NewQRLoginHandler(fake, slog.Default())

	c, rec := newQRLoginTestContext(t, http.MethodGet, "/api/auth/wechat/callback?code=abc&state=xyz", "")

	require.NoError(t, handler.Callback(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "重新发起扫码登录")
}
