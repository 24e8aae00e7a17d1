package handler

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/LuJie0403/openclaw-expenses/internal/delivery/http/response"
	domainerrors "github.com/LuJie0403/openclaw-expenses/internal/domain/errors"
	"github.com/LuJie0403/openclaw-expenses/internal/usecase"
)

// callbackPage is the result page shown in the phone's in-app browser after
// the provider redirect. It is self-contained so it renders without the SPA.
var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html lang="zh-CN">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>扫码登录</title>
<style>
body { font-family: -apple-system, "PingFang SC", sans-serif; text-align: center; padding-top: 30vh; color: #333; }
.ok { color: #07c160; font-size: 48px; }
.fail { color: #fa5151; font-size: 48px; }
p { font-size: 16px; margin-top: 16px; }
</style>
</head>
<body>
{{if .Success}}
<div class="ok">✓</div>
{{if .Nickname}}<p>{{.Nickname}}，确认成功</p>{{else}}<p>确认成功</p>{{end}}
<p>请回到电脑完成登录</p>
{{else}}
<div class="fail">✗</div>
<p>{{.Message}}</p>
<p>请回到电脑重新发起扫码登录</p>
{{end}}
</body>
</html>
`))

type callbackPageData struct {
	Success  bool
	Nickname string
	Message  string
}

// QRLoginHandler holds dependencies for the QR login flow handlers.
type QRLoginHandler struct {
	uc     usecase.QRLoginUsecase
	logger *slog.Logger
}

// NewQRLoginHandler is the constructor for QRLoginHandler, injected by Fx.
func NewQRLoginHandler(uc usecase.QRLoginUsecase, logger *slog.Logger) *QRLoginHandler {
	return &QRLoginHandler{uc: uc, logger: logger}
}

type sessionResponse struct {
	SessionID      uuid.UUID `json:"session_id"`
	State          string    `json:"state"`
	AuthorizeURL   string    `json:"authorize_url"`
	QRCodeURL      string    `json:"qrcode_url"`
	ExpiresIn      int64     `json:"expires_in"`
	PollIntervalMs int64     `json:"poll_interval_ms"`
}

type sessionStatusResponse struct {
	SessionID    uuid.UUID `json:"session_id"`
	Status       string    `json:"status"`
	Ticket       *string   `json:"ticket,omitempty"`
	ErrorCode    *string   `json:"error_code,omitempty"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	ExpiresIn    int64     `json:"expires_in"`
}

type exchangeRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Ticket    string `json:"ticket" validate:"required"`
}

// CreateSession issues a fresh QR login session for the desktop client.
func (h *QRLoginHandler) CreateSession(c echo.Context) error {
	output, err := h.uc.CreateSession(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusCreated, &sessionResponse{
		SessionID:      output.SessionID,
		State:          output.State,
		AuthorizeURL:   output.AuthorizeURL,
		QRCodeURL:      "/api/auth/wechat/qr/session/" + output.SessionID.String() + "/qrcode.png",
		ExpiresIn:      output.ExpiresIn,
		PollIntervalMs: output.PollIntervalMs,
	}, "")
}

// GetStatus reports the session state for desktop polling.
func (h *QRLoginHandler) GetStatus(c echo.Context) error {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "invalid session id")
	}

	output, err := h.uc.GetStatus(c.Request().Context(), sessionID)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, &sessionStatusResponse{
		SessionID:    output.SessionID,
		Status:       string(output.Status),
		Ticket:       output.Ticket,
		ErrorCode:    output.ErrorCode,
		ErrorMessage: output.ErrorMessage,
		ExpiresIn:    output.ExpiresIn,
	}, "")
}

// QRCodeImage serves the session's QR code as a PNG.
func (h *QRLoginHandler) QRCodeImage(c echo.Context) error {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "invalid session id")
	}

	png, err := h.uc.QRCodePNG(c.Request().Context(), sessionID)
	if err != nil {
		return errors.WithStack(err)
	}

	c.Response().Header().Set("Cache-Control", "no-store")

	return c.Blob(http.StatusOK, "image/png", png)
}

// Exchange redeems a one-time ticket for a bearer token.
func (h *QRLoginHandler) Exchange(c echo.Context) error {
	var input exchangeRequest
	if err := c.Bind(&input); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid exchange input")
	}
	if err := c.Validate(&input); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "session_id and ticket are required")
	}
	sessionID, err := uuid.Parse(input.SessionID)
	if err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "invalid session id")
	}

	output, err := h.uc.ExchangeTicket(c.Request().Context(), usecase.ExchangeInput{
		SessionID: sessionID,
		Ticket:    input.Ticket,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, toTokenResponse(output), "Login successful")
}

// Callback handles the provider redirect in the phone's browser and renders a
// human-readable result page instead of the JSON envelope.
func (h *QRLoginHandler) Callback(c echo.Context) error {
	input := usecase.CallbackInput{
		Code:  c.QueryParam("code"),
		State: c.QueryParam("state"),
	}

	output, err := h.uc.HandleCallback(c.Request().Context(), input)
	if err != nil {
		status := http.StatusBadRequest
		message := domainerrors.ErrInternalError.Message()

		var appErr domainerrors.AppError
		if errors.As(err, &appErr) {
			status = appErr.HTTPCode()
			message = appErr.Message()
		} else {
			h.logger.Error("qr callback failed", slog.Any("error", err))
			status = http.StatusInternalServerError
		}

		return h.renderCallbackPage(c, status, callbackPageData{Message: message})
	}

	return h.renderCallbackPage(c, http.StatusOK, callbackPageData{
		Success:  true,
		Nickname: output.Nickname,
	})
}

func (h *QRLoginHandler) renderCallbackPage(c echo.Context, status int, data callbackPageData) error {
	var buf bytes.Buffer
	if err := callbackPage.Execute(&buf, data); err != nil {
		return errors.Wrap(err, "render callback page")
	}

	return c.HTMLBlob(status, buf.Bytes())
}
