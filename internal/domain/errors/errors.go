// Package errors defines the application error taxonomy. Every externally
// visible failure maps to an AppError carrying an HTTP status, a stable
// business error code, and a user-facing message.
package errors

import (
	"net/http"

	"github.com/LuJie0403/openclaw-expenses/internal/errors"
)

// AppError defines the interface for application-specific errors
type AppError interface {
	error
	HTTPCode() int     // HTTP status code
	ErrorCode() string // Business error code
	Message() string   // User-friendly error message
	Details() string   // Detailed error information (optional)
}

// BaseError is a basic error structure that implements the AppError interface
type BaseError struct {
	httpCode  int
	errorCode string
	message   string
	details   string
}

// NewBaseError creates a new base error
func NewBaseError(httpCode int, errorCode, message, details string) *BaseError {
	return &BaseError{
		httpCode:  httpCode,
		errorCode: errorCode,
		message:   message,
		details:   details,
	}
}

// Error implements the error interface
func (e *BaseError) Error() string {
	return e.message
}

// WrapMessage wraps the error with additional context message
func (e *BaseError) WrapMessage(message string) error {
	return errors.Wrap(e, message)
}

// HTTPCode returns the HTTP status code
func (e *BaseError) HTTPCode() int {
	return e.httpCode
}

// ErrorCode returns the business error code
func (e *BaseError) ErrorCode() string {
	return e.errorCode
}

// Message returns the user-friendly error message
func (e *BaseError) Message() string {
	return e.message
}

// Details returns detailed error information
func (e *BaseError) Details() string {
	return e.details
}

// WithDetails returns a copy of the error carrying detailed information.
func (e *BaseError) WithDetails(details string) *BaseError {
	return &BaseError{
		httpCode:  e.httpCode,
		errorCode: e.errorCode,
		message:   e.message,
		details:   details,
	}
}

// Predefined error types
var (
	// Credential-related errors
	ErrInvalidCredentials = NewBaseError(
		http.StatusUnauthorized,
		"INVALID_CREDENTIALS",
		"用户名或密码错误",
		"",
	)

	ErrUserDisabled = NewBaseError(
		http.StatusBadRequest,
		"USER_DISABLED",
		"用户账户已被禁用",
		"",
	)

	ErrUserNotFound = NewBaseError(
		http.StatusNotFound,
		"USER_NOT_FOUND",
		"用户不存在或令牌不匹配",
		"",
	)

	ErrInvalidToken = NewBaseError(
		http.StatusUnauthorized,
		"INVALID_TOKEN",
		"无法验证认证凭据",
		"",
	)

	// QR login session errors
	ErrSessionNotFound = NewBaseError(
		http.StatusNotFound,
		"SESSION_NOT_FOUND",
		"登录会话不存在",
		"",
	)

	ErrSessionExpired = NewBaseError(
		http.StatusUnauthorized,
		"SESSION_EXPIRED",
		"登录会话已过期，请重新获取二维码",
		"",
	)

	ErrSessionNotConfirmed = NewBaseError(
		http.StatusUnauthorized,
		"SESSION_NOT_CONFIRMED",
		"登录尚未确认，请先在手机上完成扫码授权",
		"",
	)

	ErrSessionFailed = NewBaseError(
		http.StatusUnauthorized,
		"SESSION_FAILED",
		"登录会话已失败，请重新获取二维码",
		"",
	)

	ErrSessionConsumed = NewBaseError(
		http.StatusUnauthorized,
		"SESSION_CONSUMED",
		"登录票据已被使用",
		"",
	)

	ErrTicketInvalid = NewBaseError(
		http.StatusUnauthorized,
		"TICKET_INVALID",
		"登录票据无效",
		"",
	)

	ErrTicketExpired = NewBaseError(
		http.StatusUnauthorized,
		"TICKET_EXPIRED",
		"登录票据已过期，请重新扫码",
		"",
	)

	// External provider errors
	ErrInvalidState = NewBaseError(
		http.StatusBadRequest,
		"INVALID_STATE",
		"state 校验失败",
		"",
	)

	ErrMissingCode = NewBaseError(
		http.StatusBadRequest,
		"MISSING_CODE",
		"缺少授权码",
		"",
	)

	ErrProvider = NewBaseError(
		http.StatusBadGateway,
		"PROVIDER_ERROR",
		"微信授权服务异常",
		"",
	)

	// Integrity / configuration errors
	ErrIntegrity = NewBaseError(
		http.StatusInternalServerError,
		"INTEGRITY_ERROR",
		"会话绑定的用户不存在",
		"",
	)

	ErrConfigInvalid = NewBaseError(
		http.StatusInternalServerError,
		"CONFIG_INVALID",
		"微信登录配置缺失或无效",
		"",
	)

	// Validation-related errors
	ErrValidationFailed = NewBaseError(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"输入数据验证失败",
		"",
	)

	// General errors
	ErrInternalError = NewBaseError(
		http.StatusInternalServerError,
		"INTERNAL_ERROR",
		"系统内部错误",
		"",
	)
)

// DatabaseExecuteError represents a database execution error, implementing the AppError interface
type DatabaseExecuteError struct {
	err     error
	details string
}

// NewDatabaseExecuteError creates a database-related error
func NewDatabaseExecuteError(err error, details string) AppError {
	return &DatabaseExecuteError{
		err:     err,
		details: details,
	}
}

// Error implements the error interface
func (e *DatabaseExecuteError) Error() string {
	return errors.Wrap(e.err, "database execution failed").Error()
}

// HTTPCode returns the HTTP status code
func (e *DatabaseExecuteError) HTTPCode() int {
	return http.StatusInternalServerError
}

// ErrorCode returns the business error code
func (e *DatabaseExecuteError) ErrorCode() string {
	return "DATABASE_EXECUTE_FAILED"
}

// Message returns the user-friendly error message
func (e *DatabaseExecuteError) Message() string {
	return "数据库执行失败"
}

// Details returns detailed error information
func (e *DatabaseExecuteError) Details() string {
	return e.details
}
