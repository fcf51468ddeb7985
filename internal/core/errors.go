// AngelaMos | 2026
// errors.go

package core

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrDuplicateKey          = errors.New("duplicate key")
	ErrInvalidInput          = errors.New("invalid input")
	ErrUnauthorized          = errors.New("unauthenticated")
	ErrForbidden             = errors.New("forbidden")
	ErrSessionExpired        = errors.New("session expired")
	ErrAccountLocked         = errors.New("account locked")
	ErrPasswordResetRequired = errors.New("password reset required")
	ErrTwoFactorRequired     = errors.New("two-factor authentication required")
	ErrCreateFailed          = errors.New("create failed")
	ErrInternal              = errors.New("internal error")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenRevoked          = errors.New("token revoked")
	ErrTokenInvalid          = errors.New("token invalid")
)

// AppError is an error that knows how it should be rendered over HTTP.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
	Code       string
	Details    map[string]string
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(err error, message string, status int, code string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: status,
		Code:       code,
	}
}

func UnauthorizedError(message string) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return NewAppError(ErrUnauthorized, message, http.StatusUnauthorized, "UNAUTHENTICATED")
}

func ForbiddenError(message string) *AppError {
	if message == "" {
		message = "insufficient permissions"
	}
	return NewAppError(ErrForbidden, message, http.StatusForbidden, "FORBIDDEN")
}

func NotFoundError(resource string) *AppError {
	return NewAppError(
		ErrNotFound,
		fmt.Sprintf("%s not found", resource),
		http.StatusNotFound,
		"NOT_FOUND",
	)
}

func DuplicateError(field string) *AppError {
	return NewAppError(
		ErrDuplicateKey,
		fmt.Sprintf("%s already exists", field),
		http.StatusConflict,
		"DUPLICATE",
	)
}

func ValidationError(message string, details map[string]string) *AppError {
	e := NewAppError(ErrInvalidInput, message, http.StatusBadRequest, "VALIDATION_ERROR")
	e.Details = details
	return e
}

func SessionExpiredError() *AppError {
	return NewAppError(
		ErrSessionExpired,
		"session has expired, please sign in again",
		http.StatusUnauthorized,
		"SESSION_EXPIRED",
	)
}

func AccountLockedError() *AppError {
	return NewAppError(
		ErrAccountLocked,
		"account is locked after too many failed sign-in attempts",
		http.StatusForbidden,
		"ACCOUNT_LOCKED",
	)
}

func PasswordResetRequiredError() *AppError {
	return NewAppError(
		ErrPasswordResetRequired,
		"password must be changed before continuing",
		http.StatusForbidden,
		"PASSWORD_RESET_REQUIRED",
	)
}

func TwoFactorRequiredError() *AppError {
	return NewAppError(
		ErrTwoFactorRequired,
		"two-factor authentication must be enabled for this action",
		http.StatusForbidden,
		"TWO_FACTOR_REQUIRED",
	)
}

func CreateFailedError(resource string) *AppError {
	return NewAppError(
		ErrCreateFailed,
		fmt.Sprintf("failed to create %s", resource),
		http.StatusInternalServerError,
		"CREATE_FAILED",
	)
}

func TokenExpiredError() *AppError {
	return NewAppError(ErrTokenExpired, "token has expired", http.StatusUnauthorized, "TOKEN_EXPIRED")
}

func TokenRevokedError() *AppError {
	return NewAppError(ErrTokenRevoked, "token has been revoked", http.StatusUnauthorized, "TOKEN_REVOKED")
}

func TokenInvalidError() *AppError {
	return NewAppError(ErrTokenInvalid, "token is invalid", http.StatusUnauthorized, "TOKEN_INVALID")
}

func InternalError() *AppError {
	return NewAppError(
		ErrInternal,
		"an unexpected error occurred",
		http.StatusInternalServerError,
		"INTERNAL_ERROR",
	)
}

// ToAppError maps domain sentinels onto their HTTP rendering. Unknown errors
// become a generic 500 so internal detail never reaches the client.
func ToAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return UnauthorizedError("")
	case errors.Is(err, ErrSessionExpired):
		return SessionExpiredError()
	case errors.Is(err, ErrAccountLocked):
		return AccountLockedError()
	case errors.Is(err, ErrPasswordResetRequired):
		return PasswordResetRequiredError()
	case errors.Is(err, ErrTwoFactorRequired):
		return TwoFactorRequiredError()
	case errors.Is(err, ErrForbidden):
		return ForbiddenError("")
	case errors.Is(err, ErrNotFound):
		return NotFoundError("resource")
	case errors.Is(err, ErrDuplicateKey):
		return DuplicateError("resource")
	case errors.Is(err, ErrInvalidInput):
		return ValidationError(err.Error(), nil)
	case errors.Is(err, ErrCreateFailed):
		return CreateFailedError("resource")
	case errors.Is(err, ErrTokenExpired):
		return TokenExpiredError()
	case errors.Is(err, ErrTokenRevoked):
		return TokenRevokedError()
	case errors.Is(err, ErrTokenInvalid):
		return TokenInvalidError()
	default:
		return InternalError()
	}
}
