// Package errors defines the sentinel errors shared by the index, scoring and
// search layers, plus an AppError carrying an HTTP status for the service.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrDocumentNotFound       = errors.New("document not found")
	ErrPersistenceUnavailable = errors.New("persisted index unavailable")
	ErrCorruptState           = errors.New("persisted index corrupt")
	ErrInternal               = errors.New("internal error")
	ErrTimeout                = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// InvalidArgumentf wraps ErrInvalidArgument with a formatted message and a
// 400 status.
func InvalidArgumentf(format string, args ...any) *AppError {
	return Newf(ErrInvalidArgument, http.StatusBadRequest, format, args...)
}

// IsRecoverableLoad reports whether err is a load failure that callers should
// treat as "index needs rebuild" rather than a fatal condition.
func IsRecoverableLoad(err error) bool {
	return errors.Is(err, ErrPersistenceUnavailable) || errors.Is(err, ErrCorruptState)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrPersistenceUnavailable), errors.Is(err, ErrCorruptState):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
