package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code string, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    "BAD_REQUEST",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

func Unauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func Forbidden(message string, err error) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     err,
	}
}

// TransportFailure marks a channel subscribe/unsubscribe problem. These are
// never fatal: the engine degrades to pull-based loading and recovers on the
// next conversation switch.
func TransportFailure(message string, err error) *AppError {
	return &AppError{
		Code:    "TRANSPORT_FAILURE",
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     err,
	}
}

// PersistenceFailure marks a failed load/send/mark-read call against the
// backend. Loads fold into the store's error field; sends raise a user
// notification.
func PersistenceFailure(message string, err error) *AppError {
	return &AppError{
		Code:    "PERSISTENCE_FAILURE",
		Message: message,
		Status:  http.StatusBadGateway,
		Err:     err,
	}
}

// AuxiliarySignal marks a failed typing/presence ping. Log-only; these are
// best-effort UX signals, not correctness-critical.
func AuxiliarySignal(message string, err error) *AppError {
	return &AppError{
		Code:    "AUXILIARY_SIGNAL",
		Message: message,
		Status:  http.StatusBadGateway,
		Err:     err,
	}
}

func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
