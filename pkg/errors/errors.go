package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindInvalidState
	KindInvalidTransition
	KindValidation
	KindBadRequest
	KindUnauthorized
	KindForbidden
)

// Sentinel errors, one per kind, so callers can use errors.Is
var (
	ErrNotFound          = errors.New("resource not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidState      = errors.New("invalid state")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrValidation        = errors.New("validation error")
	ErrBadRequest        = errors.New("bad request")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrInternal          = errors.New("internal error")
)

// AppError represents an application error
type AppError struct {
	Kind    Kind              `json:"-"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil && !isSentinel(e.Err) {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind as well as the wrapped chain.
func (e *AppError) Is(target error) bool {
	return target == sentinel(e.Kind)
}

// StatusCode is picked up by the HTTP error middleware.
func (e *AppError) StatusCode() int {
	return statusFor(e.Kind)
}

func NotFound(resource string, id interface{}) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
		Details: map[string]string{"resource": resource, "id": fmt.Sprint(id)},
		Err:     ErrNotFound,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Kind:    KindConflict,
		Code:    "CONFLICT",
		Message: message,
		Err:     ErrConflict,
	}
}

func InvalidState(message string) *AppError {
	return &AppError{
		Kind:    KindInvalidState,
		Code:    "INVALID_STATE",
		Message: message,
		Err:     ErrInvalidState,
	}
}

func InvalidTransition(entity string, from, to interface{}) *AppError {
	return &AppError{
		Kind:    KindInvalidTransition,
		Code:    "INVALID_TRANSITION",
		Message: fmt.Sprintf("%s cannot move from %v to %v", entity, from, to),
		Details: map[string]string{"from": fmt.Sprint(from), "to": fmt.Sprint(to)},
		Err:     ErrInvalidTransition,
	}
}

// Validation creates a validation error with optional per-field details
func Validation(message string, details map[string]string) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Code:    "VALIDATION_ERROR",
		Message: message,
		Details: details,
		Err:     ErrValidation,
	}
}

func BadRequest(message string, err error) *AppError {
	if err == nil {
		err = ErrBadRequest
	}
	return &AppError{
		Kind:    KindBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
		Err:     err,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Kind:    KindUnauthorized,
		Code:    "UNAUTHORIZED",
		Message: message,
		Err:     ErrUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Kind:    KindForbidden,
		Code:    "FORBIDDEN",
		Message: message,
		Err:     ErrForbidden,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Kind:    KindInternal,
		Code:    "INTERNAL_ERROR",
		Message: "internal server error",
		Err:     err,
	}
}

// KindOf returns the kind of the first AppError in err's chain.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus maps any error to the status class the transport should answer with.
func HTTPStatus(err error) int {
	return statusFor(KindOf(err))
}

// Is and As are re-exported so callers importing this package under the
// name "errors" keep access to the standard helpers.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }

func New(text string) error { return errors.New(text) }

func statusFor(k Kind) int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindInvalidState:
		return http.StatusConflict
	case KindInvalidTransition, KindValidation, KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func sentinel(k Kind) error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindConflict:
		return ErrConflict
	case KindInvalidState:
		return ErrInvalidState
	case KindInvalidTransition:
		return ErrInvalidTransition
	case KindValidation:
		return ErrValidation
	case KindBadRequest:
		return ErrBadRequest
	case KindUnauthorized:
		return ErrUnauthorized
	case KindForbidden:
		return ErrForbidden
	default:
		return ErrInternal
	}
}

func isSentinel(err error) bool {
	switch err {
	case ErrNotFound, ErrConflict, ErrInvalidState, ErrInvalidTransition,
		ErrValidation, ErrBadRequest, ErrUnauthorized, ErrForbidden, ErrInternal:
		return true
	}
	return false
}
