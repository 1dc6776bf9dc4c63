package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error. Each kind maps to exactly one
// transport status through HTTPStatus.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindAuthentication
	KindForbidden
	KindRateLimited
	KindDatabase
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindAuthentication:
		return "authentication"
	case KindForbidden:
		return "forbidden"
	case KindRateLimited:
		return "rate_limited"
	case KindDatabase:
		return "database"
	default:
		return "internal"
	}
}

// Sentinels used by repositories and for errors.Is checks across layers.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrRateLimited   = errors.New("rate limited")
	ErrDatabase      = errors.New("database error")
	ErrInternal      = errors.New("internal error")
)

// AppError is a structured application error carrying its kind, a stable
// machine-readable code, a short human-readable message and optional details.
type AppError struct {
	Kind    Kind           `json:"-"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail attaches a structured detail and returns the same error.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Validation creates a 400 error with a specific code.
func Validation(code, message string) *AppError {
	return &AppError{Kind: KindValidation, Code: code, Message: message, Err: ErrInvalidInput}
}

// InvalidInput creates a generic 400 error.
func InvalidInput(message string) *AppError {
	return Validation("INVALID_INPUT", message)
}

// Conflict creates a 409 error.
func Conflict(code, message string) *AppError {
	return &AppError{Kind: KindConflict, Code: code, Message: message, Err: ErrAlreadyExists}
}

// AlreadyExists creates a 409 error for a duplicate unique field.
func AlreadyExists(resource, field string) *AppError {
	return Conflict("ALREADY_EXISTS", fmt.Sprintf("%s with this %s already exists", resource, field))
}

// NotFound creates a 404 error.
func NotFound(resource string) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
		Err:     ErrNotFound,
	}
}

// Authentication creates a 401 error.
func Authentication(message string) *AppError {
	return &AppError{Kind: KindAuthentication, Code: "UNAUTHORIZED", Message: message, Err: ErrUnauthorized}
}

// Forbidden creates a 403 error.
func Forbidden(code, message string) *AppError {
	return &AppError{Kind: KindForbidden, Code: code, Message: message, Err: ErrForbidden}
}

// RateLimited creates a 429 error.
func RateLimited(message string) *AppError {
	return &AppError{Kind: KindRateLimited, Code: "RATE_LIMITED", Message: message, Err: ErrRateLimited}
}

// Database wraps an unexpected persistence failure.
func Database(err error) *AppError {
	return &AppError{
		Kind:    KindDatabase,
		Code:    "DATABASE_ERROR",
		Message: "a database error occurred",
		Err:     errors.Join(ErrDatabase, err),
	}
}

// Internal wraps an unexpected failure with a caller-facing message.
func Internal(message string, err error) *AppError {
	if message == "" {
		message = "an internal error occurred"
	}
	return &AppError{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: message, Err: err}
}

// KindOf returns the kind of err. Untyped errors classify by sentinel,
// falling back to KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyExists):
		return KindConflict
	case errors.Is(err, ErrInvalidInput):
		return KindValidation
	case errors.Is(err, ErrUnauthorized):
		return KindAuthentication
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrDatabase):
		return KindDatabase
	default:
		return KindInternal
	}
}

// StatusFor maps a kind to its HTTP status.
func StatusFor(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	return StatusFor(KindOf(err))
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}
