package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/bouabca/hawiyat-site-sub000/pkg/errors"
	"github.com/bouabca/hawiyat-site-sub000/pkg/logger"
	"github.com/bouabca/hawiyat-site-sub000/pkg/validator"
)

// Response is the JSON envelope for every API response.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is the error half of the envelope.
type ErrorResponse struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// WriteJSON writes v with the given status. Responses are never cached.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData writes a success envelope.
func WriteData(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, Response{Data: data})
}

// WriteError translates err into the error envelope. Database and internal
// failures are logged and replaced with a generic message; every other kind
// surfaces its own message.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	requestID := logger.CorrelationIDFromContext(r.Context())

	kind := apperrors.KindOf(err)
	status := apperrors.StatusFor(kind)

	resp := &ErrorResponse{RequestID: requestID}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Code = appErr.Code
		resp.Message = appErr.Message
		resp.Details = appErr.Details
	} else {
		resp.Code, resp.Message = defaultCode(kind)
	}

	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		if kind == apperrors.KindDatabase || appErr == nil {
			resp.Code, resp.Message = defaultCode(kind)
			resp.Details = nil
		}
	}

	WriteJSON(w, status, Response{Error: resp})
}

func defaultCode(kind apperrors.Kind) (string, string) {
	switch kind {
	case apperrors.KindValidation:
		return "INVALID_INPUT", "invalid input"
	case apperrors.KindConflict:
		return "ALREADY_EXISTS", "resource already exists"
	case apperrors.KindNotFound:
		return "NOT_FOUND", "resource not found"
	case apperrors.KindAuthentication:
		return "UNAUTHORIZED", "authentication required"
	case apperrors.KindForbidden:
		return "FORBIDDEN", "forbidden"
	case apperrors.KindRateLimited:
		return "RATE_LIMITED", "too many requests"
	case apperrors.KindDatabase:
		return "DATABASE_ERROR", "a database error occurred"
	default:
		return "INTERNAL_ERROR", "an unexpected error occurred, please try again later"
	}
}

// WriteValidationError writes a 400 envelope for a decode or validation failure.
func WriteValidationError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := logger.CorrelationIDFromContext(r.Context())

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		details := make(map[string]any, len(valErr.Errors))
		for k, v := range valErr.Fields() {
			details[k] = v
		}
		WriteJSON(w, http.StatusBadRequest, Response{Error: &ErrorResponse{
			Code:      "VALIDATION_ERROR",
			Message:   "request validation failed",
			Details:   details,
			RequestID: requestID,
		}})
		return
	}

	WriteJSON(w, http.StatusBadRequest, Response{Error: &ErrorResponse{
		Code:      "INVALID_INPUT",
		Message:   "invalid request body",
		RequestID: requestID,
	}})
}
