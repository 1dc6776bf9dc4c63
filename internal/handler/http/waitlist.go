package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/bouabca/hawiyat-site-sub000/internal/service"
	"github.com/bouabca/hawiyat-site-sub000/pkg/httputil"
	"github.com/bouabca/hawiyat-site-sub000/pkg/validator"
)

// WaitlistService records waitlist sign-ups.
type WaitlistService interface {
	Join(ctx context.Context, in service.JoinWaitlistInput) (*service.JoinWaitlistResult, error)
}

// WaitlistHandler serves the waitlist endpoint.
type WaitlistHandler struct {
	service WaitlistService
	logger  *slog.Logger
}

func NewWaitlistHandler(svc WaitlistService, logger *slog.Logger) *WaitlistHandler {
	return &WaitlistHandler{service: svc, logger: logger}
}

// JoinRequest is the waitlist form.
type JoinRequest struct {
	Email string `json:"email"`
}

// Join handles POST /api/v1/waitlist
func (h *WaitlistHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	res, err := h.service.Join(r.Context(), service.JoinWaitlistInput{
		Email:     req.Email,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, res)
}
