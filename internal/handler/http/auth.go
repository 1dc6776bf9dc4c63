package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bouabca/hawiyat-site-sub000/internal/domain"
	"github.com/bouabca/hawiyat-site-sub000/internal/oauth"
	"github.com/bouabca/hawiyat-site-sub000/internal/service"
	"github.com/bouabca/hawiyat-site-sub000/pkg/httputil"
	"github.com/bouabca/hawiyat-site-sub000/pkg/validator"
)

// AccountService is the account lifecycle used by the handlers.
type AccountService interface {
	SignUp(ctx context.Context, in service.SignUpInput) (*service.SignUpResult, error)
	VerifyEmail(ctx context.Context, token, email string) (*domain.User, error)
	ResendVerification(ctx context.Context, email string) (string, error)
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ValidateResetToken(ctx context.Context, token, email string) (*service.ResetTokenStatus, error)
	ConfirmPasswordReset(ctx context.Context, in service.ConfirmPasswordResetInput) error
	LinkOAuthAccount(ctx context.Context, provider string, p *oauth.Profile) (*domain.User, error)
}

// SessionService issues and resolves sessions.
type SessionService interface {
	Login(ctx context.Context, email, password string) (*service.SessionResult, error)
	Issue(ctx context.Context, u *domain.User) (*service.SessionResult, error)
	Refresh(ctx context.Context, token string) (*domain.Session, error)
}

// AuthHandler serves the credential lifecycle endpoints.
type AuthHandler struct {
	accounts AccountService
	sessions SessionService
	cookie   CookieConfig
	baseURL  string
	logger   *slog.Logger
}

// NewAuthHandler creates the auth handler. baseURL is the public site
// address used for post-verification redirects.
func NewAuthHandler(accounts AccountService, sessions SessionService, cookie CookieConfig, baseURL string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		sessions: sessions,
		cookie:   cookie,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
	}
}

// --- Request DTOs ---

// SignUpRequest is the signup form. Presence and format are checked by the
// account service so its messages reach the client unchanged.
type SignUpRequest struct {
	Email     string `json:"email" validate:"max=254"`
	Password  string `json:"password" validate:"max=128"`
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
}

// EmailRequest carries a single address.
type EmailRequest struct {
	Email string `json:"email" validate:"max=254"`
}

// ResetTokenRequest identifies a reset link.
type ResetTokenRequest struct {
	Token string `json:"token"`
	Email string `json:"email" validate:"max=254"`
}

// ResetPasswordRequest completes a password reset.
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Email    string `json:"email" validate:"max=254"`
	Password string `json:"password" validate:"max=128"`
}

// LoginRequest is the credential login form.
type LoginRequest struct {
	Email    string `json:"email" validate:"max=254"`
	Password string `json:"password" validate:"max=128"`
}

// --- Response types ---

type messageResponse struct {
	Message string `json:"message"`
}

type resetResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type loginResponse struct {
	Token   string         `json:"token"`
	Expires time.Time      `json:"expires"`
	Session domain.Session `json:"session"`
}

// --- Handlers ---

// SignUp handles POST /api/v1/auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	res, err := h.accounts.SignUp(r.Context(), service.SignUpInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, res)
}

// VerifyEmail handles GET /api/v1/auth/verify-email. It is reached from
// the emailed link, so success redirects to the site.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if _, err := h.accounts.VerifyEmail(r.Context(), q.Get("token"), q.Get("email")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	http.Redirect(w, r, h.baseURL+"/auth/verification-success?verified=true", http.StatusFound)
}

// ResendVerification handles POST /api/v1/auth/resend-verification
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	msg, err := h.accounts.ResendVerification(r.Context(), req.Email)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, messageResponse{Message: msg})
}

// ForgotPassword handles POST /api/v1/auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	msg, err := h.accounts.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, messageResponse{Message: msg})
}

// ValidateResetToken handles POST /api/v1/auth/validate-reset-token
func (h *AuthHandler) ValidateResetToken(w http.ResponseWriter, r *http.Request) {
	var req ResetTokenRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	status, err := h.accounts.ValidateResetToken(r.Context(), req.Token, req.Email)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, status)
}

// ResetPassword handles POST /api/v1/auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	err := h.accounts.ConfirmPasswordReset(r.Context(), service.ConfirmPasswordResetInput{
		Token:    req.Token,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, resetResponse{Success: true, Message: service.PasswordChangedMessage})
}

// Login handles POST /api/v1/auth/login. The token is returned in the body
// and also set as an HttpOnly cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	res, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookie.set(w, res.Token, res.ExpiresAt)
	httputil.WriteData(w, http.StatusOK, loginResponse{
		Token:   res.Token,
		Expires: res.ExpiresAt,
		Session: res.Session,
	})
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookie.clear(w)
	httputil.WriteData(w, http.StatusOK, messageResponse{Message: "Signed out"})
}

// Session handles GET /api/v1/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	token := h.cookie.sessionToken(r)
	if token == "" {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{Error: &httputil.ErrorResponse{
			Code:    "UNAUTHORIZED",
			Message: "authentication required",
		}})
		return
	}

	sess, err := h.sessions.Refresh(r.Context(), token)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, sess)
}
