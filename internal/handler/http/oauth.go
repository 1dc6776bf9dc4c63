package http

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bouabca/hawiyat-site-sub000/internal/auth"
	"github.com/bouabca/hawiyat-site-sub000/internal/oauth"
	apperrors "github.com/bouabca/hawiyat-site-sub000/pkg/errors"
	"github.com/bouabca/hawiyat-site-sub000/pkg/httputil"
)

const (
	stateCookieName = "hawiyat_oauth_state"
	stateCookiePath = "/api/v1/auth/oauth"
	stateTTL        = 10 * time.Minute
)

// ProviderRegistry looks up configured identity providers.
type ProviderRegistry interface {
	Get(id string) (oauth.Provider, bool)
}

// OAuthHandler runs the authorization-code flow for registered providers.
type OAuthHandler struct {
	providers   ProviderRegistry
	accounts    AccountService
	sessions    SessionService
	cookie      CookieConfig
	successPath string
	logger      *slog.Logger
}

// NewOAuthHandler creates the handler. After a successful callback the
// browser is sent to successPath.
func NewOAuthHandler(providers ProviderRegistry, accounts AccountService, sessions SessionService, cookie CookieConfig, successPath string, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		providers:   providers,
		accounts:    accounts,
		sessions:    sessions,
		cookie:      cookie,
		successPath: successPath,
		logger:      logger,
	}
}

// Begin handles GET /api/v1/auth/oauth/{provider}
func (h *OAuthHandler) Begin(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w, r)
	if !ok {
		return
	}

	state, err := auth.NewToken()
	if err != nil {
		httputil.WriteError(w, r, apperrors.Internal("", err), h.logger)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     stateCookiePath,
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, p.AuthCodeURL(state), http.StatusFound)
}

// Callback handles GET /api/v1/auth/oauth/{provider}/callback
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	q := r.URL.Query()

	if e := q.Get("error"); e != "" {
		httputil.WriteError(w, r, apperrors.Authentication("Sign-in was cancelled or denied by the identity provider"), h.logger)
		return
	}

	ck, err := r.Cookie(stateCookieName)
	state := q.Get("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(ck.Value), []byte(state)) != 1 {
		httputil.WriteError(w, r, apperrors.Validation("INVALID_STATE", "Sign-in request expired or was tampered with. Please try again."), h.logger)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: stateCookiePath, MaxAge: -1, HttpOnly: true})

	code := q.Get("code")
	if code == "" {
		httputil.WriteError(w, r, apperrors.Validation("MISSING_CODE", "Missing authorization code"), h.logger)
		return
	}

	tok, err := p.Exchange(ctx, code)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	profile, err := p.FetchProfile(ctx, tok)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	user, err := h.accounts.LinkOAuthAccount(ctx, p.ID(), profile)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	res, err := h.sessions.Issue(ctx, user)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookie.set(w, res.Token, res.ExpiresAt)
	http.Redirect(w, r, h.successPath, http.StatusFound)
}

func (h *OAuthHandler) provider(w http.ResponseWriter, r *http.Request) (oauth.Provider, bool) {
	id := chi.URLParam(r, "provider")
	p, ok := h.providers.Get(id)
	if !ok {
		err := apperrors.NotFound("identity provider")
		err.Code = "UNKNOWN_PROVIDER"
		httputil.WriteError(w, r, err, h.logger)
		return nil, false
	}
	return p, true
}
