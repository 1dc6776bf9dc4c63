package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bouabca/hawiyat-site-sub000/internal/domain"
	"github.com/bouabca/hawiyat-site-sub000/pkg/logger"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

func (c CookieConfig) set(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c CookieConfig) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionToken returns the bearer token, or the session cookie when no
// Authorization header is present.
func (c CookieConfig) sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if ck, err := r.Cookie(c.Name); err == nil {
		return ck.Value
	}
	return ""
}

type sessionKey struct{}

// SessionFromContext returns the session resolved by the guard, if any.
func SessionFromContext(ctx context.Context) (*domain.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*domain.Session)
	return s, ok
}

func withSession(ctx context.Context, s *domain.Session) context.Context {
	ctx = logger.WithUserID(ctx, s.UserID)
	return context.WithValue(ctx, sessionKey{}, s)
}
