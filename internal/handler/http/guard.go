package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/bouabca/hawiyat-site-sub000/internal/auth"
	"github.com/bouabca/hawiyat-site-sub000/internal/domain"
)

// Guard modes.
const (
	GuardModeSession  = "session"
	GuardModeWaitlist = "waitlist"
)

// SignInPath is where unauthenticated visitors of protected pages go.
const SignInPath = "/auth/signin"

// SessionParser validates a session token without touching storage.
type SessionParser interface {
	Parse(token string) (*auth.SessionClaims, error)
}

// GuardConfig selects which paths are protected and how.
type GuardConfig struct {
	Mode              string
	ProtectedPrefixes []string
	RedirectPath      string
}

// Guard decides, per request, whether a protected page may be served.
type Guard struct {
	cfg    GuardConfig
	parser SessionParser
	cookie CookieConfig
	logger *slog.Logger
}

// NewGuard validates cfg and returns a guard.
func NewGuard(cfg GuardConfig, parser SessionParser, cookie CookieConfig, logger *slog.Logger) (*Guard, error) {
	switch cfg.Mode {
	case "":
		cfg.Mode = GuardModeSession
	case GuardModeSession, GuardModeWaitlist:
	default:
		return nil, fmt.Errorf("unknown guard mode %q", cfg.Mode)
	}
	if cfg.RedirectPath == "" {
		cfg.RedirectPath = "/waitlist"
	}
	prefixes := make([]string, 0, len(cfg.ProtectedPrefixes))
	for _, p := range cfg.ProtectedPrefixes {
		if p = strings.TrimRight(strings.TrimSpace(p), "/"); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	cfg.ProtectedPrefixes = prefixes
	return &Guard{cfg: cfg, parser: parser, cookie: cookie, logger: logger}, nil
}

// Protects reports whether path falls under a protected prefix.
func (g *Guard) Protects(path string) bool {
	for _, p := range g.cfg.ProtectedPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Middleware redirects requests to protected paths that may not proceed.
// Other paths pass untouched.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Protects(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if g.cfg.Mode == GuardModeWaitlist {
			http.Redirect(w, r, g.cfg.RedirectPath, http.StatusFound)
			return
		}

		token := g.cookie.sessionToken(r)
		if token == "" {
			g.toSignIn(w, r)
			return
		}
		claims, err := g.parser.Parse(token)
		if err != nil {
			g.logger.DebugContext(r.Context(), "guard rejected session", slog.String("path", r.URL.Path))
			g.toSignIn(w, r)
			return
		}

		sess := &domain.Session{
			UserID: claims.Subject,
			Email:  claims.Email,
			Name:   claims.Name,
			Image:  claims.Image,
		}
		if claims.ExpiresAt != nil {
			sess.ExpiresAt = claims.ExpiresAt.Time
		}
		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))
	})
}

func (g *Guard) toSignIn(w http.ResponseWriter, r *http.Request) {
	target := SignInPath + "?" + url.Values{"callbackUrl": {r.URL.Path}}.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}
