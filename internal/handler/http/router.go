package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bouabca/hawiyat-site-sub000/pkg/health"
	"github.com/bouabca/hawiyat-site-sub000/pkg/httputil"
	"github.com/bouabca/hawiyat-site-sub000/pkg/middleware"
)

// ServiceName labels metrics and traces.
const ServiceName = "accounts"

// RouterDeps are the handlers and middleware the router mounts.
type RouterDeps struct {
	Auth           *AuthHandler
	OAuth          *OAuthHandler
	Waitlist       *WaitlistHandler
	Guard          *Guard
	IPLimiter      *IPRateLimiter
	Health         *health.Handler
	AllowedOrigins []string
	PprofCIDRs     []string
	Logger         *slog.Logger
}

// NewRouter creates a chi router with all account routes registered.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestLogging(d.Logger))
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(d.AllowedOrigins)))
	r.Use(d.Guard.Middleware)

	// Health check endpoints
	r.Get("/health/live", d.Health.Liveness)
	r.Get("/health/ready", d.Health.Readiness)
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, d.PprofCIDRs, d.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(d.IPLimiter.Middleware)
		r.Use(middleware.NoStore)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", d.Auth.SignUp)
			r.Get("/verify-email", d.Auth.VerifyEmail)
			r.Post("/resend-verification", d.Auth.ResendVerification)
			r.Post("/forgot-password", d.Auth.ForgotPassword)
			r.Post("/validate-reset-token", d.Auth.ValidateResetToken)
			r.Post("/reset-password", d.Auth.ResetPassword)
			r.Post("/login", d.Auth.Login)
			r.Post("/logout", d.Auth.Logout)
			r.Get("/session", d.Auth.Session)

			r.Get("/oauth/{provider}", d.OAuth.Begin)
			r.Get("/oauth/{provider}/callback", d.OAuth.Callback)
		})

		r.Post("/waitlist", d.Waitlist.Join)
	})

	// Protected pages. The guard has already run; these only confirm who
	// is signed in.
	for _, p := range d.Guard.cfg.ProtectedPrefixes {
		r.Get(p, protectedPage)
		r.Get(p+"/*", protectedPage)
	}

	return r
}

func protectedPage(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	httputil.WriteData(w, http.StatusOK, map[string]any{"path": r.URL.Path, "session": sess})
}
