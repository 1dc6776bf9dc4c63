package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/bouabca/hawiyat-site-sub000/internal/auth"
	"github.com/bouabca/hawiyat-site-sub000/internal/config"
	"github.com/bouabca/hawiyat-site-sub000/internal/event"
	handler "github.com/bouabca/hawiyat-site-sub000/internal/handler/http"
	"github.com/bouabca/hawiyat-site-sub000/internal/notify"
	"github.com/bouabca/hawiyat-site-sub000/internal/oauth"
	"github.com/bouabca/hawiyat-site-sub000/internal/ratelimit"
	"github.com/bouabca/hawiyat-site-sub000/internal/repository/postgres"
	"github.com/bouabca/hawiyat-site-sub000/internal/service"
	"github.com/bouabca/hawiyat-site-sub000/migrations"
	"github.com/bouabca/hawiyat-site-sub000/pkg/database"
	"github.com/bouabca/hawiyat-site-sub000/pkg/health"
	"github.com/bouabca/hawiyat-site-sub000/pkg/httpclient"
	pkgkafka "github.com/bouabca/hawiyat-site-sub000/pkg/kafka"
	"github.com/bouabca/hawiyat-site-sub000/pkg/tracing"
)

// App wires together all dependencies and runs the accounts service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	ipLimiter      *handler.IPRateLimiter
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	if err := a.init(ctx); err != nil {
		a.release()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    handler.ServiceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	// Initialize PostgreSQL connection pool.
	a.pool, err = database.NewPostgresPool(ctx, database.PostgresConfig{
		URL:             cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: cfg.DBMaxConnLifetime,
		MaxConnIdleTime: cfg.DBMaxConnIdleTime,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL")
	database.RegisterPoolMetrics(a.pool, handler.ServiceName)

	if err := database.RunMigrations(ctx, a.pool, migrations.FS, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	a.redis, err = database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis")

	a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	mailer, err := a.newMailer()
	if err != nil {
		return err
	}

	// Build the dependency graph.
	users := postgres.NewUserRepository(a.pool)
	tokens := postgres.NewTokenRepository(a.pool)
	store := postgres.NewCredentialStore(a.pool)
	waitlist := postgres.NewWaitlistRepository(a.pool)

	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	sessions := auth.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL)
	events := event.NewProducer(a.producer, logger)
	emailLimiter := ratelimit.NewLimiter(a.redis, cfg.EmailRateInterval, cfg.EmailRateBurst)

	accountSvc := service.NewAccountService(service.AccountDeps{
		Users:    users,
		Tokens:   tokens,
		Store:    store,
		Hasher:   hasher,
		Mailer:   mailer,
		Limiter:  emailLimiter,
		Events:   events,
		NewToken: auth.NewToken,
	}, service.AccountConfig{
		VerificationTTL: cfg.VerificationTokenTTL,
		ResetTTL:        cfg.ResetTokenTTL,
	}, logger)
	sessionSvc := service.NewSessionService(users, hasher, sessions, cfg.RequireVerifiedLogin, logger)
	waitlistSvc := service.NewWaitlistService(waitlist, logger)

	providers := a.newProviderRegistry()
	logger.Info("identity providers enabled", slog.Any("providers", providers.IDs()))

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return a.pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return a.redis.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return a.producer.Ping(ctx)
	})

	cookie := handler.CookieConfig{Name: cfg.SessionCookie, Secure: !cfg.IsDevelopment()}
	guard, err := handler.NewGuard(handler.GuardConfig{
		Mode:              cfg.GuardMode,
		ProtectedPrefixes: cfg.GuardProtectedPrefixes,
		RedirectPath:      cfg.GuardRedirectPath,
	}, sessions, cookie, logger)
	if err != nil {
		return fmt.Errorf("configure route guard: %w", err)
	}
	a.ipLimiter = handler.NewIPRateLimiter(cfg.IPRateRPS, cfg.IPRateBurst, logger)

	router := handler.NewRouter(handler.RouterDeps{
		Auth:           handler.NewAuthHandler(accountSvc, sessionSvc, cookie, cfg.AppBaseURL, logger),
		OAuth:          handler.NewOAuthHandler(providers, accountSvc, sessionSvc, cookie, "/dashboard", logger),
		Waitlist:       handler.NewWaitlistHandler(waitlistSvc, logger),
		Guard:          guard,
		IPLimiter:      a.ipLimiter,
		Health:         healthHandler,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		Logger:         logger,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// newMailer returns the SMTP mailer, or a log-only mailer when no relay is
// configured. Outside development a missing relay is a startup error.
func (a *App) newMailer() (notify.Mailer, error) {
	cfg := a.cfg
	if !cfg.SMTPConfigured() {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("SMTP_HOST must be set in %q mode", cfg.Environment)
		}
		a.logger.Warn("SMTP not configured, emails will be logged")
		return notify.NewLogMailer(cfg.AppBaseURL, true, a.logger), nil
	}

	m, err := notify.NewSMTPMailer(notify.Config{
		AppName:         cfg.AppName,
		BaseURL:         cfg.AppBaseURL,
		Host:            cfg.SMTPHost,
		Port:            cfg.SMTPPort,
		User:            cfg.SMTPUser,
		Password:        cfg.SMTPPass,
		From:            cfg.SMTPFrom,
		Secure:          cfg.SMTPSecure,
		LogoPath:        cfg.EmailLogoPath,
		VerificationTTL: cfg.VerificationTokenTTL,
		ResetTTL:        cfg.ResetTokenTTL,
		SendTimeout:     cfg.SMTPSendTimeout,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init smtp mailer: %w", err)
	}
	return m, nil
}

func (a *App) newProviderRegistry() *oauth.Registry {
	cfg := a.cfg
	client := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.DefaultConfig()),
		httpclient.DefaultCircuitBreakerConfig("identity-providers"),
		a.logger,
	)
	creds := func(provider, id, secret string) oauth.Credentials {
		return oauth.Credentials{ClientID: id, ClientSecret: secret, RedirectURL: cfg.OAuthRedirectURL(provider)}
	}
	return oauth.NewDefaultRegistry(oauth.Settings{
		Google:    creds("google", cfg.GoogleClientID, cfg.GoogleClientSecret),
		GitHub:    creds("github", cfg.GitHubClientID, cfg.GitHubClientSecret),
		Bitbucket: creds("bitbucket", cfg.BitbucketClientID, cfg.BitbucketClientSecret),
	}, client)
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown stops all components in order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush spans from drained requests)
// 3. Kafka producer
// 4. Redis and PostgreSQL
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	errs = append(errs, a.release()...)

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// release flushes the tracer, then closes whatever init managed to open.
func (a *App) release() []error {
	var errs []error
	if err := a.shutdownTracer(); err != nil {
		errs = append(errs, err)
	}
	return append(errs, a.closeResources()...)
}

func (a *App) shutdownTracer() error {
	if a.tracerShutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := a.tracerShutdown(ctx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// closeResources releases the connections opened by init.
func (a *App) closeResources() []error {
	var errs []error
	if a.ipLimiter != nil {
		a.ipLimiter.Stop()
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errs
}
