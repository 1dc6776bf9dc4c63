package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bouabca/hawiyat-site-sub000/internal/domain"
	"github.com/bouabca/hawiyat-site-sub000/internal/repository"
	apperrors "github.com/bouabca/hawiyat-site-sub000/pkg/errors"
	"github.com/bouabca/hawiyat-site-sub000/pkg/logger"
)

// SessionResult is a signed session and its caller-facing view.
type SessionResult struct {
	Token     string         `json:"-"`
	ExpiresAt time.Time      `json:"expires"`
	Session   domain.Session `json:"session"`
}

// SessionService signs users in and resolves session tokens.
type SessionService struct {
	users           repository.UserRepository
	hasher          PasswordHasher
	tokens          SessionTokens
	requireVerified bool
	// dummyHash is compared against when the account does not exist so both
	// paths pay for one bcrypt comparison.
	dummyHash string
	logger    *slog.Logger
}

// NewSessionService creates a session service. When requireVerified is set,
// credential login is refused until the email is confirmed.
func NewSessionService(users repository.UserRepository, hasher PasswordHasher, tokens SessionTokens, requireVerified bool, logger *slog.Logger) *SessionService {
	dummy, err := hasher.Hash("hawiyat-dummy-password")
	if err != nil {
		dummy = ""
	}
	return &SessionService{
		users:           users,
		hasher:          hasher,
		tokens:          tokens,
		requireVerified: requireVerified,
		dummyHash:       dummy,
		logger:          logger,
	}
}

// Login checks credentials and issues a session. Unknown emails, accounts
// without a password and wrong passwords share one error.
func (s *SessionService) Login(ctx context.Context, email, password string) (_ *SessionResult, err error) {
	ctx, end := startSpan(ctx, "SessionService.Login")
	defer func() { end(err) }()

	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperrors.Validation("MISSING_FIELDS", "Email and password are required")
	}
	email = domain.NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}
	if user == nil || !user.HasPassword() {
		s.hasher.Matches(s.dummyHash, password)
		loginsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, errInvalidCredentials()
	}
	if !s.hasher.Matches(user.PasswordHash, password) {
		loginsTotal.WithLabelValues("invalid_credentials").Inc()
		s.logger.InfoContext(ctx, "login rejected", slog.String("email", logger.MaskEmail(email)))
		return nil, errInvalidCredentials()
	}
	if s.requireVerified && !user.IsVerified() {
		loginsTotal.WithLabelValues("unverified").Inc()
		return nil, apperrors.Forbidden("EMAIL_NOT_VERIFIED", "Please verify your email address before signing in")
	}

	res, err := s.Issue(ctx, user)
	if err != nil {
		return nil, err
	}
	loginsTotal.WithLabelValues("success").Inc()
	return res, nil
}

// Issue signs a session for an already authenticated user.
func (s *SessionService) Issue(ctx context.Context, u *domain.User) (*SessionResult, error) {
	token, expires, err := s.tokens.Issue(u)
	if err != nil {
		return nil, apperrors.Internal("", err)
	}

	s.logger.InfoContext(ctx, "session issued", slog.String("user_id", u.ID))
	return &SessionResult{
		Token:     token,
		ExpiresAt: expires,
		Session: domain.Session{
			UserID:    u.ID,
			Email:     u.Email,
			Name:      u.Name,
			Image:     u.Image,
			ExpiresAt: expires,
		},
	}, nil
}

// Refresh resolves a session token to its current view. The profile is
// re-read from the user store; if that read fails the claims carried in the
// token are returned unchanged.
func (s *SessionService) Refresh(ctx context.Context, token string) (*domain.Session, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
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

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		s.logger.WarnContext(ctx, "session refresh fell back to token claims",
			slog.String("user_id", claims.Subject),
			slog.String("error", err.Error()),
		)
		return sess, nil
	}

	sess.Email = user.Email
	sess.Name = user.Name
	sess.Image = user.Image
	return sess, nil
}

func errInvalidCredentials() *apperrors.AppError {
	e := apperrors.Authentication("Invalid email or password")
	e.Code = "INVALID_CREDENTIALS"
	return e
}
