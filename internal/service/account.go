package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bouabca/hawiyat-site-sub000/internal/domain"
	"github.com/bouabca/hawiyat-site-sub000/internal/notify"
	"github.com/bouabca/hawiyat-site-sub000/internal/oauth"
	"github.com/bouabca/hawiyat-site-sub000/internal/repository"
	apperrors "github.com/bouabca/hawiyat-site-sub000/pkg/errors"
	"github.com/bouabca/hawiyat-site-sub000/pkg/logger"
)

// Messages returned regardless of whether the address has an account.
const (
	ResendVerificationMessage = "If an account with this email exists and is unverified, a new verification email has been sent."
	PasswordResetMessage      = "If an account with that email exists, we've sent you reset instructions"
	SignUpMessage             = "Account created successfully! Please check your email to verify your account before signing in."
	PasswordChangedMessage    = "Password reset successfully. You can now sign in with your new password."
)

// Limiter scopes.
const (
	scopeResendVerification = "resend-verification"
	scopePasswordReset      = "password-reset"
)

// AccountConfig holds token lifetimes.
type AccountConfig struct {
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

// DefaultAccountConfig returns 24h verification and 1h reset lifetimes.
func DefaultAccountConfig() AccountConfig {
	return AccountConfig{VerificationTTL: 24 * time.Hour, ResetTTL: time.Hour}
}

// AccountDeps are the collaborators of AccountService.
type AccountDeps struct {
	Users   repository.UserRepository
	Tokens  repository.TokenRepository
	Store   repository.CredentialStore
	Hasher  PasswordHasher
	Mailer  notify.Mailer
	Limiter EmailLimiter
	Events  EventPublisher
	// NewToken generates verification token values.
	NewToken func() (string, error)
}

// AccountService orchestrates signup, email verification, password reset
// and identity-provider linking.
type AccountService struct {
	users    repository.UserRepository
	tokens   repository.TokenRepository
	store    repository.CredentialStore
	hasher   PasswordHasher
	mailer   notify.Mailer
	limiter  EmailLimiter
	events   EventPublisher
	newToken func() (string, error)
	cfg      AccountConfig
	now      func() time.Time
	logger   *slog.Logger
}

// NewAccountService creates an account service.
func NewAccountService(deps AccountDeps, cfg AccountConfig, logger *slog.Logger) *AccountService {
	return &AccountService{
		users:    deps.Users,
		tokens:   deps.Tokens,
		store:    deps.Store,
		hasher:   deps.Hasher,
		mailer:   deps.Mailer,
		limiter:  deps.Limiter,
		events:   deps.Events,
		newToken: deps.NewToken,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger,
	}
}

// SignUpInput holds the signup form.
type SignUpInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// SignUpResult is returned by SignUp. Signup never signs the user in.
type SignUpResult struct {
	User                 domain.PublicUser `json:"user"`
	RequiresVerification bool              `json:"requiresVerification"`
	Message              string            `json:"message"`
}

// SignUp creates an unverified account and emails a verification link. If
// the email cannot be sent the account and token are removed again.
func (s *AccountService) SignUp(ctx context.Context, in SignUpInput) (_ *SignUpResult, err error) {
	ctx, end := startSpan(ctx, "AccountService.SignUp")
	defer func() { end(err) }()

	firstName, lastName := strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName)
	if strings.TrimSpace(in.Email) == "" || in.Password == "" || firstName == "" || lastName == "" {
		return nil, apperrors.Validation("MISSING_FIELDS", "All fields are required")
	}

	email := domain.NormalizeEmail(in.Email)
	if !domain.ValidEmail(email) {
		return nil, errInvalidEmail()
	}
	if err := domain.CheckPasswordLength(in.Password); err != nil {
		return nil, err
	}

	// The unique index on email is what actually prevents duplicates; this
	// lookup only gives the common case a fast answer.
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, errUserExists()
	} else if !apperrors.IsNotFound(err) {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	tok, err := s.issueToken(email, s.cfg.VerificationTTL)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         domain.FullName(firstName, lastName),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateUserWithToken(ctx, user, tok); err != nil {
		if apperrors.IsConflict(err) {
			return nil, errUserExists()
		}
		return nil, err
	}

	sendErr := s.mailer.SendVerificationEmail(ctx, email, user.Name, tok.Token)
	recordEmail(notify.TemplateVerification, sendErr)
	if errors.Is(sendErr, notify.ErrDeliveryUnknown) {
		// The relay may still deliver the link, so the account stays and
		// the user can ask for a new email.
		s.logger.WarnContext(ctx, "verification email outcome unknown, keeping account",
			slog.String("user_id", user.ID),
			slog.String("email", logger.MaskEmail(email)),
		)
		return nil, emailSendFailed("Verification email may be delayed. If it does not arrive, request a new one.", sendErr)
	}
	if sendErr != nil {
		s.logger.ErrorContext(ctx, "verification email failed, removing account",
			slog.String("user_id", user.ID),
			slog.String("email", logger.MaskEmail(email)),
			slog.String("error", sendErr.Error()),
		)
		cctx, cancel := detached(ctx)
		defer cancel()
		if err := s.store.DeleteUserWithToken(cctx, user.ID, tok.Token); err != nil {
			s.logger.ErrorContext(ctx, "failed to remove account after email failure",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, emailSendFailed("Failed to send verification email. Please try again.", sendErr)
	}

	signupsTotal.Inc()
	s.publish(ctx, domain.EventUserRegistered, s.events.PublishUserRegistered(ctx, user))
	s.logger.InfoContext(ctx, "user signed up",
		slog.String("user_id", user.ID),
		slog.String("email", logger.MaskEmail(email)),
	)

	return &SignUpResult{User: user.Public(), RequiresVerification: true, Message: SignUpMessage}, nil
}

// VerifyEmail consumes a verification token for email. A token can be used
// once; a second attempt fails with INVALID_TOKEN.
func (s *AccountService) VerifyEmail(ctx context.Context, token, email string) (_ *domain.User, err error) {
	ctx, end := startSpan(ctx, "AccountService.VerifyEmail")
	defer func() { end(err) }()

	if token == "" || strings.TrimSpace(email) == "" {
		return nil, apperrors.Validation("MISSING_PARAMETERS", "Missing verification token or email")
	}
	email = domain.NormalizeEmail(email)

	tok, err := s.lookupToken(ctx, token, errInvalidVerificationToken)
	if err != nil {
		return nil, err
	}
	if tok.Expired(s.now()) {
		s.discardToken(ctx, token)
		return nil, apperrors.Validation("TOKEN_EXPIRED", "Verification token has expired. Please request a new one.")
	}
	if !tok.IssuedFor(email) {
		return nil, apperrors.Validation("TOKEN_MISMATCH", "Token does not match email address")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.discardToken(ctx, token)
			return nil, errInvalidVerificationToken()
		}
		return nil, err
	}

	verifiedAt := s.now().UTC()
	if err := s.store.ConsumeVerificationToken(ctx, token, user.ID, verifiedAt); err != nil {
		switch {
		case errors.Is(err, repository.ErrTokenConsumed):
			return nil, errInvalidVerificationToken()
		case apperrors.IsNotFound(err):
			// User deleted after the lookup; the rollback left the token behind.
			s.discardToken(ctx, token)
			return nil, errInvalidVerificationToken()
		default:
			return nil, err
		}
	}
	user.EmailVerified = &verifiedAt
	user.UpdatedAt = verifiedAt

	s.logger.InfoContext(ctx, "email verified",
		slog.String("user_id", user.ID),
		slog.String("email", logger.MaskEmail(email)),
	)
	s.publish(ctx, domain.EventUserEmailVerified, s.events.PublishEmailVerified(ctx, user))

	welcomeErr := s.mailer.SendWelcomeEmail(ctx, email, user.Name)
	recordEmail(notify.TemplateWelcome, welcomeErr)
	if welcomeErr != nil {
		s.logger.WarnContext(ctx, "welcome email failed",
			slog.String("user_id", user.ID),
			slog.String("error", welcomeErr.Error()),
		)
	}

	return user, nil
}

// ResendVerification replaces any outstanding token for email with a new
// one and sends it. Unknown addresses get the same response as known ones.
func (s *AccountService) ResendVerification(ctx context.Context, email string) (_ string, err error) {
	ctx, end := startSpan(ctx, "AccountService.ResendVerification")
	defer func() { end(err) }()

	email, err = s.admitEmail(ctx, scopeResendVerification, email)
	if err != nil {
		return "", err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return ResendVerificationMessage, nil
		}
		return "", err
	}
	if user.IsVerified() {
		return "", apperrors.Validation("ALREADY_VERIFIED", "This email address is already verified")
	}

	tok, err := s.replaceToken(ctx, email, s.cfg.VerificationTTL)
	if err != nil {
		return "", err
	}

	sendErr := s.mailer.SendVerificationEmail(ctx, email, user.Name, tok.Token)
	recordEmail(notify.TemplateVerification, sendErr)
	if sendErr != nil {
		s.logger.ErrorContext(ctx, "verification email resend failed",
			slog.String("user_id", user.ID),
			slog.String("error", sendErr.Error()),
		)
		s.discardToken(ctx, tok.Token)
		return "", emailSendFailed("Failed to send verification email. Please try again later.", sendErr)
	}

	s.logger.InfoContext(ctx, "verification email resent", slog.String("user_id", user.ID))
	return ResendVerificationMessage, nil
}

// RequestPasswordReset emails a one-hour reset link. The generic message
// is returned only once the email is on its way; a failed send is a 500.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) (_ string, err error) {
	ctx, end := startSpan(ctx, "AccountService.RequestPasswordReset")
	defer func() { end(err) }()

	email, err = s.admitEmail(ctx, scopePasswordReset, email)
	if err != nil {
		return "", err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return PasswordResetMessage, nil
		}
		return "", err
	}

	tok, err := s.replaceToken(ctx, email, s.cfg.ResetTTL)
	if err != nil {
		return "", err
	}

	name := user.Name
	if name == "" {
		name = email[:strings.Index(email, "@")]
	}

	sendErr := s.mailer.SendPasswordResetEmail(ctx, email, name, tok.Token)
	recordEmail(notify.TemplateReset, sendErr)
	if sendErr != nil {
		s.logger.ErrorContext(ctx, "password reset email failed",
			slog.String("user_id", user.ID),
			slog.String("error", sendErr.Error()),
		)
		s.discardToken(ctx, tok.Token)
		return "", emailSendFailed("Failed to send reset email. Please try again.", sendErr)
	}

	s.logger.InfoContext(ctx, "password reset requested", slog.String("user_id", user.ID))
	return PasswordResetMessage, nil
}

// ResetTokenStatus is the result of ValidateResetToken.
type ResetTokenStatus struct {
	Valid   bool   `json:"valid"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// ValidateResetToken reports whether a reset link can still be used,
// without consuming it. Expired and orphaned tokens are deleted.
func (s *AccountService) ValidateResetToken(ctx context.Context, token, email string) (_ *ResetTokenStatus, err error) {
	ctx, end := startSpan(ctx, "AccountService.ValidateResetToken")
	defer func() { end(err) }()

	if token == "" || strings.TrimSpace(email) == "" {
		return nil, apperrors.Validation("MISSING_PARAMETERS", "Reset token and email are required")
	}
	email = domain.NormalizeEmail(email)

	if _, err := s.checkResetToken(ctx, token, email, errResetUserMissingInvalid); err != nil {
		return nil, err
	}
	return &ResetTokenStatus{Valid: true, Email: email, Message: "Reset token is valid"}, nil
}

// ConfirmPasswordResetInput holds the reset form.
type ConfirmPasswordResetInput struct {
	Token    string
	Email    string
	Password string
}

// ConfirmPasswordReset sets a new password. The token delete, the password
// write and the removal of sibling tokens commit together.
func (s *AccountService) ConfirmPasswordReset(ctx context.Context, in ConfirmPasswordResetInput) (err error) {
	ctx, end := startSpan(ctx, "AccountService.ConfirmPasswordReset")
	defer func() { end(err) }()

	if in.Token == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return apperrors.Validation("MISSING_PARAMETERS", "Reset token and new password are required")
	}
	if err := domain.CheckPasswordStrength(in.Password); err != nil {
		return err
	}
	email := domain.NormalizeEmail(in.Email)

	user, err := s.checkResetToken(ctx, in.Token, email, errResetUserMissing)
	if err != nil {
		return err
	}

	if user.HasPassword() && s.hasher.Matches(user.PasswordHash, in.Password) {
		return apperrors.Validation("SAME_PASSWORD", "New password must be different from your current password")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return err
	}

	if err := s.store.ConsumeResetToken(ctx, in.Token, user.ID, hash, email, s.now().UTC()); err != nil {
		switch {
		case errors.Is(err, repository.ErrTokenConsumed):
			return apperrors.Validation("INVALID_TOKEN", "Reset link is no longer valid. Please request a new password reset.")
		case apperrors.IsNotFound(err):
			return errResetUserMissing()
		default:
			return err
		}
	}

	s.logger.InfoContext(ctx, "password reset completed", slog.String("user_id", user.ID))
	s.publish(ctx, domain.EventUserPasswordReset, s.events.PublishPasswordReset(ctx, user.ID, email))
	return nil
}

// LinkOAuthAccount creates or refreshes the local account for a provider
// sign-in. New accounts have no password. Existing accounts only take
// non-empty name and image values from the provider.
func (s *AccountService) LinkOAuthAccount(ctx context.Context, provider string, p *oauth.Profile) (_ *domain.User, err error) {
	ctx, end := startSpan(ctx, "AccountService.LinkOAuthAccount")
	defer func() { end(err) }()

	email := domain.NormalizeEmail(p.Email)
	if email == "" || !domain.ValidEmail(email) {
		return nil, apperrors.Authentication("No email address was provided by the identity provider")
	}

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
	case apperrors.IsNotFound(err):
		user, err = s.createOAuthUser(ctx, provider, email, p)
		if err == nil {
			s.publish(ctx, domain.EventUserOAuthLinked, s.events.PublishOAuthLinked(ctx, user, provider, true))
			return user, nil
		}
		if !apperrors.IsConflict(err) {
			return nil, err
		}
		// Lost a race with a concurrent first sign-in; update that row.
		if user, err = s.users.GetByEmail(ctx, email); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	changed := false
	if p.Name != "" && p.Name != user.Name {
		user.Name = p.Name
		changed = true
	}
	if p.Image != "" && p.Image != user.Image {
		user.Image = p.Image
		changed = true
	}
	if user.OAuthProvider == "" {
		user.OAuthProvider, user.OAuthID = provider, p.ID
		changed = true
	}
	if changed {
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
	}

	s.logger.InfoContext(ctx, "oauth sign-in linked",
		slog.String("user_id", user.ID),
		slog.String("provider", provider),
	)
	s.publish(ctx, domain.EventUserOAuthLinked, s.events.PublishOAuthLinked(ctx, user, provider, false))
	return user, nil
}

func (s *AccountService) createOAuthUser(ctx context.Context, provider, email string, p *oauth.Profile) (*domain.User, error) {
	name := p.Name
	if name == "" {
		name = email
	}
	now := s.now().UTC()
	user := &domain.User{
		ID:            uuid.New().String(),
		Email:         email,
		Name:          name,
		Image:         p.Image,
		OAuthProvider: provider,
		OAuthID:       p.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "account created from identity provider",
		slog.String("user_id", user.ID),
		slog.String("provider", provider),
	)
	return user, nil
}

// admitEmail validates and normalizes an address for the throttled
// operations, then takes a token from its bucket. The bucket is checked
// before any lookup so a 429 says nothing about the account.
func (s *AccountService) admitEmail(ctx context.Context, scope, email string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", apperrors.Validation("EMAIL_REQUIRED", "Email is required")
	}
	email = domain.NormalizeEmail(email)
	if !domain.ValidEmail(email) {
		return "", errInvalidEmail()
	}

	decision, err := s.limiter.Allow(ctx, scope, email)
	if err != nil {
		s.logger.WarnContext(ctx, "email rate limiter unavailable, allowing request",
			slog.String("scope", scope),
			slog.String("error", err.Error()),
		)
		return email, nil
	}
	if !decision.Allowed {
		return "", apperrors.RateLimited("Too many requests. Please wait before trying again.").
			WithDetail("retry_after_seconds", int(math.Ceil(decision.RetryAfter.Seconds())))
	}
	return email, nil
}

// checkResetToken runs the validation shared by validate and confirm. The
// caller decides how a missing user is reported.
func (s *AccountService) checkResetToken(ctx context.Context, token, email string, userMissing func() *apperrors.AppError) (*domain.User, error) {
	tok, err := s.lookupToken(ctx, token, errInvalidResetToken)
	if err != nil {
		return nil, err
	}
	if tok.Expired(s.now()) {
		s.discardToken(ctx, token)
		return nil, apperrors.Validation("TOKEN_EXPIRED", "Reset link has expired. Please request a new password reset.")
	}
	if !tok.IssuedFor(email) {
		return nil, apperrors.Validation("TOKEN_MISMATCH", "Invalid reset link. Email does not match.")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.discardToken(ctx, token)
			return nil, userMissing()
		}
		return nil, err
	}
	return user, nil
}

func (s *AccountService) lookupToken(ctx context.Context, token string, invalid func() *apperrors.AppError) (*domain.VerificationToken, error) {
	tok, err := s.tokens.GetByToken(ctx, token)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, invalid()
		}
		return nil, err
	}
	return tok, nil
}

func (s *AccountService) issueToken(email string, ttl time.Duration) (*domain.VerificationToken, error) {
	value, err := s.newToken()
	if err != nil {
		return nil, apperrors.Internal("", err)
	}
	return &domain.VerificationToken{
		Token:      value,
		Identifier: email,
		Expires:    s.now().UTC().Add(ttl),
	}, nil
}

// replaceToken deletes every outstanding token for email and stores a new
// one.
func (s *AccountService) replaceToken(ctx context.Context, email string, ttl time.Duration) (*domain.VerificationToken, error) {
	if _, err := s.tokens.DeleteByIdentifier(ctx, email); err != nil {
		return nil, err
	}
	tok, err := s.issueToken(email, ttl)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Create(ctx, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// discardToken deletes a token as a side effect of rejecting it. Failure
// only leaves an unusable row behind, so it is logged.
func (s *AccountService) discardToken(ctx context.Context, token string) {
	cctx, cancel := detached(ctx)
	defer cancel()
	if err := s.tokens.Delete(cctx, token); err != nil && !apperrors.IsNotFound(err) {
		s.logger.WarnContext(ctx, "failed to delete verification token", slog.String("error", err.Error()))
	}
}

func (s *AccountService) publish(ctx context.Context, eventType string, err error) {
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
	}
}

func errInvalidEmail() *apperrors.AppError {
	return apperrors.Validation("INVALID_EMAIL", "Invalid email format")
}

func errUserExists() *apperrors.AppError {
	return apperrors.Conflict("USER_EXISTS", "User with this email already exists")
}

func errInvalidVerificationToken() *apperrors.AppError {
	return apperrors.Validation("INVALID_TOKEN", "Invalid or expired verification token")
}

func errInvalidResetToken() *apperrors.AppError {
	return apperrors.Validation("INVALID_TOKEN", "Invalid reset link. Please request a new password reset.")
}

func errResetUserMissingInvalid() *apperrors.AppError {
	return apperrors.Validation("USER_NOT_FOUND", "User account not found. Please contact support.")
}

func errResetUserMissing() *apperrors.AppError {
	e := apperrors.NotFound("user")
	e.Code = "USER_NOT_FOUND"
	e.Message = "User account not found. Please contact support."
	return e
}

func emailSendFailed(message string, err error) *apperrors.AppError {
	e := apperrors.Internal(message, fmt.Errorf("send email: %w", err))
	e.Code = "EMAIL_SEND_FAILED"
	return e
}
