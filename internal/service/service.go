// Package service holds the account, session and waitlist business logic.
package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/bouabca/hawiyat-site-sub000/internal/auth"
	"github.com/bouabca/hawiyat-site-sub000/internal/domain"
	"github.com/bouabca/hawiyat-site-sub000/internal/ratelimit"
	apperrors "github.com/bouabca/hawiyat-site-sub000/pkg/errors"
	"github.com/bouabca/hawiyat-site-sub000/pkg/tracing"
)

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Matches(hash, password string) bool
}

// EmailLimiter throttles email-sending operations per address.
type EmailLimiter interface {
	Allow(ctx context.Context, scope, key string) (ratelimit.Decision, error)
}

// EventPublisher emits account lifecycle events. Failures are logged by
// the caller and never fail the operation.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, u *domain.User) error
	PublishEmailVerified(ctx context.Context, u *domain.User) error
	PublishPasswordReset(ctx context.Context, userID, email string) error
	PublishOAuthLinked(ctx context.Context, u *domain.User, provider string, created bool) error
}

// SessionTokens signs and parses session tokens.
type SessionTokens interface {
	Issue(u *domain.User) (string, time.Time, error)
	Parse(token string) (*auth.SessionClaims, error)
}

// compensationTimeout bounds cleanup writes that run after the request
// context may already be done.
const compensationTimeout = 5 * time.Second

func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
}

var tracer = tracing.Tracer("github.com/bouabca/hawiyat-site-sub000/internal/service")

// startSpan opens a span for a service operation. Only unexpected failures
// mark the span as errored; client mistakes are recorded as events.
func startSpan(ctx context.Context, operation string) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, operation)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			if apperrors.HTTPStatus(err) >= 500 {
				span.SetStatus(codes.Error, err.Error())
			}
		}
		span.End()
	}
}
