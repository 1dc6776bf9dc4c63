package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bouabca/hawiyat-site-sub000/internal/domain"
	apperrors "github.com/bouabca/hawiyat-site-sub000/pkg/errors"
)

// ErrTokenConsumed is returned by CredentialStore when the token row was
// already deleted by a concurrent consumer.
var ErrTokenConsumed = fmt.Errorf("%w: token already consumed", apperrors.ErrNotFound)

// UserRepository defines user persistence. Emails passed in are already
// normalized.
type UserRepository interface {
	// Create inserts a user. A duplicate email is a Conflict.
	Create(ctx context.Context, user *domain.User) error

	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update writes name, image, password hash, verification and provider
	// linkage, and bumps updated_at.
	Update(ctx context.Context, user *domain.User) error

	Delete(ctx context.Context, id string) error
}

// TokenRepository persists single-use verification tokens.
type TokenRepository interface {
	Create(ctx context.Context, token *domain.VerificationToken) error
	GetByToken(ctx context.Context, token string) (*domain.VerificationToken, error)

	// Delete removes one token and returns ErrNotFound if it was already gone.
	Delete(ctx context.Context, token string) error

	// DeleteByIdentifier removes every token issued for identifier.
	DeleteByIdentifier(ctx context.Context, identifier string) (int64, error)
}

// CredentialStore groups the writes that must land together.
type CredentialStore interface {
	// CreateUserWithToken inserts a new user and its verification token in
	// one transaction.
	CreateUserWithToken(ctx context.Context, user *domain.User, token *domain.VerificationToken) error

	// DeleteUserWithToken removes a user created by a failed signup together
	// with its token.
	DeleteUserWithToken(ctx context.Context, userID, token string) error

	// ConsumeVerificationToken deletes token and marks the user verified. The
	// token delete runs first, so a concurrent second consumer gets
	// ErrTokenConsumed and changes nothing.
	ConsumeVerificationToken(ctx context.Context, token, userID string, verifiedAt time.Time) error

	// ConsumeResetToken deletes token, sets the new password hash and
	// removes every other token for identifier.
	ConsumeResetToken(ctx context.Context, token, userID, passwordHash, identifier string, at time.Time) error
}

// WaitlistRepository persists waitlist sign-ups.
type WaitlistRepository interface {
	Create(ctx context.Context, entry *domain.WaitlistEntry) error
	GetByEmail(ctx context.Context, email string) (*domain.WaitlistEntry, error)

	// Position counts entries created at or before createdAt.
	Position(ctx context.Context, createdAt time.Time) (int64, error)
}
