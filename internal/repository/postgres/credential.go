package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bouabca/hawiyat-site-sub000/internal/domain"
	"github.com/bouabca/hawiyat-site-sub000/internal/repository"
	"github.com/bouabca/hawiyat-site-sub000/pkg/database"
	apperrors "github.com/bouabca/hawiyat-site-sub000/pkg/errors"
)

// CredentialStore implements repository.CredentialStore. Each method runs in
// its own transaction.
type CredentialStore struct {
	db database.DBTX
}

// NewCredentialStore creates a credential store backed by db.
func NewCredentialStore(db database.DBTX) *CredentialStore {
	return &CredentialStore{db: db}
}

// CreateUserWithToken inserts the user and its verification token.
func (s *CredentialStore) CreateUserWithToken(ctx context.Context, u *domain.User, t *domain.VerificationToken) (err error) {
	ctx, end := database.TraceQuery(ctx, "credentials.CreateUserWithToken")
	defer func() { end(err) }()

	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := NewUserRepository(tx).Create(ctx, u); err != nil {
			return err
		}
		return NewTokenRepository(tx).Create(ctx, t)
	})
	return txError("create user with token", err)
}

// DeleteUserWithToken undoes CreateUserWithToken. Rows already gone are
// not an error.
func (s *CredentialStore) DeleteUserWithToken(ctx context.Context, userID, token string) (err error) {
	ctx, end := database.TraceQuery(ctx, "credentials.DeleteUserWithToken")
	defer func() { end(err) }()

	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := NewTokenRepository(tx).Delete(ctx, token); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		if err := NewUserRepository(tx).Delete(ctx, userID); err != nil && !apperrors.IsNotFound(err) {
			return err
		}
		return nil
	})
	return txError("delete user with token", err)
}

// ConsumeVerificationToken deletes the token, then stamps email_verified.
func (s *CredentialStore) ConsumeVerificationToken(ctx context.Context, token, userID string, verifiedAt time.Time) (err error) {
	ctx, end := database.TraceQuery(ctx, "credentials.ConsumeVerificationToken")
	defer func() { end(err) }()

	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := consume(ctx, NewTokenRepository(tx), token); err != nil {
			return err
		}
		ct, err := tx.Exec(ctx,
			`UPDATE users SET email_verified = $1, updated_at = $1 WHERE id = $2`,
			verifiedAt, userID,
		)
		if err != nil {
			return dbError("mark user verified", err)
		}
		if ct.RowsAffected() == 0 {
			return apperrors.NotFound("user")
		}
		return nil
	})
	return txError("consume verification token", err)
}

// ConsumeResetToken deletes the token, stores the new hash and clears every
// other token for the identifier.
func (s *CredentialStore) ConsumeResetToken(ctx context.Context, token, userID, passwordHash, identifier string, at time.Time) (err error) {
	ctx, end := database.TraceQuery(ctx, "credentials.ConsumeResetToken")
	defer func() { end(err) }()

	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		tokens := NewTokenRepository(tx)
		if err := consume(ctx, tokens, token); err != nil {
			return err
		}
		ct, err := tx.Exec(ctx,
			`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
			passwordHash, at, userID,
		)
		if err != nil {
			return dbError("update password", err)
		}
		if ct.RowsAffected() == 0 {
			return apperrors.NotFound("user")
		}
		_, err = tokens.DeleteByIdentifier(ctx, identifier)
		return err
	})
	return txError("consume reset token", err)
}

func consume(ctx context.Context, tokens *TokenRepository, token string) error {
	err := tokens.Delete(ctx, token)
	if errors.Is(err, apperrors.ErrNotFound) {
		return repository.ErrTokenConsumed
	}
	return err
}

// txError keeps domain errors from inside the transaction and classifies
// begin/commit failures as database errors.
func txError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	return dbError(op, err)
}
