package postgres

import (
	"context"

	"github.com/bouabca/hawiyat-site-sub000/internal/domain"
	"github.com/bouabca/hawiyat-site-sub000/pkg/database"
	apperrors "github.com/bouabca/hawiyat-site-sub000/pkg/errors"
)

// TokenRepository implements repository.TokenRepository using PostgreSQL.
type TokenRepository struct {
	db database.DBTX
}

// NewTokenRepository creates a token repository over a pool or transaction.
func NewTokenRepository(db database.DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create stores a token.
func (r *TokenRepository) Create(ctx context.Context, t *domain.VerificationToken) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO verification_tokens (token, identifier, expires) VALUES ($1, $2, $3)`,
		t.Token, t.Identifier, t.Expires,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("TOKEN_EXISTS", "token already issued")
		}
		return dbError("insert verification token", err)
	}
	return nil
}

// GetByToken looks a token up by its value.
func (r *TokenRepository) GetByToken(ctx context.Context, token string) (*domain.VerificationToken, error) {
	var t domain.VerificationToken
	err := r.db.QueryRow(ctx,
		`SELECT token, identifier, expires FROM verification_tokens WHERE token = $1`,
		token,
	).Scan(&t.Token, &t.Identifier, &t.Expires)
	if err != nil {
		return nil, dbError("get verification token", err)
	}
	return &t, nil
}

// Delete removes a single token.
func (r *TokenRepository) Delete(ctx context.Context, token string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM verification_tokens WHERE token = $1`, token)
	if err != nil {
		return dbError("delete verification token", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// DeleteByIdentifier removes all tokens for an email.
func (r *TokenRepository) DeleteByIdentifier(ctx context.Context, identifier string) (int64, error) {
	ct, err := r.db.Exec(ctx, `DELETE FROM verification_tokens WHERE identifier = $1`, identifier)
	if err != nil {
		return 0, dbError("delete verification tokens by identifier", err)
	}
	return ct.RowsAffected(), nil
}
