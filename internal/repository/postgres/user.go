package postgres

import (
	"context"
	"time"

	"github.com/bouabca/hawiyat-site-sub000/internal/domain"
	"github.com/bouabca/hawiyat-site-sub000/pkg/database"
	apperrors "github.com/bouabca/hawiyat-site-sub000/pkg/errors"
)

const userColumns = `id, email, name, COALESCE(image, ''), COALESCE(password_hash, ''), email_verified, oauth_provider, oauth_id, created_at, updated_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a user repository over a pool or transaction.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, email, name, image, password_hash, email_verified, oauth_provider, oauth_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		u.ID,
		u.Email,
		u.Name,
		nullable(u.Image),
		nullable(u.PasswordHash),
		u.EmailVerified,
		u.OAuthProvider,
		u.OAuthID,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("USER_EXISTS", "User with this email already exists")
		}
		return dbError("insert user", err)
	}
	return nil
}

// GetByID retrieves a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail retrieves a user by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// Update writes the mutable columns. Email is the account identity and is
// never changed here.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	u.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET name = $1, image = $2, password_hash = $3, email_verified = $4,
		    oauth_provider = $5, oauth_id = $6, updated_at = $7
		WHERE id = $8`

	ct, err := r.db.Exec(ctx, query,
		u.Name,
		nullable(u.Image),
		nullable(u.PasswordHash),
		u.EmailVerified,
		u.OAuthProvider,
		u.OAuthID,
		u.UpdatedAt,
		u.ID,
	)
	if err != nil {
		return dbError("update user", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user")
	}
	return nil
}

// Delete removes a user by id.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return dbError("delete user", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user")
	}
	return nil
}

func (r *UserRepository) scanUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.Image,
		&u.PasswordHash,
		&u.EmailVerified,
		&u.OAuthProvider,
		&u.OAuthID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, dbError("scan user", err)
	}
	return &u, nil
}
