package postgres

import (
	"context"
	"time"

	"github.com/bouabca/hawiyat-site-sub000/internal/domain"
	"github.com/bouabca/hawiyat-site-sub000/pkg/database"
	apperrors "github.com/bouabca/hawiyat-site-sub000/pkg/errors"
)

// WaitlistRepository implements repository.WaitlistRepository.
type WaitlistRepository struct {
	db database.DBTX
}

func NewWaitlistRepository(db database.DBTX) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

func (r *WaitlistRepository) Create(ctx context.Context, e *domain.WaitlistEntry) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO waitlist (id, email, ip_address, user_agent, created_at) VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.Email, e.IPAddress, e.UserAgent, e.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("waitlist entry", "email")
		}
		return dbError("insert waitlist entry", err)
	}
	return nil
}

func (r *WaitlistRepository) GetByEmail(ctx context.Context, email string) (*domain.WaitlistEntry, error) {
	var e domain.WaitlistEntry
	err := r.db.QueryRow(ctx,
		`SELECT id, email, ip_address, user_agent, created_at FROM waitlist WHERE email = $1`,
		email,
	).Scan(&e.ID, &e.Email, &e.IPAddress, &e.UserAgent, &e.CreatedAt)
	if err != nil {
		return nil, dbError("get waitlist entry", err)
	}
	return &e, nil
}

func (r *WaitlistRepository) Position(ctx context.Context, createdAt time.Time) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM waitlist WHERE created_at <= $1`, createdAt,
	).Scan(&n); err != nil {
		return 0, dbError("count waitlist position", err)
	}
	return n, nil
}
