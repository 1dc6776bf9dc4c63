package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/bouabca/hawiyat-site-sub000/pkg/errors"
)

const uniqueViolation = "23505"

// isUniqueViolation checks for SQLSTATE 23505. The string match covers
// drivers and mocks that do not return a *pgconn.PgError.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return strings.Contains(err.Error(), uniqueViolation)
}

// dbError classifies a driver error. AppErrors pass through unchanged.
func dbError(op string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	return apperrors.Database(fmt.Errorf("%s: %w", op, err))
}

// nullable stores empty strings as NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
