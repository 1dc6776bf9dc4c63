package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bouabca/hawiyat-site-sub000/internal/domain"
	apperrors "github.com/bouabca/hawiyat-site-sub000/pkg/errors"
)

func TestTokenRepository_CreateAndGet(t *testing.T) {
	mock := newMock(t)
	repo := NewTokenRepository(mock)
	expires := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Microsecond)
	tok := &domain.VerificationToken{Token: "abc", Identifier: "a@x.com", Expires: expires}

	mock.ExpectExec("INSERT INTO verification_tokens").
		WithArgs("abc", "a@x.com", expires).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT token, identifier, expires FROM verification_tokens").
		WithArgs("abc").
		WillReturnRows(pgxmock.NewRows([]string{"token", "identifier", "expires"}).AddRow("abc", "a@x.com", expires))

	require.NoError(t, repo.Create(context.Background(), tok))
	got, err := repo.GetByToken(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, tok, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_GetByToken_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewTokenRepository(mock)

	mock.ExpectQuery("SELECT token").WithArgs("nope").WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByToken(context.Background(), "nope")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_Delete_SecondDeleteIsNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewTokenRepository(mock)

	mock.ExpectExec("DELETE FROM verification_tokens WHERE token").WithArgs("abc").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM verification_tokens WHERE token").WithArgs("abc").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.Delete(context.Background(), "abc"))
	assert.True(t, errors.Is(repo.Delete(context.Background(), "abc"), apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_DeleteByIdentifier(t *testing.T) {
	mock := newMock(t)
	repo := NewTokenRepository(mock)

	mock.ExpectExec("DELETE FROM verification_tokens WHERE identifier").WithArgs("a@x.com").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	n, err := repo.DeleteByIdentifier(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
