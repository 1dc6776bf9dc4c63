package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bouabca/hawiyat-site-sub000/internal/domain"
	apperrors "github.com/bouabca/hawiyat-site-sub000/pkg/errors"
)

func newWaitlistFixture(t *testing.T) (*WaitlistService, *mockWaitlistRepository) {
	t.Helper()
	repo := new(mockWaitlistRepository)
	svc := NewWaitlistService(repo, testLogger())
	svc.now = func() time.Time { return testNow }
	t.Cleanup(func() { repo.AssertExpectations(t) })
	return svc, repo
}

func TestJoinWaitlist_Success(t *testing.T) {
	svc, repo := newWaitlistFixture(t)
	repo.On("GetByEmail", mock.Anything, "sam@example.com").Return(nil, apperrors.ErrNotFound)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(e *domain.WaitlistEntry) bool {
		return e.Email == "sam@example.com" &&
			e.IPAddress == "203.0.113.7" &&
			e.UserAgent == "unknown" &&
			e.CreatedAt.Equal(testNow)
	})).Return(nil)
	repo.On("Position", mock.Anything, testNow).Return(int64(12), nil)

	res, err := svc.Join(context.Background(), JoinWaitlistInput{Email: " Sam@Example.com", IPAddress: "203.0.113.7"})

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(12), res.Position)
	assert.Equal(t, "Successfully joined waitlist!", res.Message)
}

func TestJoinWaitlist_AlreadyJoinedCarriesPosition(t *testing.T) {
	svc, repo := newWaitlistFixture(t)
	joined := testNow.Add(-48 * time.Hour)
	repo.On("GetByEmail", mock.Anything, "sam@example.com").
		Return(&domain.WaitlistEntry{ID: "w1", Email: "sam@example.com", CreatedAt: joined}, nil)
	repo.On("Position", mock.Anything, joined).Return(int64(3), nil)

	_, err := svc.Join(context.Background(), JoinWaitlistInput{Email: "sam@example.com"})

	appErr := requireAppError(t, err, apperrors.KindConflict, "ALREADY_ON_WAITLIST")
	assert.Equal(t, int64(3), appErr.Details["position"])
}

func TestJoinWaitlist_UniqueRaceIsConflict(t *testing.T) {
	svc, repo := newWaitlistFixture(t)
	repo.On("GetByEmail", mock.Anything, "sam@example.com").Return(nil, apperrors.ErrNotFound)
	repo.On("Create", mock.Anything, mock.Anything).Return(apperrors.AlreadyExists("waitlist entry", "email"))

	_, err := svc.Join(context.Background(), JoinWaitlistInput{Email: "sam@example.com"})
	requireAppError(t, err, apperrors.KindConflict, "ALREADY_ON_WAITLIST")
}

func TestJoinWaitlist_Validation(t *testing.T) {
	svc, _ := newWaitlistFixture(t)

	tests := []struct {
		email string
		code  string
	}{
		{"", "EMAIL_REQUIRED"},
		{"nope", "INVALID_EMAIL"},
		{strings.Repeat("a", 250) + "@example.com", "EMAIL_TOO_LONG"},
	}
	for _, tt := range tests {
		_, err := svc.Join(context.Background(), JoinWaitlistInput{Email: tt.email})
		requireAppError(t, err, apperrors.KindValidation, tt.code)
	}
}
