package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/bouabca/hawiyat-site-sub000/internal/auth"
	"github.com/bouabca/hawiyat-site-sub000/internal/domain"
	"github.com/bouabca/hawiyat-site-sub000/internal/ratelimit"
)

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock Token Repository ---

type mockTokenRepository struct {
	mock.Mock
}

func (m *mockTokenRepository) Create(ctx context.Context, token *domain.VerificationToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockTokenRepository) GetByToken(ctx context.Context, token string) (*domain.VerificationToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VerificationToken), args.Error(1)
}

func (m *mockTokenRepository) Delete(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockTokenRepository) DeleteByIdentifier(ctx context.Context, identifier string) (int64, error) {
	args := m.Called(ctx, identifier)
	return args.Get(0).(int64), args.Error(1)
}

// --- Mock Credential Store ---

type mockCredentialStore struct {
	mock.Mock
}

func (m *mockCredentialStore) CreateUserWithToken(ctx context.Context, user *domain.User, token *domain.VerificationToken) error {
	args := m.Called(ctx, user, token)
	return args.Error(0)
}

func (m *mockCredentialStore) DeleteUserWithToken(ctx context.Context, userID, token string) error {
	args := m.Called(ctx, userID, token)
	return args.Error(0)
}

func (m *mockCredentialStore) ConsumeVerificationToken(ctx context.Context, token, userID string, verifiedAt time.Time) error {
	args := m.Called(ctx, token, userID, verifiedAt)
	return args.Error(0)
}

func (m *mockCredentialStore) ConsumeResetToken(ctx context.Context, token, userID, passwordHash, identifier string, at time.Time) error {
	args := m.Called(ctx, token, userID, passwordHash, identifier, at)
	return args.Error(0)
}

// --- Mock Waitlist Repository ---

type mockWaitlistRepository struct {
	mock.Mock
}

func (m *mockWaitlistRepository) Create(ctx context.Context, entry *domain.WaitlistEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockWaitlistRepository) GetByEmail(ctx context.Context, email string) (*domain.WaitlistEntry, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WaitlistEntry), args.Error(1)
}

func (m *mockWaitlistRepository) Position(ctx context.Context, createdAt time.Time) (int64, error) {
	args := m.Called(ctx, createdAt)
	return args.Get(0).(int64), args.Error(1)
}

// --- Mock Mailer ---

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendVerificationEmail(ctx context.Context, to, name, token string) error {
	args := m.Called(ctx, to, name, token)
	return args.Error(0)
}

func (m *mockMailer) SendWelcomeEmail(ctx context.Context, to, name string) error {
	args := m.Called(ctx, to, name)
	return args.Error(0)
}

func (m *mockMailer) SendPasswordResetEmail(ctx context.Context, to, name, token string) error {
	args := m.Called(ctx, to, name, token)
	return args.Error(0)
}

// --- Mock Limiter ---

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Allow(ctx context.Context, scope, key string) (ratelimit.Decision, error) {
	args := m.Called(ctx, scope, key)
	return args.Get(0).(ratelimit.Decision), args.Error(1)
}

// --- Mock Event Publisher ---

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) PublishUserRegistered(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *mockEvents) PublishEmailVerified(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *mockEvents) PublishPasswordReset(ctx context.Context, userID, email string) error {
	args := m.Called(ctx, userID, email)
	return args.Error(0)
}

func (m *mockEvents) PublishOAuthLinked(ctx context.Context, u *domain.User, provider string, created bool) error {
	args := m.Called(ctx, u, provider, created)
	return args.Error(0)
}

// --- Helpers ---

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type accountFixture struct {
	users   *mockUserRepository
	tokens  *mockTokenRepository
	store   *mockCredentialStore
	mailer  *mockMailer
	limiter *mockLimiter
	events  *mockEvents
	hasher  *auth.PasswordHasher
	svc     *AccountService
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()
	f := &accountFixture{
		users:   new(mockUserRepository),
		tokens:  new(mockTokenRepository),
		store:   new(mockCredentialStore),
		mailer:  new(mockMailer),
		limiter: new(mockLimiter),
		events:  new(mockEvents),
		hasher:  auth.NewPasswordHasher(bcrypt.MinCost),
	}
	f.svc = NewAccountService(AccountDeps{
		Users:    f.users,
		Tokens:   f.tokens,
		Store:    f.store,
		Hasher:   f.hasher,
		Mailer:   f.mailer,
		Limiter:  f.limiter,
		Events:   f.events,
		NewToken: func() (string, error) { return "tok-new", nil },
	}, DefaultAccountConfig(), testLogger())
	f.svc.now = func() time.Time { return testNow }

	t.Cleanup(func() {
		f.users.AssertExpectations(t)
		f.tokens.AssertExpectations(t)
		f.store.AssertExpectations(t)
		f.mailer.AssertExpectations(t)
		f.limiter.AssertExpectations(t)
	})
	return f
}

func (f *accountFixture) hash(t *testing.T, password string) string {
	t.Helper()
	h, err := f.hasher.Hash(password)
	require.NoError(t, err)
	return h
}

func (f *accountFixture) allowAll() {
	f.limiter.On("Allow", mock.Anything, mock.Anything, mock.Anything).
		Return(ratelimit.Decision{Allowed: true}, nil)
}
