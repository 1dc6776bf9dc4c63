package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/bouabca/hawiyat-site-sub000/internal/auth"
	"github.com/bouabca/hawiyat-site-sub000/internal/domain"
	"github.com/bouabca/hawiyat-site-sub000/internal/oauth"
	"github.com/bouabca/hawiyat-site-sub000/internal/service"
	apperrors "github.com/bouabca/hawiyat-site-sub000/pkg/errors"
	"github.com/bouabca/hawiyat-site-sub000/pkg/health"
	"github.com/bouabca/hawiyat-site-sub000/pkg/httputil"
)

// ============================================================================
// Mock Services
// ============================================================================

type mockAccounts struct {
	mock.Mock
}

func (m *mockAccounts) SignUp(ctx context.Context, in service.SignUpInput) (*service.SignUpResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SignUpResult), args.Error(1)
}

func (m *mockAccounts) VerifyEmail(ctx context.Context, token, email string) (*domain.User, error) {
	args := m.Called(ctx, token, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockAccounts) ResendVerification(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func (m *mockAccounts) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func (m *mockAccounts) ValidateResetToken(ctx context.Context, token, email string) (*service.ResetTokenStatus, error) {
	args := m.Called(ctx, token, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ResetTokenStatus), args.Error(1)
}

func (m *mockAccounts) ConfirmPasswordReset(ctx context.Context, in service.ConfirmPasswordResetInput) error {
	args := m.Called(ctx, in)
	return args.Error(0)
}

func (m *mockAccounts) LinkOAuthAccount(ctx context.Context, provider string, p *oauth.Profile) (*domain.User, error) {
	args := m.Called(ctx, provider, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type mockSessions struct {
	mock.Mock
}

func (m *mockSessions) Login(ctx context.Context, email, password string) (*service.SessionResult, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SessionResult), args.Error(1)
}

func (m *mockSessions) Issue(ctx context.Context, u *domain.User) (*service.SessionResult, error) {
	args := m.Called(ctx, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SessionResult), args.Error(1)
}

func (m *mockSessions) Refresh(ctx context.Context, token string) (*domain.Session, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

type mockWaitlist struct {
	mock.Mock
}

func (m *mockWaitlist) Join(ctx context.Context, in service.JoinWaitlistInput) (*service.JoinWaitlistResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.JoinWaitlistResult), args.Error(1)
}

type fakeProvider struct {
	profile     *oauth.Profile
	exchangeErr error
}

func (p *fakeProvider) ID() string { return "github" }

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://github.example/login/oauth/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return &oauth2.Token{AccessToken: "at-" + code}, nil
}

func (p *fakeProvider) FetchProfile(context.Context, *oauth2.Token) (*oauth.Profile, error) {
	return p.profile, nil
}

// ============================================================================
// Test Helpers
// ============================================================================

const (
	testBaseURL = "https://hawiyat.example"
	testSecret  = "handler-test-secret-at-least-32-bytes"
)

var testCookie = CookieConfig{Name: "hawiyat_session", Secure: true}

type testServer struct {
	accounts *mockAccounts
	sessions *mockSessions
	waitlist *mockWaitlist
	tokens   *auth.SessionManager
	provider *fakeProvider
	handler  http.Handler
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, guardMode string) *testServer {
	t.Helper()
	ts := &testServer{
		accounts: new(mockAccounts),
		sessions: new(mockSessions),
		waitlist: new(mockWaitlist),
		tokens:   auth.NewSessionManager(testSecret, time.Hour),
		provider: &fakeProvider{profile: &oauth.Profile{ID: "42", Email: "octo@example.com", Name: "Octo"}},
	}
	log := discardLogger()

	guard, err := NewGuard(GuardConfig{
		Mode:              guardMode,
		ProtectedPrefixes: []string{"/dashboard", "/billing", "/settings"},
	}, ts.tokens, testCookie, log)
	require.NoError(t, err)

	limiter := NewIPRateLimiter(0, 0, log)
	t.Cleanup(limiter.Stop)

	ts.handler = NewRouter(RouterDeps{
		Auth:           NewAuthHandler(ts.accounts, ts.sessions, testCookie, testBaseURL+"/", log),
		OAuth:          NewOAuthHandler(oauth.NewRegistry(ts.provider), ts.accounts, ts.sessions, testCookie, "/dashboard", log),
		Waitlist:       NewWaitlistHandler(ts.waitlist, log),
		Guard:          guard,
		IPLimiter:      limiter,
		Health:         health.NewHandler(),
		AllowedOrigins: []string{"*"},
		Logger:         log,
	})
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) (map[string]any, *httputil.ErrorResponse) {
	t.Helper()
	var env struct {
		Data  map[string]any          `json:"data"`
		Error *httputil.ErrorResponse `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Data, env.Error
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ============================================================================
// Auth Handler Tests
// ============================================================================

func TestSignUp_Created(t *testing.T) {
	ts := newTestServer(t, GuardModeSession)
	ts.accounts.On("SignUp", mock.Anything, service.SignUpInput{
		Email: "alice@example.com", Password: "password1", FirstName: "Alice", LastName: "Smith",
	}).Return(&service.SignUpResult{
		User:                 domain.PublicUser{ID: "u1", Email: "alice@example.com", Name: "Alice Smith"},
		RequiresVerification: true,
		Message:              service.SignUpMessage,
	}, nil)

	rec := ts.do(jsonRequest(http.MethodPost, "/api/v1/auth/signup",
		`{"email":"alice@example.com","password":"password1","firstName":"Alice","lastName":"Smith"}`))

	assert.Equal(t, http.StatusCreated, rec.Code)
	data, _ := decodeEnvelope(t, rec)
	assert.Equal(t, true, data["requiresVerification"])
	assert.Nil(t, findCookie(rec, testCookie.Name), "signup must not sign the user in")
	ts.accounts.AssertExpectations(t)
}

func TestSignUp_InvalidBody(t *testing.T) {
	ts := newTestServer(t, GuardModeSession)

	rec := ts.do(jsonRequest(http.MethodPost, "/api/v1/auth/signup", `{not json`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	_, errResp := decodeEnvelope(t, rec)
	assert.Equal(t, "INVALID_INPUT", errResp.Code)
}

func TestSignUp_ConflictEnvelope(t *testing.T) {
	ts := newTestServer(t, GuardModeSession)
	ts.accounts.On("SignUp", mock.Anything, mock.Anything).
		Return(nil, apperrors.Conflict("USER_EXISTS", "User with this email already exists"))

	rec := ts.do(jsonRequest(http.MethodPost, "/api/v1/auth/signup", `{"email":"a@b.co","password":"x","firstName":"a","lastName":"b"}`))

	assert.Equal(t, http.StatusConflict, rec.Code)
	_, errResp := decodeEnvelope(t, rec)
	assert.Equal(t, "USER_EXISTS", errResp.Code)
	assert.NotEmpty(t, errResp.RequestID)
}

func TestSignUp_EmailFailureKeepsMessage(t *testing.T) {
	ts := newTestServer(t, GuardModeSession)
	e := apperrors.Internal("Failed to send verification email. Please try again.", errors.New("smtp: 421"))
	e.Code = "EMAIL_SEND_FAILED"
	ts.accounts.On("SignUp", mock.Anything, mock.Anything).Return(nil, e)

	rec := ts.do(jsonRequest(http.MethodPost, "/api/v1/auth/signup", `{"email":"a@b.co","password":"x","firstName":"a","lastName":"b"}`))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	_, errResp := decodeEnvelope(t, rec)
	assert.Equal(t, "EMAIL_SEND_FAILED", errResp.Code)
	assert.Equal(t, "Failed to send verification email. Please try again.", errResp.Message)
	assert.NotContains(t, rec.Body.String(), "smtp")
}

func TestVerifyEmail_RedirectsOnSuccess(t *testing.T) {
	ts := newTestServer(t, GuardModeSession)
	ts.accounts.On("VerifyEmail", mock.Anything, "tok", "alice@example.com").Return(&domain.User{ID: "u1"}, nil)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/verify-email?token=tok&email=alice%40example.com", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, testBaseURL+"/auth/verification-success?verified=true", rec.Header().Get("Location"))
}

func TestVerifyEmail_ErrorIsJSON(t *testing.T) {
	ts := newTestServer(t, GuardModeSession)
	ts.accounts.On("VerifyEmail", mock.Anything, "tok", "a@b.co").
		Return(nil, apperrors.Validation("TOKEN_EXPIRED", "Verification token has expired. Please request a new one."))

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/verify-email?token=tok&email=a@b.co", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	_, errResp := decodeEnvelope(t, rec)
	assert.Equal(t, "TOKEN_EXPIRED", errResp.Code)
}

func TestForgotPassword_GenericMessage(t *testing.T) {
	ts := newTestServer(t, GuardModeSession)
	ts.accounts.On("RequestPasswordReset", mock.Anything, "ghost@example.com").Return(service.PasswordResetMessage, nil)

	rec := ts.do(jsonRequest(http.MethodPost, "/api/v1/auth/forgot-password", `{"email":"ghost@example.com"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	data, _ := decodeEnvelope(t, rec)
	assert.Equal(t, service.PasswordResetMessage, data["message"])
}

func TestResendVerification_RateLimited(t *testing.T) {
	ts := newTestServer(t, GuardModeSession)
	ts.accounts.On("ResendVerification", mock.Anything, "a@b.co").
		Return("", apperrors.RateLimited("Too many requests. Please wait before trying again.").WithDetail("retry_after_seconds", 30))

	rec := ts.do(jsonRequest(http.MethodPost, "/api/v1/auth/resend-verification", `{"email":"a@b.co"}`))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	_, errResp := decodeEnvelope(t, rec)
	assert.EqualValues(t, 30, errResp.Details["retry_after_seconds"])
}

func TestValidateResetToken_OK(t *testing.T) {
	ts := newTestServer(t, GuardModeSession)
	ts.accounts.On("ValidateResetToken", mock.Anything, "tok", "a@b.co").
		Return(&service.ResetTokenStatus{Valid: true, Email: "a@b.co", Message: "Reset token is valid"}, nil)

	rec := ts.do(jsonRequest(http.MethodPost, "/api/v1/auth/validate-reset-token", `{"token":"tok","email":"a@b.co"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	data, _ := decodeEnvelope(t, rec)
	assert.Equal(t, true, data["valid"])
}

func TestResetPassword_OK(t *testing.T) {
	ts := newTestServer(t, GuardModeSession)
	ts.accounts.On("ConfirmPasswordReset", mock.Anything, service.ConfirmPasswordResetInput{
		Token: "tok", Email: "a@b.co", Password: "NewPassw0rd",
	}).Return(nil)

	rec := ts.do(jsonRequest(http.MethodPost, "/api/v1/auth/reset-password", `{"token":"tok","email":"a@b.co","password":"NewPassw0rd"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	data, _ := decodeEnvelope(t, rec)
	assert.Equal(t, service.PasswordChangedMessage, data["message"])
	assert.Equal(t, true, data["success"])
}

func TestLogin_SetsHttpOnlyCookie(t *testing.T) {
	ts := newTestServer(t, GuardModeSession)
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	ts.sessions.On("Login", mock.Anything, "a@b.co", "password1").Return(&service.SessionResult{
		Token:     "signed.jwt.value",
		ExpiresAt: expires,
		Session:   domain.Session{UserID: "u1", Email: "a@b.co", ExpiresAt: expires},
	}, nil)

	rec := ts.do(jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"a@b.co","password":"password1"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	ck := findCookie(rec, testCookie.Name)
	require.NotNil(t, ck)
	assert.Equal(t, "signed.jwt.value", ck.Value)
	assert.True(t, ck.HttpOnly)
	assert.True(t, ck.Secure)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	data, _ := decodeEnvelope(t, rec)
	assert.Equal(t, "signed.jwt.value", data["token"])
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ts := newTestServer(t, GuardModeSession)
	ts.sessions.On("Login", mock.Anything, "a@b.co", "nope").Return(nil, apperrors.Authentication("Invalid email or password"))

	rec := ts.do(jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"a@b.co","password":"nope"}`))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, findCookie(rec, testCookie.Name))
}

func TestLogout_ClearsCookie(t *testing.T) {
	ts := newTestServer(t, GuardModeSession)

	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	ck := findCookie(rec, testCookie.Name)
	require.NotNil(t, ck)
	assert.Equal(t, -1, ck.MaxAge)
}

func TestSession_RequiresToken(t *testing.T) {
	ts := newTestServer(t, GuardModeSession)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/session", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSession_BearerAndCookie(t *testing.T) {
	ts := newTestServer(t, GuardModeSession)
	ts.sessions.On("Refresh", mock.Anything, "bearer-tok").Return(&domain.Session{UserID: "u1", Name: "From Bearer"}, nil)
	ts.sessions.On("Refresh", mock.Anything, "cookie-tok").Return(&domain.Session{UserID: "u1", Name: "From Cookie"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/session", nil)
	req.Header.Set("Authorization", "Bearer bearer-tok")
	req.AddCookie(&http.Cookie{Name: testCookie.Name, Value: "cookie-tok"})
	data, _ := decodeEnvelope(t, ts.do(req))
	assert.Equal(t, "From Bearer", data["name"])

	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: testCookie.Name, Value: "cookie-tok"})
	data, _ = decodeEnvelope(t, ts.do(req))
	assert.Equal(t, "From Cookie", data["name"])
}

// ============================================================================
// OAuth Handler Tests
// ============================================================================

func TestOAuthBegin_UnknownProvider(t *testing.T) {
	ts := newTestServer(t, GuardModeSession)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/oauth/myspace", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	_, errResp := decodeEnvelope(t, rec)
	assert.Equal(t, "UNKNOWN_PROVIDER", errResp.Code)
}

func TestOAuthBegin_SetsStateAndRedirects(t *testing.T) {
	ts := newTestServer(t, GuardModeSession)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/oauth/github", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	state := findCookie(rec, stateCookieName)
	require.NotNil(t, state)
	assert.Len(t, state.Value, 64)
	assert.Contains(t, rec.Header().Get("Location"), "state="+state.Value)
}

func TestOAuthCallback_StateMismatch(t *testing.T) {
	ts := newTestServer(t, GuardModeSession)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/oauth/github/callback?code=c&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "expected"})
	rec := ts.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	_, errResp := decodeEnvelope(t, rec)
	assert.Equal(t, "INVALID_STATE", errResp.Code)
}

func TestOAuthCallback_LinksAndSignsIn(t *testing.T) {
	ts := newTestServer(t, GuardModeSession)
	user := &domain.User{ID: "u9", Email: "octo@example.com", OAuthProvider: "github"}
	ts.accounts.On("LinkOAuthAccount", mock.Anything, "github", ts.provider.profile).Return(user, nil)
	ts.sessions.On("Issue", mock.Anything, user).Return(&service.SessionResult{
		Token: "oauth-session", ExpiresAt: time.Now().Add(time.Hour),
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/oauth/github/callback?code=c&state=s1", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "s1"})
	rec := ts.do(req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
	ck := findCookie(rec, testCookie.Name)
	require.NotNil(t, ck)
	assert.Equal(t, "oauth-session", ck.Value)
}

func TestOAuthCallback_ExchangeFailure(t *testing.T) {
	ts := newTestServer(t, GuardModeSession)
	ts.provider.exchangeErr = apperrors.Authentication("authorization code was rejected by the identity provider")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/oauth/github/callback?code=bad&state=s1", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "s1"})
	rec := ts.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	ts.accounts.AssertNotCalled(t, "LinkOAuthAccount", mock.Anything, mock.Anything, mock.Anything)
}

// ============================================================================
// Waitlist Handler Tests
// ============================================================================

func TestWaitlistJoin_RecordsClient(t *testing.T) {
	ts := newTestServer(t, GuardModeSession)
	ts.waitlist.On("Join", mock.Anything, service.JoinWaitlistInput{
		Email: "sam@example.com", IPAddress: "198.51.100.4", UserAgent: "curl/8",
	}).Return(&service.JoinWaitlistResult{Success: true, Message: "Successfully joined waitlist!", Position: 5}, nil)

	req := jsonRequest(http.MethodPost, "/api/v1/waitlist", `{"email":"sam@example.com"}`)
	req.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
	req.Header.Set("User-Agent", "curl/8")
	rec := ts.do(req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	data, _ := decodeEnvelope(t, rec)
	assert.EqualValues(t, 5, data["position"])
}

func TestWaitlistJoin_AlreadyJoined(t *testing.T) {
	ts := newTestServer(t, GuardModeSession)
	ts.waitlist.On("Join", mock.Anything, mock.Anything).Return(nil,
		apperrors.Conflict("ALREADY_ON_WAITLIST", "Email already exists in waitlist").WithDetail("position", int64(2)))

	rec := ts.do(jsonRequest(http.MethodPost, "/api/v1/waitlist", `{"email":"sam@example.com"}`))

	assert.Equal(t, http.StatusConflict, rec.Code)
	_, errResp := decodeEnvelope(t, rec)
	assert.EqualValues(t, 2, errResp.Details["position"])
}

// ============================================================================
// Ops
// ============================================================================

func TestHealthLive(t *testing.T) {
	ts := newTestServer(t, GuardModeSession)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
