package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/bouabca/hawiyat-site-sub000/internal/domain"
	apperrors "github.com/bouabca/hawiyat-site-sub000/pkg/errors"
)

func TestPasswordHasher_HashAndMatch(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("Passw0rd!")
	require.NoError(t, err)
	assert.NotEqual(t, "Passw0rd!", hash)
	assert.True(t, h.Matches(hash, "Passw0rd!"))
	assert.False(t, h.Matches(hash, "passw0rd!"))
	assert.False(t, h.Matches("", "Passw0rd!"))
}

func TestPasswordHasher_CostOutOfRangeUsesDefault(t *testing.T) {
	assert.Equal(t, DefaultBcryptCost, NewPasswordHasher(0).cost)
	assert.Equal(t, DefaultBcryptCost, NewPasswordHasher(99).cost)
}

func TestPasswordHasher_TooLong(t *testing.T) {
	_, err := NewPasswordHasher(bcrypt.MinCost).Hash(string(make([]byte, 73)))
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestNewToken(t *testing.T) {
	a, err := NewToken()
	require.NoError(t, err)
	b, err := NewToken()
	require.NoError(t, err)

	assert.Len(t, a, 2*TokenBytes)
	assert.NotEqual(t, a, b)
}

func testUser() *domain.User {
	return &domain.User{ID: "u-1", Email: "a@x.com", Name: "Jo Do", Image: "https://img/a.png"}
}

func TestSessionManager_IssueAndParse(t *testing.T) {
	m := NewSessionManager("test-secret-that-is-long-enough-000", time.Hour)

	token, expires, err := m.Issue(testUser())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, "Jo Do", claims.Name)
	assert.Equal(t, SessionIssuer, claims.Issuer)
}

func TestSessionManager_Expired(t *testing.T) {
	m := NewSessionManager("secret", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := m.Issue(testUser())
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Parse(token)
	assert.Equal(t, apperrors.KindAuthentication, apperrors.KindOf(err))
}

func TestSessionManager_WrongSecret(t *testing.T) {
	token, _, err := NewSessionManager("secret-a", time.Hour).Issue(testUser())
	require.NoError(t, err)

	_, err = NewSessionManager("secret-b", time.Hour).Parse(token)
	assert.Equal(t, apperrors.KindAuthentication, apperrors.KindOf(err))
}

func TestSessionManager_RejectsNoneAlgorithm(t *testing.T) {
	claims := &SessionClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u-1",
		Issuer:    SessionIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewSessionManager("secret", time.Hour).Parse(token)
	assert.Error(t, err)
}
