package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bouabca/hawiyat-site-sub000/internal/domain"
	apperrors "github.com/bouabca/hawiyat-site-sub000/pkg/errors"
)

// SessionIssuer is the iss claim on every session token.
const SessionIssuer = "hawiyat-accounts"

// SessionClaims carry the last-known profile next to the subject id so a
// session can still be rendered when the user row is unavailable.
type SessionClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
	jwt.RegisteredClaims
}

// SessionManager signs and validates HS256 session tokens.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionManager creates a manager with the given signing secret and
// session lifetime.
func NewSessionManager(secret string, ttl time.Duration) *SessionManager {
	return &SessionManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the session lifetime.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a session for u.
func (m *SessionManager) Issue(u *domain.User) (string, time.Time, error) {
	now := m.now().UTC()
	expires := now.Add(m.ttl)
	claims := &SessionClaims{
		Email: u.Email,
		Name:  u.Name,
		Image: u.Image,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			Issuer:    SessionIssuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expires, nil
}

// Parse validates a session token and returns its claims. Any failure is
// an Authentication error.
func (m *SessionManager) Parse(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(SessionIssuer),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, &apperrors.AppError{
			Kind:    apperrors.KindAuthentication,
			Code:    "INVALID_SESSION",
			Message: "invalid or expired session",
			Err:     fmt.Errorf("%w: %v", apperrors.ErrUnauthorized, err),
		}
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, apperrors.Authentication("invalid or expired session")
	}
	return claims, nil
}
