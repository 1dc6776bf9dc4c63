// Package notify sends the transactional account emails.
package notify

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
)

// Mailer is the notification gateway used by the account service. A
// returned error means the email was not handed to the relay, unless it
// wraps ErrDeliveryUnknown.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, name, token string) error
	SendWelcomeEmail(ctx context.Context, to, name string) error
	SendPasswordResetEmail(ctx context.Context, to, name, token string) error
}

// DefaultSendTimeout bounds one SMTP delivery when Config.SendTimeout is unset.
const DefaultSendTimeout = 30 * time.Second

// ErrDeliveryUnknown is returned when a send outlived its timeout. The relay
// may still accept the message.
var ErrDeliveryUnknown = errors.New("email delivery outcome unknown")

// Config holds SMTP settings and the values rendered into emails.
type Config struct {
	AppName         string
	BaseURL         string
	Host            string
	Port            int
	User            string
	Password        string
	From            string
	Secure          bool
	LogoPath        string
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	SendTimeout     time.Duration
}

// FromAddress returns the address emails are sent from.
func (c Config) FromAddress() string {
	if c.From != "" {
		return c.From
	}
	return c.User
}

func (c Config) sendTimeout() time.Duration {
	if c.SendTimeout <= 0 {
		return DefaultSendTimeout
	}
	return c.SendTimeout
}

func (c Config) baseURL() string {
	return strings.TrimRight(c.BaseURL, "/")
}

// VerificationURL is the link embedded in verification emails.
func VerificationURL(baseURL, token, email string) string {
	return strings.TrimRight(baseURL, "/") + "/api/v1/auth/verify-email?" + url.Values{
		"token": {token},
		"email": {email},
	}.Encode()
}

// ResetURL is the link embedded in password reset emails.
func ResetURL(baseURL, token, email string) string {
	return strings.TrimRight(baseURL, "/") + "/auth/reset-password?" + url.Values{
		"token": {token},
		"email": {email},
	}.Encode()
}
