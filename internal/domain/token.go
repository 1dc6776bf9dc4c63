package domain

import "time"

// VerificationToken is a single-use secret emailed to Identifier. The same
// table serves email verification and password reset; the purpose is set by
// the operation that issues and consumes it.
type VerificationToken struct {
	Token      string    `json:"-"`
	Identifier string    `json:"identifier"`
	Expires    time.Time `json:"expires"`
}

// Expired reports whether the token's expiry is before now.
func (t *VerificationToken) Expired(now time.Time) bool {
	return t.Expires.Before(now)
}

// IssuedFor reports whether the token was issued for the normalized email.
func (t *VerificationToken) IssuedFor(email string) bool {
	return t.Identifier == email
}
