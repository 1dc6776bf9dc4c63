package domain

import (
	"time"
)

// User is a locally stored account. PasswordHash is empty for accounts
// created through an identity provider; EmailVerified is nil until the
// owner confirms their address.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Image         string     `json:"image,omitempty"`
	PasswordHash  string     `json:"-"`
	EmailVerified *time.Time `json:"emailVerified"`
	OAuthProvider string     `json:"-"`
	OAuthID       string     `json:"-"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// HasPassword reports whether credential login is possible.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// IsVerified reports whether the address is trusted: either confirmed by
// email or vouched for by an identity provider.
func (u *User) IsVerified() bool {
	return u.EmailVerified != nil || u.OAuthProvider != ""
}

// PublicUser is the user shape returned to clients.
type PublicUser struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Image         string     `json:"image,omitempty"`
	EmailVerified *time.Time `json:"emailVerified"`
}

// Public strips credentials and provider linkage.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Image:         u.Image,
		EmailVerified: u.EmailVerified,
	}
}

// FullName joins first and last name the way signup stores it.
func FullName(first, last string) string {
	first, last = trim(first), trim(last)
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}
