package domain

import "time"

// Session is the caller-facing view of an authenticated session.
type Session struct {
	UserID    string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Image     string    `json:"image,omitempty"`
	ExpiresAt time.Time `json:"expires"`
}
