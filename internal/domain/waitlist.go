package domain

import "time"

// WaitlistEntry records interest from someone without an account.
type WaitlistEntry struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	IPAddress string    `json:"-"`
	UserAgent string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}
