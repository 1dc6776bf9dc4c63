package domain

import (
	"regexp"
	"strings"
)

// MaxEmailLength is the longest address accepted anywhere.
const MaxEmailLength = 254

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail lowercases and trims an address. The result is the
// canonical lookup key for users, tokens and waitlist entries.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether a normalized address is well formed.
func ValidEmail(email string) bool {
	return len(email) <= MaxEmailLength && emailPattern.MatchString(email)
}

func trim(s string) string {
	return strings.TrimSpace(s)
}
