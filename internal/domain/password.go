package domain

import (
	"unicode"

	apperrors "github.com/bouabca/hawiyat-site-sub000/pkg/errors"
)

// MinPasswordLength applies to every password set by a user.
const MinPasswordLength = 8

// CheckPasswordLength is the signup rule: length only.
func CheckPasswordLength(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return apperrors.Validation("PASSWORD_TOO_SHORT", "Password must be at least 8 characters long")
	}
	return nil
}

// CheckPasswordStrength is the reset rule. Each character class is checked
// on its own so the error names exactly what is missing.
func CheckPasswordStrength(password string) error {
	if err := CheckPasswordLength(password); err != nil {
		return err
	}

	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}

	switch {
	case !lower:
		return apperrors.Validation("PASSWORD_MISSING_LOWERCASE", "Password must contain at least one lowercase letter")
	case !upper:
		return apperrors.Validation("PASSWORD_MISSING_UPPERCASE", "Password must contain at least one uppercase letter")
	case !digit:
		return apperrors.Validation("PASSWORD_MISSING_NUMBER", "Password must contain at least one number")
	}
	return nil
}
