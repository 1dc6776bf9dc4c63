package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/bouabca/hawiyat-site-sub000/pkg/errors"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.Com\t"))
}

func TestValidEmail(t *testing.T) {
	valid := []string{"a@x.com", "first.last+tag@sub.example.org"}
	invalid := []string{"", "a@x", "ax.com", "a b@x.com", "a@@x.com", strings.Repeat("a", 250) + "@x.com"}

	for _, e := range valid {
		assert.True(t, ValidEmail(e), e)
	}
	for _, e := range invalid {
		assert.False(t, ValidEmail(e), e)
	}
}

func TestCheckPasswordStrength_EachClassReportedSeparately(t *testing.T) {
	tests := []struct {
		password string
		code     string
		message  string
	}{
		{"short1A", "PASSWORD_TOO_SHORT", "Password must be at least 8 characters long"},
		{"alllowercase1", "PASSWORD_MISSING_UPPERCASE", "Password must contain at least one uppercase letter"},
		{"ALLUPPERCASE1", "PASSWORD_MISSING_LOWERCASE", "Password must contain at least one lowercase letter"},
		{"NoDigitsHere", "PASSWORD_MISSING_NUMBER", "Password must contain at least one number"},
	}

	seen := map[string]bool{}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := CheckPasswordStrength(tt.password)
			require.Error(t, err)

			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperrors.KindValidation, appErr.Kind)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, tt.message, appErr.Message)
			seen[appErr.Message] = true
		})
	}
	assert.Len(t, seen, 4)
}

func TestCheckPasswordStrength_Accepts(t *testing.T) {
	assert.NoError(t, CheckPasswordStrength("Passw0rd!"))
}

func TestCheckPasswordLength_SignupRuleIsLengthOnly(t *testing.T) {
	assert.NoError(t, CheckPasswordLength("alllowercase"))
	assert.Error(t, CheckPasswordLength("1234567"))
}

func TestVerificationToken_Expired(t *testing.T) {
	now := time.Now()
	assert.True(t, (&VerificationToken{Expires: now.Add(-time.Second)}).Expired(now))
	assert.False(t, (&VerificationToken{Expires: now.Add(time.Hour)}).Expired(now))
}

func TestVerificationToken_IssuedFor(t *testing.T) {
	tok := &VerificationToken{Identifier: "a@x.com"}
	assert.True(t, tok.IssuedFor("a@x.com"))
	assert.False(t, tok.IssuedFor("b@x.com"))
}

func TestUser_IsVerified(t *testing.T) {
	now := time.Now()
	assert.False(t, (&User{}).IsVerified())
	assert.True(t, (&User{EmailVerified: &now}).IsVerified())
	assert.True(t, (&User{OAuthProvider: "github"}).IsVerified())
}

func TestUser_PublicOmitsCredentials(t *testing.T) {
	u := &User{ID: "u1", Email: "a@x.com", Name: "Jo Do", PasswordHash: "secret", OAuthID: "gh-1"}
	p := u.Public()
	assert.Equal(t, "u1", p.ID)
	assert.Equal(t, "Jo Do", p.Name)
}

func TestFullName(t *testing.T) {
	assert.Equal(t, "Jo Do", FullName(" Jo ", "Do"))
	assert.Equal(t, "Jo", FullName("Jo", " "))
	assert.Equal(t, "Do", FullName("", "Do"))
}
