// Package principal models the two account classes subject to
// authentication: administrators and end users. Both are structurally
// identical at the session layer and differ only in class, which selects
// the signing namespace and cookie names.
package principal

import (
	"fmt"
	"regexp"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// Class selects the principal namespace.
type Class string

const (
	ClassAdmin Class = "admin"
	ClassUser  Class = "user"
)

// SocialTypeGoogle is the only supported social provider.
const SocialTypeGoogle = "google"

type Principal struct {
	ID           string    `json:"id,omitempty"`
	Class        Class     `json:"-"`
	Email        string    `json:"email,omitempty"`
	Username     string    `json:"username,omitempty"`
	FullName     string    `json:"fullName,omitempty"`
	PhoneNumber  string    `json:"phoneNumber,omitempty"`
	DOB          time.Time `json:"dob,omitempty"`
	Role         string    `json:"role,omitempty"` // admin namespace only
	SecretHash   string    `json:"-"`              // bcrypt hash - never serialize
	SocialAuth   bool      `json:"socialAuth,omitempty"`
	SocialType   string    `json:"socialType,omitempty"`
	SocialToken  string    `json:"-"` // provider access token - never serialize
	ProfileImage string    `json:"profileImage,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
}

// Sanitized returns a copy safe to attach to a request or return to a
// client: the secret hash is cleared. The provider token is kept on the
// value (it is needed for upstream revocation) but is never serialized.
func (p *Principal) Sanitized() *Principal {
	out := *p
	out.SecretHash = ""
	return &out
}

// HasPassword reports whether the account was registered through the
// password path. Password and social login are mutually exclusive.
func (p *Principal) HasPassword() bool {
	return p.SecretHash != ""
}

func HashSecret(secret string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckSecretHash(secret, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	return err == nil
}

// ValidateSecretStrength checks if a password or pin meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidateSecretStrength(secret string) error {
	if len(secret) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range secret {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

var emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func ValidateEmail(email string) error {
	if !emailRegexp.MatchString(email) {
		return fmt.Errorf("invalid email address")
	}
	return nil
}
