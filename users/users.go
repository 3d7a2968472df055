package users

import (
	"fmt"
	"strings"
	"time"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
	"golang.org/x/crypto/bcrypt"
)

// TwoFactorMethod is the second factor an account uses to complete a login.
type TwoFactorMethod string

const (
	MethodNone          TwoFactorMethod = "NONE"
	MethodEmail         TwoFactorMethod = "EMAIL"
	MethodAuthenticator TwoFactorMethod = "AUTHENTICATOR_APP"
)

// Normalize maps the empty value the API sends for "no method", and any value
// this client does not know, to MethodNone.
func (m TwoFactorMethod) Normalize() TwoFactorMethod {
	switch m {
	case MethodEmail, MethodAuthenticator:
		return m
	}
	return MethodNone
}

// Selectable reports whether a user may switch their account to m.
func (m TwoFactorMethod) Selectable() bool {
	return m == MethodEmail || m == MethodAuthenticator
}

func (m TwoFactorMethod) String() string {
	return string(m.Normalize())
}

// ParseTwoFactorMethod accepts the wire names plus a few friendly aliases.
func ParseTwoFactorMethod(s string) (TwoFactorMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NONE":
		return MethodNone, nil
	case "EMAIL":
		return MethodEmail, nil
	case "AUTHENTICATOR_APP", "AUTHENTICATOR", "TOTP", "APP":
		return MethodAuthenticator, nil
	}
	return "", fmt.Errorf("unknown two-factor method %q", s)
}

// Profile is the server's view of an account as returned by the profile and
// login-verify endpoints.
type Profile struct {
	ID               int64           `json:"id"`
	Email            string          `json:"email"`
	FirstName        string          `json:"firstName"`
	LastName         string          `json:"lastName"`
	TwoFactorMethod  TwoFactorMethod `json:"twoFactorMethod,omitempty"`
	TwoFactorEnabled bool            `json:"isTwoFactorEnabled"`
}

// User is an account record as held by the development server.
type User struct {
	ID                  int64           // Numeric identifier assigned on signup
	Email               string          // Unique login name
	PasswordHash        string          // bcrypt hash, never serialised
	FirstName           string
	LastName            string
	PhoneNumber         string          // Optional, used by the phone resend channel
	TwoFactorMethod     TwoFactorMethod // Method used for the login code
	TwoFactorEnabled    bool            // True once a method has been set up
	EmailVerified       bool            // Set by verify-email
	AuthenticatorSecret []byte          // TOTP shared secret for MethodAuthenticator
	CreatedAt           time.Time
}

func (u *User) Profile() Profile {
	return Profile{
		ID:               u.ID,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		TwoFactorMethod:  u.TwoFactorMethod.Normalize(),
		TwoFactorEnabled: u.TwoFactorEnabled,
	}
}

// LoginMethod is the method used to deliver the second login factor. Accounts
// that never enabled 2FA still receive an email code.
func (u *User) LoginMethod() TwoFactorMethod {
	if u.TwoFactorEnabled && u.TwoFactorMethod == MethodAuthenticator && len(u.AuthenticatorSecret) > 0 {
		return MethodAuthenticator
	}
	return MethodEmail
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// PasswordStrength is the zxcvbn score (0 weakest, 4 strongest) of password,
// penalising passwords built from the supplied user inputs (email, names).
func PasswordStrength(password string, userInputs ...string) int {
	if password == "" {
		return 0
	}
	return zxcvbn.PasswordStrength(password, userInputs).Score
}
