package auth

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/wilsonhuang01/CMPE-272-2FA/internal/config"
	"github.com/wilsonhuang01/CMPE-272-2FA/users"
)

// Validator holds the checks every form runs before anything is sent.
type Validator struct {
	minPasswordLength int
	code              *regexp.Regexp
	codeLength        int
}

// NewValidator creates a Validator from cfg; a nil cfg uses the defaults.
func NewValidator(cfg config.ValidationConfig) *Validator {
	if cfg == nil {
		cfg = config.Validation{}
	}
	return &Validator{
		minPasswordLength: cfg.GetMinPasswordLength(),
		code:              regexp.MustCompile(fmt.Sprintf(`^[0-9]{%d}$`, cfg.GetCodeLength())),
		codeLength:        cfg.GetCodeLength(),
	}
}

func (v *Validator) ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid("Email is required")
	}
	if at := strings.Index(email, "@"); at < 1 || at == len(email)-1 {
		return invalid("Please enter a valid email address")
	}
	return nil
}

func (v *Validator) ValidateCredentials(email, password string) error {
	if err := v.ValidateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return invalid("Password is required")
	}
	return nil
}

// ValidateCode accepts exactly the configured number of ASCII digits.
func (v *Validator) ValidateCode(code string) error {
	if !v.code.MatchString(code) {
		return invalid(fmt.Sprintf("Please enter a valid %d-digit code", v.codeLength))
	}
	return nil
}

// ValidateNewPassword checks a password being set, not one being presented.
func (v *Validator) ValidateNewPassword(password, confirm string) error {
	if password != confirm {
		return invalid("Password and confirmation do not match")
	}
	if len(password) < v.minPasswordLength {
		return invalid(fmt.Sprintf("Password must be at least %d characters", v.minPasswordLength))
	}
	return nil
}

func (v *Validator) ValidateSignup(form SignupForm) error {
	if err := v.ValidateEmail(form.Email); err != nil {
		return err
	}
	if strings.TrimSpace(form.FirstName) == "" {
		return invalid("First name is required")
	}
	if strings.TrimSpace(form.LastName) == "" {
		return invalid("Last name is required")
	}
	if err := v.ValidateNewPassword(form.Password, form.ConfirmPassword); err != nil {
		return err
	}
	if form.TwoFactorMethod != "" && !form.TwoFactorMethod.Selectable() {
		return invalid("Please choose email or authenticator app")
	}
	return nil
}

func (v *Validator) ValidatePasswordChange(current, next, confirm string) error {
	if current == "" {
		return invalid("Current password is required")
	}
	return v.ValidateNewPassword(next, confirm)
}

func (v *Validator) ValidateTwoFactorChange(req TwoFactorChangeRequest) error {
	if req.CurrentPassword == "" {
		return invalid("Password is required to change your two-factor method")
	}
	if !req.RequestedMethod.Selectable() {
		return invalid("Please choose email or authenticator app")
	}
	return nil
}

// StrengthHint turns a zxcvbn score into advice; strong passwords get none.
func StrengthHint(score int) string {
	switch {
	case score <= 1:
		return "This password is easy to guess. Consider a longer passphrase."
	case score == 2:
		return "This password is fair. Adding words or symbols would make it stronger."
	}
	return ""
}

func passwordScore(form SignupForm) int {
	return users.PasswordStrength(form.Password, form.Email, form.FirstName, form.LastName)
}
