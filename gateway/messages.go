package gateway

import (
	"strings"

	apperrors "github.com/wilsonhuang01/CMPE-272-2FA/internal/errors"
	"github.com/wilsonhuang01/CMPE-272-2FA/internal/utils"
	"github.com/wilsonhuang01/CMPE-272-2FA/users"
)

// Channel selects where a resent verification code goes.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPhone Channel = "phone"
)

// AuthResponse is the single response shape every auth endpoint returns.
// Which fields are set depends on the endpoint.
type AuthResponse struct {
	Token             string                `json:"token,omitempty"`
	Type              string                `json:"type,omitempty"`
	ID                int64                 `json:"id,omitempty"`
	Email             string                `json:"email,omitempty"`
	FirstName         string                `json:"firstName,omitempty"`
	LastName          string                `json:"lastName,omitempty"`
	TwoFactorMethod   users.TwoFactorMethod `json:"twoFactorMethod,omitempty"`
	TwoFactorEnabled  *bool                 `json:"isTwoFactorEnabled,omitempty"`
	RequiresTwoFactor *bool                 `json:"requiresTwoFactor,omitempty"`
	Message           string                `json:"message,omitempty"`
	QRCode            string                `json:"qrCode,omitempty"`
}

func (r *AuthResponse) Profile() users.Profile {
	return users.Profile{
		ID:               r.ID,
		Email:            r.Email,
		FirstName:        r.FirstName,
		LastName:         r.LastName,
		TwoFactorMethod:  r.TwoFactorMethod.Normalize(),
		TwoFactorEnabled: utils.Value(r.TwoFactorEnabled),
	}
}

// SignupRequest registers a new account.
type SignupRequest struct {
	Email           string                `json:"email"`
	Password        string                `json:"password"`
	ConfirmPassword string                `json:"confirmPassword"`
	FirstName       string                `json:"firstName"`
	LastName        string                `json:"lastName"`
	PhoneNumber     string                `json:"phoneNumber,omitempty"`
	TwoFactorMethod users.TwoFactorMethod `json:"twoFactorMethod,omitempty"`
}

func (r SignupRequest) Validate() error {
	if err := required("email", r.Email, "password", r.Password, "password confirmation", r.ConfirmPassword); err != nil {
		return err
	}
	if r.TwoFactorMethod != "" && !r.TwoFactorMethod.Selectable() {
		return apperrors.Wrapf(apperrors.ErrValidation, "unsupported two-factor method %q", r.TwoFactorMethod)
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return required("email", r.Email, "password", r.Password)
}

// VerificationRequest carries a six-digit code for login-verify, verify-email
// and verify-authenticator.
type VerificationRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (r VerificationRequest) Validate() error {
	return required("email", r.Email, "verification code", r.Code)
}

type ResendCodeRequest struct {
	Email   string
	Channel Channel
}

func (r ResendCodeRequest) Validate() error {
	if err := required("email", r.Email); err != nil {
		return err
	}
	if r.Channel != ChannelEmail && r.Channel != ChannelPhone {
		return apperrors.Wrapf(apperrors.ErrValidation, "invalid verification type %q", r.Channel)
	}
	return nil
}

type ChangePasswordRequest struct {
	CurrentPassword    string `json:"currentPassword"`
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
}

func (r ChangePasswordRequest) Validate() error {
	return required("current password", r.CurrentPassword, "new password", r.NewPassword, "password confirmation", r.ConfirmNewPassword)
}

type ChangeTwoFactorRequest struct {
	Password           string                `json:"password"`
	NewTwoFactorMethod users.TwoFactorMethod `json:"newTwoFactorMethod"`
	PhoneNumber        string                `json:"phoneNumber,omitempty"`
}

func (r ChangeTwoFactorRequest) Validate() error {
	if err := required("password", r.Password); err != nil {
		return err
	}
	if !r.NewTwoFactorMethod.Selectable() {
		return apperrors.Wrapf(apperrors.ErrValidation, "unsupported two-factor method %q", r.NewTwoFactorMethod)
	}
	return nil
}

// LoginChallenge is the outcome of login step one: the credentials were
// accepted and a code is expected via Method.
type LoginChallenge struct {
	Method            users.TwoFactorMethod
	RequiresTwoFactor bool
	Message           string
}

// LoginResult is the outcome of login step two.
type LoginResult struct {
	Token   string
	Profile users.Profile
}

// TwoFactorChange is the outcome of a 2FA method change. ProvisioningURI is
// only set when switching to the authenticator app.
type TwoFactorChange struct {
	Method          users.TwoFactorMethod
	Message         string
	ProvisioningURI string
}

// required takes name/value pairs and fails on the first empty value.
func required(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return apperrors.Wrapf(apperrors.ErrValidation, "%s is required", pairs[i])
		}
	}
	return nil
}
