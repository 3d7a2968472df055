package auth

import (
	"github.com/wilsonhuang01/CMPE-272-2FA/gateway"
	apperrors "github.com/wilsonhuang01/CMPE-272-2FA/internal/errors"
)

// Form names the user-facing submission an error belongs to.
type Form string

const (
	FormCredentials     Form = "credentials"
	FormCode            Form = "code"
	FormSignup          Form = "signup"
	FormVerifyEmail     Form = "verify-email"
	FormResend          Form = "resend-code"
	FormChangePassword  Form = "change-password"
	FormChangeTwoFactor Form = "change-2fa"
	FormEnrollment      Form = "enrollment"
	FormProfile         Form = "profile"
	FormLogout          Form = "logout"
)

var allForms = []Form{
	FormCredentials, FormCode, FormSignup, FormVerifyEmail, FormResend,
	FormChangePassword, FormChangeTwoFactor, FormEnrollment, FormProfile, FormLogout,
}

// FormError is the only error type the controller returns. Error() is safe to
// show to the user; errors.Is still matches the underlying kind.
type FormError struct {
	Form    Form
	Message string
	Err     error
}

func (e *FormError) Error() string {
	return e.Message
}

func (e *FormError) Unwrap() error {
	return e.Err
}

// validationError carries a message meant for the user.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }
func (e *validationError) Unwrap() error { return apperrors.ErrValidation }

func invalid(msg string) error {
	return &validationError{msg: msg}
}

// formError converts any failure into a *FormError.
func formError(form Form, err error) *FormError {
	if err == nil {
		return nil
	}
	var fe *FormError
	if apperrors.As(err, &fe) {
		return fe
	}

	var apiErr *gateway.APIError
	var ve *validationError
	switch {
	case apperrors.As(err, &apiErr):
		return &FormError{Form: form, Message: apiErr.Message, Err: err}
	case apperrors.As(err, &ve):
		return &FormError{Form: form, Message: ve.msg, Err: err}
	case apperrors.Is(err, apperrors.ErrNoActiveSession):
		return &FormError{Form: form, Message: "Please log in to continue.", Err: err}
	case apperrors.Is(err, apperrors.ErrSubmissionInProgress):
		return &FormError{Form: form, Message: "Please wait, your previous request is still being processed.", Err: err}
	}
	return &FormError{Form: form, Message: "Something went wrong. Please try again.", Err: err}
}
