package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/wilsonhuang01/CMPE-272-2FA/gateway"
	apperrors "github.com/wilsonhuang01/CMPE-272-2FA/internal/errors"
	"github.com/wilsonhuang01/CMPE-272-2FA/internal/utils"
	"github.com/wilsonhuang01/CMPE-272-2FA/sessions"
	"github.com/wilsonhuang01/CMPE-272-2FA/users"
)

// ChangeState is a step of the 2FA method change.
type ChangeState int

const (
	ChangeIdle ChangeState = iota
	ChangeAwaitingPasswordConfirm
	ChangeAwaitingEnrollmentCode
	ChangeDone
)

func (s ChangeState) String() string {
	switch s {
	case ChangeIdle:
		return "idle"
	case ChangeAwaitingPasswordConfirm:
		return "awaiting-password-confirm"
	case ChangeAwaitingEnrollmentCode:
		return "awaiting-enrollment-code"
	case ChangeDone:
		return "done"
	}
	return fmt.Sprintf("change-state(%d)", int(s))
}

// TwoFactorChangeRequest asks to switch the account's second factor. The
// password is a step-up confirmation and is never stored or logged.
type TwoFactorChangeRequest struct {
	CurrentPassword string
	RequestedMethod users.TwoFactorMethod
	PhoneNumber     string
}

// Enrollment is an authenticator app set-up waiting for its first code.
type Enrollment struct {
	ProvisioningURI string // otpauth:// URI to render as a QR code
	Message         string
}

func (c *Controller) ChangeState() ChangeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.change
}

// Enrollment returns the authenticator set-up in progress.
func (c *Controller) Enrollment() (Enrollment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enrolled == nil {
		return Enrollment{}, false
	}
	return *c.enrolled, true
}

// BeginTwoFactorChange opens the password confirmation step.
func (c *Controller) BeginTwoFactorChange() error {
	if !c.deps.Sessions.Authenticated() {
		return c.fail(FormChangeTwoFactor, apperrors.ErrNoActiveSession)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.change = ChangeAwaitingPasswordConfirm
	c.enrolled = nil
	c.lastErr = nil
	return nil
}

// SubmitTwoFactorChange confirms the password and requests the new method.
// Switching to the authenticator app leaves the session untouched until the
// enrollment code is verified; switching to email refreshes it right away.
func (c *Controller) SubmitTwoFactorChange(ctx context.Context, req TwoFactorChangeRequest) error {
	release, err := c.acquire(FormChangeTwoFactor)
	if err != nil {
		return err
	}
	defer release()

	if !c.deps.Sessions.Authenticated() {
		return c.fail(FormChangeTwoFactor, apperrors.ErrNoActiveSession)
	}
	c.mu.Lock()
	if c.change != ChangeAwaitingPasswordConfirm {
		c.change = ChangeAwaitingPasswordConfirm
		c.enrolled = nil
	}
	c.mu.Unlock()

	req.RequestedMethod = req.RequestedMethod.Normalize()
	if err := c.validator.ValidateTwoFactorChange(req); err != nil {
		return c.fail(FormChangeTwoFactor, err)
	}

	change, err := c.deps.Gateway.ChangeTwoFactor(ctx, gateway.ChangeTwoFactorRequest{
		Password:           req.CurrentPassword,
		NewTwoFactorMethod: req.RequestedMethod,
		PhoneNumber:        strings.TrimSpace(req.PhoneNumber),
	})
	if err != nil {
		return c.fail(FormChangeTwoFactor, err)
	}

	if req.RequestedMethod == users.MethodAuthenticator {
		c.mu.Lock()
		c.change = ChangeAwaitingEnrollmentCode
		c.enrolled = &Enrollment{ProvisioningURI: change.ProvisioningURI, Message: change.Message}
		c.lastErr = nil
		c.mu.Unlock()
		log.Info().Msg("Authenticator enrollment started")
		return nil
	}

	c.mu.Lock()
	c.change = ChangeDone
	c.lastErr = nil
	c.mu.Unlock()
	log.Info().Str("method", req.RequestedMethod.String()).Msg("Two-factor method changed")

	if err := c.refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("Profile refresh after two-factor change failed, applying the change locally")
		c.applyMethodLocally(ctx, req.RequestedMethod)
	}
	return nil
}

// SubmitEnrollmentCode verifies the first authenticator code. Only after this
// succeeds does the session report the authenticator as enabled.
func (c *Controller) SubmitEnrollmentCode(ctx context.Context, code string) error {
	release, err := c.acquire(FormEnrollment)
	if err != nil {
		return err
	}
	defer release()

	if c.ChangeState() != ChangeAwaitingEnrollmentCode {
		return c.fail(FormEnrollment, invalid("No authenticator set-up is in progress"))
	}
	current, ok := c.deps.Sessions.Current()
	if !ok {
		return c.fail(FormEnrollment, apperrors.ErrNoActiveSession)
	}
	code = strings.TrimSpace(code)
	if err := c.validator.ValidateCode(code); err != nil {
		return c.fail(FormEnrollment, err)
	}

	if _, err := c.deps.Gateway.VerifyAuthenticator(ctx, gateway.VerificationRequest{Email: current.Email, Code: code}); err != nil {
		return c.fail(FormEnrollment, err)
	}

	if err := c.refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("Profile refresh after enrollment failed, applying the change locally")
		c.applyMethodLocally(ctx, users.MethodAuthenticator)
	}

	c.mu.Lock()
	c.change = ChangeDone
	c.enrolled = nil
	c.lastErr = nil
	c.mu.Unlock()
	log.Info().Str("email", utils.MaskEmail(current.Email)).Msg("Authenticator app enabled")
	return nil
}

// CancelTwoFactorChange abandons the change. A method already switched on the
// server stays switched.
func (c *Controller) CancelTwoFactorChange() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.change = ChangeIdle
	c.enrolled = nil
	c.lastErr = nil
}

// applyMethodLocally records a confirmed method change when the server's
// profile could not be fetched.
func (c *Controller) applyMethodLocally(ctx context.Context, method users.TwoFactorMethod) {
	patch := sessions.Patch{
		TwoFactorMethod:  utils.Ptr(method),
		TwoFactorEnabled: utils.Ptr(true),
	}
	if err := c.deps.Sessions.Update(ctx, patch); err != nil {
		log.Warn().Err(err).Msg("Local two-factor update failed")
	}
}
