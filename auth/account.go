package auth

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/wilsonhuang01/CMPE-272-2FA/gateway"
	apperrors "github.com/wilsonhuang01/CMPE-272-2FA/internal/errors"
	"github.com/wilsonhuang01/CMPE-272-2FA/internal/utils"
	"github.com/wilsonhuang01/CMPE-272-2FA/sessions"
	"github.com/wilsonhuang01/CMPE-272-2FA/users"
)

// SignupForm is what the user fills in to create an account.
type SignupForm struct {
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
	PhoneNumber     string
	TwoFactorMethod users.TwoFactorMethod // optional initial method
}

// SignupResult reports the server's message plus an advisory password hint.
type SignupResult struct {
	Message       string
	StrengthScore int
	StrengthHint  string

	// ProvisioningURI is set when the account starts on the authenticator app.
	ProvisioningURI string
}

// Signup creates an account. The new user still has to verify their email.
func (c *Controller) Signup(ctx context.Context, form SignupForm) (SignupResult, error) {
	release, err := c.acquire(FormSignup)
	if err != nil {
		return SignupResult{}, err
	}
	defer release()

	form.Email = strings.TrimSpace(form.Email)
	form.FirstName = strings.TrimSpace(form.FirstName)
	form.LastName = strings.TrimSpace(form.LastName)
	if err := c.validator.ValidateSignup(form); err != nil {
		return SignupResult{}, c.fail(FormSignup, err)
	}

	score := passwordScore(form)
	resp, err := c.deps.Gateway.Signup(ctx, gateway.SignupRequest{
		Email:           form.Email,
		Password:        form.Password,
		ConfirmPassword: form.ConfirmPassword,
		FirstName:       form.FirstName,
		LastName:        form.LastName,
		PhoneNumber:     strings.TrimSpace(form.PhoneNumber),
		TwoFactorMethod: form.TwoFactorMethod,
	})
	if err != nil {
		return SignupResult{}, c.fail(FormSignup, err)
	}

	log.Info().Str("email", utils.MaskEmail(form.Email)).Int("strength", score).Msg("Account created")
	return SignupResult{
		Message:         resp.Message,
		StrengthScore:   score,
		StrengthHint:    StrengthHint(score),
		ProvisioningURI: resp.QRCode,
	}, nil
}

func (c *Controller) VerifyEmail(ctx context.Context, email, code string) (string, error) {
	release, err := c.acquire(FormVerifyEmail)
	if err != nil {
		return "", err
	}
	defer release()

	email, code = strings.TrimSpace(email), strings.TrimSpace(code)
	if err := c.validator.ValidateEmail(email); err != nil {
		return "", c.fail(FormVerifyEmail, err)
	}
	if err := c.validator.ValidateCode(code); err != nil {
		return "", c.fail(FormVerifyEmail, err)
	}

	msg, err := c.deps.Gateway.VerifyEmail(ctx, gateway.VerificationRequest{Email: email, Code: code})
	if err != nil {
		return "", c.fail(FormVerifyEmail, err)
	}
	log.Info().Str("email", utils.MaskEmail(email)).Msg("Email verified")
	return msg, nil
}

func (c *Controller) ResendCode(ctx context.Context, email string, channel gateway.Channel) (string, error) {
	release, err := c.acquire(FormResend)
	if err != nil {
		return "", err
	}
	defer release()

	email = strings.TrimSpace(email)
	if err := c.validator.ValidateEmail(email); err != nil {
		return "", c.fail(FormResend, err)
	}
	if channel == "" {
		channel = gateway.ChannelEmail
	}

	msg, err := c.deps.Gateway.ResendCode(ctx, gateway.ResendCodeRequest{Email: email, Channel: channel})
	if err != nil {
		return "", c.fail(FormResend, err)
	}
	return msg, nil
}

func (c *Controller) ChangePassword(ctx context.Context, current, next, confirm string) (string, error) {
	release, err := c.acquire(FormChangePassword)
	if err != nil {
		return "", err
	}
	defer release()

	if !c.deps.Sessions.Authenticated() {
		return "", c.fail(FormChangePassword, apperrors.ErrNoActiveSession)
	}
	if err := c.validator.ValidatePasswordChange(current, next, confirm); err != nil {
		return "", c.fail(FormChangePassword, err)
	}

	msg, err := c.deps.Gateway.ChangePassword(ctx, gateway.ChangePasswordRequest{
		CurrentPassword:    current,
		NewPassword:        next,
		ConfirmNewPassword: confirm,
	})
	if err != nil {
		return "", c.fail(FormChangePassword, err)
	}
	log.Info().Msg("Password changed")
	return msg, nil
}

// RefreshProfile re-reads the account from the server and merges it into the
// session. A refresh overtaken by a logout or a newer change is dropped.
func (c *Controller) RefreshProfile(ctx context.Context) error {
	release, err := c.acquire(FormProfile)
	if err != nil {
		return err
	}
	defer release()

	if err := c.refresh(ctx); err != nil {
		return c.fail(FormProfile, err)
	}
	return nil
}

func (c *Controller) refresh(ctx context.Context) error {
	if !c.deps.Sessions.Authenticated() {
		return apperrors.ErrNoActiveSession
	}
	ticket := c.deps.Sessions.Ticket()
	profile, err := c.deps.Gateway.GetProfile(ctx)
	if err != nil {
		return err
	}
	if profile.ID <= 0 || strings.TrimSpace(profile.Email) == "" {
		log.Warn().Int64("user_id", profile.ID).Msg("Profile response lacked id or email, session left as is")
		return &FormError{
			Form:    FormProfile,
			Message: "Your profile could not be loaded. Please try again.",
			Err:     apperrors.ErrServer,
		}
	}
	applied, err := c.deps.Sessions.UpdateWithTicket(ctx, ticket, sessions.PatchFromProfile(profile))
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNoActiveSession) {
			return err
		}
		// In memory the session is up to date; only persistence failed.
		log.Warn().Err(errors.Wrap(err, "[Controller.refresh] UpdateWithTicket")).Msg("Refreshed profile not persisted")
		return nil
	}
	if !applied {
		log.Debug().Msg("Stale profile refresh dropped")
	}
	return nil
}

// Logout revokes the token on the server when it can and always ends the
// local session.
func (c *Controller) Logout(ctx context.Context) error {
	release, err := c.acquire(FormLogout)
	if err != nil {
		return err
	}
	defer release()

	if c.deps.Sessions.Authenticated() {
		if _, err := c.deps.Gateway.Logout(ctx); err != nil {
			log.Warn().Err(err).Msg("Server logout failed, clearing the local session anyway")
		}
	}
	if err := c.deps.Sessions.Clear(ctx); err != nil {
		log.Warn().Err(err).Msg("Local session cleared but stored credentials remain")
	}

	c.mu.Lock()
	c.state = StateIdle
	c.pending = nil
	c.lastErr = nil
	c.change = ChangeIdle
	c.enrolled = nil
	c.mu.Unlock()

	log.Info().Msg("Logged out")
	return nil
}
