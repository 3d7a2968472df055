package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/wilsonhuang01/CMPE-272-2FA/gateway"
	"github.com/wilsonhuang01/CMPE-272-2FA/internal/config"
	apperrors "github.com/wilsonhuang01/CMPE-272-2FA/internal/errors"
	"github.com/wilsonhuang01/CMPE-272-2FA/internal/utils"
	"github.com/wilsonhuang01/CMPE-272-2FA/sessions"
	"github.com/wilsonhuang01/CMPE-272-2FA/users"
)

// State is a step of the two-step login.
type State int

const (
	StateIdle State = iota
	StateAwaitingCredentials
	StateAwaitingCode
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingCredentials:
		return "awaiting-credentials"
	case StateAwaitingCode:
		return "awaiting-code"
	case StateAuthenticated:
		return "authenticated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// PendingVerification exists between "credentials accepted" and "code
// verified or abandoned". It never holds a token.
type PendingVerification struct {
	Email           string
	TwoFactorMethod users.TwoFactorMethod // as declared by the server
	Attempted       bool                  // a code has been sent for checking at least once
}

// Gateway is the part of the auth API the controller drives.
type Gateway interface {
	Signup(ctx context.Context, req gateway.SignupRequest) (*gateway.AuthResponse, error)
	Login(ctx context.Context, req gateway.LoginRequest) (*gateway.LoginChallenge, error)
	VerifyLogin(ctx context.Context, req gateway.VerificationRequest) (*gateway.LoginResult, error)
	VerifyEmail(ctx context.Context, req gateway.VerificationRequest) (string, error)
	ResendCode(ctx context.Context, req gateway.ResendCodeRequest) (string, error)
	GetProfile(ctx context.Context) (users.Profile, error)
	ChangePassword(ctx context.Context, req gateway.ChangePasswordRequest) (string, error)
	ChangeTwoFactor(ctx context.Context, req gateway.ChangeTwoFactorRequest) (*gateway.TwoFactorChange, error)
	VerifyAuthenticator(ctx context.Context, req gateway.VerificationRequest) (string, error)
	Logout(ctx context.Context) (string, error)
}

var _ Gateway = (*gateway.Client)(nil)

// Deps holds the collaborators of a Controller.
type Deps struct {
	Gateway  Gateway
	Sessions *sessions.Store
}

// Controller drives the login state machine, the 2FA change sub-flow and the
// remaining account forms. Every exported method is safe for concurrent use.
type Controller struct {
	deps      Deps
	validator *Validator

	mu       sync.Mutex
	state    State
	pending  *PendingVerification
	lastErr  *FormError
	change   ChangeState
	enrolled *Enrollment

	forms       map[Form]*sync.Mutex
	unsubscribe func()
}

// ControllerOption defines a function type to modify the Controller instance.
type ControllerOption func(*Controller)

// WithValidation overrides the password and code rules.
func WithValidation(cfg config.ValidationConfig) ControllerOption {
	return func(c *Controller) {
		c.validator = NewValidator(cfg)
	}
}

// NewController wires a controller to the gateway and the process's session
// store. It starts Authenticated when the store already holds a session.
func NewController(deps Deps, options ...ControllerOption) (*Controller, error) {
	if deps.Gateway == nil {
		return nil, errors.New("[NewController] Gateway is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("[NewController] Sessions store is required")
	}

	c := &Controller{
		deps:      deps,
		validator: NewValidator(nil),
		forms:     make(map[Form]*sync.Mutex, len(allForms)),
	}
	for _, f := range allForms {
		c.forms[f] = &sync.Mutex{}
	}
	for _, opt := range options {
		opt(c)
	}

	if deps.Sessions.Authenticated() {
		c.state = StateAuthenticated
	}
	c.unsubscribe = deps.Sessions.Subscribe(c.sessionChanged)
	return c, nil
}

// Close detaches the controller from the session store.
func (c *Controller) Close() {
	c.unsubscribe()
}

// sessionChanged keeps the login state in line with the store, for example
// when the gateway drops the session after a 401.
func (c *Controller) sessionChanged(_ sessions.Session, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		c.state = StateAuthenticated
		c.pending = nil
		return
	}
	if c.state == StateAuthenticated {
		c.state = StateIdle
	}
	c.change = ChangeIdle
	c.enrolled = nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending returns a copy of the verification in progress.
func (c *Controller) Pending() (PendingVerification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return PendingVerification{}, false
	}
	return *c.pending, true
}

// LastError is the message of the most recent failed submission, or nil.
func (c *Controller) LastError() *FormError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Begin opens the credentials form, abandoning any verification in progress.
func (c *Controller) Begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateAuthenticated {
		return
	}
	c.state = StateAwaitingCredentials
	c.pending = nil
	c.lastErr = nil
}

// SubmitCredentials is login step one. On success the controller awaits a
// code delivered via the method the server declared.
func (c *Controller) SubmitCredentials(ctx context.Context, email, password string) error {
	release, err := c.acquire(FormCredentials)
	if err != nil {
		return err
	}
	defer release()

	email = strings.TrimSpace(email)
	if c.State() == StateAuthenticated {
		return c.fail(FormCredentials, invalid("You are already logged in"))
	}
	c.setState(StateAwaitingCredentials)
	if err := c.validator.ValidateCredentials(email, password); err != nil {
		return c.fail(FormCredentials, err)
	}

	challenge, err := c.deps.Gateway.Login(ctx, gateway.LoginRequest{Email: email, Password: password})
	if err != nil {
		return c.fail(FormCredentials, err)
	}

	c.mu.Lock()
	c.state = StateAwaitingCode
	c.pending = &PendingVerification{Email: email, TwoFactorMethod: challenge.Method}
	c.lastErr = nil
	c.mu.Unlock()

	log.Info().Str("email", utils.MaskEmail(email)).Str("method", challenge.Method.String()).Msg("Login credentials accepted, awaiting code")
	return nil
}

// SubmitCode is login step two. A malformed code never reaches the server.
func (c *Controller) SubmitCode(ctx context.Context, code string) error {
	release, err := c.acquire(FormCode)
	if err != nil {
		return err
	}
	defer release()

	code = strings.TrimSpace(code)
	c.mu.Lock()
	pending := c.pending
	if c.state != StateAwaitingCode || pending == nil {
		c.mu.Unlock()
		return c.fail(FormCode, invalid("No login is waiting for a code. Please log in again."))
	}
	c.mu.Unlock()

	if err := c.validator.ValidateCode(code); err != nil {
		return c.fail(FormCode, err)
	}

	c.mu.Lock()
	pending.Attempted = true
	email := pending.Email
	c.mu.Unlock()

	result, err := c.deps.Gateway.VerifyLogin(ctx, gateway.VerificationRequest{Email: email, Code: code})
	if err != nil {
		return c.fail(FormCode, err)
	}
	if result.Token == "" || result.Profile.ID <= 0 {
		log.Warn().Str("email", utils.MaskEmail(email)).Msg("Login verification response lacked token or user id")
		return c.fail(FormCode, &FormError{
			Form:    FormCode,
			Message: "Verification failed. Please try again.",
			Err:     apperrors.ErrInvalidCode,
		})
	}

	c.mu.Lock()
	abandoned := c.pending != pending
	c.mu.Unlock()
	if abandoned {
		log.Info().Str("email", utils.MaskEmail(email)).Msg("Login verification completed after it was cancelled; discarding")
		return nil
	}

	profile := result.Profile
	if profile.Email == "" {
		profile.Email = email
	}
	if err := c.deps.Sessions.Set(ctx, sessions.FromProfile(profile, result.Token)); err != nil {
		if apperrors.Is(err, apperrors.ErrInvalidSession) {
			return c.fail(FormCode, err)
		}
		// The session is live in memory; it just will not survive a restart.
		log.Warn().Err(err).Msg("Logged in but the session could not be persisted")
	}

	c.mu.Lock()
	c.state = StateAuthenticated
	c.pending = nil
	c.lastErr = nil
	c.mu.Unlock()

	log.Info().Int64("user_id", profile.ID).Str("email", utils.MaskEmail(profile.Email)).Msg("Login completed")
	return nil
}

// Cancel abandons the login in progress without contacting the server.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateAwaitingCode || c.state == StateAwaitingCredentials {
		c.state = StateIdle
	}
	c.pending = nil
	c.lastErr = nil
}

// Prompt is the instruction shown on the code form.
func (c *Controller) Prompt() string {
	p, ok := c.Pending()
	if !ok {
		return ""
	}
	switch p.TwoFactorMethod {
	case users.MethodEmail:
		return fmt.Sprintf("We've sent a verification code to your email address at %s", p.Email)
	case users.MethodAuthenticator:
		return fmt.Sprintf("Please enter the 6-digit code from your authenticator app for %s", p.Email)
	}
	return fmt.Sprintf("We've sent a verification code to %s", p.Email)
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// acquire claims form for one submission; a concurrent second submission fails.
func (c *Controller) acquire(form Form) (func(), error) {
	m := c.forms[form]
	if !m.TryLock() {
		return nil, formError(form, apperrors.ErrSubmissionInProgress)
	}
	return m.Unlock, nil
}

// fail records err as the latest user-visible error and returns it.
func (c *Controller) fail(form Form, err error) error {
	fe := formError(form, err)
	c.mu.Lock()
	c.lastErr = fe
	c.mu.Unlock()
	log.Debug().Err(fe.Err).Str("form", string(form)).Msg("Form submission failed")
	return fe
}
