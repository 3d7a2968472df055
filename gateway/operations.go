package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	apperrors "github.com/wilsonhuang01/CMPE-272-2FA/internal/errors"
	"github.com/wilsonhuang01/CMPE-272-2FA/internal/utils"
	"github.com/wilsonhuang01/CMPE-272-2FA/users"
)

func (c *Client) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	var resp AuthResponse
	err := c.do(ctx, call{
		op: OpSignup, method: http.MethodPost, path: "/signup",
		body: req, input: req, fallback: apperrors.ErrValidation,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login is step one of the two-step login. It never yields a token.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginChallenge, error) {
	var resp AuthResponse
	err := c.do(ctx, call{
		op: OpLogin, method: http.MethodPost, path: "/login",
		body: req, input: req, fallback: apperrors.ErrInvalidCredentials,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &LoginChallenge{
		RequiresTwoFactor: utils.Value(resp.RequiresTwoFactor),
		Method:            resp.TwoFactorMethod.Normalize(),
		Message:           resp.Message,
	}, nil
}

// VerifyLogin is step two: it exchanges the code for a token and profile.
// The result is returned as received; callers decide whether it is complete.
func (c *Client) VerifyLogin(ctx context.Context, req VerificationRequest) (*LoginResult, error) {
	var resp AuthResponse
	err := c.do(ctx, call{
		op: OpVerifyLogin, method: http.MethodPost, path: "/login-verify",
		body: req, input: req, fallback: apperrors.ErrInvalidCode,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: resp.Token, Profile: resp.Profile()}, nil
}

func (c *Client) VerifyEmail(ctx context.Context, req VerificationRequest) (string, error) {
	return c.message(ctx, call{
		op: OpVerifyEmail, method: http.MethodPost, path: "/verify-email",
		body: req, input: req, fallback: apperrors.ErrInvalidCode,
	})
}

func (c *Client) ResendCode(ctx context.Context, req ResendCodeRequest) (string, error) {
	return c.message(ctx, call{
		op: OpResendCode, method: http.MethodPost, path: "/resend-code",
		query: url.Values{"email": {req.Email}, "type": {string(req.Channel)}},
		input: req, fallback: apperrors.ErrValidation,
	})
}

func (c *Client) GetProfile(ctx context.Context) (users.Profile, error) {
	var resp AuthResponse
	if err := c.do(ctx, call{
		op: OpProfile, method: http.MethodGet, path: "/profile",
		fallback: apperrors.ErrValidation,
	}, &resp); err != nil {
		return users.Profile{}, err
	}
	return resp.Profile(), nil
}

func (c *Client) ChangePassword(ctx context.Context, req ChangePasswordRequest) (string, error) {
	return c.message(ctx, call{
		op: OpChangePassword, method: http.MethodPost, path: "/change-password",
		body: req, input: req, fallback: apperrors.ErrInvalidCredentials,
	})
}

// ChangeTwoFactor switches the account's method. When the new method is the
// authenticator app the provisioning URI comes from the response, or from
// the authenticator-qr endpoint when the response does not carry one.
func (c *Client) ChangeTwoFactor(ctx context.Context, req ChangeTwoFactorRequest) (*TwoFactorChange, error) {
	var resp AuthResponse
	if err := c.do(ctx, call{
		op: OpChangeTwoFactor, method: http.MethodPost, path: "/change-2fa",
		body: req, input: req, fallback: apperrors.ErrInvalidCredentials,
	}, &resp); err != nil {
		return nil, err
	}

	change := &TwoFactorChange{Method: req.NewTwoFactorMethod, Message: resp.Message}
	if req.NewTwoFactorMethod != users.MethodAuthenticator {
		return change, nil
	}

	change.ProvisioningURI = resp.QRCode
	if change.ProvisioningURI == "" {
		uri, err := c.AuthenticatorQR(ctx)
		if err != nil {
			// The change itself went through; the URI can be fetched again later.
			log.Warn().Err(err).Msg("Authenticator provisioning URI unavailable")
			return change, nil
		}
		change.ProvisioningURI = uri
	}
	return change, nil
}

// AuthenticatorQR returns the otpauth:// provisioning URI for the account.
// The API sends it in the message field.
func (c *Client) AuthenticatorQR(ctx context.Context) (string, error) {
	var resp AuthResponse
	if err := c.do(ctx, call{
		op: OpAuthenticatorQR, method: http.MethodGet, path: "/authenticator-qr",
		fallback: apperrors.ErrValidation,
	}, &resp); err != nil {
		return "", err
	}
	if resp.QRCode != "" {
		return resp.QRCode, nil
	}
	return resp.Message, nil
}

func (c *Client) VerifyAuthenticator(ctx context.Context, req VerificationRequest) (string, error) {
	return c.message(ctx, call{
		op: OpVerifyAuthenticator, method: http.MethodPost, path: "/verify-authenticator",
		body: req, input: req, fallback: apperrors.ErrInvalidCode,
	})
}

// Logout asks the server to revoke the bearer. Callers clear the local
// session regardless of the outcome.
func (c *Client) Logout(ctx context.Context) (string, error) {
	return c.message(ctx, call{
		op: OpLogout, method: http.MethodPost, path: "/logout",
		fallback: apperrors.ErrServer,
	})
}

func (c *Client) message(ctx context.Context, rc call) (string, error) {
	var resp AuthResponse
	if err := c.do(ctx, rc, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}
