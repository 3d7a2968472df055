package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/wilsonhuang01/CMPE-272-2FA/gateway"
	apperrors "github.com/wilsonhuang01/CMPE-272-2FA/internal/errors"
	"github.com/wilsonhuang01/CMPE-272-2FA/internal/totp"
	"github.com/wilsonhuang01/CMPE-272-2FA/server/enrollmentrepo"
	"github.com/wilsonhuang01/CMPE-272-2FA/users"
)

const msgAuthenticatorNotEnabled = "Authenticator app is not enabled for this user"

func (s *Server) ProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := currentUser(r.Context())
		writeJSON(w, http.StatusOK, profileResponse(user, ""))
	}
}

func (s *Server) ChangePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gateway.ChangePasswordRequest
		if !decode(w, r, &req) {
			return
		}
		user, _ := currentUser(r.Context())

		switch {
		case !users.CheckPasswordHash(req.CurrentPassword, user.PasswordHash):
			badRequest(w, "Current password is incorrect")
			return
		case req.NewPassword != req.ConfirmNewPassword:
			badRequest(w, "New password and confirmation do not match")
			return
		case len(req.NewPassword) < s.config.GetMinPasswordLength():
			badRequest(w, fmt.Sprintf("Password must be at least %d characters", s.config.GetMinPasswordLength()))
			return
		}

		hash, err := users.HashPassword(req.NewPassword)
		if err != nil {
			serverError(w, r, err)
			return
		}
		user.PasswordHash = hash
		if err := s.repos.Users.Update(user); err != nil {
			serverError(w, r, err)
			return
		}
		log.Info().Int64("user_id", user.ID).Msg("Password changed")
		writeMessage(w, http.StatusOK, "Password changed successfully")
	}
}

// ChangeTwoFactorHandler switches to email immediately. A switch to the
// authenticator app only starts an enrollment; the account keeps its current
// method until VerifyAuthenticatorHandler accepts a first code.
func (s *Server) ChangeTwoFactorHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gateway.ChangeTwoFactorRequest
		if !decode(w, r, &req) {
			return
		}
		user, _ := currentUser(r.Context())

		if !users.CheckPasswordHash(req.Password, user.PasswordHash) {
			badRequest(w, "Password is incorrect")
			return
		}

		switch req.NewTwoFactorMethod {
		case users.MethodEmail:
			user.TwoFactorMethod = users.MethodEmail
			user.TwoFactorEnabled = true
			user.AuthenticatorSecret = nil
			if err := s.repos.Users.Update(user); err != nil {
				serverError(w, r, err)
				return
			}
			_ = s.repos.Enrollments.Delete(user.ID)
			log.Info().Int64("user_id", user.ID).Msg("Two-factor method set to email")
			writeJSON(w, http.StatusOK, profileResponse(user, "2FA method change successful to: "+string(users.MethodEmail)))

		case users.MethodAuthenticator:
			secret, err := totp.NewSecret()
			if err != nil {
				serverError(w, r, err)
				return
			}
			if err := s.repos.Enrollments.Upsert(&enrollmentrepo.Enrollment{UserID: user.ID, Secret: secret, CreatedAt: s.now()}); err != nil {
				serverError(w, r, err)
				return
			}
			log.Info().Int64("user_id", user.ID).Msg("Authenticator enrollment started")
			writeJSON(w, http.StatusOK, profileResponse(user, "Changing 2FA method to authenticator app. Verification required."))

		default:
			badRequest(w, "Invalid two-factor method")
		}
	}
}

// AuthenticatorQRHandler returns the provisioning URI in the message field.
// An enrollment in progress takes precedence over an existing set-up.
func (s *Server) AuthenticatorQRHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := currentUser(r.Context())

		secret, ok := s.authenticatorSecret(user)
		if !ok {
			badRequest(w, msgAuthenticatorNotEnabled)
			return
		}
		uri, err := s.provisioningURI(user.Email, secret)
		if err != nil {
			serverError(w, r, err)
			return
		}
		writeMessage(w, http.StatusOK, uri)
	}
}

// VerifyAuthenticatorHandler completes an enrollment, or simply checks a code
// for an account already using the authenticator app.
func (s *Server) VerifyAuthenticatorHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gateway.VerificationRequest
		if !decode(w, r, &req) {
			return
		}
		user, _ := currentUser(r.Context())
		if req.Email != "" && !strings.EqualFold(strings.TrimSpace(req.Email), user.Email) {
			badRequest(w, "Email does not belong to the logged in user")
			return
		}

		enrollment, err := s.repos.Enrollments.Get(user.ID)
		if err != nil && !apperrors.Is(err, enrollmentrepo.ErrNotFound) {
			serverError(w, r, err)
			return
		}
		secret, ok := s.authenticatorSecret(user)
		if !ok {
			badRequest(w, msgAuthenticatorNotEnabled)
			return
		}

		valid, err := totp.Verify(secret, strings.TrimSpace(req.Code), s.now())
		if err != nil {
			serverError(w, r, err)
			return
		}
		if !valid {
			badRequest(w, msgInvalidCode)
			return
		}

		if enrollment != nil {
			user.TwoFactorMethod = users.MethodAuthenticator
			user.TwoFactorEnabled = true
			user.AuthenticatorSecret = enrollment.Secret
			if err := s.repos.Users.Update(user); err != nil {
				serverError(w, r, err)
				return
			}
			_ = s.repos.Enrollments.Delete(user.ID)
			log.Info().Int64("user_id", user.ID).Msg("Authenticator app enabled")
		}
		writeJSON(w, http.StatusOK, profileResponse(user, "Authenticator app verified successfully"))
	}
}

// LogoutHandler revokes the presented token until it would have expired.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, claims := currentUser(r.Context())
		s.repos.Revoked.Revoke(claims)

		log.Info().Int64("user_id", user.ID).Msg("Logged out")
		writeMessage(w, http.StatusOK, "Logged out successfully")
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusOK, "ok")
	}
}

func (s *Server) authenticatorSecret(user *users.User) ([]byte, bool) {
	if e, err := s.repos.Enrollments.Get(user.ID); err == nil {
		return e.Secret, true
	}
	if user.TwoFactorMethod == users.MethodAuthenticator && len(user.AuthenticatorSecret) > 0 {
		return user.AuthenticatorSecret, true
	}
	return nil, false
}

func (s *Server) provisioningURI(email string, secret []byte) (string, error) {
	return totp.ProvisioningURI(s.config.GetIssuer(), email, secret)
}
