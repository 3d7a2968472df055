package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/wilsonhuang01/CMPE-272-2FA/gateway"
	apperrors "github.com/wilsonhuang01/CMPE-272-2FA/internal/errors"
	"github.com/wilsonhuang01/CMPE-272-2FA/internal/totp"
	"github.com/wilsonhuang01/CMPE-272-2FA/internal/utils"
	"github.com/wilsonhuang01/CMPE-272-2FA/server/coderepo"
	"github.com/wilsonhuang01/CMPE-272-2FA/users"
)

const (
	msgInvalidLogin = "Invalid email or password"
	msgInvalidCode  = "Invalid or expired verification code"
	msgUserNotFound = "User not found"
)

func (s *Server) SignupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gateway.SignupRequest
		if !decode(w, r, &req) {
			return
		}
		req.Email = strings.TrimSpace(req.Email)

		switch {
		case req.Email == "" || req.Password == "" || strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "":
			badRequest(w, "Email, password, first name and last name are required")
			return
		case req.Password != req.ConfirmPassword:
			badRequest(w, "Password and confirmation do not match")
			return
		case len(req.Password) < s.config.GetMinPasswordLength():
			badRequest(w, fmt.Sprintf("Password must be at least %d characters", s.config.GetMinPasswordLength()))
			return
		case req.TwoFactorMethod != "" && !req.TwoFactorMethod.Selectable():
			badRequest(w, "Invalid two-factor method")
			return
		}

		hash, err := users.HashPassword(req.Password)
		if err != nil {
			serverError(w, r, err)
			return
		}
		user := &users.User{
			Email:        req.Email,
			PasswordHash: hash,
			FirstName:    strings.TrimSpace(req.FirstName),
			LastName:     strings.TrimSpace(req.LastName),
			PhoneNumber:  strings.TrimSpace(req.PhoneNumber),
			CreatedAt:    s.now(),
		}
		if req.TwoFactorMethod.Selectable() {
			user.TwoFactorMethod = req.TwoFactorMethod
			user.TwoFactorEnabled = true
			if req.TwoFactorMethod == users.MethodAuthenticator {
				if user.AuthenticatorSecret, err = totp.NewSecret(); err != nil {
					serverError(w, r, err)
					return
				}
			}
		}

		if err := s.repos.Users.Insert(user); err != nil {
			if apperrors.Is(err, users.ErrEmailTaken) {
				badRequest(w, "User with this email already exists")
				return
			}
			serverError(w, r, err)
			return
		}
		if err := s.issueCode(r.Context(), coderepo.PurposeEmailVerify, gateway.ChannelEmail, user); err != nil {
			log.Warn().Err(err).Int64("user_id", user.ID).Msg("Email verification code not sent")
		}

		log.Info().Int64("user_id", user.ID).Str("email", utils.MaskEmail(user.Email)).Msg("User signed up")
		resp := profileResponse(user, "User created successfully. Please check your email for verification code.")
		if len(user.AuthenticatorSecret) > 0 {
			// Without it the account could never produce its first login code.
			if resp.QRCode, err = s.provisioningURI(user.Email, user.AuthenticatorSecret); err != nil {
				log.Error().Err(err).Int64("user_id", user.ID).Msg("Provisioning URI not rendered")
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// LoginHandler checks the password and starts the second step. It never
// issues a token.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gateway.LoginRequest
		if !decode(w, r, &req) {
			return
		}

		user, err := s.repos.Users.GetByEmail(req.Email)
		if err != nil || !users.CheckPasswordHash(req.Password, user.PasswordHash) {
			log.Info().Str("email", utils.MaskEmail(req.Email)).Msg("Login rejected")
			badRequest(w, msgInvalidLogin)
			return
		}

		method := user.LoginMethod()
		message := "Please enter the code from your authenticator app"
		if method == users.MethodEmail {
			if err := s.issueCode(r.Context(), coderepo.PurposeLogin, gateway.ChannelEmail, user); err != nil {
				serverError(w, r, err)
				return
			}
			message = "Verification code sent to your email"
		}

		writeJSON(w, http.StatusOK, gateway.AuthResponse{
			Email:             user.Email,
			TwoFactorMethod:   method,
			RequiresTwoFactor: utils.Ptr(true),
			Message:           message,
		})
	}
}

func (s *Server) LoginVerifyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gateway.VerificationRequest
		if !decode(w, r, &req) {
			return
		}

		user, err := s.repos.Users.GetByEmail(req.Email)
		if err != nil || !s.checkLoginCode(user, strings.TrimSpace(req.Code)) {
			badRequest(w, msgInvalidCode)
			return
		}

		signed, _, err := s.issuer.Issue(user.ID, user.Email)
		if err != nil {
			serverError(w, r, err)
			return
		}

		log.Info().Int64("user_id", user.ID).Str("method", user.LoginMethod().String()).Msg("Login completed")
		resp := profileResponse(user, "Login successful")
		resp.Token = signed
		resp.Type = "Bearer"
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) checkLoginCode(user *users.User, code string) bool {
	if user.LoginMethod() == users.MethodAuthenticator {
		ok, err := totp.Verify(user.AuthenticatorSecret, code, s.now())
		if err != nil {
			log.Warn().Err(err).Int64("user_id", user.ID).Msg("Authenticator code check failed")
		}
		return ok
	}
	return s.consumeCode(coderepo.PurposeLogin, user.Email, code)
}

func (s *Server) VerifyEmailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gateway.VerificationRequest
		if !decode(w, r, &req) {
			return
		}

		user, err := s.repos.Users.GetByEmail(req.Email)
		if err != nil {
			badRequest(w, msgUserNotFound)
			return
		}
		if !s.consumeCode(coderepo.PurposeEmailVerify, user.Email, strings.TrimSpace(req.Code)) {
			badRequest(w, msgInvalidCode)
			return
		}

		user.EmailVerified = true
		if err := s.repos.Users.Update(user); err != nil {
			serverError(w, r, err)
			return
		}
		writeMessage(w, http.StatusOK, "Email verified successfully")
	}
}

// ResendCodeHandler takes its input from the query string, not the body.
func (s *Server) ResendCodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("email")
		channel := gateway.Channel(r.URL.Query().Get("type"))

		user, err := s.repos.Users.GetByEmail(email)
		if err != nil {
			badRequest(w, msgUserNotFound)
			return
		}

		var purpose coderepo.Purpose
		switch channel {
		case gateway.ChannelEmail:
			purpose = coderepo.PurposeEmailVerify
		case gateway.ChannelPhone:
			if user.PhoneNumber == "" {
				badRequest(w, "No phone number is registered for this user")
				return
			}
			purpose = coderepo.PurposePhoneVerify
		default:
			badRequest(w, "Invalid verification type")
			return
		}

		if err := s.issueCode(r.Context(), purpose, channel, user); err != nil {
			serverError(w, r, err)
			return
		}
		if channel == gateway.ChannelPhone {
			writeMessage(w, http.StatusOK, "Phone verification code sent")
			return
		}
		writeMessage(w, http.StatusOK, "Email verification code sent")
	}
}
