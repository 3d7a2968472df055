package server

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	apperrors "github.com/wilsonhuang01/CMPE-272-2FA/internal/errors"
	"github.com/wilsonhuang01/CMPE-272-2FA/internal/utils"
	"github.com/wilsonhuang01/CMPE-272-2FA/users"
)

// InitialiseSystem creates the configured demo account if it does not exist.
// The account uses email codes and is already verified.
func (s *Server) InitialiseSystem(_ context.Context) error {
	email := s.config.GetDemoEmail()
	if email == "" {
		return nil
	}
	password := s.config.GetDemoPassword()
	if len(password) < s.config.GetMinPasswordLength() {
		return fmt.Errorf("[Server InitialiseSystem] demo password must be at least %d characters", s.config.GetMinPasswordLength())
	}

	if _, err := s.repos.Users.GetByEmail(email); err == nil {
		log.Info().Str("email", utils.MaskEmail(email)).Msg("Demo user already exists")
		return nil
	} else if !apperrors.Is(err, users.ErrUserNotFound) {
		return fmt.Errorf("[Server InitialiseSystem] failed to look up demo user: %w", err)
	}

	hash, err := users.HashPassword(password)
	if err != nil {
		return fmt.Errorf("[Server InitialiseSystem] failed to hash demo password: %w", err)
	}
	demo := &users.User{
		Email:            email,
		PasswordHash:     hash,
		FirstName:        "Demo",
		LastName:         "User",
		TwoFactorMethod:  users.MethodEmail,
		TwoFactorEnabled: true,
		EmailVerified:    true,
		CreatedAt:        s.now(),
	}
	if err := s.repos.Users.Insert(demo); err != nil {
		return fmt.Errorf("[Server InitialiseSystem] failed to create demo user: %w", err)
	}

	log.Info().Int64("user_id", demo.ID).Str("email", email).Msg("Demo user created")
	return nil
}
