package server

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"

	"github.com/pkg/errors"

	"github.com/wilsonhuang01/CMPE-272-2FA/gateway"
	"github.com/wilsonhuang01/CMPE-272-2FA/server/coderepo"
	"github.com/wilsonhuang01/CMPE-272-2FA/users"
)

// issueCode stores a fresh code for purpose and hands it to the notifier.
func (s *Server) issueCode(ctx context.Context, purpose coderepo.Purpose, channel gateway.Channel, u *users.User) error {
	value, err := numericCode(s.config.GetCodeLength())
	if err != nil {
		return err
	}

	now := s.now()
	code := coderepo.Code{Value: value, CreatedAt: now, ExpiresAt: now.Add(s.config.GetCodeExpiry())}
	if err := s.repos.Codes.Upsert(purpose, u.Email, code); err != nil {
		return errors.Wrap(err, "[Server.issueCode] Codes.Upsert")
	}

	to := u.Email
	if channel == gateway.ChannelPhone {
		to = u.PhoneNumber
	}
	if err := s.notifier.Notify(ctx, Notification{Channel: channel, To: to, Purpose: purpose, Code: value}); err != nil {
		return errors.Wrap(err, "[Server.issueCode] notifier.Notify")
	}
	return nil
}

// consumeCode reports whether candidate is the outstanding, unexpired code.
// A matching or expired code is removed.
func (s *Server) consumeCode(purpose coderepo.Purpose, email, candidate string) bool {
	code, err := s.repos.Codes.Get(purpose, email)
	if err != nil {
		return false
	}
	if code.Expired(s.now()) {
		_ = s.repos.Codes.Delete(purpose, email)
		return false
	}
	if subtle.ConstantTimeCompare([]byte(code.Value), []byte(candidate)) != 1 {
		return false
	}
	_ = s.repos.Codes.Delete(purpose, email)
	return true
}

func numericCode(digits int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", errors.Wrap(err, "generate verification code")
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
