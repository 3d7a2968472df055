package server

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/wilsonhuang01/CMPE-272-2FA/gateway"
	"github.com/wilsonhuang01/CMPE-272-2FA/internal/utils"
	"github.com/wilsonhuang01/CMPE-272-2FA/server/coderepo"
)

// Notification is a verification code on its way to a user.
type Notification struct {
	Channel gateway.Channel
	To      string // email address or phone number
	Purpose coderepo.Purpose
	Code    string
}

// Notifier delivers verification codes.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// LogNotifier "delivers" codes to the server log. It is meant for local
// development only: the code is printed in clear.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n Notification) error {
	to := n.To
	if n.Channel == gateway.ChannelEmail {
		to = utils.MaskEmail(to)
	}
	log.Info().
		Str("channel", string(n.Channel)).
		Str("to", to).
		Str("purpose", string(n.Purpose)).
		Str("code", n.Code).
		Msg("Verification code issued")
	return nil
}
