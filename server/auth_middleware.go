package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/wilsonhuang01/CMPE-272-2FA/token"
	"github.com/wilsonhuang01/CMPE-272-2FA/users"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUser stores the authenticated *users.User
	ContextKeyUser ContextKey = "user"
	// ContextKeyClaims stores the verified token.Claims
	ContextKeyClaims ContextKey = "claims"
)

// RequireBearer rejects with 401 any request without a valid, unrevoked
// bearer token for an existing account.
func (s *Server) RequireBearer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scheme, raw, found := strings.Cut(r.Header.Get("Authorization"), " ")
		if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(raw) == "" {
			writeMessage(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		claims, err := s.issuer.Verify(strings.TrimSpace(raw))
		if err != nil {
			log.Debug().Err(err).Str("request_id", requestID(r.Context())).Msg("Bearer token rejected")
			writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		if s.repos.Revoked.Revoked(claims) {
			writeMessage(w, http.StatusUnauthorized, "Token has been revoked")
			return
		}

		id, ok := claims.UserID()
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		user, err := s.repos.Users.GetByID(id)
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "User not found")
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyUser, user)
		ctx = context.WithValue(ctx, ContextKeyClaims, claims)
		next(w, r.WithContext(ctx))
	}
}

// currentUser is only valid behind RequireBearer.
func currentUser(ctx context.Context) (*users.User, token.Claims) {
	user, _ := ctx.Value(ContextKeyUser).(*users.User)
	claims, _ := ctx.Value(ContextKeyClaims).(token.Claims)
	return user, claims
}
