package token

import (
	"strconv"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of bearer token claims the client and the development
// server care about.
type Claims struct {
	ID        string    // jti
	Subject   string    // numeric user id as a string
	Email     string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time // zero when the token carries no exp claim
}

// UserID parses the subject as the numeric account id.
func (c Claims) UserID() (int64, bool) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Expired reports whether the token is past its exp claim at now. Tokens
// without an exp claim never expire from the client's point of view.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Inspect reads the claims of a JWT bearer token without verifying its
// signature. The client treats tokens as opaque, so a token that is not a JWT
// returns ok=false rather than an error.
func Inspect(rawToken string) (Claims, bool) {
	if strings.Count(rawToken, ".") != 2 {
		return Claims{}, false
	}

	unverified, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return Claims{}, false
	}
	mapClaims, ok := unverified.Claims.(jwtlib.MapClaims)
	if !ok {
		return Claims{}, false
	}
	return claimsFromMap(mapClaims), true
}

func claimsFromMap(m jwtlib.MapClaims) Claims {
	var c Claims
	c.Subject, _ = m.GetSubject()
	c.Issuer, _ = m.GetIssuer()
	if exp, err := m.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	if iat, err := m.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	c.ID, _ = m["jti"].(string)
	c.Email, _ = m["email"].(string)
	return c
}
