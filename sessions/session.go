package sessions

import (
	"github.com/wilsonhuang01/CMPE-272-2FA/users"
)

// Session is the client-held record of an authenticated user plus the bearer
// token that proves it. A Session exists only while the user is authenticated.
type Session struct {
	UserID           int64                 // Account id returned by login-verify
	Email            string                // Login email
	FirstName        string
	LastName         string
	TwoFactorMethod  users.TwoFactorMethod // NONE, EMAIL or AUTHENTICATOR_APP
	TwoFactorEnabled bool
	Token            string                // Opaque bearer credential, never empty
}

// FromProfile builds a session from a verified login response.
func FromProfile(p users.Profile, token string) Session {
	return Session{
		UserID:           p.ID,
		Email:            p.Email,
		FirstName:        p.FirstName,
		LastName:         p.LastName,
		TwoFactorMethod:  p.TwoFactorMethod.Normalize(),
		TwoFactorEnabled: p.TwoFactorEnabled,
		Token:            token,
	}
}

// Profile is the session minus its token; it is what gets persisted as the
// "user" entry.
func (s Session) Profile() users.Profile {
	return users.Profile{
		ID:               s.UserID,
		Email:            s.Email,
		FirstName:        s.FirstName,
		LastName:         s.LastName,
		TwoFactorMethod:  s.TwoFactorMethod.Normalize(),
		TwoFactorEnabled: s.TwoFactorEnabled,
	}
}

// Valid reports whether s satisfies the session invariant.
func (s Session) Valid() bool {
	return s.Token != "" && s.UserID > 0
}

// Patch carries the fields a profile refresh may change. Nil fields are left
// untouched. The token is deliberately absent: only a new login replaces it.
type Patch struct {
	UserID           *int64
	Email            *string
	FirstName        *string
	LastName         *string
	TwoFactorMethod  *users.TwoFactorMethod
	TwoFactorEnabled *bool
}

// PatchFromProfile replaces every profile field.
func PatchFromProfile(p users.Profile) Patch {
	method := p.TwoFactorMethod.Normalize()
	return Patch{
		UserID:           &p.ID,
		Email:            &p.Email,
		FirstName:        &p.FirstName,
		LastName:         &p.LastName,
		TwoFactorMethod:  &method,
		TwoFactorEnabled: &p.TwoFactorEnabled,
	}
}

func (p Patch) apply(s Session) Session {
	if p.UserID != nil && *p.UserID > 0 {
		s.UserID = *p.UserID
	}
	if p.Email != nil {
		s.Email = *p.Email
	}
	if p.FirstName != nil {
		s.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		s.LastName = *p.LastName
	}
	if p.TwoFactorMethod != nil {
		s.TwoFactorMethod = p.TwoFactorMethod.Normalize()
	}
	if p.TwoFactorEnabled != nil {
		s.TwoFactorEnabled = *p.TwoFactorEnabled
	}
	return s
}
