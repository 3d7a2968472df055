package coderepo

import (
	"errors"
	"time"
)

// Purpose separates codes that must not be interchangeable.
type Purpose string

const (
	PurposeLogin       Purpose = "login"
	PurposeEmailVerify Purpose = "verify-email"
	PurposePhoneVerify Purpose = "verify-phone"
)

var ErrCodeNotFound = errors.New("verification code not found")

// Code is a one-time verification code sent to a user.
type Code struct {
	Value     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (c Code) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Repo holds at most one outstanding code per purpose and email; issuing a
// new one replaces the old.
type Repo interface {
	Upsert(purpose Purpose, email string, code Code) error
	Get(purpose Purpose, email string) (Code, error)
	Delete(purpose Purpose, email string) error
}
