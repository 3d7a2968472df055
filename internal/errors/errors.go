package errors

import (
	"errors"
	"fmt"
)

// Error kinds shared by the gateway, the session store and the flow controllers.
var (
	// Client-side input errors, detected before any network call
	ErrValidation = errors.New("validation failed")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrCodeExpired        = errors.New("verification code expired")
	ErrUnauthorized       = errors.New("unauthorized")

	// Transport errors
	ErrNetwork     = errors.New("network error")
	ErrRateLimited = errors.New("rate limited")
	ErrServer      = errors.New("server error")

	// Session errors
	ErrNoActiveSession = errors.New("no active session")
	ErrInvalidSession  = errors.New("invalid session")

	// Form errors
	ErrSubmissionInProgress = errors.New("submission already in progress")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers need a single errors import
func New(text string) error {
	return errors.New(text)
}
