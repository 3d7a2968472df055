package gateway

import (
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/wilsonhuang01/CMPE-272-2FA/internal/errors"
	"github.com/wilsonhuang01/CMPE-272-2FA/internal/metrics"
)

// APIError is the uniform failure every gateway operation returns.
// It unwraps to one of the internal/errors kinds.
type APIError struct {
	Op      string
	Status  int    // 0 when no response was received
	Message string // user-visible, never empty
	Kind    error
	cause   error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.Status)
}

func (e *APIError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Kind, e.cause}
	}
	return []error{e.Kind}
}

// classify maps a non-2xx response onto an error kind. fallback is the
// operation's kind for a plain 400.
func classify(status int, message string, fallback error) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.ErrUnauthorized
	case status == http.StatusTooManyRequests:
		return apperrors.ErrRateLimited
	case status >= http.StatusInternalServerError:
		return apperrors.ErrServer
	}

	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "expired") && !strings.Contains(m, "invalid"):
		return apperrors.ErrCodeExpired
	case strings.Contains(m, "do not match") || strings.Contains(m, "required") || strings.Contains(m, "must be"):
		return apperrors.ErrValidation
	case strings.Contains(m, "code"):
		return apperrors.ErrInvalidCode
	case strings.Contains(m, "password") || strings.Contains(m, "credentials"):
		return apperrors.ErrInvalidCredentials
	}
	return fallback
}

const deniedMessage = "Access denied. Check your details and try again."

func fallbackMessage(kind error) string {
	switch kind {
	case apperrors.ErrNetwork:
		return "Unable to reach the server. Check your connection and try again."
	case apperrors.ErrUnauthorized:
		return "Your session has expired. Please log in again."
	case apperrors.ErrRateLimited:
		return "Too many attempts. Please wait a moment and try again."
	case apperrors.ErrServer:
		return "The server encountered an error. Please try again later."
	case apperrors.ErrInvalidCredentials:
		return "Invalid email or password"
	case apperrors.ErrInvalidCode:
		return "Invalid verification code. Please try again."
	case apperrors.ErrCodeExpired:
		return "The verification code has expired. Request a new one."
	}
	return "The request could not be completed."
}

func outcome(kind error) string {
	switch kind {
	case nil:
		return metrics.OutcomeOK
	case apperrors.ErrValidation:
		return metrics.OutcomeValidation
	case apperrors.ErrUnauthorized:
		return metrics.OutcomeUnauthorized
	case apperrors.ErrRateLimited:
		return metrics.OutcomeRateLimited
	case apperrors.ErrServer:
		return metrics.OutcomeServer
	case apperrors.ErrNetwork:
		return metrics.OutcomeNetwork
	}
	return metrics.OutcomeRejected
}
