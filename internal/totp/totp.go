// Package totp wraps pquerna/otp with the parameters authenticator apps
// assume: SHA1, six digits, 30 second steps.
package totp

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	pqtotp "github.com/pquerna/otp/totp"
)

const (
	Digits     = 6
	Period     = 30 * time.Second
	secretSize = 20
	skew       = 1 // steps accepted either side of now
)

var (
	ErrEmptySecret = errors.New("empty totp secret")
	ErrInvalidURI  = errors.New("invalid otpauth uri")
)

var (
	encoding = base32.StdEncoding.WithPadding(base32.NoPadding)
	opts     = pqtotp.ValidateOpts{
		Period:    uint(Period.Seconds()),
		Skew:      skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
)

// NewSecret returns a random shared secret.
func NewSecret() ([]byte, error) {
	raw := make([]byte, secretSize)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}
	return raw, nil
}

// ProvisioningURI renders the otpauth:// URI an authenticator app scans.
func ProvisioningURI(issuer, account string, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", ErrEmptySecret
	}
	key, err := pqtotp.Generate(pqtotp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      opts.Period,
		Secret:      secret,
		Digits:      opts.Digits,
		Algorithm:   opts.Algorithm,
	})
	if err != nil {
		return "", fmt.Errorf("totp provisioning uri: %w", err)
	}
	return key.URL(), nil
}

// SecretFromURI extracts the shared secret from a provisioning URI.
func SecretFromURI(uri string) ([]byte, error) {
	key, err := otp.NewKeyFromURL(uri)
	if err != nil || !strings.HasPrefix(strings.TrimSpace(uri), "otpauth://") || key.Type() != "totp" {
		return nil, ErrInvalidURI
	}
	secret, err := encoding.DecodeString(strings.ToUpper(key.Secret()))
	if err != nil || len(secret) == 0 {
		return nil, ErrInvalidURI
	}
	return secret, nil
}

// Code is the code valid at t, or "" for an empty secret.
func Code(secret []byte, t time.Time) string {
	if len(secret) == 0 {
		return ""
	}
	code, err := pqtotp.GenerateCodeCustom(encoding.EncodeToString(secret), t, opts)
	if err != nil {
		return ""
	}
	return code
}

// Verify accepts code if it matches the step at now or an adjacent one.
func Verify(secret []byte, code string, now time.Time) (bool, error) {
	if len(secret) == 0 {
		return false, ErrEmptySecret
	}
	code = strings.TrimSpace(code)
	if len(code) != Digits {
		return false, nil
	}
	ok, err := pqtotp.ValidateCustom(code, encoding.EncodeToString(secret), now, opts)
	if err != nil {
		return false, fmt.Errorf("totp verify: %w", err)
	}
	return ok, nil
}
