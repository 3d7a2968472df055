package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	apperrors "github.com/wilsonhuang01/CMPE-272-2FA/internal/errors"
	"github.com/wilsonhuang01/CMPE-272-2FA/internal/metrics"
)

const (
	// RequestIDHeader correlates a client call with server logs.
	RequestIDHeader = "X-Request-ID"

	maxResponseBytes = 1 << 20
)

// Operation names, used for errors, logs and metric labels.
const (
	OpSignup              = "signup"
	OpLogin               = "login"
	OpVerifyLogin         = "login-verify"
	OpVerifyEmail         = "verify-email"
	OpResendCode          = "resend-code"
	OpProfile             = "profile"
	OpChangePassword      = "change-password"
	OpChangeTwoFactor     = "change-2fa"
	OpAuthenticatorQR     = "authenticator-qr"
	OpVerifyAuthenticator = "verify-authenticator"
	OpLogout              = "logout"
)

// SessionClearer is told to drop the session whenever the API rejects the
// caller's authorization. *sessions.Store satisfies it.
type SessionClearer interface {
	Clear(ctx context.Context) error
}

// Client talks to the auth API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     oauth2.TokenSource
	clearer    SessionClearer
	metrics    *metrics.GatewayMetrics
	timeout    time.Duration
}

// Option defines a function type to modify the Client instance.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithSessionClearer installs the policy applied on every 401/403.
func WithSessionClearer(sc SessionClearer) Option {
	return func(c *Client) {
		c.clearer = sc
	}
}

func WithMetrics(m *metrics.GatewayMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTimeout bounds every call; zero leaves the caller's context in charge.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// New creates a client for the API rooted at baseURL (for example
// http://localhost:8080/api/auth). tokens may be nil for a client that never
// authenticates.
func New(baseURL string, tokens oauth2.TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		tokens:     tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call describes one round trip.
type call struct {
	op       string
	method   string
	path     string
	query    url.Values
	body     any
	input    validator // checked before anything is sent
	fallback error     // kind for a 400 the message does not refine
}

type validator interface {
	Validate() error
}

// do runs c through the shared request path: validation, headers, bearer,
// classification, the unauthorized policy, logging and metrics.
func (c *Client) do(ctx context.Context, rc call, out *AuthResponse) error {
	start := time.Now()
	requestID := uuid.NewString()
	logger := log.With().Str("op", rc.op).Str("request_id", requestID).Logger()

	if rc.input != nil {
		if err := rc.input.Validate(); err != nil {
			c.metrics.ObserveCall(rc.op, metrics.OutcomeValidation, time.Since(start))
			return &APIError{Op: rc.op, Message: validationMessage(err), Kind: apperrors.ErrValidation, cause: err}
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := c.newRequest(ctx, rc, requestID)
	if err != nil {
		c.metrics.ObserveCall(rc.op, metrics.OutcomeValidation, time.Since(start))
		return &APIError{Op: rc.op, Message: fallbackMessage(apperrors.ErrValidation), Kind: apperrors.ErrValidation, cause: err}
	}
	authorized := c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn().Err(err).Msg("Auth API unreachable")
		c.metrics.ObserveCall(rc.op, metrics.OutcomeNetwork, time.Since(start))
		return &APIError{Op: rc.op, Message: fallbackMessage(apperrors.ErrNetwork), Kind: apperrors.ErrNetwork, cause: err}
	}
	defer resp.Body.Close()

	var decoded AuthResponse
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	decodeErr := readErr
	if readErr == nil && len(bytes.TrimSpace(raw)) > 0 {
		decodeErr = json.Unmarshal(raw, &decoded)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if decodeErr != nil {
			logger.Error().Err(decodeErr).Int("status", resp.StatusCode).Msg("Malformed auth API response")
			c.metrics.ObserveCall(rc.op, metrics.OutcomeServer, time.Since(start))
			return &APIError{Op: rc.op, Status: resp.StatusCode, Message: fallbackMessage(apperrors.ErrServer), Kind: apperrors.ErrServer, cause: decodeErr}
		}
		logger.Debug().Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("Auth API call succeeded")
		c.metrics.ObserveCall(rc.op, metrics.OutcomeOK, time.Since(start))
		if out != nil {
			*out = decoded
		}
		return nil
	}

	kind := classify(resp.StatusCode, decoded.Message, rc.fallback)
	message := decoded.Message
	switch {
	case kind == apperrors.ErrUnauthorized && !authorized:
		// No bearer was sent, so there is no session to have expired.
		if message == "" {
			message = deniedMessage
		}
	case message == "" || kind == apperrors.ErrUnauthorized:
		message = fallbackMessage(kind)
	}
	logger.Info().Int("status", resp.StatusCode).Str("kind", kind.Error()).Msg("Auth API call rejected")
	c.metrics.ObserveCall(rc.op, outcome(kind), time.Since(start))

	if kind == apperrors.ErrUnauthorized {
		c.unauthorized(ctx, rc.op, authorized)
	}
	return &APIError{Op: rc.op, Status: resp.StatusCode, Message: message, Kind: kind}
}

func (c *Client) newRequest(ctx context.Context, rc call, requestID string) (*http.Request, error) {
	target := c.baseURL + rc.path
	if len(rc.query) > 0 {
		target += "?" + rc.query.Encode()
	}

	var body io.Reader
	if rc.body != nil {
		payload, err := json.Marshal(rc.body)
		if err != nil {
			return nil, apperrors.Wrapf(err, "[Client.newRequest] marshal %s", rc.op)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, rc.method, target, body)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[Client.newRequest] %s", rc.op)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	return req, nil
}

// authorize attaches the bearer header when a session exists.
func (c *Client) authorize(req *http.Request) bool {
	if c.tokens == nil {
		return false
	}
	tok, err := c.tokens.Token()
	if err != nil || tok.AccessToken == "" {
		return false
	}
	tok.SetAuthHeader(req)
	return true
}

// unauthorized applies the session policy for a rejected bearer. It runs on a
// context detached from the caller so a caller that gave up cannot skip it.
func (c *Client) unauthorized(ctx context.Context, op string, authorized bool) {
	if authorized {
		c.metrics.ForcedLogout()
	}
	if c.clearer == nil {
		return
	}
	log.Warn().Str("op", op).Msg("Authorization rejected, clearing session")
	if err := c.clearer.Clear(context.WithoutCancel(ctx)); err != nil {
		log.Err(err).Str("op", op).Msg("Failed to clear session after authorization failure")
	}
}

// validationMessage strips the sentinel suffix so only the field problem shows.
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "+apperrors.ErrValidation.Error()); i > 0 {
		msg = msg[:i]
	}
	if msg == "" {
		return fallbackMessage(apperrors.ErrValidation)
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
