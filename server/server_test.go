package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wilsonhuang01/CMPE-272-2FA/auth"
	"github.com/wilsonhuang01/CMPE-272-2FA/gateway"
	"github.com/wilsonhuang01/CMPE-272-2FA/guard"
	"github.com/wilsonhuang01/CMPE-272-2FA/internal/config"
	apperrors "github.com/wilsonhuang01/CMPE-272-2FA/internal/errors"
	"github.com/wilsonhuang01/CMPE-272-2FA/internal/totp"
	"github.com/wilsonhuang01/CMPE-272-2FA/server"
	"github.com/wilsonhuang01/CMPE-272-2FA/server/coderepo"
	"github.com/wilsonhuang01/CMPE-272-2FA/sessions"
	"github.com/wilsonhuang01/CMPE-272-2FA/sessions/memstore"
	"github.com/wilsonhuang01/CMPE-272-2FA/token"
	"github.com/wilsonhuang01/CMPE-272-2FA/users"
	fakeuserrepo "github.com/wilsonhuang01/CMPE-272-2FA/users/repofake"
)

const (
	testEmail    = "ada@example.com"
	testPassword = "correct horse battery"
)

// mailbox captures the codes the server sends.
type mailbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *mailbox) Notify(_ context.Context, n server.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[string(n.Purpose)+":"+n.To] = n.Code
	return nil
}

func (m *mailbox) code(t *testing.T, purpose coderepo.Purpose, to string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.codes[string(purpose)+":"+to]
	require.True(t, ok, "no %s code sent to %s", purpose, to)
	return code
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testFixture struct {
	ts         *httptest.Server
	mail       *mailbox
	clock      *clock
	store      *sessions.Store
	client     *gateway.Client
	controller *auth.Controller
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	t.Setenv("ENV", "TEST")

	f := &testFixture{
		mail:  &mailbox{codes: make(map[string]string)},
		clock: &clock{now: time.Now()},
	}
	srv, err := server.New(config.New(), server.NewInMemoryRepos(fakeuserrepo.NewFakeUserRepo()),
		server.WithNotifier(f.mail),
		server.WithNowTime(f.clock.Now),
	)
	require.NoError(t, err)
	f.ts = httptest.NewServer(srv)
	t.Cleanup(f.ts.Close)

	f.store = sessions.NewStore(memstore.New())
	f.client = gateway.New(f.ts.URL+server.RouteAPIPrefix, f.store, gateway.WithSessionClearer(f.store))
	f.controller, err = auth.NewController(auth.Deps{Gateway: f.client, Sessions: f.store})
	require.NoError(t, err)
	t.Cleanup(f.controller.Close)
	return f
}

func (f *testFixture) signup(t *testing.T, method users.TwoFactorMethod) {
	t.Helper()
	ctx := context.Background()
	_, err := f.controller.Signup(ctx, auth.SignupForm{
		Email: testEmail, Password: testPassword, ConfirmPassword: testPassword,
		FirstName: "Ada", LastName: "Lovelace", TwoFactorMethod: method,
	})
	require.NoError(t, err)

	msg, err := f.controller.VerifyEmail(ctx, testEmail, f.mail.code(t, coderepo.PurposeEmailVerify, testEmail))
	require.NoError(t, err)
	require.Equal(t, "Email verified successfully", msg)
}

func (f *testFixture) login(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.controller.SubmitCredentials(ctx, testEmail, testPassword))
	require.NoError(t, f.controller.SubmitCode(ctx, f.mail.code(t, coderepo.PurposeLogin, testEmail)))
	require.True(t, f.store.Authenticated())
}

func (f *testFixture) get(t *testing.T, path, bearer string) (int, gateway.AuthResponse) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.ts.URL+path, nil)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return do(t, req)
}

func do(t *testing.T, req *http.Request) (int, gateway.AuthResponse) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body gateway.AuthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestEmailLoginEndToEnd(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signup(t, "")

	require.NoError(t, f.controller.SubmitCredentials(ctx, testEmail, testPassword))
	pending, ok := f.controller.Pending()
	require.True(t, ok)
	require.Equal(t, users.MethodEmail, pending.TwoFactorMethod)
	require.False(t, f.store.Authenticated())

	require.NoError(t, f.controller.SubmitCode(ctx, f.mail.code(t, coderepo.PurposeLogin, testEmail)))
	session, ok := f.store.Current()
	require.True(t, ok)
	require.Equal(t, testEmail, session.Email)
	require.Equal(t, "Ada", session.FirstName)
	require.Positive(t, session.UserID)
	require.True(t, guard.Evaluate(true, guard.RouteDashboard).Allowed)

	tok, err := f.store.Token()
	require.NoError(t, err)
	require.False(t, tok.Expiry.IsZero())
	claims, ok := token.Inspect(session.Token)
	require.True(t, ok)
	require.Equal(t, testEmail, claims.Email)

	require.NoError(t, f.controller.RefreshProfile(ctx))
	require.True(t, f.store.Authenticated())
}

func TestLoginCodeIsSingleUse(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signup(t, "")

	require.NoError(t, f.controller.SubmitCredentials(ctx, testEmail, testPassword))
	code := f.mail.code(t, coderepo.PurposeLogin, testEmail)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	err := f.controller.SubmitCode(ctx, wrong)
	require.ErrorIs(t, err, apperrors.ErrInvalidCode)
	require.Equal(t, "Invalid or expired verification code", err.Error())
	require.Equal(t, auth.StateAwaitingCode, f.controller.State())

	require.NoError(t, f.controller.SubmitCode(ctx, code))

	_, err = f.client.VerifyLogin(ctx, gateway.VerificationRequest{Email: testEmail, Code: code})
	require.ErrorIs(t, err, apperrors.ErrInvalidCode)
}

func TestExpiredCodeRejected(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	_, err := f.controller.Signup(ctx, auth.SignupForm{
		Email: testEmail, Password: testPassword, ConfirmPassword: testPassword, FirstName: "Ada", LastName: "Lovelace",
	})
	require.NoError(t, err)
	code := f.mail.code(t, coderepo.PurposeEmailVerify, testEmail)

	f.clock.Advance(11 * time.Minute)
	_, err = f.controller.VerifyEmail(ctx, testEmail, code)
	require.ErrorIs(t, err, apperrors.ErrInvalidCode)

	msg, err := f.controller.ResendCode(ctx, testEmail, gateway.ChannelEmail)
	require.NoError(t, err)
	require.Equal(t, "Email verification code sent", msg)
	_, err = f.controller.VerifyEmail(ctx, testEmail, f.mail.code(t, coderepo.PurposeEmailVerify, testEmail))
	require.NoError(t, err)
}

func TestSignupRejections(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signup(t, "")

	_, err := f.client.Signup(ctx, gateway.SignupRequest{
		Email: testEmail, Password: testPassword, ConfirmPassword: testPassword, FirstName: "A", LastName: "B",
	})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	require.Equal(t, "User with this email already exists", err.Error())

	_, err = f.client.Signup(ctx, gateway.SignupRequest{
		Email: "b@example.com", Password: "abcdef", ConfirmPassword: "abcdeg", FirstName: "A", LastName: "B",
	})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	err = f.controller.SubmitCredentials(ctx, testEmail, "wrong password")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	require.Equal(t, "Invalid email or password", err.Error())
}

func TestAuthenticatorEnrollmentEndToEnd(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signup(t, users.MethodEmail)
	f.login(t)

	require.NoError(t, f.controller.SubmitTwoFactorChange(ctx, auth.TwoFactorChangeRequest{
		CurrentPassword: testPassword,
		RequestedMethod: users.MethodAuthenticator,
	}))
	require.Equal(t, auth.ChangeAwaitingEnrollmentCode, f.controller.ChangeState())

	enrollment, ok := f.controller.Enrollment()
	require.True(t, ok)
	secret, err := totp.SecretFromURI(enrollment.ProvisioningURI)
	require.NoError(t, err)

	session, _ := f.store.Current()
	require.Equal(t, users.MethodEmail, session.TwoFactorMethod)

	require.NoError(t, f.controller.SubmitEnrollmentCode(ctx, totp.Code(secret, f.clock.Now())))
	session, _ = f.store.Current()
	require.Equal(t, users.MethodAuthenticator, session.TwoFactorMethod)
	require.True(t, session.TwoFactorEnabled)

	// The next login asks for an authenticator code instead of emailing one.
	require.NoError(t, f.controller.Logout(ctx))
	require.NoError(t, f.controller.SubmitCredentials(ctx, testEmail, testPassword))
	pending, _ := f.controller.Pending()
	require.Equal(t, users.MethodAuthenticator, pending.TwoFactorMethod)

	f.clock.Advance(totp.Period)
	require.NoError(t, f.controller.SubmitCode(ctx, totp.Code(secret, f.clock.Now())))
	require.True(t, f.store.Authenticated())
}

func TestSwitchBackToEmail(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signup(t, "")
	f.login(t)

	require.NoError(t, f.controller.SubmitTwoFactorChange(ctx, auth.TwoFactorChangeRequest{
		CurrentPassword: testPassword,
		RequestedMethod: users.MethodEmail,
	}))
	require.Equal(t, auth.ChangeDone, f.controller.ChangeState())

	session, _ := f.store.Current()
	require.Equal(t, users.MethodEmail, session.TwoFactorMethod)
	require.True(t, session.TwoFactorEnabled)

	_, err := f.client.AuthenticatorQR(ctx)
	require.ErrorIs(t, err, apperrors.ErrValidation)
	require.Equal(t, "Authenticator app is not enabled for this user", err.Error())
}

func TestChangePasswordEndToEnd(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signup(t, "")
	f.login(t)

	_, err := f.controller.ChangePassword(ctx, "not it", "new password", "new password")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	require.Equal(t, "Current password is incorrect", err.Error())

	msg, err := f.controller.ChangePassword(ctx, testPassword, "new password", "new password")
	require.NoError(t, err)
	require.Equal(t, "Password changed successfully", msg)

	require.NoError(t, f.controller.Logout(ctx))
	require.ErrorIs(t, f.controller.SubmitCredentials(ctx, testEmail, testPassword), apperrors.ErrInvalidCredentials)
	require.NoError(t, f.controller.SubmitCredentials(ctx, testEmail, "new password"))
}

func TestLogoutRevokesToken(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signup(t, "")
	f.login(t)
	session, _ := f.store.Current()

	require.NoError(t, f.controller.Logout(ctx))
	require.False(t, f.store.Authenticated())

	status, body := f.get(t, server.RouteProfile, session.Token)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "Token has been revoked", body.Message)
}

func TestRevocationsPrunedOnTimer(t *testing.T) {
	t.Setenv("ENV", "TEST")
	clk := &clock{now: time.Now()}
	revoked := token.NewRevocationList()
	repos := server.NewInMemoryRepos(fakeuserrepo.NewFakeUserRepo())
	repos.Revoked = revoked
	srv, err := server.New(config.New(), repos, server.WithNowTime(clk.Now))
	require.NoError(t, err)

	revoked.Revoke(token.Claims{ID: "old", ExpiresAt: clk.Now().Add(time.Hour)})
	revoked.Revoke(token.Claims{ID: "new", ExpiresAt: clk.Now().Add(48 * time.Hour)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.PruneRevocations(ctx, 5*time.Millisecond)
		close(done)
	}()

	clk.Advance(2 * time.Hour)
	require.Eventually(t, func() bool { return revoked.Len() == 1 }, time.Second, 5*time.Millisecond)
	require.True(t, revoked.Revoked(token.Claims{ID: "new"}))

	cancel()
	<-done
}

func TestRevokedTokenEndsClientSession(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signup(t, "")
	f.login(t)

	// Revoke server-side only; the client still believes it is logged in.
	_, err := f.client.Logout(ctx)
	require.NoError(t, err)
	require.True(t, f.store.Authenticated())

	nav := guard.NewNavigator(f.store, guard.RouteSettings)
	defer nav.Close()

	err = f.controller.RefreshProfile(ctx)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	require.False(t, f.store.Authenticated())
	require.Equal(t, auth.StateIdle, f.controller.State())
	require.Equal(t, guard.RouteLogin, nav.Current())
}

func TestExpiredTokenRejected(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signup(t, "")
	f.login(t)

	f.clock.Advance(25 * time.Hour)
	_, err := f.controller.ChangePassword(ctx, testPassword, "new password", "new password")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	require.False(t, f.store.Authenticated())
}

func TestBearerRequired(t *testing.T) {
	f := setupTestFixture(t)

	status, body := f.get(t, server.RouteProfile, "")
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "Authentication required", body.Message)

	status, body = f.get(t, server.RouteProfile, "not-a-jwt")
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "Invalid or expired token", body.Message)
}

func TestMalformedRequests(t *testing.T) {
	f := setupTestFixture(t)

	req, err := http.NewRequest(http.MethodPost, f.ts.URL+server.RouteLogin, strings.NewReader("{"))
	require.NoError(t, err)
	status, body := do(t, req)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "Request body must be valid JSON", body.Message)

	f.signup(t, "")
	req, err = http.NewRequest(http.MethodPost, f.ts.URL+server.RouteResendCode+"?email="+testEmail+"&type=fax", nil)
	require.NoError(t, err)
	status, body = do(t, req)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "Invalid verification type", body.Message)

	req, err = http.NewRequest(http.MethodPost, f.ts.URL+server.RouteResendCode+"?email="+testEmail+"&type=phone", nil)
	require.NoError(t, err)
	status, body = do(t, req)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "No phone number is registered for this user", body.Message)
}

func TestRequestIDEchoed(t *testing.T) {
	f := setupTestFixture(t)

	req, err := http.NewRequest(http.MethodPost, f.ts.URL+server.RouteLogin, strings.NewReader(`{"email":"x@y.z","password":"p"}`))
	require.NoError(t, err)
	req.Header.Set(gateway.RequestIDHeader, "req-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "req-123", resp.Header.Get(gateway.RequestIDHeader))

	req, err = http.NewRequest(http.MethodGet, f.ts.URL+server.RouteHealth, nil)
	require.NoError(t, err)
	status, body := do(t, req)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body.Message)
}

func TestMetricsEndpoint(t *testing.T) {
	f := setupTestFixture(t)
	f.signup(t, "")

	resp, err := http.Get(f.ts.URL + server.RouteMetrics)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(raw), `twofa_http_requests_total{method="POST",route="/api/auth/signup",status="200"} 1`)
}

func TestDemoUserSeeded(t *testing.T) {
	t.Setenv("ENV", "TEST")
	t.Setenv("DEMO_USER_EMAIL", "demo@example.com")
	t.Setenv("DEMO_USER_PASSWORD", "demo-password")

	repo := fakeuserrepo.NewFakeUserRepo()
	_, err := server.New(config.New(), server.NewInMemoryRepos(repo))
	require.NoError(t, err)

	demo, err := repo.GetByEmail("demo@example.com")
	require.NoError(t, err)
	require.True(t, demo.EmailVerified)
	require.Equal(t, users.MethodEmail, demo.TwoFactorMethod)

	// A second start over the same storage keeps the existing account.
	_, err = server.New(config.New(), server.NewInMemoryRepos(repo))
	require.NoError(t, err)

	t.Setenv("DEMO_USER_PASSWORD", "123")
	_, err = server.New(config.New(), server.NewInMemoryRepos(fakeuserrepo.NewFakeUserRepo()))
	require.Error(t, err)
}
