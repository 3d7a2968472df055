package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wilsonhuang01/CMPE-272-2FA/auth"
	"github.com/wilsonhuang01/CMPE-272-2FA/gateway"
	"github.com/wilsonhuang01/CMPE-272-2FA/guard"
	apperrors "github.com/wilsonhuang01/CMPE-272-2FA/internal/errors"
	"github.com/wilsonhuang01/CMPE-272-2FA/sessions"
	"github.com/wilsonhuang01/CMPE-272-2FA/sessions/memstore"
	"github.com/wilsonhuang01/CMPE-272-2FA/users"
)

const (
	testEmail    = "a@x.com"
	testPassword = "pw"
	testCode     = "482913"
)

type testFixture struct {
	gw         *fakeGateway
	store      *sessions.Store
	controller *auth.Controller
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	gw := newFakeGateway()
	store := sessions.NewStore(memstore.New())
	c, err := auth.NewController(auth.Deps{Gateway: gw, Sessions: store})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return &testFixture{gw: gw, store: store, controller: c}
}

func (f *testFixture) signIn(t *testing.T, s sessions.Session) {
	t.Helper()
	require.NoError(t, f.store.Set(context.Background(), s))
}

func TestNewControllerRequiresDeps(t *testing.T) {
	_, err := auth.NewController(auth.Deps{Sessions: sessions.NewStore(memstore.New())})
	require.Error(t, err)
	_, err = auth.NewController(auth.Deps{Gateway: newFakeGateway()})
	require.Error(t, err)
}

func TestLoginWithEmailCode(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.gw.login = func(req gateway.LoginRequest) (*gateway.LoginChallenge, error) {
		require.Equal(t, gateway.LoginRequest{Email: testEmail, Password: testPassword}, req)
		return &gateway.LoginChallenge{Method: users.MethodEmail, RequiresTwoFactor: true}, nil
	}
	f.gw.verifyLogin = func(req gateway.VerificationRequest) (*gateway.LoginResult, error) {
		require.Equal(t, gateway.VerificationRequest{Email: testEmail, Code: testCode}, req)
		return &gateway.LoginResult{Token: "t1", Profile: users.Profile{ID: 7, Email: testEmail, FirstName: "A"}}, nil
	}

	f.controller.Begin()
	require.Equal(t, auth.StateAwaitingCredentials, f.controller.State())

	require.NoError(t, f.controller.SubmitCredentials(ctx, testEmail, testPassword))
	require.Equal(t, auth.StateAwaitingCode, f.controller.State())
	pending, ok := f.controller.Pending()
	require.True(t, ok)
	require.Equal(t, auth.PendingVerification{Email: testEmail, TwoFactorMethod: users.MethodEmail}, pending)
	require.Equal(t, "We've sent a verification code to your email address at a@x.com", f.controller.Prompt())
	require.False(t, f.store.Authenticated())

	require.NoError(t, f.controller.SubmitCode(ctx, testCode))
	require.Equal(t, auth.StateAuthenticated, f.controller.State())
	_, ok = f.controller.Pending()
	require.False(t, ok)

	session, ok := f.store.Current()
	require.True(t, ok)
	require.Equal(t, sessions.Session{
		UserID:           7,
		Email:            testEmail,
		FirstName:        "A",
		TwoFactorMethod:  users.MethodNone,
		TwoFactorEnabled: false,
		Token:            "t1",
	}, session)
	require.True(t, guard.Evaluate(f.store.Authenticated(), guard.RouteDashboard).Allowed)
}

func TestPendingCarriesServerDeclaredMethod(t *testing.T) {
	for _, method := range []users.TwoFactorMethod{users.MethodAuthenticator, users.MethodNone} {
		f := setupTestFixture(t)
		f.gw.login = func(gateway.LoginRequest) (*gateway.LoginChallenge, error) {
			return &gateway.LoginChallenge{Method: method}, nil
		}
		require.NoError(t, f.controller.SubmitCredentials(context.Background(), testEmail, testPassword))
		pending, ok := f.controller.Pending()
		require.True(t, ok)
		require.Equal(t, method, pending.TwoFactorMethod)
	}

	f := setupTestFixture(t)
	f.gw.login = func(gateway.LoginRequest) (*gateway.LoginChallenge, error) {
		return &gateway.LoginChallenge{Method: users.MethodAuthenticator}, nil
	}
	require.NoError(t, f.controller.SubmitCredentials(context.Background(), testEmail, testPassword))
	require.Equal(t, "Please enter the 6-digit code from your authenticator app for a@x.com", f.controller.Prompt())
}

func TestRejectedCredentialsStayOnForm(t *testing.T) {
	f := setupTestFixture(t)
	f.gw.login = func(gateway.LoginRequest) (*gateway.LoginChallenge, error) {
		return nil, &gateway.APIError{Op: gateway.OpLogin, Status: http.StatusBadRequest, Message: "Invalid email or password", Kind: apperrors.ErrInvalidCredentials}
	}

	err := f.controller.SubmitCredentials(context.Background(), testEmail, "bad")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	require.Equal(t, "Invalid email or password", err.Error())

	var fe *auth.FormError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, auth.FormCredentials, fe.Form)
	require.Equal(t, fe, f.controller.LastError())
	require.Equal(t, auth.StateAwaitingCredentials, f.controller.State())
	_, ok := f.controller.Pending()
	require.False(t, ok)
}

func TestMalformedCodesNeverReachServer(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.controller.SubmitCredentials(ctx, testEmail, testPassword))

	for _, code := range []string{"", "12345", "1234567", "12a456", "abcdef"} {
		err := f.controller.SubmitCode(ctx, code)
		require.ErrorIs(t, err, apperrors.ErrValidation, code)
	}
	require.Zero(t, f.gw.count(gateway.OpVerifyLogin))
	require.Equal(t, auth.StateAwaitingCode, f.controller.State())

	pending, _ := f.controller.Pending()
	require.False(t, pending.Attempted)
}

func TestWrongCodeKeepsAwaitingCode(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.gw.verifyLogin = func(gateway.VerificationRequest) (*gateway.LoginResult, error) {
		return nil, &gateway.APIError{Op: gateway.OpVerifyLogin, Status: http.StatusBadRequest, Message: "Invalid or expired verification code", Kind: apperrors.ErrInvalidCode}
	}
	require.NoError(t, f.controller.SubmitCredentials(ctx, testEmail, testPassword))

	err := f.controller.SubmitCode(ctx, "000000")
	require.ErrorIs(t, err, apperrors.ErrInvalidCode)
	require.Equal(t, "Invalid or expired verification code", f.controller.LastError().Message)
	require.Equal(t, auth.StateAwaitingCode, f.controller.State())

	pending, ok := f.controller.Pending()
	require.True(t, ok)
	require.True(t, pending.Attempted)
	require.False(t, f.store.Authenticated())
}

func TestVerificationWithoutTokenOrIDFails(t *testing.T) {
	results := []*gateway.LoginResult{
		{Token: "", Profile: users.Profile{ID: 7, Email: testEmail}},
		{Token: "t1", Profile: users.Profile{ID: 0, Email: testEmail}},
	}
	for _, result := range results {
		f := setupTestFixture(t)
		ctx := context.Background()
		f.gw.verifyLogin = func(gateway.VerificationRequest) (*gateway.LoginResult, error) {
			return result, nil
		}
		require.NoError(t, f.controller.SubmitCredentials(ctx, testEmail, testPassword))

		err := f.controller.SubmitCode(ctx, testCode)
		require.ErrorIs(t, err, apperrors.ErrInvalidCode)
		require.Equal(t, auth.StateAwaitingCode, f.controller.State())
		require.False(t, f.store.Authenticated())
	}
}

func TestCancelDiscardsPendingVerification(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.controller.SubmitCredentials(ctx, testEmail, testPassword))

	f.controller.Cancel()
	require.Equal(t, auth.StateIdle, f.controller.State())
	_, ok := f.controller.Pending()
	require.False(t, ok)
	require.Empty(t, f.controller.Prompt())

	require.ErrorIs(t, f.controller.SubmitCode(ctx, testCode), apperrors.ErrValidation)
	require.Zero(t, f.gw.count(gateway.OpVerifyLogin))
}

func TestLateVerificationAfterCancelIsDiscarded(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	inFlight := make(chan struct{})
	proceed := make(chan struct{})
	f.gw.verifyLogin = func(req gateway.VerificationRequest) (*gateway.LoginResult, error) {
		close(inFlight)
		<-proceed
		return &gateway.LoginResult{Token: "t1", Profile: users.Profile{ID: 7, Email: req.Email}}, nil
	}
	require.NoError(t, f.controller.SubmitCredentials(ctx, testEmail, testPassword))

	done := make(chan error, 1)
	go func() { done <- f.controller.SubmitCode(ctx, testCode) }()
	<-inFlight
	f.controller.Cancel()
	close(proceed)

	require.NoError(t, <-done)
	require.False(t, f.store.Authenticated())
	require.Equal(t, auth.StateIdle, f.controller.State())
}

func TestSecondSubmissionWhileInFlight(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	inFlight := make(chan struct{})
	proceed := make(chan struct{})
	f.gw.login = func(gateway.LoginRequest) (*gateway.LoginChallenge, error) {
		close(inFlight)
		<-proceed
		return &gateway.LoginChallenge{Method: users.MethodEmail}, nil
	}

	done := make(chan error, 1)
	go func() { done <- f.controller.SubmitCredentials(ctx, testEmail, testPassword) }()
	<-inFlight

	err := f.controller.SubmitCredentials(ctx, testEmail, testPassword)
	require.ErrorIs(t, err, apperrors.ErrSubmissionInProgress)

	close(proceed)
	require.NoError(t, <-done)
	require.Equal(t, 1, f.gw.count(gateway.OpLogin))
}

func TestUnauthorizedResponseEndsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	ctx := context.Background()
	store := sessions.NewStore(memstore.New())
	client := gateway.New(srv.URL, store, gateway.WithSessionClearer(store))
	c, err := auth.NewController(auth.Deps{Gateway: client, Sessions: store})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, store.Set(ctx, sessions.Session{UserID: 7, Email: testEmail, Token: "t1"}))
	nav := guard.NewNavigator(store, guard.RouteDashboard)
	defer nav.Close()
	require.Equal(t, guard.RouteDashboard, nav.Current())
	require.Equal(t, auth.StateAuthenticated, c.State())

	err = c.RefreshProfile(ctx)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	require.False(t, store.Authenticated())
	require.Equal(t, auth.StateIdle, c.State())
	require.Equal(t, guard.RouteLogin, nav.Current())
	require.Equal(t, guard.Decision{Destination: guard.RouteDashboard, Redirect: guard.RouteLogin}, guard.Evaluate(store.Authenticated(), guard.RouteDashboard))
}

func TestChangeToAuthenticatorWaitsForEnrollment(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signIn(t, sessions.Session{UserID: 7, Email: testEmail, TwoFactorMethod: users.MethodEmail, Token: "t1"})

	const uri = "otpauth://totp/TwoFA:a@x.com?secret=ABC"
	f.gw.changeTwoFactor = func(req gateway.ChangeTwoFactorRequest) (*gateway.TwoFactorChange, error) {
		require.Equal(t, testPassword, req.Password)
		require.Equal(t, users.MethodAuthenticator, req.NewTwoFactorMethod)
		return &gateway.TwoFactorChange{Method: req.NewTwoFactorMethod, ProvisioningURI: uri}, nil
	}
	f.gw.verifyAuthenticator = func(req gateway.VerificationRequest) (string, error) {
		require.Equal(t, gateway.VerificationRequest{Email: testEmail, Code: "123456"}, req)
		return "Authenticator app verified", nil
	}
	f.gw.profile = func() (users.Profile, error) {
		return users.Profile{ID: 7, Email: testEmail, TwoFactorMethod: users.MethodAuthenticator, TwoFactorEnabled: true}, nil
	}

	require.NoError(t, f.controller.BeginTwoFactorChange())
	require.Equal(t, auth.ChangeAwaitingPasswordConfirm, f.controller.ChangeState())

	require.NoError(t, f.controller.SubmitTwoFactorChange(ctx, auth.TwoFactorChangeRequest{
		CurrentPassword: testPassword,
		RequestedMethod: users.MethodAuthenticator,
	}))
	require.Equal(t, auth.ChangeAwaitingEnrollmentCode, f.controller.ChangeState())
	enrollment, ok := f.controller.Enrollment()
	require.True(t, ok)
	require.Equal(t, uri, enrollment.ProvisioningURI)

	session, _ := f.store.Current()
	require.False(t, session.TwoFactorEnabled)
	require.Equal(t, users.MethodEmail, session.TwoFactorMethod)
	require.Zero(t, f.gw.count(gateway.OpProfile))

	require.ErrorIs(t, f.controller.SubmitEnrollmentCode(ctx, "12345"), apperrors.ErrValidation)
	require.Zero(t, f.gw.count(gateway.OpVerifyAuthenticator))

	require.NoError(t, f.controller.SubmitEnrollmentCode(ctx, "123456"))
	require.Equal(t, auth.ChangeDone, f.controller.ChangeState())
	session, _ = f.store.Current()
	require.True(t, session.TwoFactorEnabled)
	require.Equal(t, users.MethodAuthenticator, session.TwoFactorMethod)
	require.Equal(t, "t1", session.Token)
}

func TestEnrollmentAppliesChangeLocallyWhenRefreshFails(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signIn(t, sessions.Session{UserID: 7, Email: testEmail, Token: "t1"})
	f.gw.profile = func() (users.Profile, error) {
		return users.Profile{}, &gateway.APIError{Op: gateway.OpProfile, Message: "down", Kind: apperrors.ErrServer}
	}

	require.NoError(t, f.controller.SubmitTwoFactorChange(ctx, auth.TwoFactorChangeRequest{
		CurrentPassword: testPassword, RequestedMethod: users.MethodAuthenticator,
	}))
	require.NoError(t, f.controller.SubmitEnrollmentCode(ctx, "123456"))

	session, _ := f.store.Current()
	require.True(t, session.TwoFactorEnabled)
	require.Equal(t, users.MethodAuthenticator, session.TwoFactorMethod)
}

func TestChangeToEmailRefreshesEagerly(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signIn(t, sessions.Session{UserID: 7, Email: testEmail, TwoFactorMethod: users.MethodAuthenticator, TwoFactorEnabled: true, Token: "t1"})
	f.gw.profile = func() (users.Profile, error) {
		return users.Profile{ID: 7, Email: testEmail, TwoFactorMethod: users.MethodEmail, TwoFactorEnabled: true}, nil
	}

	require.NoError(t, f.controller.BeginTwoFactorChange())
	require.NoError(t, f.controller.SubmitTwoFactorChange(ctx, auth.TwoFactorChangeRequest{
		CurrentPassword: testPassword, RequestedMethod: users.MethodEmail,
	}))
	require.Equal(t, auth.ChangeDone, f.controller.ChangeState())
	require.Equal(t, 1, f.gw.count(gateway.OpProfile))

	session, _ := f.store.Current()
	require.Equal(t, users.MethodEmail, session.TwoFactorMethod)
}

func TestChangeSucceedsWhenRefreshFails(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signIn(t, sessions.Session{UserID: 7, Email: testEmail, TwoFactorMethod: users.MethodAuthenticator, Token: "t1"})
	f.gw.profile = func() (users.Profile, error) {
		return users.Profile{}, &gateway.APIError{Op: gateway.OpProfile, Message: "down", Kind: apperrors.ErrNetwork}
	}

	require.NoError(t, f.controller.SubmitTwoFactorChange(ctx, auth.TwoFactorChangeRequest{
		CurrentPassword: testPassword, RequestedMethod: users.MethodEmail,
	}))
	require.Equal(t, auth.ChangeDone, f.controller.ChangeState())
	require.True(t, f.store.Authenticated())

	session, _ := f.store.Current()
	require.Equal(t, users.MethodEmail, session.TwoFactorMethod)
	require.True(t, session.TwoFactorEnabled)
}

func TestRefreshKeepsSessionOnIncompleteProfile(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signIn(t, sessions.Session{
		UserID: 7, Email: testEmail, FirstName: "Ada", LastName: "Lovelace",
		TwoFactorMethod: users.MethodEmail, TwoFactorEnabled: true, Token: "t1",
	})

	for _, profile := range []users.Profile{
		{},
		{ID: 7},
		{Email: testEmail},
	} {
		f.gw.profile = func() (users.Profile, error) { return profile, nil }

		err := f.controller.RefreshProfile(ctx)
		require.ErrorIs(t, err, apperrors.ErrServer)

		session, ok := f.store.Current()
		require.True(t, ok)
		require.Equal(t, testEmail, session.Email)
		require.Equal(t, "Ada", session.FirstName)
		require.Equal(t, users.MethodEmail, session.TwoFactorMethod)
		require.True(t, session.TwoFactorEnabled)
	}
}

func TestTwoFactorChangeRejections(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.controller.BeginTwoFactorChange(), apperrors.ErrNoActiveSession)

	f.signIn(t, sessions.Session{UserID: 7, Email: testEmail, Token: "t1"})
	err := f.controller.SubmitTwoFactorChange(ctx, auth.TwoFactorChangeRequest{RequestedMethod: users.MethodEmail})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	f.gw.changeTwoFactor = func(gateway.ChangeTwoFactorRequest) (*gateway.TwoFactorChange, error) {
		return nil, &gateway.APIError{Op: gateway.OpChangeTwoFactor, Status: http.StatusBadRequest, Message: "Password is incorrect", Kind: apperrors.ErrInvalidCredentials}
	}
	err = f.controller.SubmitTwoFactorChange(ctx, auth.TwoFactorChangeRequest{CurrentPassword: "wrong", RequestedMethod: users.MethodAuthenticator})
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	require.Equal(t, auth.ChangeAwaitingPasswordConfirm, f.controller.ChangeState())

	f.controller.CancelTwoFactorChange()
	require.Equal(t, auth.ChangeIdle, f.controller.ChangeState())
	require.ErrorIs(t, f.controller.SubmitEnrollmentCode(ctx, "123456"), apperrors.ErrValidation)
}

func TestStaleRefreshAfterLogoutIsDropped(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signIn(t, sessions.Session{UserID: 7, Email: testEmail, Token: "t1"})

	inFlight := make(chan struct{})
	proceed := make(chan struct{})
	f.gw.profile = func() (users.Profile, error) {
		close(inFlight)
		<-proceed
		return users.Profile{ID: 7, Email: testEmail, FirstName: "Stale"}, nil
	}

	done := make(chan error, 1)
	go func() { done <- f.controller.RefreshProfile(ctx) }()
	<-inFlight
	require.NoError(t, f.controller.Logout(ctx))
	close(proceed)

	err := <-done
	require.ErrorIs(t, err, apperrors.ErrNoActiveSession)
	require.False(t, f.store.Authenticated())
}

func TestLogoutAlwaysClearsSession(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signIn(t, sessions.Session{UserID: 7, Email: testEmail, Token: "t1"})
	f.gw.logout = func() (string, error) {
		return "", &gateway.APIError{Op: gateway.OpLogout, Message: "unreachable", Kind: apperrors.ErrNetwork}
	}

	require.NoError(t, f.controller.Logout(ctx))
	require.False(t, f.store.Authenticated())
	require.Equal(t, auth.StateIdle, f.controller.State())
	require.Equal(t, 1, f.gw.count(gateway.OpLogout))

	// Logging out again does not bother the server.
	require.NoError(t, f.controller.Logout(ctx))
	require.Equal(t, 1, f.gw.count(gateway.OpLogout))
}

func TestSignup(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, err := f.controller.Signup(ctx, auth.SignupForm{
		Email: testEmail, Password: "secret1", ConfirmPassword: "secret2", FirstName: "Ada", LastName: "L",
	})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	require.Zero(t, f.gw.count(gateway.OpSignup))

	var sent gateway.SignupRequest
	f.gw.signup = func(req gateway.SignupRequest) (*gateway.AuthResponse, error) {
		sent = req
		return &gateway.AuthResponse{Message: "User created successfully."}, nil
	}
	result, err := f.controller.Signup(ctx, auth.SignupForm{
		Email: " a@x.com ", Password: "password", ConfirmPassword: "password",
		FirstName: "Ada", LastName: "Lovelace", TwoFactorMethod: users.MethodEmail,
	})
	require.NoError(t, err)
	require.Equal(t, "User created successfully.", result.Message)
	require.Equal(t, testEmail, sent.Email)
	require.Equal(t, users.MethodEmail, sent.TwoFactorMethod)
	require.LessOrEqual(t, result.StrengthScore, 1)
	require.NotEmpty(t, result.StrengthHint)
	require.False(t, f.store.Authenticated())
}

func TestVerifyEmailAndResend(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, err := f.controller.VerifyEmail(ctx, testEmail, "12")
	require.ErrorIs(t, err, apperrors.ErrValidation)
	require.Zero(t, f.gw.count(gateway.OpVerifyEmail))

	msg, err := f.controller.VerifyEmail(ctx, testEmail, testCode)
	require.NoError(t, err)
	require.Equal(t, "Email verified successfully", msg)

	msg, err = f.controller.ResendCode(ctx, testEmail, "")
	require.NoError(t, err)
	require.Equal(t, "Email verification code sent", msg)

	msg, err = f.controller.ResendCode(ctx, testEmail, gateway.ChannelPhone)
	require.NoError(t, err)
	require.Equal(t, "Phone verification code sent", msg)
}

func TestChangePassword(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, err := f.controller.ChangePassword(ctx, "old", "newpass", "newpass")
	require.ErrorIs(t, err, apperrors.ErrNoActiveSession)

	f.signIn(t, sessions.Session{UserID: 7, Email: testEmail, Token: "t1"})
	_, err = f.controller.ChangePassword(ctx, "old", "newpass", "newpasz")
	require.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = f.controller.ChangePassword(ctx, "old", "abc", "abc")
	require.ErrorIs(t, err, apperrors.ErrValidation)
	require.Zero(t, f.gw.count(gateway.OpChangePassword))

	msg, err := f.controller.ChangePassword(ctx, "old", "newpass", "newpass")
	require.NoError(t, err)
	require.Equal(t, "Password changed successfully", msg)
}

func TestConcurrentFormsDoNotBlockEachOther(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signIn(t, sessions.Session{UserID: 7, Email: testEmail, Token: "t1"})

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- f.controller.RefreshProfile(ctx)
	}()
	go func() {
		defer wg.Done()
		_, err := f.controller.ChangePassword(ctx, "old", "newpass", "newpass")
		errs <- err
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}
