package auth_test

import (
	"context"
	"sync"

	"github.com/wilsonhuang01/CMPE-272-2FA/gateway"
	"github.com/wilsonhuang01/CMPE-272-2FA/users"
)

// fakeGateway answers every call with a canned success unless the test
// installs a handler for it.
type fakeGateway struct {
	mu    sync.Mutex
	calls map[string]int

	login               func(gateway.LoginRequest) (*gateway.LoginChallenge, error)
	verifyLogin         func(gateway.VerificationRequest) (*gateway.LoginResult, error)
	signup              func(gateway.SignupRequest) (*gateway.AuthResponse, error)
	profile             func() (users.Profile, error)
	changePassword      func(gateway.ChangePasswordRequest) (string, error)
	changeTwoFactor     func(gateway.ChangeTwoFactorRequest) (*gateway.TwoFactorChange, error)
	verifyAuthenticator func(gateway.VerificationRequest) (string, error)
	logout              func() (string, error)
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{calls: make(map[string]int)}
}

func (f *fakeGateway) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

func (f *fakeGateway) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeGateway) Signup(_ context.Context, req gateway.SignupRequest) (*gateway.AuthResponse, error) {
	f.record(gateway.OpSignup)
	if f.signup != nil {
		return f.signup(req)
	}
	return &gateway.AuthResponse{Message: "User created successfully. Please check your email for verification code."}, nil
}

func (f *fakeGateway) Login(_ context.Context, req gateway.LoginRequest) (*gateway.LoginChallenge, error) {
	f.record(gateway.OpLogin)
	if f.login != nil {
		return f.login(req)
	}
	return &gateway.LoginChallenge{Method: users.MethodEmail, RequiresTwoFactor: true}, nil
}

func (f *fakeGateway) VerifyLogin(_ context.Context, req gateway.VerificationRequest) (*gateway.LoginResult, error) {
	f.record(gateway.OpVerifyLogin)
	if f.verifyLogin != nil {
		return f.verifyLogin(req)
	}
	return &gateway.LoginResult{Token: "t1", Profile: users.Profile{ID: 7, Email: req.Email}}, nil
}

func (f *fakeGateway) VerifyEmail(_ context.Context, _ gateway.VerificationRequest) (string, error) {
	f.record(gateway.OpVerifyEmail)
	return "Email verified successfully", nil
}

func (f *fakeGateway) ResendCode(_ context.Context, req gateway.ResendCodeRequest) (string, error) {
	f.record(gateway.OpResendCode)
	if req.Channel == gateway.ChannelPhone {
		return "Phone verification code sent", nil
	}
	return "Email verification code sent", nil
}

func (f *fakeGateway) GetProfile(_ context.Context) (users.Profile, error) {
	f.record(gateway.OpProfile)
	if f.profile != nil {
		return f.profile()
	}
	return users.Profile{ID: 7, Email: "a@x.com"}, nil
}

func (f *fakeGateway) ChangePassword(_ context.Context, req gateway.ChangePasswordRequest) (string, error) {
	f.record(gateway.OpChangePassword)
	if f.changePassword != nil {
		return f.changePassword(req)
	}
	return "Password changed successfully", nil
}

func (f *fakeGateway) ChangeTwoFactor(_ context.Context, req gateway.ChangeTwoFactorRequest) (*gateway.TwoFactorChange, error) {
	f.record(gateway.OpChangeTwoFactor)
	if f.changeTwoFactor != nil {
		return f.changeTwoFactor(req)
	}
	return &gateway.TwoFactorChange{Method: req.NewTwoFactorMethod}, nil
}

func (f *fakeGateway) VerifyAuthenticator(_ context.Context, req gateway.VerificationRequest) (string, error) {
	f.record(gateway.OpVerifyAuthenticator)
	if f.verifyAuthenticator != nil {
		return f.verifyAuthenticator(req)
	}
	return "Authenticator app verified", nil
}

func (f *fakeGateway) Logout(_ context.Context) (string, error) {
	f.record(gateway.OpLogout)
	if f.logout != nil {
		return f.logout()
	}
	return "Logged out successfully", nil
}
