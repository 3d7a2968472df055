package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/wilsonhuang01/CMPE-272-2FA/auth"
	"github.com/wilsonhuang01/CMPE-272-2FA/gateway"
	"github.com/wilsonhuang01/CMPE-272-2FA/guard"
	apperrors "github.com/wilsonhuang01/CMPE-272-2FA/internal/errors"
	"github.com/wilsonhuang01/CMPE-272-2FA/internal/ui"
	"github.com/wilsonhuang01/CMPE-272-2FA/users"
)

const maxCodeAttempts = 3

type command struct {
	name   string
	route  guard.Route
	usage  string
	banner bool
	run    func(ctx context.Context, a *app, args []string) error
}

var commandOrder = []string{
	"signup", "verify-email", "resend-code", "login", "status",
	"change-password", "change-2fa", "refresh", "logout",
}

var commands = map[string]command{
	"signup":          {name: "signup", route: guard.RouteSignup, usage: "create an account", banner: true, run: runSignup},
	"verify-email":    {name: "verify-email", route: guard.RouteVerifyEmail, usage: "confirm your email with the code you were sent", run: runVerifyEmail},
	"resend-code":     {name: "resend-code", route: guard.RouteVerifyEmail, usage: "send a new email or phone verification code", run: runResendCode},
	"login":           {name: "login", route: guard.RouteLogin, usage: "log in with your password and a verification code", banner: true, run: runLogin},
	"status":          {name: "status", route: guard.RouteDashboard, usage: "show the logged in account", run: runStatus},
	"change-password": {name: "change-password", route: guard.RouteSettings, usage: "change your password", run: runChangePassword},
	"change-2fa":      {name: "change-2fa", route: guard.RouteSettings, usage: "switch between email codes and an authenticator app", run: runChangeTwoFactor},
	"refresh":         {name: "refresh", route: guard.RouteDashboard, usage: "reload your profile from the server", run: runRefresh},
	"logout":          {name: "logout", route: guard.RouteDashboard, usage: "log out and forget the stored session", run: runLogout},
}

func runSignup(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	firstName := fs.String("first-name", "", "first name")
	lastName := fs.String("last-name", "", "last name")
	phone := fs.String("phone", "", "optional phone number")
	method := fs.String("2fa", "", "initial two-factor method: email or authenticator")
	if err := fs.Parse(args); err != nil {
		return err
	}

	m, err := users.ParseTwoFactorMethod(*method)
	if err != nil {
		return err
	}
	if m == users.MethodNone {
		m = ""
	}

	form := auth.SignupForm{PhoneNumber: *phone, TwoFactorMethod: m}
	if form.Email, err = a.valueOrPrompt(*email, "Email: "); err != nil {
		return err
	}
	if form.FirstName, err = a.valueOrPrompt(*firstName, "First name: "); err != nil {
		return err
	}
	if form.LastName, err = a.valueOrPrompt(*lastName, "Last name: "); err != nil {
		return err
	}
	if form.Password, err = a.readSecret("Password: "); err != nil {
		return err
	}
	if form.ConfirmPassword, err = a.readSecret("Confirm password: "); err != nil {
		return err
	}

	res, err := a.controller.Signup(ctx, form)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, a.paint(ui.Green, res.Message))
	if res.StrengthHint != "" {
		fmt.Fprintln(a.out, a.paint(ui.Yellow, res.StrengthHint))
	}
	if res.ProvisioningURI != "" {
		fmt.Fprintln(a.out, "Add this account to your authenticator app:")
		fmt.Fprintln(a.out, "  "+res.ProvisioningURI)
	}

	a.nav.Navigate(guard.RouteVerifyEmail)
	code, err := a.readLine("Email verification code (blank to do it later): ")
	if err != nil || code == "" {
		fmt.Fprintln(a.out, "Run `twofa verify-email` once the code arrives.")
		return nil
	}
	msg, err := a.controller.VerifyEmail(ctx, form.Email, code)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, a.paint(ui.Green, msg))
	return nil
}

func runVerifyEmail(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("verify-email", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	code := fs.String("code", "", "verification code")
	if err := fs.Parse(args); err != nil {
		return err
	}

	addr, err := a.valueOrPrompt(*email, "Email: ")
	if err != nil {
		return err
	}
	c, err := a.valueOrPrompt(*code, "Code: ")
	if err != nil {
		return err
	}
	msg, err := a.controller.VerifyEmail(ctx, addr, c)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, a.paint(ui.Green, msg))
	return nil
}

func runResendCode(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("resend-code", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	channel := fs.String("type", string(gateway.ChannelEmail), "where to send the code: email or phone")
	if err := fs.Parse(args); err != nil {
		return err
	}

	addr, err := a.valueOrPrompt(*email, "Email: ")
	if err != nil {
		return err
	}
	msg, err := a.controller.ResendCode(ctx, addr, gateway.Channel(strings.ToLower(*channel)))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, a.paint(ui.Green, msg))
	return nil
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	addr, err := a.valueOrPrompt(*email, "Email: ")
	if err != nil {
		return err
	}
	password, err := a.readSecret("Password: ")
	if err != nil {
		return err
	}
	if err := a.controller.SubmitCredentials(ctx, addr, password); err != nil {
		return err
	}

	a.nav.Navigate(guard.RouteVerifyLogin)
	fmt.Fprintln(a.out, a.controller.Prompt())
	err = a.retryCode("Code: ", func(code string) error {
		return a.controller.SubmitCode(ctx, code)
	})
	if err != nil {
		a.controller.Cancel()
		return err
	}

	a.nav.Navigate(guard.RouteDashboard)
	return a.showStatus()
}

func runStatus(_ context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return a.showStatus()
}

func runChangePassword(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("change-password", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	current, err := a.readSecret("Current password: ")
	if err != nil {
		return err
	}
	next, err := a.readSecret("New password: ")
	if err != nil {
		return err
	}
	confirm, err := a.readSecret("Confirm new password: ")
	if err != nil {
		return err
	}
	msg, err := a.controller.ChangePassword(ctx, current, next, confirm)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, a.paint(ui.Green, msg))
	return nil
}

func runChangeTwoFactor(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("change-2fa", flag.ContinueOnError)
	method := fs.String("method", "", "new method: email or authenticator")
	phone := fs.String("phone", "", "optional phone number")
	if err := fs.Parse(args); err != nil {
		return err
	}

	m, err := users.ParseTwoFactorMethod(*method)
	if err != nil {
		return err
	}
	if !m.Selectable() {
		return fmt.Errorf("-method must be email or authenticator")
	}
	if err := a.controller.BeginTwoFactorChange(); err != nil {
		return err
	}
	password, err := a.readSecret("Password: ")
	if err != nil {
		return err
	}

	err = a.controller.SubmitTwoFactorChange(ctx, auth.TwoFactorChangeRequest{
		CurrentPassword: password,
		RequestedMethod: m,
		PhoneNumber:     *phone,
	})
	if err != nil {
		return err
	}
	if a.controller.ChangeState() != auth.ChangeAwaitingEnrollmentCode {
		fmt.Fprintln(a.out, a.paint(ui.Green, "Two-factor method changed."))
		return a.showStatus()
	}

	a.nav.Navigate(guard.RouteVerifyAuthenticator)
	enrollment, _ := a.controller.Enrollment()
	if enrollment.Message != "" {
		fmt.Fprintln(a.out, enrollment.Message)
	}
	if enrollment.ProvisioningURI != "" {
		fmt.Fprintln(a.out, "Add this account to your authenticator app:")
		fmt.Fprintln(a.out, "  "+enrollment.ProvisioningURI)
	} else {
		fmt.Fprintln(a.out, a.paint(ui.Yellow, "The set-up key could not be fetched; run change-2fa again if your app has no entry yet."))
	}

	err = a.retryCode("Authenticator code: ", func(code string) error {
		return a.controller.SubmitEnrollmentCode(ctx, code)
	})
	if err != nil {
		a.controller.CancelTwoFactorChange()
		return err
	}
	fmt.Fprintln(a.out, a.paint(ui.Green, "Authenticator app enabled."))
	a.nav.Navigate(guard.RouteSettings)
	return a.showStatus()
}

func runRefresh(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("refresh", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.controller.RefreshProfile(ctx); err != nil {
		return err
	}
	return a.showStatus()
}

func runLogout(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.controller.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

// retryCode prompts until submit accepts a code. Only wrong or malformed codes
// are retried.
func (a *app) retryCode(label string, submit func(code string) error) error {
	for attempt := 1; ; attempt++ {
		code, err := a.readLine(label)
		if err != nil {
			return err
		}
		err = submit(code)
		if err == nil {
			return nil
		}
		retryable := errors.Is(err, apperrors.ErrInvalidCode) || errors.Is(err, apperrors.ErrValidation)
		if !retryable || attempt >= maxCodeAttempts {
			return err
		}
		fmt.Fprintln(a.out, a.paint(ui.Red, err.Error()))
	}
}

func (a *app) showStatus() error {
	session, ok := a.store.Current()
	if !ok {
		fmt.Fprintln(a.out, "Not logged in.")
		return nil
	}

	name := strings.TrimSpace(session.FirstName + " " + session.LastName)
	fmt.Fprintf(a.out, "%s %s <%s>\n", a.paint(ui.Bold, "Logged in as"), name, session.Email)

	state, color := "disabled", ui.Yellow
	if session.TwoFactorEnabled {
		state, color = "enabled", ui.Green
	}
	fmt.Fprintf(a.out, "Two-factor: %s (%s)\n", a.paint(ui.Cyan, session.TwoFactorMethod.String()), a.paint(color, state))

	if tok, err := a.store.Token(); err == nil && !tok.Expiry.IsZero() {
		fmt.Fprintf(a.out, "Session expires: %s\n", tok.Expiry.Local().Format(time.RFC1123))
	}
	if a.storedIn != "" {
		fmt.Fprintf(a.out, "Session stored in: %s\n", a.storedIn)
	}
	return nil
}
