package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteAPIPrefix = "/api/auth"

	// Public
	RouteSignup      = RouteAPIPrefix + "/signup"
	RouteLogin       = RouteAPIPrefix + "/login"
	RouteLoginVerify = RouteAPIPrefix + "/login-verify"
	RouteVerifyEmail = RouteAPIPrefix + "/verify-email"
	RouteResendCode  = RouteAPIPrefix + "/resend-code"

	// Bearer token required
	RouteProfile             = RouteAPIPrefix + "/profile"
	RouteChangePassword      = RouteAPIPrefix + "/change-password"
	RouteChangeTwoFactor     = RouteAPIPrefix + "/change-2fa"
	RouteAuthenticatorQR     = RouteAPIPrefix + "/authenticator-qr"
	RouteVerifyAuthenticator = RouteAPIPrefix + "/verify-authenticator"
	RouteLogout              = RouteAPIPrefix + "/logout"

	// Operations
	RouteMetrics = "/metrics"
	RouteHealth  = "/healthz"
)
