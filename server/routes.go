package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// Public auth API
	s.registerAPI(http.MethodPost, RouteSignup, s.SignupHandler())
	s.registerAPI(http.MethodPost, RouteLogin, s.LoginHandler())
	s.registerAPI(http.MethodPost, RouteLoginVerify, s.LoginVerifyHandler())
	s.registerAPI(http.MethodPost, RouteVerifyEmail, s.VerifyEmailHandler())
	s.registerAPI(http.MethodPost, RouteResendCode, s.ResendCodeHandler())

	// Authenticated auth API
	s.registerAPI(http.MethodGet, RouteProfile, s.ProfileHandler(), s.RequireBearer)
	s.registerAPI(http.MethodPost, RouteChangePassword, s.ChangePasswordHandler(), s.RequireBearer)
	s.registerAPI(http.MethodPost, RouteChangeTwoFactor, s.ChangeTwoFactorHandler(), s.RequireBearer)
	s.registerAPI(http.MethodGet, RouteAuthenticatorQR, s.AuthenticatorQRHandler(), s.RequireBearer)
	s.registerAPI(http.MethodPost, RouteVerifyAuthenticator, s.VerifyAuthenticatorHandler(), s.RequireBearer)
	s.registerAPI(http.MethodPost, RouteLogout, s.LogoutHandler(), s.RequireBearer)

	// CORS preflight for the whole API
	s.RegisterRouteHandler("OPTIONS "+RouteAPIPrefix+"/", ChainMiddleware(noContent, s.CorsMiddleware))

	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.RecoverMiddleware))
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

// registerAPI wraps handler in the standard API middleware, any extra
// middleware, and request metrics labelled with the route.
func (s *Server) registerAPI(method, route string, handler http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) {
	chained := ChainMiddleware(handler, append(s.APIMiddleware(), mw...)...)
	s.RegisterRouteHandler(method+" "+route, s.metrics.Middleware(route, chained))
}

func noContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
