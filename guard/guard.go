package guard

import "strings"

// Route is a destination in the front-end.
type Route string

const (
	RouteRoot                Route = "/"
	RouteLogin               Route = "/login"
	RouteSignup              Route = "/signup"
	RouteVerifyEmail         Route = "/verify-email"
	RouteVerifyLogin         Route = "/verify-login"
	RouteDashboard           Route = "/dashboard"
	RouteSettings            Route = "/settings"
	RouteVerifyAuthenticator Route = "/verify-authenticator"
)

// Access classifies a route.
type Access int

const (
	AccessUnknown Access = iota
	AccessPublic
	AccessProtected
)

var routes = map[Route]Access{
	RouteLogin:               AccessPublic,
	RouteSignup:              AccessPublic,
	RouteVerifyEmail:         AccessPublic,
	RouteVerifyLogin:         AccessPublic,
	RouteDashboard:           AccessProtected,
	RouteSettings:            AccessProtected,
	RouteVerifyAuthenticator: AccessProtected,
}

// ParseRoute accepts a route with or without its leading slash.
func ParseRoute(s string) Route {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	return Route(s)
}

func Classify(r Route) Access {
	return routes[r]
}

// Decision is the outcome of a navigation attempt. When Allowed is false the
// caller must go to Redirect instead.
type Decision struct {
	Destination Route
	Allowed     bool
	Redirect    Route
}

// Target is where navigation actually ends up.
func (d Decision) Target() Route {
	if d.Allowed {
		return d.Destination
	}
	return d.Redirect
}

// Evaluate decides whether dest may be shown. It depends only on its inputs.
func Evaluate(authenticated bool, dest Route) Decision {
	if dest == RouteRoot {
		dest = RouteDashboard
	}
	switch Classify(dest) {
	case AccessProtected:
		if !authenticated {
			return Decision{Destination: dest, Redirect: RouteLogin}
		}
	case AccessPublic:
		if authenticated {
			return Decision{Destination: dest, Redirect: RouteDashboard}
		}
	}
	return Decision{Destination: dest, Allowed: true}
}
