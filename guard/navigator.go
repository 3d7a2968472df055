package guard

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/wilsonhuang01/CMPE-272-2FA/sessions"
)

// SessionSource is what the navigator needs from the session store.
type SessionSource interface {
	Authenticated() bool
	Subscribe(l sessions.Listener) (unsubscribe func())
}

// Navigator tracks the current route and re-runs the guard on every
// navigation and every session change. Decisions are never cached.
type Navigator struct {
	sessions   SessionSource
	onRedirect func(from, to Route)

	mu          sync.Mutex
	current     Route
	unsubscribe func()
}

// NavigatorOption defines a function type to modify the Navigator instance.
type NavigatorOption func(*Navigator)

// WithOnRedirect is called whenever the guard moves the user somewhere they
// did not ask to go. It runs synchronously and must not mutate the session.
func WithOnRedirect(fn func(from, to Route)) NavigatorOption {
	return func(n *Navigator) {
		n.onRedirect = fn
	}
}

func NewNavigator(src SessionSource, start Route, options ...NavigatorOption) *Navigator {
	n := &Navigator{sessions: src}
	for _, opt := range options {
		opt(n)
	}
	n.current = Evaluate(src.Authenticated(), start).Target()
	n.unsubscribe = src.Subscribe(n.sessionChanged)
	return n
}

// Navigate moves to dest, or to wherever the guard redirects it.
func (n *Navigator) Navigate(dest Route) Decision {
	d := Evaluate(n.sessions.Authenticated(), dest)
	n.mu.Lock()
	n.current = d.Target()
	n.mu.Unlock()
	if !d.Allowed {
		n.redirected(dest, d.Redirect)
	}
	return d
}

func (n *Navigator) Current() Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *Navigator) Close() {
	n.unsubscribe()
}

func (n *Navigator) sessionChanged(_ sessions.Session, ok bool) {
	n.mu.Lock()
	from := n.current
	d := Evaluate(ok, from)
	n.current = d.Target()
	n.mu.Unlock()
	if !d.Allowed {
		n.redirected(from, d.Redirect)
	}
}

func (n *Navigator) redirected(from, to Route) {
	log.Debug().Str("from", string(from)).Str("to", string(to)).Msg("Route guard redirect")
	if n.onRedirect != nil {
		n.onRedirect(from, to)
	}
}
