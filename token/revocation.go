package token

import (
	"sync"
	"time"
)

// Revocations remembers logged-out tokens until they would have expired on
// their own.
type Revocations interface {
	Revoke(claims Claims)
	Revoked(claims Claims) bool
	// Prune drops entries whose token has expired by now and reports how many went.
	Prune(now time.Time) int
}

var _ Revocations = (*RevocationList)(nil)

// RevocationList keeps revoked token ids in memory. A token without an exp
// claim stays revoked until the process exits.
type RevocationList struct {
	mu       sync.RWMutex
	expiries map[string]time.Time
}

func NewRevocationList() *RevocationList {
	return &RevocationList{expiries: make(map[string]time.Time)}
}

func (l *RevocationList) Revoke(claims Claims) {
	if claims.ID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expiries[claims.ID] = claims.ExpiresAt
}

func (l *RevocationList) Revoked(claims Claims) bool {
	if claims.ID == "" {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.expiries[claims.ID]
	return ok
}

func (l *RevocationList) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	pruned := 0
	for id, exp := range l.expiries {
		if !exp.IsZero() && now.After(exp) {
			delete(l.expiries, id)
			pruned++
		}
	}
	return pruned
}

func (l *RevocationList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.expiries)
}
