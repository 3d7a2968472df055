package sessions

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	apperrors "github.com/wilsonhuang01/CMPE-272-2FA/internal/errors"
	"github.com/wilsonhuang01/CMPE-272-2FA/internal/utils"
	"github.com/wilsonhuang01/CMPE-272-2FA/token"
	"github.com/wilsonhuang01/CMPE-272-2FA/users"
)

// Listener observes every store mutation. ok is false once the session is gone.
// Listeners run synchronously after the mutation and must not mutate the store.
type Listener func(session Session, ok bool)

// Ticket orders session mutations by the time their triggering request was
// issued. See UpdateWithTicket.
type Ticket uint64

var _ oauth2.TokenSource = (*Store)(nil)

// Store owns the process's single authenticated session and keeps it in sync
// with persistent storage.
type Store struct {
	storage Storage
	nowTime func() time.Time

	mu      sync.Mutex
	current *Session
	applied Ticket // ticket of the last applied mutation

	issued atomic.Uint64

	notifyMu     sync.Mutex // keeps notifications in mutation order
	listenersMu  sync.Mutex
	listeners    map[int]Listener
	nextListener int
}

// StoreOption defines a function type to modify the Store instance.
type StoreOption func(*Store)

// WithNowTime sets the clock used to decide whether a persisted token expired.
func WithNowTime(nowFunc func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

func NewStore(storage Storage, options ...StoreOption) *Store {
	s := &Store{
		storage:   storage,
		nowTime:   time.Now,
		listeners: make(map[int]Listener),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Restore loads a previously persisted session. It never fails: missing,
// partial, corrupt or expired data all mean "no session". Unusable entries are
// removed so they do not linger.
func (s *Store) Restore(ctx context.Context) (Session, bool) {
	entries, err := s.storage.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Session restore: failed to load persisted session")
		return Session{}, false
	}
	if entries.Token == "" && len(entries.User) == 0 {
		log.Debug().Msg("Session restore: no stored credentials found")
		return Session{}, false
	}

	restored, reason := s.decode(entries)
	if reason != "" {
		log.Info().Str("reason", reason).Msg("Session restore: discarding persisted session")
		if err := s.storage.Remove(ctx); err != nil {
			log.Warn().Err(err).Msg("Session restore: failed to remove unusable session")
		}
		return Session{}, false
	}

	s.mutate(func() {
		s.current = &restored
		s.applied = s.nextTicket()
	})
	log.Info().Int64("user_id", restored.UserID).Str("email", utils.MaskEmail(restored.Email)).Msg("Session restored")
	return restored, true
}

func (s *Store) decode(entries Entries) (Session, string) {
	if !entries.Complete() {
		return Session{}, "incomplete"
	}

	var profile users.Profile
	if err := json.Unmarshal(entries.User, &profile); err != nil {
		return Session{}, "corrupt user entry"
	}

	restored := FromProfile(profile, entries.Token)
	if !restored.Valid() {
		return Session{}, "invalid user entry"
	}
	if claims, ok := token.Inspect(entries.Token); ok && claims.Expired(s.nowTime()) {
		return Session{}, "token expired"
	}
	return restored, ""
}

// Set replaces the current session and persists it. The in-memory session is
// replaced even when persistence fails; the returned error reports the
// persistence failure.
func (s *Store) Set(ctx context.Context, session Session) error {
	if !session.Valid() {
		return apperrors.Wrapf(apperrors.ErrInvalidSession, "[Store.Set] token and user id are required")
	}
	session.TwoFactorMethod = session.TwoFactorMethod.Normalize()

	var persistErr error
	s.mutate(func() {
		s.current = &session
		s.applied = s.nextTicket()
		persistErr = s.persist(ctx, session)
	})
	if persistErr != nil {
		log.Err(persistErr).Msg("Session set but not persisted")
		return persistErr
	}
	log.Info().Int64("user_id", session.UserID).Str("email", utils.MaskEmail(session.Email)).Msg("Session set")
	return nil
}

// Update merges patch into the current session.
func (s *Store) Update(ctx context.Context, patch Patch) error {
	_, err := s.update(ctx, nil, patch)
	return err
}

// Ticket reserves a sequence number for a request that will later update the
// session. Take it before issuing the request.
func (s *Store) Ticket() Ticket {
	return s.nextTicket()
}

// UpdateWithTicket merges patch only if no other mutation (set, clear, or a
// newer ticketed update) has been applied since the ticket was issued. A stale
// patch is dropped and applied is false.
func (s *Store) UpdateWithTicket(ctx context.Context, ticket Ticket, patch Patch) (bool, error) {
	return s.update(ctx, &ticket, patch)
}

func (s *Store) update(ctx context.Context, ticket *Ticket, patch Patch) (bool, error) {
	var (
		applied    bool
		err        error
		persistErr error
	)
	s.mutate(func() {
		if s.current == nil {
			err = apperrors.ErrNoActiveSession
			return
		}
		t := s.nextTicket()
		if ticket != nil {
			t = *ticket
		}
		if t <= s.applied {
			return
		}
		updated := patch.apply(*s.current)
		s.current = &updated
		s.applied = t
		applied = true
		persistErr = s.persist(ctx, updated)
	})

	switch {
	case err != nil:
		return false, err
	case !applied:
		log.Debug().Uint64("ticket", uint64(*ticket)).Msg("Session update dropped: a newer mutation was already applied")
		return false, nil
	case persistErr != nil:
		log.Err(persistErr).Msg("Session updated but not persisted")
		return true, persistErr
	}
	return true, nil
}

// Clear destroys the session and removes persisted data. It is idempotent and
// always clears the in-memory session; a storage failure is logged and returned.
func (s *Store) Clear(ctx context.Context) error {
	var removeErr error
	s.mutate(func() {
		s.current = nil
		s.applied = s.nextTicket()
		removeErr = s.storage.Remove(ctx)
	})
	if removeErr != nil {
		log.Err(removeErr).Msg("Session cleared but persisted data could not be removed")
		return apperrors.Wrapf(removeErr, "[Store.Clear] storage.Remove")
	}
	log.Info().Msg("Session cleared")
	return nil
}

// Current returns a copy of the active session.
func (s *Store) Current() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Session{}, false
	}
	return *s.current, true
}

func (s *Store) Authenticated() bool {
	_, ok := s.Current()
	return ok
}

// Token implements oauth2.TokenSource so the gateway can attach the bearer
// header whenever a session exists.
func (s *Store) Token() (*oauth2.Token, error) {
	current, ok := s.Current()
	if !ok {
		return nil, apperrors.ErrNoActiveSession
	}
	tok := &oauth2.Token{AccessToken: current.Token, TokenType: "Bearer"}
	if claims, ok := token.Inspect(current.Token); ok {
		tok.Expiry = claims.ExpiresAt
	}
	return tok, nil
}

// Subscribe registers l for every subsequent mutation and returns a function
// that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = l
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

// mutate runs fn under the store lock, then publishes the resulting state to
// listeners before any later mutation can publish.
func (s *Store) mutate(fn func()) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	fn()
	var (
		snapshot Session
		ok       bool
	)
	if s.current != nil {
		snapshot, ok = *s.current, true
	}
	s.mu.Unlock()

	s.listenersMu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listenersMu.Unlock()

	for _, l := range listeners {
		l(snapshot, ok)
	}
}

func (s *Store) persist(ctx context.Context, session Session) error {
	userJSON, err := json.Marshal(session.Profile())
	if err != nil {
		return apperrors.Wrapf(err, "[Store.persist] marshal user")
	}
	if err := s.storage.Save(ctx, Entries{Token: session.Token, User: userJSON}); err != nil {
		return apperrors.Wrapf(err, "[Store.persist] storage.Save")
	}
	return nil
}

func (s *Store) nextTicket() Ticket {
	return Ticket(s.issued.Add(1))
}
