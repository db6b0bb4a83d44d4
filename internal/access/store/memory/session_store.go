package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mohamed2108268/Smart-Access/internal/access/store"
	"github.com/mohamed2108268/Smart-Access/internal/access/types"
)

// SessionStore holds ephemeral sessions in process memory.  Expired entries
// are dropped lazily on access.
type SessionStore struct {
	mu       sync.Mutex
	now      func() time.Time
	sessions map[string]sessionEntry
}

type sessionEntry struct {
	session   store.Session
	expiresAt time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]sessionEntry),
	}
}

// WithClock replaces the store's time source.  Used by tests that move time.
func (s *SessionStore) WithClock(now func() time.Time) *SessionStore {
	s.now = now
	return s
}

func (s *SessionStore) Create(_ context.Context, sess store.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(sess.Token); ok {
		return store.ErrDuplicate
	}
	s.sessions[sess.Token] = sessionEntry{session: sess, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *SessionStore) Get(_ context.Context, token string) (store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(token)
	if !ok {
		return store.Session{}, store.ErrNotFound
	}
	return e.session, nil
}

func (s *SessionStore) Replace(_ context.Context, token string, expect types.Stage, next store.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(token)
	if !ok {
		return store.ErrNotFound
	}
	if e.session.Stage != expect {
		return store.ErrStageConflict
	}
	next.Token = token
	s.sessions[token] = sessionEntry{session: next, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *SessionStore) Delete(_ context.Context, token string, expect types.Stage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(token)
	if !ok {
		return false, nil
	}
	if expect != "" && e.session.Stage != expect {
		return false, nil
	}
	delete(s.sessions, token)
	return true, nil
}

// Len reports the number of live sessions.  Test-only helper.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for tok := range s.sessions {
		if _, ok := s.live(tok); ok {
			n++
		}
	}
	return n
}

// live must be called with mu held.
func (s *SessionStore) live(token string) (sessionEntry, bool) {
	e, ok := s.sessions[token]
	if !ok {
		return sessionEntry{}, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.sessions, token)
		return sessionEntry{}, false
	}
	return e, true
}
