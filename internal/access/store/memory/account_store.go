package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mohamed2108268/Smart-Access/internal/access/store"
)

type AccountStore struct {
	mu       sync.RWMutex
	nextID   int64
	accounts map[int64]store.Account
	byName   map[string]int64
}

func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[int64]store.Account),
		byName:   make(map[string]int64),
	}
}

func (s *AccountStore) GetAccount(_ context.Context, id int64) (store.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return store.Account{}, store.ErrNotFound
	}
	return cloneAccount(a), nil
}

func (s *AccountStore) GetAccountByUsername(_ context.Context, username string) (store.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[strings.TrimSpace(username)]
	if !ok {
		return store.Account{}, store.ErrNotFound
	}
	return cloneAccount(s.accounts[id]), nil
}

func (s *AccountStore) CreateAccount(_ context.Context, a store.Account) (int64, error) {
	a.Username = strings.TrimSpace(a.Username)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byName[a.Username]; taken {
		return 0, store.ErrDuplicate
	}
	s.nextID++
	a.ID = s.nextID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.accounts[a.ID] = cloneAccount(a)
	s.byName[a.Username] = a.ID
	return a.ID, nil
}

func (s *AccountStore) UpdateCounters(_ context.Context, id int64, fn store.CounterFn) (store.Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return store.Counters{}, store.ErrNotFound
	}
	next := fn(store.Counters{
		FailedAttempts: a.FailedAttempts,
		IsFrozen:       a.IsFrozen,
		FrozenAt:       a.FrozenAt,
	})
	a.FailedAttempts = next.FailedAttempts
	a.IsFrozen = next.IsFrozen
	a.FrozenAt = cloneTime(next.FrozenAt)
	s.accounts[id] = a
	next.FrozenAt = cloneTime(a.FrozenAt)
	return next, nil
}

func (s *AccountStore) SetTemplates(_ context.Context, id int64, face, voice []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	a.FaceTemplate = append([]byte(nil), face...)
	a.VoiceTemplate = append([]byte(nil), voice...)
	s.accounts[id] = a
	return nil
}

func (s *AccountStore) ListFrozen(_ context.Context, tenantID int64) ([]store.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Account
	for _, a := range s.accounts {
		if a.IsFrozen && a.TenantID == tenantID {
			out = append(out, cloneAccount(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func cloneAccount(a store.Account) store.Account {
	a.FrozenAt = cloneTime(a.FrozenAt)
	a.FaceTemplate = append([]byte(nil), a.FaceTemplate...)
	a.VoiceTemplate = append([]byte(nil), a.VoiceTemplate...)
	return a
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
