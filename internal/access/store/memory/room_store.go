package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mohamed2108268/Smart-Access/internal/access/store"
)

// RoomStore keeps rooms and room-group grants in memory.  It implements
// both store.RoomStore and store.GrantStore.
type RoomStore struct {
	mu     sync.RWMutex
	nextID int64
	rooms  map[int64]store.Room
	byHWID map[string]int64
	grants map[grantKey]struct{}
	groups map[int64]int64 // group id -> tenant id
}

type grantKey struct {
	account int64
	group   int64
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms:  make(map[int64]store.Room),
		byHWID: make(map[string]int64),
		grants: make(map[grantKey]struct{}),
		groups: make(map[int64]int64),
	}
}

func (s *RoomStore) GetRoom(_ context.Context, roomID string) (store.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byHWID[strings.TrimSpace(roomID)]
	if !ok {
		return store.Room{}, store.ErrNotFound
	}
	return cloneRoom(s.rooms[id]), nil
}

func (s *RoomStore) GetTenantRoom(ctx context.Context, tenantID int64, roomID string) (store.Room, error) {
	r, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return store.Room{}, err
	}
	if r.TenantID != tenantID {
		return store.Room{}, store.ErrNotFound
	}
	return r, nil
}

func (s *RoomStore) CreateRoom(_ context.Context, r store.Room) (int64, error) {
	r.RoomID = strings.TrimSpace(r.RoomID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byHWID[r.RoomID]; taken {
		return 0, store.ErrDuplicate
	}
	s.nextID++
	r.ID = s.nextID
	s.rooms[r.ID] = cloneRoom(r)
	s.byHWID[r.RoomID] = r.ID
	if _, ok := s.groups[r.GroupID]; !ok {
		s.groups[r.GroupID] = r.TenantID
	}
	return r.ID, nil
}

func (s *RoomStore) UpdateLock(_ context.Context, id int64, fn store.LockFn) (store.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return store.Room{}, store.ErrNotFound
	}
	at := fn(cloneRoom(r))
	r.IsUnlocked = at != nil
	r.UnlockedAt = nil
	if at != nil {
		t := at.UTC()
		r.UnlockedAt = &t
	}
	s.rooms[id] = r
	return cloneRoom(r), nil
}

func (s *RoomStore) LockIfExpired(_ context.Context, id int64, cutoff time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if !expired(r, cutoff) {
		return false, nil
	}
	r.IsUnlocked = false
	r.UnlockedAt = nil
	s.rooms[id] = r
	return true, nil
}

func (s *RoomStore) LockExpired(_ context.Context, cutoff time.Time) ([]store.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var locked []store.Room
	for id, r := range s.rooms {
		if !expired(r, cutoff) {
			continue
		}
		r.IsUnlocked = false
		r.UnlockedAt = nil
		s.rooms[id] = r
		locked = append(locked, r)
	}
	return locked, nil
}

func (s *RoomStore) HasGroupGrant(_ context.Context, accountID, groupID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.grants[grantKey{accountID, groupID}]
	return ok, nil
}

func (s *RoomStore) GroupTenant(_ context.Context, groupID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tenant, ok := s.groups[groupID]
	if !ok {
		return 0, store.ErrNotFound
	}
	return tenant, nil
}

func (s *RoomStore) GrantGroup(_ context.Context, accountID, groupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[grantKey{accountID, groupID}] = struct{}{}
	return nil
}

func (s *RoomStore) RevokeGroup(_ context.Context, accountID, groupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, grantKey{accountID, groupID})
	return nil
}

func (s *RoomStore) ListAccountRooms(_ context.Context, accountID int64) ([]store.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Room
	for _, r := range s.rooms {
		if _, ok := s.grants[grantKey{accountID, r.GroupID}]; ok {
			out = append(out, cloneRoom(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out, nil
}

func expired(r store.Room, cutoff time.Time) bool {
	return r.IsUnlocked && r.UnlockedAt != nil && r.UnlockedAt.Before(cutoff)
}

func cloneRoom(r store.Room) store.Room {
	r.UnlockedAt = cloneTime(r.UnlockedAt)
	return r
}
