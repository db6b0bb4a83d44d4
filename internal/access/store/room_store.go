package store

import (
	"context"
	"time"
)

// Room is a physical space behind a door controller.  RoomID is the
// hardware identifier the controller polls with; ID is the row key.
type Room struct {
	ID         int64
	RoomID     string
	TenantID   int64
	GroupID    int64
	Name       string
	IsUnlocked bool
	UnlockedAt *time.Time
}

// LockFn computes the next lock state of a room from its current one.
// Returning nil for unlockedAt means "locked".
type LockFn func(cur Room) (unlockedAt *time.Time)

type RoomStore interface {
	GetRoom(ctx context.Context, roomID string) (Room, error)
	GetTenantRoom(ctx context.Context, tenantID int64, roomID string) (Room, error)
	CreateRoom(ctx context.Context, r Room) (int64, error)

	// UpdateLock atomically applies fn to the room's lock state and returns
	// the stored room.
	UpdateLock(ctx context.Context, id int64, fn LockFn) (Room, error)

	// LockIfExpired relocks a single room when it was unlocked strictly
	// before cutoff.  It reports whether this call performed the relock.
	LockIfExpired(ctx context.Context, id int64, cutoff time.Time) (bool, error)

	// LockExpired relocks every room unlocked strictly before cutoff and
	// returns the rooms it relocked.
	LockExpired(ctx context.Context, cutoff time.Time) ([]Room, error)
}

// GrantStore answers the room-group permission question and lets
// administrators change it.
type GrantStore interface {
	HasGroupGrant(ctx context.Context, accountID, groupID int64) (bool, error)

	// GroupTenant returns the tenant owning a room group, or ErrNotFound.
	GroupTenant(ctx context.Context, groupID int64) (int64, error)

	GrantGroup(ctx context.Context, accountID, groupID int64) error
	RevokeGroup(ctx context.Context, accountID, groupID int64) error

	// ListAccountRooms returns the rooms of every group granted to the
	// account, ordered by RoomID.
	ListAccountRooms(ctx context.Context, accountID int64) ([]Room, error)
}
