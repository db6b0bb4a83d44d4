package types

// RoomStatus is what a door controller sees when it polls.  UnlockTimestamp
// is null whenever IsUnlocked is false.
type RoomStatus struct {
	RoomID          string  `json:"room_id"`
	IsUnlocked      bool    `json:"is_unlocked"`
	UnlockTimestamp *string `json:"unlock_timestamp"`
}

// Manual lock actions accepted by the override endpoint.
const (
	LockActionLock   = "lock"
	LockActionUnlock = "unlock"
	LockActionToggle = "toggle"
)

type LockRequest struct {
	Action string `json:"action,omitempty"` // defaults to toggle
}

type LockResponse struct {
	Message         string  `json:"message"`
	RoomID          string  `json:"room_id"`
	IsUnlocked      bool    `json:"is_unlocked"`
	UnlockTimestamp *string `json:"unlock_timestamp"`
}
