package store

import (
	"context"
	"time"
)

// Account is the persisted identity that walks through the login and
// room-access flows.  FaceTemplate and VoiceTemplate hold sealed ciphertext;
// nothing in the core ever sees them in plaintext except the biometric
// gateway, which opens them just before calling a verifier.
type Account struct {
	ID           int64
	Username     string
	PasswordHash string
	FullName     string
	TenantID     int64
	IsAdmin      bool

	FailedAttempts int
	IsFrozen       bool
	FrozenAt       *time.Time

	FaceTemplate  []byte
	VoiceTemplate []byte

	CreatedAt time.Time
}

// Counters is the shared mutable slice of an account that the lockout
// policy reads and writes.
type Counters struct {
	FailedAttempts int
	IsFrozen       bool
	FrozenAt       *time.Time
}

// CounterFn maps the current counters to the next ones.  It runs inside the
// store's atomic read-modify-write and must not block.
type CounterFn func(cur Counters) Counters

type AccountStore interface {
	GetAccount(ctx context.Context, id int64) (Account, error)
	GetAccountByUsername(ctx context.Context, username string) (Account, error)
	CreateAccount(ctx context.Context, a Account) (int64, error)

	// UpdateCounters applies fn to the account's counters as a single
	// atomic read-modify-write and returns the stored result.
	UpdateCounters(ctx context.Context, id int64, fn CounterFn) (Counters, error)

	// SetTemplates replaces the sealed biometric templates for an account.
	SetTemplates(ctx context.Context, id int64, face, voice []byte) error

	ListFrozen(ctx context.Context, tenantID int64) ([]Account, error)
}
