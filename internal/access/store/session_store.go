package store

import (
	"context"
	"time"

	"github.com/mohamed2108268/Smart-Access/internal/access/types"
)

// Session is the ephemeral state of one login or room-access attempt.
// It lives only in a SessionStore and is destroyed on any terminal outcome.
type Session struct {
	Token     string      `json:"-"`
	Subject   int64       `json:"subject"`
	TenantID  int64       `json:"tenant_id"`
	Flow      types.Flow  `json:"flow"`
	Stage     types.Stage `json:"stage"`
	CreatedAt time.Time   `json:"created_at"`

	StageStartedAt time.Time `json:"stage_started_at"`
	StageDeadline  time.Time `json:"stage_deadline"`

	// Challenge is set only while Stage is VOICE_PENDING.
	Challenge string `json:"challenge,omitempty"`

	// TargetRoom is the hardware room id for room-access flows.
	TargetRoom string `json:"target_room,omitempty"`
}

// SessionStore is a fast, independently expiring store keyed by an opaque
// session token.  Replace and Delete are compare-and-swap on Stage so two
// concurrent submissions for one session cannot both win.
type SessionStore interface {
	Create(ctx context.Context, s Session, ttl time.Duration) error
	Get(ctx context.Context, token string) (Session, error)

	// Replace stores next only if the current stage equals expect.
	// Returns ErrStageConflict otherwise and ErrNotFound if absent.
	Replace(ctx context.Context, token string, expect types.Stage, next Session, ttl time.Duration) error

	// Delete removes the session if its stage equals expect (or
	// unconditionally when expect is empty).  It reports whether this call
	// removed it.
	Delete(ctx context.Context, token string, expect types.Stage) (bool, error)
}
