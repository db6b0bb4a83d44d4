package service

import (
	"time"

	"github.com/mohamed2108268/Smart-Access/internal/access/store"
	"github.com/mohamed2108268/Smart-Access/internal/access/types"
)

const (
	DefaultFaceTimeout  = 20 * time.Second
	DefaultVoiceTimeout = 30 * time.Second
)

// StepTimer holds the per-stage time limits.  Deadlines live on the
// session; expiry is only ever observed when someone asks.
type StepTimer struct {
	Face  time.Duration
	Voice time.Duration
}

// Limit returns the time allowed for stage, or 0 for stages that are not
// timed.
func (t StepTimer) Limit(stage types.Stage) time.Duration {
	switch stage {
	case types.StageFacePending:
		if t.Face <= 0 {
			return DefaultFaceTimeout
		}
		return t.Face
	case types.StageVoicePending:
		if t.Voice <= 0 {
			return DefaultVoiceTimeout
		}
		return t.Voice
	}
	return 0
}

// Check reports whether now is still within the deadline of stage for s,
// and the time left (never negative).  A session that is not in stage is
// never within bound.
func (t StepTimer) Check(s store.Session, stage types.Stage, now time.Time) (bool, time.Duration) {
	if s.Stage != stage || s.StageDeadline.IsZero() {
		return false, 0
	}
	if now.After(s.StageDeadline) {
		return false, 0
	}
	return true, s.StageDeadline.Sub(now)
}

// seconds rounds a remaining duration up to whole seconds for clients.
func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
