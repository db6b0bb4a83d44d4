package service

import (
	"time"

	"github.com/mohamed2108268/Smart-Access/internal/access/store"
)

// DefaultLockoutThreshold is the number of counted failures that freezes
// an account.
const DefaultLockoutThreshold = 3

// LockoutPolicy counts failures and freezes at a threshold.  There is no
// automatic unfreeze.
type LockoutPolicy struct {
	Threshold int
}

func (p LockoutPolicy) threshold() int {
	if p.Threshold <= 0 {
		return DefaultLockoutThreshold
	}
	return p.Threshold
}

// Apply returns the counter after one more failure and whether that count
// reaches the freeze threshold.
func (p LockoutPolicy) Apply(failed int) (next int, frozen bool) {
	next = failed + 1
	return next, next >= p.threshold()
}

// Remaining is the number of failures left before the account freezes.
func (p LockoutPolicy) Remaining(failed int) int {
	return max(0, p.threshold()-failed)
}

// countFailure is the CounterFn that records one failure at now.  An
// account that is already frozen keeps its first frozen_at.
func (p LockoutPolicy) countFailure(now time.Time) store.CounterFn {
	return func(cur store.Counters) store.Counters {
		next, frozen := p.Apply(cur.FailedAttempts)
		out := store.Counters{FailedAttempts: next, IsFrozen: cur.IsFrozen || frozen, FrozenAt: cur.FrozenAt}
		if out.IsFrozen && out.FrozenAt == nil {
			t := now
			out.FrozenAt = &t
		}
		return out
	}
}

// resetOnSuccess clears the counter after a full success.  It never
// unfreezes; only an administrator does that.
func resetOnSuccess(cur store.Counters) store.Counters {
	if cur.IsFrozen {
		return cur
	}
	return store.Counters{}
}

// unfreeze is the administrative reset.
func unfreeze(store.Counters) store.Counters {
	return store.Counters{}
}
