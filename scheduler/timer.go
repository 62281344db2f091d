package scheduler

import (
	"sync"
	"time"
)

// Timer is a single cancellable fire-once callback owned by a gameplay
// entity (an interactable's hold timer, a weapon's refire/reload timers, a
// spawner's respawn timer). Arm and Cancel are idempotent: cancelling a timer
// that already fired or was never armed is a no-op, and re-arming replaces
// any pending callback.
//
// The zero value is ready to use.
type Timer struct {
	mu    sync.Mutex
	t     *time.Timer
	seq   uint64 // invalidates callbacks from replaced arms
	armed bool
}

// Arm schedules fn to run once after d, replacing any pending callback.
// A non-positive d runs fn synchronously before Arm returns.
func (tm *Timer) Arm(d time.Duration, fn func()) {
	if d <= 0 {
		tm.Cancel()
		fn()
		return
	}

	tm.mu.Lock()
	if tm.t != nil {
		tm.t.Stop()
	}
	tm.seq++
	seq := tm.seq
	tm.armed = true
	tm.t = time.AfterFunc(d, func() {
		tm.mu.Lock()
		stale := tm.seq != seq
		if !stale {
			tm.armed = false
		}
		tm.mu.Unlock()
		if !stale {
			fn()
		}
	})
	tm.mu.Unlock()
}

// Cancel stops a pending callback if one is armed.
func (tm *Timer) Cancel() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.t != nil {
		tm.t.Stop()
	}
	tm.seq++
	tm.armed = false
}

// Armed reports whether a callback is pending.
func (tm *Timer) Armed() bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.armed
}
