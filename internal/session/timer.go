package session

import (
	"sync"
	"time"
)

// Timer is a one-shot timer with idempotent cancellation. Cancelling a timer
// that already fired or was already cancelled is a no-op, and a cancelled
// timer never re-arms. A nil *Timer is safe to cancel.
type Timer struct {
	mu        sync.Mutex
	t         *time.Timer
	cancelled bool
	fired     bool
}

// After arms a timer that invokes fn after d. fn runs on its own goroutine;
// callbacks that touch session state must re-enter the session's serialized
// handler themselves.
func After(d time.Duration, fn func()) *Timer {
	tm := &Timer{}
	tm.t = time.AfterFunc(d, func() {
		tm.mu.Lock()
		if tm.cancelled {
			tm.mu.Unlock()
			return
		}
		tm.fired = true
		tm.mu.Unlock()
		fn()
	})
	return tm
}

// Cancel stops the timer. It is safe to call on a nil, fired, or already
// cancelled timer. A callback that has already started is not interrupted;
// such callbacks must tolerate the state they find.
func (tm *Timer) Cancel() {
	if tm == nil {
		return
	}
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.cancelled || tm.fired {
		return
	}
	tm.cancelled = true
	tm.t.Stop()
}

// Fired reports whether the callback ran (or has started running).
func (tm *Timer) Fired() bool {
	if tm == nil {
		return false
	}
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.fired
}
