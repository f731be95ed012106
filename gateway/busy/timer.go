package busy

import (
	"time"

	"k8s.io/utils/clock"
)

// timer is a handle on one scheduled coordinator callback.
//
// Stopping the underlying clock timer can lose the race against a callback
// that is already queued, so callbacks also compare the handle they were
// scheduled with against the coordinator's current one. A cancelled handle is
// never current.
type timer struct {
	t clock.Timer
}

// after schedules fn(h) on its own goroutine once d has elapsed.
// Some clocks (the fake one in particular) run AfterFunc callbacks while
// holding their own lock, and fn calls back into the clock.
func after(c clock.WithDelayedExecution, d time.Duration, fn func(*timer)) *timer {
	h := &timer{}
	h.t = c.AfterFunc(d, func() { go fn(h) })
	return h
}

// cancel stops the timer. It is safe on a nil handle.
func (h *timer) cancel() {
	if h == nil || h.t == nil {
		return
	}
	h.t.Stop()
}
