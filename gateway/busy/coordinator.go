// Package busy drives the process-wide "show loading indicator" signal from
// the number of operations in flight.
//
// The signal turns on as soon as one operation is in flight. When the count
// drops back to zero it stays on until it has been visible for at least
// MinVisible, so an instant request does not flicker the indicator, and an
// operation starting inside that grace period keeps it on without a gap. A
// watchdog forces everything back to idle if the count has not returned to
// zero within WatchdogTimeout of becoming busy, so a caller that never calls
// End cannot pin the indicator forever.
//
//	Idle          --Begin-->        Visible
//	Visible       --count hits 0--> HideScheduled
//	HideScheduled --Begin-->        Visible
//	HideScheduled --hide fires-->   Idle
//	Visible, HideScheduled --watchdog fires--> Idle
package busy

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"k8s.io/utils/clock"
)

// Tracker is what callers get to report work: one Begin and one End per
// operation. Adapters receive a Tracker, never the Coordinator.
type Tracker interface {
	Begin()
	End()
}

// Snapshot is a point-in-time view of the coordinator.
type Snapshot struct {
	Visible       bool       `json:"visible"`
	Operations    int64      `json:"operations"`
	VisibleSince  *time.Time `json:"visible_since,omitempty"`
	HidePending   bool       `json:"hide_pending"`
	WatchdogArmed bool       `json:"watchdog_armed"`
}

// Coordinator owns the busy state. Construct one per process with New and
// hand it to every adapter.
//
// Begin and End never block on timers. Observers are called after the state
// lock is released, one at a time and in the order transitions happened.
type Coordinator struct {
	minVisible time.Duration
	watchdogD  time.Duration
	clock      clock.WithDelayedExecution
	logger     *zerolog.Logger
	metrics    *Metrics

	mu         sync.Mutex
	counter    Counter
	visible    bool
	cycleStart time.Time
	hide       *timer
	watchdog   *timer

	// pending holds transitions not yet delivered. Whoever sets delivering
	// drains it, so deliveries keep the order of the transitions that caused
	// them and an observer may call back into the coordinator.
	pending    []bool
	delivering bool
	observers  observers
}

var _ Tracker = (*Coordinator)(nil)

// New returns an idle Coordinator.
func New(cfg Config) *Coordinator {
	cfg = cfg.withDefaults()
	return &Coordinator{
		minVisible: cfg.MinVisible,
		watchdogD:  cfg.WatchdogTimeout,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
}

// Begin records the start of an operation.
func (c *Coordinator) Begin() {
	c.mu.Lock()
	busy := c.counter.Begin()
	c.metrics.setOperations(c.counter.Count())
	if !busy {
		c.mu.Unlock()
		return
	}
	c.release(c.becameBusy())
}

// End records the end of an operation. Calling it with nothing in flight is
// a no-op.
func (c *Coordinator) End() {
	c.mu.Lock()
	idle := c.counter.End()
	c.metrics.setOperations(c.counter.Count())
	if !idle {
		c.mu.Unlock()
		return
	}
	c.release(c.becameIdle())
}

// Reset forces the coordinator back to idle: no operations, no timers, the
// signal off. It is meant for manual recovery and tests.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	forced := c.counter.Reset()
	c.metrics.setOperations(0)
	c.hide.cancel()
	c.hide = nil
	if forced > 0 || c.visible {
		c.logger.Info().Int64("operations", forced).Msg("busy state reset")
	}
	c.release(c.hideNow())
}

// Observe registers fn for every transition of the signal and returns a
// function that unregisters it.
//
// fn may call Begin, End or Reset. The transition that causes is queued and
// delivered after fn returns. When another goroutine is already delivering,
// a caller's transition is handed to it and Begin or End returns before
// observers have seen it.
func (c *Coordinator) Observe(fn Observer) (cancel func()) {
	return c.observers.add(fn)
}

// Visible reports whether the indicator should be shown.
func (c *Coordinator) Visible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}

// Count returns the number of operations believed to be in flight.
func (c *Coordinator) Count() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counter.Count()
}

// Snapshot returns the current state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Visible:       c.visible,
		Operations:    c.counter.Count(),
		HidePending:   c.hide != nil,
		WatchdogArmed: c.watchdog != nil,
	}
	if c.visible {
		since := c.cycleStart
		s.VisibleSince = &since
	}
	return s
}

// becameBusy handles a 0->1 transition. It reports whether the signal flipped.
// Called with mu held.
func (c *Coordinator) becameBusy() bool {
	c.hide.cancel()
	c.hide = nil

	c.watchdog.cancel()
	c.watchdog = after(c.clock, c.watchdogD, c.watchdogFired)

	if c.visible {
		// Operation arrived during the grace period; the cycle keeps its start.
		return false
	}
	c.visible = true
	c.cycleStart = c.clock.Now()
	c.metrics.shown()
	c.logger.Debug().Msg("busy indicator shown")
	return true
}

// becameIdle handles a 1->0 transition. Called with mu held.
func (c *Coordinator) becameIdle() bool {
	if !c.visible {
		return false
	}

	remaining := c.minVisible - c.clock.Since(c.cycleStart)
	if remaining <= 0 {
		return c.hideNow()
	}

	c.hide.cancel()
	c.hide = after(c.clock, remaining, c.hideFired)
	return false
}

func (c *Coordinator) hideFired(h *timer) {
	c.mu.Lock()
	if c.hide != h {
		c.mu.Unlock()
		return
	}
	c.hide = nil
	if c.counter.Count() != 0 {
		// A Begin got in after scheduling; the next 1->0 reschedules.
		c.mu.Unlock()
		return
	}
	c.release(c.hideNow())
}

func (c *Coordinator) watchdogFired(h *timer) {
	c.mu.Lock()
	if c.watchdog != h {
		c.mu.Unlock()
		return
	}
	c.watchdog = nil

	forced := c.counter.Reset()
	c.metrics.setOperations(0)
	c.metrics.watchdogFired()
	c.hide.cancel()
	c.hide = nil

	c.logger.Warn().
		Int64("operations", forced).
		Dur("timeout", c.watchdogD).
		Msg("busy watchdog fired, forcing loader to hide")

	c.release(c.hideNow())
}

// hideNow turns the signal off and disarms both timers. It reports whether
// the signal flipped. Called with mu held.
func (c *Coordinator) hideNow() bool {
	c.hide.cancel()
	c.hide = nil
	c.watchdog.cancel()
	c.watchdog = nil

	if !c.visible {
		return false
	}
	shownFor := c.clock.Since(c.cycleStart)
	c.visible = false
	c.cycleStart = time.Time{}
	c.metrics.hidden(shownFor)
	c.logger.Debug().Dur("visible_for", shownFor).Msg("busy indicator hidden")
	return true
}

// release unlocks mu and, if the signal flipped, queues the new value for
// observers. Called with mu held.
func (c *Coordinator) release(flipped bool) {
	if flipped {
		c.pending = append(c.pending, c.visible)
	}
	if c.delivering || len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}

	c.delivering = true
	for len(c.pending) > 0 {
		visible := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()
		c.observers.notify(visible, c.logger)
		c.mu.Lock()
	}
	c.delivering = false
	c.mu.Unlock()
}
