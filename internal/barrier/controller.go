// Package barrier implements the gate barrier state machine.
//
// The barrier has two states, CLOSED (initial) and OPEN. Every open arms a
// cancellable auto-close timer; a later open replaces it and a close cancels
// it. Each armed timer carries a generation token so a callback that lost the
// race with a manual command can recognise itself as stale and do nothing.
//
// The controller never logs transitions itself and is not safe for concurrent
// use. The gate orchestrator holds its mutex around every call, including the
// timer callback, and records the matching log entry before committing.
package barrier

import (
	"time"

	"gatewarden/internal/access"
)

// FireFunc is invoked from the timer goroutine with the generation that armed
// it. Implementations must take the owner's lock and check IsCurrent.
type FireFunc func(generation uint64)

// Controller is the barrier state machine.
type Controller struct {
	clock  Clock
	delay  time.Duration
	onFire FireFunc

	state       access.BarrierState
	openedFor   string
	autoCloseAt time.Time
	changedAt   time.Time
	revision    uint64

	generation uint64
	armed      bool
	stop       func() bool
}

// New returns a CLOSED controller. A non-positive delay disables auto-close.
func New(delay time.Duration, clock Clock, onFire FireFunc) *Controller {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Controller{
		clock:     clock,
		delay:     delay,
		onFire:    onFire,
		state:     access.BarrierClosed,
		changedAt: clock.Now(),
	}
}

// SetFireFunc replaces the timer callback. It must be called before the first Open.
func (c *Controller) SetFireFunc(fn FireFunc) { c.onFire = fn }

// Delay returns the configured auto-close delay.
func (c *Controller) Delay() time.Duration { return c.delay }

// State returns the current state.
func (c *Controller) State() access.BarrierState { return c.state }

// Status returns a snapshot of the barrier.
func (c *Controller) Status() access.BarrierStatus {
	status := access.BarrierStatus{
		State:     c.state,
		OpenedFor: c.openedFor,
		ChangedAt: c.changedAt,
		Revision:  c.revision,
	}
	if c.state == access.BarrierOpen && c.armed {
		deadline := c.autoCloseAt
		status.AutoCloseAt = &deadline
	}
	return status
}

// Open moves the barrier to OPEN for plate (empty for a manual open) and
// re-arms the auto-close timer. It reports whether the barrier was already
// open, in which case only the deadline and OpenedFor were refreshed.
func (c *Controller) Open(plate string) (refreshed bool) {
	refreshed = c.state == access.BarrierOpen
	now := c.clock.Now()
	c.revision++
	if !refreshed {
		c.state = access.BarrierOpen
		c.changedAt = now
	}
	if plate != "" || !refreshed {
		c.openedFor = plate
	}
	c.arm(now)
	return refreshed
}

// Close moves the barrier to CLOSED and cancels any pending auto-close. It
// reports whether the state changed.
func (c *Controller) Close() (changed bool) {
	c.disarm()
	c.revision++
	if c.state == access.BarrierClosed {
		return false
	}
	c.state = access.BarrierClosed
	c.openedFor = ""
	c.autoCloseAt = time.Time{}
	c.changedAt = c.clock.Now()
	return true
}

// IsCurrent reports whether generation belongs to the timer that is armed
// right now. Callbacks from replaced or cancelled timers return false.
func (c *Controller) IsCurrent(generation uint64) bool {
	return c.armed && c.state == access.BarrierOpen && generation == c.generation
}

// Fire closes the barrier if generation is current and reports whether it did.
func (c *Controller) Fire(generation uint64) bool {
	if !c.IsCurrent(generation) {
		return false
	}
	c.armed = false
	c.stop = nil
	return c.Close()
}

// Rearm schedules a fresh auto-close from now while the barrier stays open.
// It is used when an auto-close could not be committed.
func (c *Controller) Rearm() {
	if c.state != access.BarrierOpen {
		return
	}
	c.revision++
	c.arm(c.clock.Now())
}

// Shutdown cancels the timer without changing state.
func (c *Controller) Shutdown() { c.disarm() }

func (c *Controller) arm(now time.Time) {
	c.disarm()
	c.generation++
	if c.delay <= 0 {
		c.autoCloseAt = time.Time{}
		return
	}
	gen := c.generation
	c.armed = true
	c.autoCloseAt = now.Add(c.delay)
	fire := c.onFire
	c.stop = c.clock.AfterFunc(c.delay, func() {
		if fire != nil {
			fire(gen)
		}
	})
}

func (c *Controller) disarm() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	c.armed = false
}
