// Package digest coalesces bursts of digest requests into one deferred run.
//
// A Coalescer holds at most one pending timer. Requests that arrive while a
// timer is pending are dropped; the pending run reads whatever state exists
// when it fires, so nothing is lost.
package digest

import (
	"sync"
	"time"

	"github.com/roach88/veneer/internal/clock"
)

// DefaultDelay is the coalescing window for scheduled digests.
const DefaultDelay = 10 * time.Millisecond

// Coalescer schedules fn at most once per window.
type Coalescer struct {
	clock clock.Clock
	delay time.Duration

	mu      sync.Mutex
	pending clock.Timer
	gen     uint64
}

// NewCoalescer creates a Coalescer. A nil clock means the real clock; a
// negative delay means DefaultDelay.
func NewCoalescer(c clock.Clock, delay time.Duration) *Coalescer {
	if c == nil {
		c = clock.Real()
	}
	if delay < 0 {
		delay = DefaultDelay
	}
	return &Coalescer{clock: c, delay: delay}
}

// Schedule arms a timer that runs fn after the delay. Returns false, and
// drops fn, if a timer is already pending.
func (c *Coalescer) Schedule(fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil {
		return false
	}
	c.gen++
	gen := c.gen
	c.pending = c.clock.AfterFunc(c.delay, func() {
		c.mu.Lock()
		if c.gen != gen || c.pending == nil {
			// Stopped (and possibly rescheduled) after the timer fired.
			c.mu.Unlock()
			return
		}
		c.pending = nil
		c.mu.Unlock()
		fn()
	})
	return true
}

// Pending reports whether a timer is armed.
func (c *Coalescer) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Stop cancels a pending timer. Returns true if one was pending.
func (c *Coalescer) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return false
	}
	c.pending.Stop()
	c.pending = nil
	c.gen++
	return true
}

// Delay returns the coalescing window.
func (c *Coalescer) Delay() time.Duration {
	return c.delay
}
