// Package clock abstracts timers so digest scheduling can run against wall
// time in production and against a manually advanced clock in tests.
//
// Every coalesced digest goes through Clock.AfterFunc. Nothing in the
// rendering runtime calls time.AfterFunc directly.
package clock

import "time"

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop prevents the callback from firing. It returns false if the
	// callback already fired or the timer was already stopped.
	Stop() bool
}

// Clock schedules callbacks after a delay.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real returns a Clock backed by the time package.
//
// Callbacks run on their own goroutine, exactly like time.AfterFunc. Code that
// mutates a tree from timer callbacks should wrap this clock with
// loop.Loop.Clock so callbacks are serialized onto the event loop.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
