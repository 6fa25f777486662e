// Package clock provides the time source injected into the scheduler and the
// controller. Nothing in the core calls time.Now directly.
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a pending AfterFunc call.
type Timer interface {
	// Stop prevents the timer from firing. It returns false if the timer
	// already fired or was stopped.
	Stop() bool
}

// Clock reports the current time and runs functions after a delay.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

var wall = clockwork.NewRealClock()

// Real is the wall clock.
type Real struct{}

// Now returns the wall-clock time.
func (Real) Now() time.Time { return wall.Now() }

// AfterFunc runs f on its own goroutine once d has elapsed.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return wall.AfterFunc(d, f)
}
