package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Fake is a manually driven clock for tests, built on a clockwork fake.
// Advance and Set step through due timers in fire-time order and return only
// once every callback they fired has finished.
type Fake struct {
	fc clockwork.FakeClock

	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *Fake
	at      time.Time
	timer   clockwork.Timer
	ran     chan struct{}
	fired   bool
	stopped bool
}

// NewFake creates a Fake clock reading t.
func NewFake(t time.Time) *Fake {
	return &Fake{fc: clockwork.NewFakeClockAt(t)}
}

// Now returns the fake time.
func (c *Fake) Now() time.Time { return c.fc.Now() }

// AfterFunc registers f to run once the fake time reaches Now()+d.
func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.fc.Now().Add(d), ran: make(chan struct{})}
	t.timer = c.fc.AfterFunc(d, func() {
		defer close(t.ran)
		f()
	})
	c.timers = append(c.timers, t)
	return t
}

// Stop cancels the timer.
func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	t.timer.Stop()
	return true
}

// Advance moves the clock forward by d and fires every timer that is due.
func (c *Fake) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}

// Set jumps the clock to t, which may be in the past, and fires every timer
// due at or before t. While a timer's callback runs, Now reports that
// timer's fire time.
func (c *Fake) Set(t time.Time) {
	for {
		next := c.fireNext(t)
		if next == nil {
			break
		}
		<-next.ran
	}
	c.mu.Lock()
	c.fc.Advance(t.Sub(c.fc.Now()))
	c.mu.Unlock()
}

// fireNext claims the earliest pending timer due at or before limit and
// moves the clock to its fire time. c.mu is held across the move so no timer
// is registered against a time the clock is leaving.
func (c *Fake) fireNext(limit time.Time) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	var best *fakeTimer
	live := c.timers[:0]
	for _, t := range c.timers {
		if t.fired || t.stopped {
			continue
		}
		live = append(live, t)
		if t.at.After(limit) {
			continue
		}
		if best == nil || t.at.Before(best.at) {
			best = t
		}
	}
	c.timers = live
	if best == nil {
		return nil
	}
	best.fired = true
	if d := best.at.Sub(c.fc.Now()); d > 0 {
		c.fc.Advance(d)
	}
	return best
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}
