// Package press classifies raw button levels into short and long presses.
// This package has NO external dependencies (no GPIO, no clock, no sleeping).
// Time is always injected via the sample timestamps.
package press

import "time"

// Kind is a classified button event.
type Kind string

const (
	ShortPress Kind = "SHORT_PRESS"
	LongPress  Kind = "LONG_PRESS"
)

// Config holds the classifier timing.
type Config struct {
	// Debounce is how long a press must stay down before it counts.
	Debounce time.Duration
	// LongPress is the hold duration at which a LongPress fires.
	LongPress time.Duration
	// PollInterval is the sampling period of the input loop.
	PollInterval time.Duration
}

// DefaultConfig returns 50ms debounce, 3s long press, 100ms polling.
func DefaultConfig() Config {
	return Config{
		Debounce:     50 * time.Millisecond,
		LongPress:    3 * time.Second,
		PollInterval: 100 * time.Millisecond,
	}
}

// Sample is one reading of the button level.
type Sample struct {
	Pressed bool
	Time    time.Time
}

type phase int

const (
	phaseIdle       phase = iota
	phaseDebouncing       // down, not yet confirmed
	phasePressed          // confirmed, timing the hold
	phaseDraining         // LongPress emitted, waiting for release
)

// Classifier turns a stream of samples into at most one event per physical press.
type Classifier struct {
	cfg         Config
	phase       phase
	downSince   time.Time
	lastPressed time.Time
}

// NewClassifier creates a classifier in the idle state.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Process consumes one sample and returns the event it completes, if any.
//
// A ShortPress is reported on release. A LongPress is reported as soon as the
// hold reaches cfg.LongPress, without waiting for release; the rest of that
// hold is ignored. Hold time runs from the first pressed sample to the last
// pressed sample, so a late release sample does not stretch a short press.
func (c *Classifier) Process(s Sample) (Kind, bool) {
	switch c.phase {
	case phaseIdle:
		if s.Pressed {
			c.phase = phaseDebouncing
			c.downSince = s.Time
			c.lastPressed = s.Time
		}
		return "", false

	case phaseDebouncing:
		if !s.Pressed {
			// Bounce: released before it was confirmed.
			c.phase = phaseIdle
			return "", false
		}
		c.lastPressed = s.Time
		if s.Time.Sub(c.downSince) < c.cfg.Debounce {
			return "", false
		}
		c.phase = phasePressed
		return c.checkLong(s.Time)

	case phasePressed:
		if !s.Pressed {
			c.phase = phaseIdle
			return ShortPress, true
		}
		c.lastPressed = s.Time
		return c.checkLong(s.Time)

	case phaseDraining:
		if !s.Pressed {
			c.phase = phaseIdle
		}
		return "", false
	}
	return "", false
}

func (c *Classifier) checkLong(now time.Time) (Kind, bool) {
	if now.Sub(c.downSince) >= c.cfg.LongPress {
		c.phase = phaseDraining
		return LongPress, true
	}
	return "", false
}

// Idle reports whether the classifier is waiting for a new press.
func (c *Classifier) Idle() bool {
	return c.phase == phaseIdle
}

// Held returns how long the current press has been held as of its last
// pressed sample, or zero when idle.
func (c *Classifier) Held() time.Duration {
	if c.phase == phaseIdle {
		return 0
	}
	return c.lastPressed.Sub(c.downSince)
}

// Reset drops any in-progress press.
func (c *Classifier) Reset() {
	c.phase = phaseIdle
	c.downSince = time.Time{}
	c.lastPressed = time.Time{}
}
