// Package controller drives the display state machine. Button events arrive
// as triggers on a bounded queue and timer firings as per-task flags; Run
// applies them one at a time, so transitions never interleave. The state lock is only held to read or
// commit state, never across display or storage I/O.
package controller

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sweeney/habit-button/internal/analytics"
	"github.com/sweeney/habit-button/internal/clock"
	"github.com/sweeney/habit-button/internal/display"
	"github.com/sweeney/habit-button/internal/press"
	"github.com/sweeney/habit-button/internal/scheduler"
)

type triggerKind int

const (
	trigPress triggerKind = iota
	trigStatsTimeout
	trigDailyReset
)

type trigger struct {
	kind  triggerKind
	press press.Kind
	// gen is the stats-timeout generation the trigger was armed for.
	gen uint64
}

// Controller owns the display state and the named scheduled tasks.
type Controller struct {
	store     LogStore
	display   display.Display
	clock     clock.Clock
	sched     *scheduler.Scheduler
	cfg       Config
	indicator Indicator
	publisher Publisher

	triggers chan trigger

	// Timer firings waiting for Run. They are flags rather than queue
	// entries so a full trigger queue cannot drop one.
	firedMu    sync.Mutex
	firedStats uint64 // generation of the fired stats-timeout, 0 if none
	firedReset bool
	wake       chan struct{}

	mu       sync.Mutex
	state    State
	stats    analytics.Snapshot
	statsGen uint64
	presses  int
	faults   Faults
}

// Option configures optional collaborators.
type Option func(*Controller)

// WithIndicator drives the status LED.
func WithIndicator(i Indicator) Option {
	return func(c *Controller) { c.indicator = i }
}

// WithPublisher publishes completed transitions.
func WithPublisher(p Publisher) Option {
	return func(c *Controller) { c.publisher = p }
}

// New creates a Controller in the Idle state. Call Start, then Run.
func New(store LogStore, disp display.Display, clk clock.Clock, cfg Config, opts ...Option) *Controller {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	c := &Controller{
		store:    store,
		display:  disp,
		clock:    clk,
		sched:    scheduler.New(clk),
		cfg:      cfg,
		triggers: make(chan trigger, cfg.QueueSize),
		wake:     make(chan struct{}, 1),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start renders the Idle screen, puts the LED at rest and arms the daily
// reset. The daily reset is armed even if the render fails.
func (c *Controller) Start(ctx context.Context) error {
	c.armDailyReset()
	if c.indicator != nil {
		if err := c.indicator.Rest(); err != nil {
			log.Printf("controller: led rest: %v", err)
		}
	}
	if err := c.render(display.Idle()); err != nil {
		return c.renderFault("startup idle", err)
	}
	return nil
}

// Run applies queued triggers until ctx is cancelled, then cancels every
// scheduled task.
func (c *Controller) Run(ctx context.Context) {
	defer c.sched.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case tr := <-c.triggers:
			c.apply(ctx, tr)
		case <-c.wake:
			c.applyFired(ctx)
		}
	}
}

// Press queues a classified button event without blocking. It reports
// false if the queue is full and the press was dropped.
func (c *Controller) Press(kind press.Kind) bool {
	select {
	case c.triggers <- trigger{kind: trigPress, press: kind}:
		return true
	default:
		log.Printf("controller: trigger queue full, dropping %s", kind)
		return false
	}
}

// fire records a timer firing and wakes Run. It never blocks.
func (c *Controller) fire(set func()) {
	c.firedMu.Lock()
	set()
	c.firedMu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// applyFired applies the recorded timer firings, stats-timeout first.
func (c *Controller) applyFired(ctx context.Context) {
	c.firedMu.Lock()
	gen, reset := c.firedStats, c.firedReset
	c.firedStats, c.firedReset = 0, false
	c.firedMu.Unlock()

	if gen != 0 {
		c.apply(ctx, trigger{kind: trigStatsTimeout, gen: gen})
	}
	if reset {
		c.apply(ctx, trigger{kind: trigDailyReset})
	}
}

func (c *Controller) apply(ctx context.Context, tr trigger) {
	switch tr.kind {
	case trigPress:
		_ = c.OnPress(ctx, tr.press)
	case trigStatsTimeout:
		c.mu.Lock()
		stale := tr.gen != c.statsGen
		c.mu.Unlock()
		if stale {
			log.Printf("controller: ignoring superseded stats-timeout")
			return
		}
		_ = c.OnStatsTimeout(ctx)
	case trigDailyReset:
		_ = c.OnDailyReset(ctx)
	}
}

// OnPress applies a classified button event.
func (c *Controller) OnPress(ctx context.Context, kind press.Kind) error {
	switch kind {
	case press.ShortPress:
		return c.logPress(ctx)
	case press.LongPress:
		return c.manualReset(ctx)
	}
	return fmt.Errorf("unknown press kind %q", kind)
}

// logPress records a press and shows fresh stats. Valid from every state.
func (c *Controller) logPress(ctx context.Context) error {
	now := c.clock.Now()
	if err := c.store.AppendEvent(ctx, now); err != nil {
		return c.storageFault("append event", err)
	}
	if c.indicator != nil {
		c.indicator.Flash(c.cfg.FlashCount, c.cfg.FlashInterval)
	}

	snap, err := c.compute(ctx, now)
	if err != nil {
		return c.storageFault("read history", err)
	}
	if err := c.render(display.Stats(snap)); err != nil {
		return c.renderFault("stats", err)
	}

	c.mu.Lock()
	c.state = StateShowingStats
	c.stats = snap
	c.presses++
	c.armStatsTimeoutLocked()
	c.mu.Unlock()

	log.Printf("controller: press logged: volume=%d streak=%d total=%d", snap.WeeklyVolume, snap.WeeklyStreak, snap.Total)
	c.publish(EventPress, now, StateShowingStats, snap)
	return nil
}

// manualReset returns to Idle on a long press.
func (c *Controller) manualReset(ctx context.Context) error {
	now := c.clock.Now()
	if c.cfg.LongPressLogs {
		if err := c.store.AppendEvent(ctx, now); err != nil {
			return c.storageFault("append event", err)
		}
	}

	c.cancelStatsTimeout()
	if err := c.render(display.Idle()); err != nil {
		return c.renderFault("idle", err)
	}

	c.mu.Lock()
	c.state = StateIdle
	stats := c.stats
	c.mu.Unlock()

	if c.indicator != nil {
		if err := c.indicator.Rest(); err != nil {
			log.Printf("controller: led rest: %v", err)
		}
	}
	log.Printf("controller: manual reset")
	c.publish(EventLongPress, now, StateIdle, stats)
	return nil
}

// OnStatsTimeout moves from the stats screen to the Done screen. In any other
// state it does nothing.
func (c *Controller) OnStatsTimeout(ctx context.Context) error {
	c.mu.Lock()
	showing := c.state == StateShowingStats
	c.mu.Unlock()
	if !showing {
		return nil
	}

	if err := c.render(display.Done()); err != nil {
		return c.renderFault("done", err)
	}

	c.mu.Lock()
	if c.state != StateShowingStats {
		c.mu.Unlock()
		return nil
	}
	c.state = StateDone
	stats := c.stats
	c.mu.Unlock()

	c.publish(EventDone, c.clock.Now(), StateDone, stats)
	return nil
}

// OnDailyReset returns to Idle. The next reset is armed by the firing itself,
// before this runs, so it stays armed when the render fails.
func (c *Controller) OnDailyReset(ctx context.Context) error {
	c.cancelStatsTimeout()

	if err := c.render(display.Idle()); err != nil {
		return c.renderFault("daily reset", err)
	}

	c.mu.Lock()
	c.state = StateIdle
	stats := c.stats
	c.mu.Unlock()

	if c.indicator != nil {
		if err := c.indicator.Rest(); err != nil {
			log.Printf("controller: led rest: %v", err)
		}
	}
	log.Printf("controller: daily reset")
	c.publish(EventDailyReset, c.clock.Now(), StateIdle, stats)
	return nil
}

// armStatsTimeoutLocked supersedes any pending stats-timeout. c.mu must be held.
func (c *Controller) armStatsTimeoutLocked() {
	c.statsGen++
	gen := c.statsGen
	c.sched.Schedule(TaskStatsTimeout, c.cfg.StatsDuration, func() {
		c.fire(func() { c.firedStats = gen })
	})
}

// cancelStatsTimeout cancels the pending stats-timeout and invalidates any
// firing of it that is already queued.
func (c *Controller) cancelStatsTimeout() {
	c.mu.Lock()
	c.statsGen++
	c.mu.Unlock()
	c.sched.Cancel(TaskStatsTimeout)
}

// armDailyReset schedules the next reset from the current wall-clock time.
// Each firing renews the task before handing the reset to Run.
func (c *Controller) armDailyReset() {
	at := scheduler.NextDaily(c.clock.Now(), c.cfg.ResetHour, c.cfg.ResetMinute)
	c.sched.ScheduleAt(TaskDailyReset, at, func() {
		c.armDailyReset()
		c.fire(func() { c.firedReset = true })
	})
	log.Printf("controller: next daily reset at %s", at.Format(time.RFC3339))
}

func (c *Controller) render(s display.Screen) error {
	if err := c.display.Render(s); err != nil {
		return err
	}
	if err := c.display.Sleep(); err != nil {
		log.Printf("controller: display sleep: %v", err)
	}
	return nil
}

func (c *Controller) compute(ctx context.Context, now time.Time) (analytics.Snapshot, error) {
	history, err := c.store.AllTimestamps(ctx)
	if err != nil {
		return analytics.Snapshot{}, err
	}
	offset, err := c.store.Offset(ctx)
	if err != nil {
		return analytics.Snapshot{}, err
	}
	return analytics.Compute(history, offset, now), nil
}

func (c *Controller) storageFault(op string, err error) error {
	c.mu.Lock()
	c.faults.Storage++
	c.mu.Unlock()
	log.Printf("controller: storage fault: %s: %v", op, err)
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

func (c *Controller) renderFault(screen string, err error) error {
	c.mu.Lock()
	c.faults.Render++
	c.mu.Unlock()
	log.Printf("controller: render fault: %s: %v", screen, err)
	return fmt.Errorf("%w: %s: %w", ErrRender, screen, err)
}

func (c *Controller) publish(t EventType, at time.Time, s State, stats analytics.Snapshot) {
	if c.publisher == nil {
		return
	}
	ev := Event{Timestamp: at, Type: t, State: s, Stats: stats}
	if err := c.publisher.Publish(ev); err != nil {
		log.Printf("controller: publish %s: %v", t, err)
	}
}

// State returns the current display state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastStats returns the snapshot most recently shown on the stats screen.
func (c *Controller) LastStats() analytics.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Presses returns the number of presses logged since startup.
func (c *Controller) Presses() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presses
}

// Faults returns the collaborator failure counts since startup.
func (c *Controller) Faults() Faults {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.faults
}

// Pending returns the handle of the scheduled task with the given name.
func (c *Controller) Pending(name string) (scheduler.Handle, bool) {
	return c.sched.Pending(name)
}

// Snapshot computes fresh statistics from the log, for read-only callers.
func (c *Controller) Snapshot(ctx context.Context) (analytics.Snapshot, error) {
	return c.compute(ctx, c.clock.Now())
}

// History returns every logged press, oldest first.
func (c *Controller) History(ctx context.Context) ([]time.Time, error) {
	return c.store.AllTimestamps(ctx)
}
