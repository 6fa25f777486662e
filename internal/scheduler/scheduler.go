// Package scheduler runs named, cancellable, single-shot delayed actions.
// At most one task is pending per name: scheduling a name again supersedes
// the previous task.
package scheduler

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/habit-button/internal/clock"
)

// Handle identifies one scheduled instance.
type Handle struct {
	ID     string
	Name   string
	FireAt time.Time
}

type task struct {
	handle Handle
	timer  clock.Timer
	action func()
}

// Scheduler owns the table of pending tasks.
type Scheduler struct {
	clock clock.Clock

	mu      sync.Mutex
	tasks   map[string]*task
	stopped bool
}

// New creates a Scheduler driven by the given clock.
func New(clk clock.Clock) *Scheduler {
	return &Scheduler{
		clock: clk,
		tasks: make(map[string]*task),
	}
}

// Schedule runs action after delay under name, cancelling any task already
// pending under that name. A negative delay fires as soon as possible.
func (s *Scheduler) Schedule(name string, delay time.Duration, action func()) Handle {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.tasks[name]; ok {
		prev.timer.Stop()
		delete(s.tasks, name)
	}

	t := &task{
		handle: Handle{
			ID:     uuid.NewString(),
			Name:   name,
			FireAt: s.clock.Now().Add(delay),
		},
		action: action,
	}
	if s.stopped {
		log.Printf("scheduler: stopped, dropping task %s", name)
		return t.handle
	}
	s.tasks[name] = t
	t.timer = s.clock.AfterFunc(delay, func() { s.fire(t) })
	return t.handle
}

// ScheduleAt runs action at the absolute time at, measured against the
// scheduler's clock when the call is made.
func (s *Scheduler) ScheduleAt(name string, at time.Time, action func()) Handle {
	return s.Schedule(name, at.Sub(s.clock.Now()), action)
}

// fire runs t's action unless t was cancelled or superseded first. An action
// that has started is never interrupted.
func (s *Scheduler) fire(t *task) {
	s.mu.Lock()
	cur, ok := s.tasks[t.handle.Name]
	if !ok || cur != t {
		s.mu.Unlock()
		return
	}
	delete(s.tasks, t.handle.Name)
	s.mu.Unlock()

	t.action()
}

// Cancel removes the task pending under name. It reports whether one was
// pending. It does not wait for an action that is already running.
func (s *Scheduler) Cancel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[name]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(s.tasks, name)
	return true
}

// Pending returns the handle of the task pending under name.
func (s *Scheduler) Pending(name string) (Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[name]
	if !ok {
		return Handle{}, false
	}
	return t.handle, true
}

// Stop cancels every pending task. Later Schedule calls are dropped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, name)
	}
	s.stopped = true
}

// NextDaily returns the next occurrence of hour:minute in now's location:
// today's if now is before it, otherwise tomorrow's. It is recomputed from
// the wall clock on every call, so a DST change or clock step is absorbed
// at the next firing.
func NextDaily(now time.Time, hour, minute int) time.Time {
	y, m, d := now.Date()
	target := time.Date(y, m, d, hour, minute, 0, 0, now.Location())
	if !now.Before(target) {
		target = time.Date(y, m, d+1, hour, minute, 0, 0, now.Location())
	}
	return target
}
