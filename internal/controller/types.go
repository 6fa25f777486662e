package controller

import (
	"context"
	"errors"
	"time"

	"github.com/sweeney/habit-button/internal/analytics"
)

// State is what the display is currently showing.
type State string

const (
	StateIdle         State = "IDLE"
	StateShowingStats State = "SHOWING_STATS"
	StateDone         State = "DONE"
)

// Names of the scheduled tasks the controller owns.
const (
	TaskStatsTimeout = "stats-timeout"
	TaskDailyReset   = "daily-reset"
)

// Fault sentinels. Errors returned by the transition methods wrap one of
// these together with the collaborator's error.
var (
	ErrStorage = errors.New("storage fault")
	ErrRender  = errors.New("render fault")
)

// LogStore is the press log.
type LogStore interface {
	// AppendEvent durably records a press at t.
	AppendEvent(ctx context.Context, t time.Time) error
	// AllTimestamps returns every recorded press, oldest first.
	AllTimestamps(ctx context.Context) ([]time.Time, error)
	// Offset returns the number of presses made before timestamps were kept.
	Offset(ctx context.Context) (int, error)
}

// Indicator is the status LED.
type Indicator interface {
	Rest() error
	Flash(times int, interval time.Duration)
}

// Publisher receives a copy of every completed transition.
type Publisher interface {
	Publish(event Event) error
}

// EventType names a completed transition.
type EventType string

const (
	EventPress      EventType = "PRESS"
	EventLongPress  EventType = "LONG_PRESS"
	EventDone       EventType = "DONE"
	EventDailyReset EventType = "DAILY_RESET"
)

// Event describes a completed transition for publishing.
type Event struct {
	Timestamp time.Time
	Type      EventType
	State     State
	Stats     analytics.Snapshot
}

// Faults counts collaborator failures since startup.
type Faults struct {
	Storage int
	Render  int
}

// Config holds the controller tunables.
type Config struct {
	// StatsDuration is how long the stats screen stays up before Done.
	StatsDuration time.Duration
	// ResetHour and ResetMinute give the local time of the daily reset.
	ResetHour   int
	ResetMinute int
	// LongPressLogs makes a long press record a press before resetting.
	LongPressLogs bool
	// FlashCount and FlashInterval shape the LED flash on a logged press.
	FlashCount    int
	FlashInterval time.Duration
	// QueueSize bounds the number of triggers waiting for Run.
	QueueSize int
}

// DefaultConfig returns the stock appliance settings.
func DefaultConfig() Config {
	return Config{
		StatsDuration: 15 * time.Second,
		ResetHour:     3,
		ResetMinute:   0,
		LongPressLogs: false,
		FlashCount:    5,
		FlashInterval: 100 * time.Millisecond,
		QueueSize:     16,
	}
}
