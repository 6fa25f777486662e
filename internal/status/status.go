// Package status provides a thread-safe status tracker for the habit-button daemon.
// It is read by the HTTP handlers and by the MQTT heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/habit-button/internal/analytics"
	"github.com/sweeney/habit-button/internal/controller"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs        int64
	DebounceMs    int64
	LongPressMs   int64
	StatsSeconds  int64
	ResetAt       string
	HeartbeatMs   int64
	Broker        string
	HTTPAddr      string
	Display       string
	LongPressLogs bool
}

// Faults counts collaborator failures since startup.
type Faults struct {
	Storage int
	Render  int
	Input   int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State         controller.State
	Stats         analytics.Snapshot
	Presses       int
	Faults        Faults
	NextReset     time.Time
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	now func() time.Time

	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
// now supplies the Now field of every snapshot.
func NewTracker(startTime time.Time, cfg Config, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		now: now,
		snap: Snapshot{
			State:     controller.StateIdle,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the controller view. Called from runLoop on every tick.
func (t *Tracker) Update(state controller.State, stats analytics.Snapshot, presses int, faults Faults, nextReset time.Time) {
	t.mu.Lock()
	t.snap.State = state
	t.snap.Stats = stats
	t.snap.Presses = presses
	t.snap.Faults = faults
	t.snap.NextReset = nextReset
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
