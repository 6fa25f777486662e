// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/habit-button/internal/controller"
)

// Topic is the MQTT topic for habit events.
const Topic = "habit/button/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "habit/button/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a habit event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event controller.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Habit HabitPayload `json:"habit"`
}

// HabitPayload contains the habit event details.
type HabitPayload struct {
	Timestamp string       `json:"timestamp"`
	Event     string       `json:"event"`
	State     string       `json:"state"`
	Stats     StatsPayload `json:"stats"`
}

// StatsPayload is the statistics triple at the time of the event.
type StatsPayload struct {
	Volume int `json:"volume"`
	Streak int `json:"streak"`
	Total  int `json:"total"`
}

// FormatPayload creates the JSON payload for a habit event.
func FormatPayload(event controller.Event) ([]byte, error) {
	payload := Payload{
		Habit: HabitPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			State:     string(event.State),
			Stats: StatsPayload{
				Volume: event.Stats.WeeklyVolume,
				Streak: event.Stats.WeeklyStreak,
				Total:  event.Stats.Total,
			},
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
