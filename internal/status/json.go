package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	State         string       `json:"state"`
	Stats         StatsJSON    `json:"stats"`
	Presses       int          `json:"presses"`
	Faults        FaultsJSON   `json:"faults"`
	NextReset     string       `json:"next_reset,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        *ConfigJSON  `json:"config,omitempty"`
}

// StatsJSON is the statistics triple, shaped like the /stats endpoint.
type StatsJSON struct {
	Volume int `json:"volume"`
	Streak int `json:"streak"`
	Total  int `json:"total"`
}

// FaultsJSON is the JSON representation of fault counts.
type FaultsJSON struct {
	Storage int `json:"storage"`
	Render  int `json:"render"`
	Input   int `json:"input"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs        int64  `json:"poll_ms"`
	DebounceMs    int64  `json:"debounce_ms"`
	LongPressMs   int64  `json:"long_press_ms"`
	StatsSeconds  int64  `json:"stats_seconds"`
	ResetAt       string `json:"reset_at"`
	HeartbeatMs   int64  `json:"heartbeat_ms"`
	Broker        string `json:"broker"`
	HTTPAddr      string `json:"http_addr"`
	Display       string `json:"display"`
	LongPressLogs bool   `json:"long_press_logs"`
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.State)
	if state == "" {
		state = "UNKNOWN"
	}

	inner := StatusInner{
		State: state,
		Stats: StatsJSON{
			Volume: snap.Stats.WeeklyVolume,
			Streak: snap.Stats.WeeklyStreak,
			Total:  snap.Stats.Total,
		},
		Presses: snap.Presses,
		Faults: FaultsJSON{
			Storage: snap.Faults.Storage,
			Render:  snap.Faults.Render,
			Input:   snap.Faults.Input,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
	}
	if !snap.NextReset.IsZero() {
		inner.NextReset = snap.NextReset.UTC().Format(time.RFC3339)
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

func buildConfig(cfg Config) *ConfigJSON {
	return &ConfigJSON{
		PollMs:        cfg.PollMs,
		DebounceMs:    cfg.DebounceMs,
		LongPressMs:   cfg.LongPressMs,
		StatsSeconds:  cfg.StatsSeconds,
		ResetAt:       cfg.ResetAt,
		HeartbeatMs:   cfg.HeartbeatMs,
		Broker:        cfg.Broker,
		HTTPAddr:      cfg.HTTPAddr,
		Display:       cfg.Display,
		LongPressLogs: cfg.LongPressLogs,
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	inner.Config = buildConfig(snap.Config)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
// Config is included on STARTUP only.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	if event == "STARTUP" {
		inner.Config = buildConfig(snap.Config)
	}

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
