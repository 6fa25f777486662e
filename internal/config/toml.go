// Package config provides configuration file parsing, XDG paths and the
// pi-helper environment file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file. Every field is a
// pointer so that an absent key can be told apart from a zero value.
type FileConfig struct {
	Button  ButtonConfig  `toml:"button"`
	Display DisplayConfig `toml:"display"`
	Storage StorageConfig `toml:"storage"`
	MQTT    MQTTConfig    `toml:"mqtt"`
	HTTP    HTTPConfig    `toml:"http"`
}

// ButtonConfig maps the button and LED settings.
type ButtonConfig struct {
	Pin           *int      `toml:"pin"`
	LEDPin        *int      `toml:"led-pin"`
	Poll          *Duration `toml:"poll"`
	Debounce      *Duration `toml:"debounce"`
	LongPress     *Duration `toml:"long-press"`
	Edges         *bool     `toml:"edges"`
	LongPressLogs *bool     `toml:"long-press-logs"`
	IdleLEDOn     *bool     `toml:"idle-led-on"`
}

// DisplayConfig maps the screen settings.
type DisplayConfig struct {
	Kind          *string   `toml:"kind"`
	StatsDuration *Duration `toml:"stats-duration"`
	ResetAt       *string   `toml:"reset-at"`
}

// StorageConfig maps the press log and legacy import locations.
type StorageConfig struct {
	DB     *string `toml:"db"`
	Legacy *string `toml:"legacy"`
}

// MQTTConfig maps the broker settings.
type MQTTConfig struct {
	Broker    *string   `toml:"broker"`
	ClientID  *string   `toml:"client-id"`
	Heartbeat *Duration `toml:"heartbeat"`
	Outbox    *int      `toml:"outbox"`
}

// HTTPConfig maps the status server settings.
type HTTPConfig struct {
	Addr *string `toml:"addr"`
}

// Duration is a time.Duration written as a Go duration string ("15s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}

// ParseClock parses a local time of day written as "HH:MM".
func ParseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// DefaultTemplate returns a commented config file showing every key.
func DefaultTemplate() string {
	return `# habit-button configuration
# Uncomment a value to enable it. CLI flags override config values.

[button]
# pin = 5                  # BCM pin of the button (active low)
# led-pin = 6              # BCM pin of the status LED
# poll = "100ms"           # Sampling interval
# debounce = "50ms"        # Minimum hold before a press counts
# long-press = "3s"        # Hold time that resets the display
# edges = false            # Use kernel edge events instead of level reads
# long-press-logs = false  # Also record a press on a long press
# idle-led-on = true       # LED lit while idle

[display]
# kind = "console"         # console or log
# stats-duration = "15s"   # How long stats stay on screen
# reset-at = "03:00"       # Daily return to the idle screen

[storage]
# db = "~/.local/share/habit-button/habit.db"
# legacy = "~/.local/share/habit-button/stats.json"  # Imported at startup if present

[mqtt]
# broker = ""              # e.g. "tcp://192.168.1.200:1883"; empty disables
# client-id = "habit-button"
# heartbeat = "15m"        # 0 disables
# outbox = 100             # Messages kept while the broker is unreachable

[http]
# addr = ":8000"           # Empty disables
`
}
