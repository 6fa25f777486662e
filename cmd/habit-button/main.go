// Command habit-button logs presses of a single button and shows weekly
// progress on a small display.
package main

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/habit-button/internal/config"
	"github.com/sweeney/habit-button/internal/controller"
	"github.com/sweeney/habit-button/internal/gpio"
	"github.com/sweeney/habit-button/internal/mqtt"
	"github.com/sweeney/habit-button/internal/press"
)

// options holds every tunable after flags and the config file are merged.
type options struct {
	configPath string

	pinButton     int
	pinLED        int
	poll          time.Duration
	debounce      time.Duration
	longPress     time.Duration
	edges         bool
	longPressLogs bool
	idleLEDOn     bool

	displayKind   string
	statsDuration time.Duration
	resetAt       string

	db     string
	legacy string

	broker    string
	clientID  string
	heartbeat time.Duration
	outbox    int

	httpAddr string
}

func defaultOptions() options {
	pc := press.DefaultConfig()
	cc := controller.DefaultConfig()
	return options{
		configPath:    config.DefaultConfigPath(),
		pinButton:     gpio.DefaultPinButton,
		pinLED:        gpio.DefaultPinLED,
		poll:          pc.PollInterval,
		debounce:      pc.Debounce,
		longPress:     pc.LongPress,
		longPressLogs: cc.LongPressLogs,
		idleLEDOn:     true,
		displayKind:   "console",
		statsDuration: cc.StatsDuration,
		resetAt:       fmt.Sprintf("%02d:%02d", cc.ResetHour, cc.ResetMinute),
		db:            config.DefaultDBPath(),
		legacy:        config.DefaultLegacyPath(),
		clientID:      "habit-button",
		heartbeat:     15 * time.Minute,
		outbox:        mqtt.DefaultOutboxSize,
		httpAddr:      ":8000",
	}
}

func main() {
	opts := defaultOptions()
	if err := newRootCmd(&opts).Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func newRootCmd(opts *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "habit-button",
		Short:         "Single-button habit logger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), *opts)
		},
	}

	f := rootCmd.PersistentFlags()
	f.StringVar(&opts.configPath, "config", opts.configPath, "TOML config file")
	f.IntVar(&opts.pinButton, "pin-button", opts.pinButton, "BCM pin number of the button")
	f.IntVar(&opts.pinLED, "pin-led", opts.pinLED, "BCM pin number of the status LED (-1 to disable)")
	f.DurationVar(&opts.poll, "poll", opts.poll, "Button polling interval")
	f.DurationVar(&opts.debounce, "debounce", opts.debounce, "Debounce duration")
	f.DurationVar(&opts.longPress, "long-press", opts.longPress, "Hold time for a long press")
	f.BoolVar(&opts.edges, "edges", opts.edges, "Track the button with kernel edge events")
	f.BoolVar(&opts.longPressLogs, "long-press-logs", opts.longPressLogs, "Record a press on a long press too")
	f.BoolVar(&opts.idleLEDOn, "idle-led-on", opts.idleLEDOn, "Keep the LED lit while idle")
	f.StringVar(&opts.displayKind, "display", opts.displayKind, "Display renderer: console or log")
	f.DurationVar(&opts.statsDuration, "stats-duration", opts.statsDuration, "How long the stats screen stays up")
	f.StringVar(&opts.resetAt, "reset-at", opts.resetAt, "Local time of the daily reset (HH:MM)")
	f.StringVar(&opts.db, "db", opts.db, "SQLite database path")
	f.StringVar(&opts.legacy, "legacy", opts.legacy, "stats.json imported at startup if present")
	f.StringVar(&opts.broker, "broker", opts.broker, "MQTT broker address (empty to disable)")
	f.StringVar(&opts.clientID, "client-id", opts.clientID, "MQTT client id")
	f.DurationVar(&opts.heartbeat, "heartbeat", opts.heartbeat, "Heartbeat interval (0 to disable)")
	f.IntVar(&opts.outbox, "outbox", opts.outbox, "MQTT messages kept while the broker is unreachable")
	f.StringVar(&opts.httpAddr, "http", opts.httpAddr, "HTTP status address (empty to disable)")

	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newStatsCmd(opts))
	rootCmd.AddCommand(newLogsCmd(opts))
	rootCmd.AddCommand(newLogCmd(opts))
	rootCmd.AddCommand(newOffsetCmd(opts))
	rootCmd.AddCommand(newMigrateCmd(opts))
	rootCmd.AddCommand(newPrintStateCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))

	return rootCmd
}

// load applies the config file to every option whose flag was not given.
func (o *options) load(cmd *cobra.Command) error {
	fileCfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	b := fileCfg.Button
	applyConfig(cmd, "pin-button", &o.pinButton, b.Pin)
	applyConfig(cmd, "pin-led", &o.pinLED, b.LEDPin)
	applyDurationConfig(cmd, "poll", &o.poll, b.Poll)
	applyDurationConfig(cmd, "debounce", &o.debounce, b.Debounce)
	applyDurationConfig(cmd, "long-press", &o.longPress, b.LongPress)
	applyConfig(cmd, "edges", &o.edges, b.Edges)
	applyConfig(cmd, "long-press-logs", &o.longPressLogs, b.LongPressLogs)
	applyConfig(cmd, "idle-led-on", &o.idleLEDOn, b.IdleLEDOn)

	d := fileCfg.Display
	applyConfig(cmd, "display", &o.displayKind, d.Kind)
	applyDurationConfig(cmd, "stats-duration", &o.statsDuration, d.StatsDuration)
	applyConfig(cmd, "reset-at", &o.resetAt, d.ResetAt)

	applyConfig(cmd, "db", &o.db, fileCfg.Storage.DB)
	applyConfig(cmd, "legacy", &o.legacy, fileCfg.Storage.Legacy)

	m := fileCfg.MQTT
	applyConfig(cmd, "broker", &o.broker, m.Broker)
	applyConfig(cmd, "client-id", &o.clientID, m.ClientID)
	applyDurationConfig(cmd, "heartbeat", &o.heartbeat, m.Heartbeat)
	applyConfig(cmd, "outbox", &o.outbox, m.Outbox)

	applyConfig(cmd, "http", &o.httpAddr, fileCfg.HTTP.Addr)

	return o.validate()
}

func applyConfig[T any](cmd *cobra.Command, name string, target, value *T) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target *time.Duration, value *config.Duration) {
	if value == nil {
		return
	}
	applyConfig(cmd, name, target, &value.Duration)
}

func (o *options) validate() error {
	if o.poll <= 0 {
		return fmt.Errorf("poll must be positive, got %v", o.poll)
	}
	if o.debounce < 0 {
		return fmt.Errorf("debounce must not be negative, got %v", o.debounce)
	}
	if o.longPress <= o.debounce {
		return fmt.Errorf("long-press (%v) must be longer than debounce (%v)", o.longPress, o.debounce)
	}
	if o.statsDuration <= 0 {
		return fmt.Errorf("stats-duration must be positive, got %v", o.statsDuration)
	}
	if o.heartbeat < 0 {
		return fmt.Errorf("heartbeat must not be negative, got %v", o.heartbeat)
	}
	if _, _, err := config.ParseClock(o.resetAt); err != nil {
		return fmt.Errorf("reset-at: %w", err)
	}
	switch o.displayKind {
	case "console", "log":
	default:
		return fmt.Errorf("unknown display %q: want console or log", o.displayKind)
	}
	return nil
}

func (o *options) pressConfig() press.Config {
	return press.Config{
		Debounce:     o.debounce,
		LongPress:    o.longPress,
		PollInterval: o.poll,
	}
}

func (o *options) controllerConfig() controller.Config {
	cfg := controller.DefaultConfig()
	cfg.StatsDuration = o.statsDuration
	cfg.ResetHour, cfg.ResetMinute, _ = config.ParseClock(o.resetAt)
	cfg.LongPressLogs = o.longPressLogs
	return cfg
}
