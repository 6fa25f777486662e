package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/habit-button/internal/clock"
	"github.com/sweeney/habit-button/internal/controller"
	"github.com/sweeney/habit-button/internal/display"
	"github.com/sweeney/habit-button/internal/gpio"
	"github.com/sweeney/habit-button/internal/mqtt"
	"github.com/sweeney/habit-button/internal/press"
	"github.com/sweeney/habit-button/internal/status"
	"github.com/sweeney/habit-button/internal/store"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func mapLookup(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	info := readNetworkInfo(mapLookup(map[string]string{
		envNetworkType:       "wifi",
		envNetworkIP:         "192.168.1.100",
		envNetworkStatus:     "connected",
		envNetworkGateway:    "192.168.1.1",
		envNetworkWifiStatus: "connected",
		envNetworkWifiSSID:   "MyNetwork",
	}))
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}

	want := status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}
	if *info != want {
		t.Errorf("got %+v, want %+v", *info, want)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	if info := readNetworkInfo(mapLookup(nil)); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestReadNetworkInfoPartial(t *testing.T) {
	info := readNetworkInfo(mapLookup(map[string]string{envNetworkStatus: "connected"}))
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo when NETWORK_STATUS is set")
	}
	if info.Status != "connected" {
		t.Errorf("Status: got %q, want %q", info.Status, "connected")
	}
	if info.IP != "" || info.SSID != "" {
		t.Errorf("expected empty IP and SSID, got %+v", info)
	}
}

// --- runLoop tests ---

var t0 = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

// steppedNow returns a clock that yields start, start+step, start+2*step, ...
// Not safe for concurrent use.
func steppedNow(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

type loopRig struct {
	button  *gpio.FakeButton
	store   *store.Memory
	display *display.Fake
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	ctrl    *controller.Controller
	loop    *loop

	tick chan time.Time
	sig  chan os.Signal
	done chan error
}

func newLoopRig(t *testing.T, samples []bool, heartbeat time.Duration) *loopRig {
	t.Helper()
	r := &loopRig{
		button:  gpio.NewFakeButton(samples),
		store:   store.NewMemory(nil, 0),
		display: display.NewFake(),
		pub:     mqtt.NewFakePublisher(),
		tick:    make(chan time.Time),
		sig:     make(chan os.Signal),
		done:    make(chan error, 1),
	}
	r.pub.Connected = true
	r.tracker = status.NewTracker(t0, status.Config{}, func() time.Time { return t0 })

	clk := clock.NewFake(t0)
	r.ctrl = controller.New(r.store, r.display, clk, controller.DefaultConfig(), controller.WithPublisher(r.pub))
	require.NoError(t, r.ctrl.Start(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go r.ctrl.Run(ctx)

	poller := press.NewPoller(r.button, press.DefaultConfig(), func(k press.Kind) { r.ctrl.Press(k) },
		steppedNow(t0, 100*time.Millisecond))
	r.loop = &loop{
		poller:     poller,
		ctrl:       r.ctrl,
		publisher:  r.pub,
		mqttStatus: r.pub,
		tracker:    r.tracker,
		heartbeat:  heartbeat,
		network: func() *status.NetworkInfo {
			return &status.NetworkInfo{Status: "connected", IP: "192.168.1.42"}
		},
	}
	return r
}

func (r *loopRig) start(now func() time.Time) {
	go func() { r.done <- r.loop.runLoop(now, r.tick, r.sig) }()
}

// ticks sends n ticks. Each send returns once the loop has picked it up,
// so a following send waits for the previous tick to be processed.
func (r *loopRig) ticks(n int) {
	for i := 0; i < n; i++ {
		r.tick <- t0
	}
}

func (r *loopRig) stop(t *testing.T, s os.Signal) {
	t.Helper()
	r.sig <- s
	select {
	case err := <-r.done:
		if err != nil {
			t.Errorf("runLoop returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runLoop did not return after signal")
	}
}

func storeCount(t *testing.T, m *store.Memory) int {
	t.Helper()
	n, err := m.Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestRunLoopShortPressLogs(t *testing.T) {
	r := newLoopRig(t, []bool{false, true, true, true, false}, 0)
	r.start(steppedNow(t0, time.Second))
	r.ticks(5)

	require.Eventually(t, func() bool { return len(r.pub.Events()) == 1 }, 2*time.Second, 5*time.Millisecond)

	// Shutdown refreshes the tracker one last time before returning.
	r.stop(t, syscall.SIGTERM)

	if n := storeCount(t, r.store); n != 1 {
		t.Errorf("expected 1 stored press, got %d", n)
	}
	if e := r.pub.Events()[0]; e.Type != controller.EventPress {
		t.Errorf("expected PRESS event, got %s", e.Type)
	}

	snap := r.tracker.Snapshot()
	if snap.State != controller.StateShowingStats {
		t.Errorf("tracker state: got %s, want SHOWING_STATS", snap.State)
	}
	if snap.Stats.Total != 1 {
		t.Errorf("tracker total: got %d, want 1", snap.Stats.Total)
	}
	if snap.Presses != 1 {
		t.Errorf("tracker presses: got %d, want 1", snap.Presses)
	}
	if snap.NextReset.IsZero() {
		t.Error("expected the next daily reset in the tracker")
	}
	if !snap.MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}
}

func TestRunLoopNoPressWhileReleased(t *testing.T) {
	r := newLoopRig(t, []bool{false}, 0)
	r.start(steppedNow(t0, time.Second))
	r.ticks(10)
	r.stop(t, syscall.SIGINT)

	if n := storeCount(t, r.store); n != 0 {
		t.Errorf("expected no presses, got %d", n)
	}
	if len(r.pub.Events()) != 0 {
		t.Errorf("expected no events, got %d", len(r.pub.Events()))
	}
}

func TestRunLoopReadErrorCountsInputFault(t *testing.T) {
	r := newLoopRig(t, []bool{false}, 0)
	r.button.ReadError = errors.New("gpio read failed")
	r.start(steppedNow(t0, time.Second))
	r.ticks(3)
	r.stop(t, syscall.SIGTERM)

	if got := r.tracker.Snapshot().Faults.Input; got != 3 {
		t.Errorf("input faults: got %d, want 3", got)
	}
	if r.ctrl.State() != controller.StateIdle {
		t.Errorf("expected state unchanged, got %s", r.ctrl.State())
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	r := newLoopRig(t, []bool{false}, 5*time.Minute)
	r.start(steppedNow(t0, time.Minute))
	r.ticks(10)
	r.stop(t, syscall.SIGTERM)

	var heartbeats int
	for _, e := range r.pub.SystemEvents() {
		if e.Event == "HEARTBEAT" {
			heartbeats++
			if e.Retained {
				t.Error("heartbeat should not be retained")
			}
			if len(e.RawPayload) == 0 {
				t.Error("expected heartbeat status payload")
			}
		}
	}
	if heartbeats != 2 {
		t.Errorf("expected 2 heartbeats, got %d", heartbeats)
	}
	if net := r.tracker.Snapshot().Network; net == nil || net.IP != "192.168.1.42" {
		t.Errorf("expected network refreshed on heartbeat, got %+v", net)
	}
}

func TestRunLoopHeartbeatDisabled(t *testing.T) {
	r := newLoopRig(t, []bool{false}, 0)
	r.start(steppedNow(t0, time.Hour))
	r.ticks(5)
	r.stop(t, syscall.SIGTERM)

	for _, e := range r.pub.SystemEvents() {
		if e.Event == "HEARTBEAT" {
			t.Fatal("expected no heartbeat when disabled")
		}
	}
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	r := newLoopRig(t, []bool{false}, 0)
	r.start(steppedNow(t0, time.Second))
	r.stop(t, syscall.SIGINT)

	events := r.pub.SystemEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(events))
	}
	e := events[0]
	if e.Event != "SHUTDOWN" || e.Reason != "SIGINT" || !e.Retained {
		t.Errorf("expected retained SHUTDOWN/SIGINT, got %+v", e)
	}

	var payload status.StatusJSON
	if err := json.Unmarshal(r.pub.SystemPayloads()[0], &payload); err != nil {
		t.Fatalf("decode shutdown payload: %v", err)
	}
	if payload.Status.Event != "SHUTDOWN" || payload.Status.Reason != "SIGINT" {
		t.Errorf("payload: got event=%q reason=%q", payload.Status.Event, payload.Status.Reason)
	}
}

func TestRunLoopShutdownSIGTERM(t *testing.T) {
	r := newLoopRig(t, []bool{false}, 0)
	r.start(steppedNow(t0, time.Second))
	r.stop(t, syscall.SIGTERM)

	events := r.pub.SystemEvents()
	if len(events) != 1 || events[0].Reason != "SIGTERM" {
		t.Errorf("expected SHUTDOWN/SIGTERM, got %+v", events)
	}
}

func TestRunLoopShutdownPublishErrorStillReturns(t *testing.T) {
	r := newLoopRig(t, []bool{false}, 0)
	r.pub.PublishSystemError = errors.New("broker gone")
	r.start(steppedNow(t0, time.Second))
	r.stop(t, syscall.SIGTERM)
}

func TestRunLoopWithoutBroker(t *testing.T) {
	r := newLoopRig(t, []bool{false, true, true, false}, time.Minute)
	r.loop.publisher = nil
	r.loop.mqttStatus = nil
	r.start(steppedNow(t0, time.Minute))
	r.ticks(4)
	r.stop(t, syscall.SIGTERM)

	if len(r.pub.SystemEvents()) != 0 {
		t.Errorf("expected no system events without a publisher, got %d", len(r.pub.SystemEvents()))
	}
}

// --- config and CLI tests ---

func execute(t *testing.T, opts *options, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// baseArgs points every file at a temp dir so the user's own config and
// data are never touched.
func baseArgs(t *testing.T) (dir string, args []string) {
	t.Helper()
	dir = t.TempDir()
	return dir, []string{
		"--config", filepath.Join(dir, "config.toml"),
		"--db", filepath.Join(dir, "habit.db"),
		"--legacy", filepath.Join(dir, "stats.json"),
	}
}

func TestConfigFileAppliesWhereFlagsAreUnset(t *testing.T) {
	dir, args := baseArgs(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[button]
pin = 17
poll = "40ms"
long-press = "2s"

[display]
kind = "log"
reset-at = "04:30"

[mqtt]
broker = "tcp://broker:1883"
`), 0o644))

	opts := defaultOptions()
	_, err := execute(t, &opts, append(args, "--pin-button", "22", "config", "--path")...)
	require.NoError(t, err)

	assert.Equal(t, 22, opts.pinButton, "flag wins over file")
	assert.Equal(t, 2*time.Second, opts.longPress)
	assert.Equal(t, "log", opts.displayKind)
	assert.Equal(t, "04:30", opts.resetAt)
	assert.Equal(t, "tcp://broker:1883", opts.broker)
	assert.Equal(t, gpio.DefaultPinLED, opts.pinLED, "absent key keeps default")

	cc := opts.controllerConfig()
	assert.Equal(t, 4, cc.ResetHour)
	assert.Equal(t, 30, cc.ResetMinute)

	poller := press.NewPoller(gpio.NewFakeButton(nil), opts.pressConfig(), func(press.Kind) {}, time.Now)
	assert.Equal(t, 40*time.Millisecond, poller.Interval(), "file poll drives the ticker")
}

func TestLegacyPathFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	legacy := filepath.Join(dir, "old-stats.json")
	require.NoError(t, os.WriteFile(legacy,
		[]byte(`{"history": ["2026-01-05T08:00:00"], "offset": 5}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"),
		[]byte("[storage]\nlegacy = "+strconv.Quote(legacy)+"\n"), 0o644))

	opts := defaultOptions()
	out, err := execute(t, &opts,
		"--config", filepath.Join(dir, "config.toml"),
		"--db", filepath.Join(dir, "habit.db"),
		"migrate")
	require.NoError(t, err)
	assert.Equal(t, legacy, opts.legacy)
	assert.Contains(t, out, "imported 1 presses, offset 5")

	// The flag still wins over the file.
	opts = defaultOptions()
	other := filepath.Join(dir, "elsewhere.json")
	_, err = execute(t, &opts,
		"--config", filepath.Join(dir, "config.toml"),
		"--db", filepath.Join(dir, "habit.db"),
		"--legacy", other,
		"config", "--path")
	require.NoError(t, err)
	assert.Equal(t, other, opts.legacy)
}

func TestInvalidOptionsRejected(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"reset-at", []string{"--reset-at", "25:00"}},
		{"display", []string{"--display", "oled"}},
		{"long press under debounce", []string{"--long-press", "10ms"}},
		{"poll", []string{"--poll", "0s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, args := baseArgs(t)
			opts := defaultOptions()
			_, err := execute(t, &opts, append(append(args, tt.args...), "config")...)
			assert.Error(t, err)
		})
	}
}

func TestConfigCommandPrintsTemplate(t *testing.T) {
	_, args := baseArgs(t)
	opts := defaultOptions()
	out, err := execute(t, &opts, append(args, "config")...)
	require.NoError(t, err)
	assert.Contains(t, out, "[button]")
	assert.Contains(t, out, "reset-at")
}

func TestOffsetLogAndStatsCommands(t *testing.T) {
	_, args := baseArgs(t)

	opts := defaultOptions()
	out, err := execute(t, &opts, append(args, "offset", "5")...)
	require.NoError(t, err)
	assert.Equal(t, "5", strings.TrimSpace(out))

	opts = defaultOptions()
	out, err = execute(t, &opts, append(args, "log", "--json")...)
	require.NoError(t, err)

	var s statsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, statsOutput{Volume: 1, Streak: 1, Total: 6}, s)

	opts = defaultOptions()
	out, err = execute(t, &opts, append(args, "stats")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Total      6")

	opts = defaultOptions()
	out, err = execute(t, &opts, append(args, "logs")...)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	_, err = time.Parse(time.RFC3339, lines[0])
	assert.NoError(t, err)
}

func TestOffsetRejectsNegative(t *testing.T) {
	_, args := baseArgs(t)
	opts := defaultOptions()
	_, err := execute(t, &opts, append(args, "offset", "-3")...)
	assert.Error(t, err)
}

func TestMigrateCommand(t *testing.T) {
	dir, args := baseArgs(t)
	legacy := filepath.Join(dir, "stats.json")
	require.NoError(t, os.WriteFile(legacy,
		[]byte(`{"history": ["2026-01-05T08:00:00", "2026-01-06T08:00:00"], "offset": 3}`), 0o644))

	opts := defaultOptions()
	out, err := execute(t, &opts, append(args, "migrate")...)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 presses, offset 3")

	_, err = os.Stat(legacy + ".bak")
	assert.NoError(t, err, "legacy file is kept as a backup")

	opts = defaultOptions()
	out, err = execute(t, &opts, append(args, "migrate")...)
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to import")
}

func TestPrintButtonState(t *testing.T) {
	for _, tt := range []struct {
		level bool
		want  string
	}{
		{true, "Button: PRESSED"},
		{false, "Button: RELEASED"},
	} {
		cmd := newPrintStateCmd(&options{})
		var out bytes.Buffer
		cmd.SetOut(&out)
		require.NoError(t, printButtonState(cmd, gpio.NewFakeButton([]bool{tt.level})))
		assert.Equal(t, tt.want, strings.TrimSpace(out.String()))
	}
}

func TestPrintButtonStateReadError(t *testing.T) {
	button := gpio.NewFakeButton(nil)
	button.ReadError = errors.New("line busy")
	err := printButtonState(newPrintStateCmd(&options{}), button)
	assert.Error(t, err)
}
