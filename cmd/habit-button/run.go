package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/habit-button/internal/clock"
	"github.com/sweeney/habit-button/internal/config"
	"github.com/sweeney/habit-button/internal/controller"
	"github.com/sweeney/habit-button/internal/display"
	"github.com/sweeney/habit-button/internal/gpio"
	"github.com/sweeney/habit-button/internal/mqtt"
	"github.com/sweeney/habit-button/internal/press"
	"github.com/sweeney/habit-button/internal/status"
	"github.com/sweeney/habit-button/internal/store"
	"github.com/sweeney/habit-button/internal/web"
)

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the button daemon (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), *opts)
		},
	}
}

func runDaemon(ctx context.Context, opts options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := store.Open(opts.db)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	importLegacy(ctx, st, opts.legacy)

	button, err := gpio.NewRealButton(opts.pinButton, opts.edges, opts.debounce)
	if err != nil {
		return fmt.Errorf("init button: %w", err)
	}
	defer button.Close()

	var ctrlOpts []controller.Option
	if opts.pinLED >= 0 {
		led, err := gpio.NewRealLED(opts.pinLED, opts.idleLEDOn)
		if err != nil {
			return fmt.Errorf("init led: %w", err)
		}
		defer led.Close()
		ctrlOpts = append(ctrlOpts, controller.WithIndicator(gpio.NewIndicator(led, opts.idleLEDOn)))
	}

	// Left nil without a broker; a typed nil would pass the controller's nil check.
	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if opts.broker != "" {
		p, err := mqtt.NewRealPublisher(opts.broker, opts.clientID, opts.outbox)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, mqttStatus = p, p
		ctrlOpts = append(ctrlOpts, controller.WithPublisher(p))
	}

	ctrl := controller.New(st, newDisplay(opts.displayKind), clock.Real{}, opts.controllerConfig(), ctrlOpts...)
	if err := ctrl.Start(ctx); err != nil {
		log.Printf("startup: %v", err)
	}
	go ctrl.Run(ctx)

	poller := press.NewPoller(button, opts.pressConfig(), func(k press.Kind) { ctrl.Press(k) }, time.Now)

	tracker := status.NewTracker(time.Now(), opts.statusConfig(), nil)
	if net := networkFromEnv(); net != nil {
		tracker.SetNetwork(net)
	}

	if publisher != nil {
		snap := tracker.Snapshot()
		startup := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startup); err != nil {
			log.Printf("failed to publish startup event: %v", err)
		} else {
			log.Printf("published startup event")
		}
	}

	if opts.httpAddr != "" {
		srv := web.New(opts.httpAddr, tracker, ctrl, nil)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", opts.httpAddr)
	}

	log.Printf("started: pin=%d poll=%v debounce=%v long-press=%v stats=%v reset-at=%s broker=%q db=%s",
		opts.pinButton, opts.poll, opts.debounce, opts.longPress, opts.statsDuration, opts.resetAt, opts.broker, opts.db)

	ticker := time.NewTicker(poller.Interval())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	l := &loop{
		poller:     poller,
		ctrl:       ctrl,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		heartbeat:  opts.heartbeat,
		network:    networkFromEnv,
	}
	return l.runLoop(time.Now, ticker.C, sigCh)
}

func importLegacy(ctx context.Context, st *store.Store, path string) {
	if path == "" {
		return
	}
	res, err := st.ImportLegacy(ctx, path)
	if err != nil {
		log.Printf("store: legacy import from %s: %v", path, err)
		return
	}
	if res.Found {
		log.Printf("store: imported %d presses (offset %d) from %s, moved to %s",
			res.Imported, res.Offset, path, res.BackupPath)
	}
}

func newDisplay(kind string) display.Display {
	if kind == "log" {
		return display.Logger{}
	}
	return display.NewConsole(os.Stdout)
}

func (o *options) statusConfig() status.Config {
	return status.Config{
		PollMs:        o.poll.Milliseconds(),
		DebounceMs:    o.debounce.Milliseconds(),
		LongPressMs:   o.longPress.Milliseconds(),
		StatsSeconds:  int64(o.statsDuration / time.Second),
		ResetAt:       o.resetAt,
		HeartbeatMs:   o.heartbeat.Milliseconds(),
		Broker:        o.broker,
		HTTPAddr:      o.httpAddr,
		Display:       o.displayKind,
		LongPressLogs: o.longPressLogs,
	}
}

// loop samples the button on every tick and keeps the status tracker and
// heartbeat current. The controller runs on its own goroutine.
type loop struct {
	poller     *press.Poller
	ctrl       *controller.Controller
	publisher  mqtt.Publisher // nil without a broker
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	heartbeat  time.Duration
	network    func() *status.NetworkInfo
}

func (l *loop) runLoop(now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	lastHeartbeat := now()

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			l.refresh()
			l.publishSystem(now(), "SHUTDOWN", signalName)
			return nil

		case <-tick:
			l.poller.Poll()
			l.refresh()

			t := now()
			if l.heartbeat > 0 && t.Sub(lastHeartbeat) >= l.heartbeat {
				lastHeartbeat = t
				if l.network != nil {
					if net := l.network(); net != nil {
						l.tracker.SetNetwork(net)
					}
				}
				snap := l.tracker.Snapshot()
				log.Printf("heartbeat: uptime=%v state=%s presses=%d total=%d faults=%+v",
					snap.Uptime().Truncate(time.Second), snap.State, snap.Presses, snap.Stats.Total, snap.Faults)
				l.publishSystem(t, "HEARTBEAT", "")
			}
		}
	}
}

// refresh copies the controller and poller view into the tracker.
func (l *loop) refresh() {
	var next time.Time
	if h, ok := l.ctrl.Pending(controller.TaskDailyReset); ok {
		next = h.FireAt
	}
	f := l.ctrl.Faults()
	l.tracker.Update(l.ctrl.State(), l.ctrl.LastStats(), l.ctrl.Presses(), status.Faults{
		Storage: f.Storage,
		Render:  f.Render,
		Input:   l.poller.Faults(),
	}, next)
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

func (l *loop) publishSystem(at time.Time, event, reason string) {
	if l.publisher == nil {
		return
	}
	snap := l.tracker.Snapshot()
	se := mqtt.SystemEvent{
		Timestamp:  at,
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := l.publisher.PublishSystem(se); err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
		return
	}
	if event != "HEARTBEAT" {
		log.Printf("published %s event", event)
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func networkFromEnv() *status.NetworkInfo {
	lookup, err := config.EnvLookup(config.PiHelperEnvPath)
	if err != nil {
		log.Printf("network: %v", err)
	}
	return readNetworkInfo(lookup)
}

func readNetworkInfo(lookup func(string) string) *status.NetworkInfo {
	s := lookup(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       lookup(envNetworkType),
		IP:         lookup(envNetworkIP),
		Status:     s,
		Gateway:    lookup(envNetworkGateway),
		WifiStatus: lookup(envNetworkWifiStatus),
		SSID:       lookup(envNetworkWifiSSID),
	}
}
