// Command senseo-control runs the brew controller of a retrofitted Senseo
// coffee machine and publishes its events to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sweeney/senseo-control/internal/adc"
	"github.com/sweeney/senseo-control/internal/config"
	"github.com/sweeney/senseo-control/internal/gpio"
	"github.com/sweeney/senseo-control/internal/machine"
	"github.com/sweeney/senseo-control/internal/mqtt"
	"github.com/sweeney/senseo-control/internal/status"
	"github.com/sweeney/senseo-control/internal/web"
)

// statusInterval is how often the tracker copies the machine snapshot.
const statusInterval = 250 * time.Millisecond

type options struct {
	configPath string
	broker     string
	httpAddr   string
	heartbeat  time.Duration
	chip       string
	adcPort    string
	printState bool
	wsBroker   string

	set map[string]bool // flags given on the command line
}

func parseFlags(args []string) (*options, error) {
	o := &options{set: map[string]bool{}}

	fs := flag.NewFlagSet("senseo-control", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "/etc/senseo-control.yaml", "YAML configuration file")
	fs.StringVar(&o.broker, "broker", "", `MQTT broker address, overrides the config ("off" disables)`)
	fs.StringVar(&o.httpAddr, "http", "", `HTTP status address, overrides the config ("off" disables)`)
	fs.DurationVar(&o.heartbeat, "heartbeat", 0, "Heartbeat interval, overrides the config (0 to disable)")
	fs.StringVar(&o.chip, "chip", "", "GPIO chip, overrides the config")
	fs.StringVar(&o.adcPort, "adc-port", "", "ADC co-processor serial port, overrides the config")
	fs.BoolVar(&o.printState, "print-state", false, "Print buttons and raw sensor values and exit")
	fs.StringVar(&o.wsBroker, "ws-broker", "=broker", `MQTT websocket URL for live UI ("=broker" derives from the broker, "off" disables)`)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

// apply overrides cfg with the flags given on the command line.
func (o *options) apply(cfg *config.Config) error {
	if o.set["broker"] {
		cfg.MQTT.Broker = disable(o.broker)
	}
	if o.set["http"] {
		cfg.HTTP.Addr = disable(o.httpAddr)
	}
	if o.set["heartbeat"] {
		cfg.MQTT.Heartbeat = o.heartbeat
	}
	if o.set["chip"] {
		cfg.GPIO.Chip = o.chip
	}
	if o.set["adc-port"] {
		cfg.ADC.Port = o.adcPort
	}
	return cfg.Validate()
}

func disable(v string) string {
	if v == "off" {
		return ""
	}
	return v
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(opts *options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := opts.apply(cfg); err != nil {
		return err
	}

	board, err := gpio.NewRealBoard(cfg.GPIO.Chip, cfg.GPIO.Pins)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer board.Close()

	sensors, err := adc.OpenSerial(cfg.ADC.Port, cfg.ADC.Baud)
	if err != nil {
		return fmt.Errorf("init adc: %w", err)
	}
	defer sensors.Close()

	if opts.printState {
		if !waitFrame(sensors, 2*time.Second) {
			log.Printf("no frame from %s yet, values are zero", cfg.ADC.Port)
		}
		printState(os.Stdout, board, sensors)
		return nil
	}

	var publisher interface {
		mqtt.Publisher
		mqtt.ConnectionStatus
	} = mqtt.NopPublisher{}
	if cfg.MQTT.Broker != "" {
		publisher = mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID)
	}
	defer publisher.Close()

	ws := resolveWSBroker(disable(opts.wsBroker), cfg.MQTT.Broker)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg, ws))
	if info := readNetworkInfo(); info != nil {
		tracker.SetNetwork(info)
	}

	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	events := make(chan machine.Event, 64)
	clock := machine.NewRealClock(machine.TickPeriod, cfg.Timing.Poll, board.Wake())
	ctrl := machine.New(cfg.Machine(), board, sensors, clock)
	ctrl.SetReporter(chanReporter(events))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	log.Printf("started: chip=%s adc=%s broker=%q heartbeat=%v", cfg.GPIO.Chip, cfg.ADC.Port, cfg.MQTT.Broker, cfg.MQTT.Heartbeat)

	statusTicker := time.NewTicker(statusInterval)
	defer statusTicker.Stop()

	var heartbeat <-chan time.Time
	if cfg.MQTT.Heartbeat > 0 {
		hb := time.NewTicker(cfg.MQTT.Heartbeat)
		defer hb.Stop()
		heartbeat = hb.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	d := &daemon{
		events:     events,
		machine:    ctrl,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		now:        time.Now,
		stop: func() error {
			cancel()
			return <-done
		},
	}
	return d.run(statusTicker.C, heartbeat, sigCh, done)
}

// chanReporter hands events from the control loop to the daemon loop.
// It never blocks the control loop.
type chanReporter chan<- machine.Event

func (r chanReporter) Report(e machine.Event) {
	select {
	case r <- e:
	default:
		log.Printf("event queue full, dropped %s", e.Type)
	}
}

type snapshotter interface {
	Snapshot() machine.Snapshot
}

// daemon fans machine events out to the log, MQTT and the status tracker.
type daemon struct {
	events     <-chan machine.Event
	machine    snapshotter
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	now        func() time.Time

	// stop cancels the controller and returns once it has left the
	// outputs in the safe state.
	stop func() error
}

func (d *daemon) run(tick, heartbeat <-chan time.Time, sig <-chan os.Signal, done <-chan error) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			if err := d.stop(); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("controller: %v", err)
			}
			d.drain()
			d.shutdown(signalName(s))
			return nil

		case err := <-done:
			d.drain()
			d.shutdown("CONTROLLER_ERROR")
			return fmt.Errorf("controller stopped: %w", err)

		case e := <-d.events:
			d.handle(e)

		case <-tick:
			d.refresh()

		case <-heartbeat:
			d.refresh()
			if info := readNetworkInfo(); info != nil {
				d.tracker.SetNetwork(info)
			}
			snap := d.tracker.Snapshot()
			log.Printf("heartbeat: uptime=%v state=%s brews=%d cleans=%d",
				snap.Uptime().Truncate(time.Second), status.StateName(snap.Machine), snap.Counts.Brews(), snap.Counts.Cleans)
			hbEvent := mqtt.SystemEvent{
				Timestamp:  d.now(),
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
			}
			if err := d.publisher.PublishSystem(hbEvent); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}
		}
	}
}

func (d *daemon) handle(e machine.Event) {
	log.Printf("event: %s", describe(e))
	d.tracker.Record(e)
	if err := d.publisher.Publish(e); err != nil {
		log.Printf("publish error: %v", err)
		// Don't crash on publish failure
	}
}

// drain handles events queued before the controller stopped.
func (d *daemon) drain() {
	for {
		select {
		case e := <-d.events:
			d.handle(e)
		default:
			return
		}
	}
}

func (d *daemon) refresh() {
	d.tracker.Update(d.machine.Snapshot())
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
}

func (d *daemon) shutdown(reason string) {
	d.refresh()
	snap := d.tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  d.now(),
		Event:      "SHUTDOWN",
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", reason),
	}
	if err := d.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// describe renders an event for the log.
func describe(e machine.Event) string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	switch e.Type {
	case machine.EventPowerOff:
		fmt.Fprintf(&b, " (%s)", e.Reason)
	case machine.EventBrewQueued:
		fmt.Fprintf(&b, " %s", e.Brew)
	case machine.EventBrewStart:
		fmt.Fprintf(&b, " %s for %v", e.Brew, e.Duration)
	case machine.EventBrewEnd:
		fmt.Fprintf(&b, " %s %s after %v, %d pulses", e.Brew, e.Outcome, e.Elapsed, e.Pulses)
	case machine.EventCleanEnd:
		fmt.Fprintf(&b, " %s after %v, %d pulses", e.Outcome, e.Elapsed, e.Pulses)
	}
	return b.String()
}

func statusConfig(cfg *config.Config, wsBroker string) status.Config {
	return status.Config{
		OneEspressoMs: cfg.Brew.OneEspresso.Milliseconds(),
		TwoEspressoMs: cfg.Brew.TwoEspresso.Milliseconds(),
		OneCoffeeMs:   cfg.Brew.OneCoffee.Milliseconds(),
		TwoCoffeeMs:   cfg.Brew.TwoCoffee.Milliseconds(),
		AutoOffMs:     cfg.Buttons.AutoOff.Milliseconds(),
		CoffeeWish:    cfg.Brew.CoffeeWish,
		HeartbeatMs:   cfg.MQTT.Heartbeat.Milliseconds(),
		Broker:        cfg.MQTT.Broker,
		HTTPPort:      cfg.HTTP.Addr,
		WSBroker:      wsBroker,
		ADCPort:       cfg.ADC.Port,
	}
}

// waitFrame waits up to timeout for the first ADC frame.
func waitFrame(r *adc.SerialReader, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if received, _ := r.Frames(); received > 0 {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func printState(w io.Writer, buttons machine.ButtonReader, sensors machine.Sensors) {
	var parts []string
	for _, b := range machine.Buttons {
		parts = append(parts, fmt.Sprintf("%s: %s", b, pressedString(buttons.Pressed(b))))
	}
	fmt.Fprintln(w, strings.Join(parts, ", "))

	parts = parts[:0]
	for _, s := range machine.SensorChannels {
		parts = append(parts, fmt.Sprintf("%s: %d", s, sensors.Read(s)))
	}
	fmt.Fprintln(w, strings.Join(parts, ", "))
}

func pressedString(pressed bool) string {
	if pressed {
		return "PRESSED"
	}
	return "RELEASED"
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

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; empty disables.
func resolveWSBroker(ws, broker string) string {
	if ws != "=broker" {
		return ws
	}
	if broker == "" {
		return ""
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
