// Package status provides a thread-safe status tracker for the senseo-control daemon.
// It is read by the HTTP handlers and the heartbeat publisher.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/senseo-control/internal/machine"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
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
	OneEspressoMs int64
	TwoEspressoMs int64
	OneCoffeeMs   int64
	TwoCoffeeMs   int64
	AutoOffMs     int64
	CoffeeWish    bool
	HeartbeatMs   int64
	Broker        string
	HTTPPort      string
	WSBroker      string // Websocket broker URL for browser MQTT (empty = disabled)
	ADCPort       string
}

// EventCounts counts machine events since the daemon started.
type EventCounts struct {
	OneEspresso int // completed brews per kind
	TwoEspresso int
	OneCoffee   int
	TwoCoffee   int
	Cancelled   int // brews stopped by the power button
	WaterEmpty  int // brews stopped by an empty tank
	Cleans      int
	PowerOns    int
	AutoOffs    int
	WaterLow    int
}

// Brews returns the number of completed brews.
func (c EventCounts) Brews() int {
	return c.OneEspresso + c.TwoEspresso + c.OneCoffee + c.TwoCoffee
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Machine       machine.Snapshot
	Counts        EventCounts
	LastBrew      *machine.Event // most recent BREW_END
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
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the machine state. Called from the status loop.
func (t *Tracker) Update(m machine.Snapshot) {
	t.mu.Lock()
	t.snap.Machine = m
	t.mu.Unlock()
}

// Record folds a machine event into the counters.
func (t *Tracker) Record(e machine.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := &t.snap.Counts
	switch e.Type {
	case machine.EventPowerOn:
		c.PowerOns++
	case machine.EventPowerOff:
		if e.Reason == machine.ReasonAutoOff {
			c.AutoOffs++
		}
	case machine.EventCleanEnd:
		c.Cleans++
	case machine.EventWaterLow:
		c.WaterLow++
	case machine.EventBrewEnd:
		last := e
		t.snap.LastBrew = &last
		switch e.Outcome {
		case machine.OutcomeCancelled:
			c.Cancelled++
		case machine.OutcomeWaterEmpty:
			c.WaterEmpty++
		default:
			c.recordBrew(e.Brew)
		}
	}
}

func (c *EventCounts) recordBrew(b machine.Brew) {
	switch b {
	case machine.BrewOneEspresso:
		c.OneEspresso++
	case machine.BrewTwoEspresso:
		c.TwoEspresso++
	case machine.BrewOneCoffee:
		c.OneCoffee++
	case machine.BrewTwoCoffee:
		c.TwoCoffee++
	}
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
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
