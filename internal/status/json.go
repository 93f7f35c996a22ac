package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/senseo-control/internal/machine"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Machine       MachineJSON   `json:"machine"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Counts        CountsJSON    `json:"event_counts"`
	LastBrew      *LastBrewJSON `json:"last_brew,omitempty"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// MachineJSON is the JSON representation of the machine state.
type MachineJSON struct {
	State         string `json:"state"`
	Powered       bool   `json:"powered"`
	Water         bool   `json:"water"`
	Temperature   bool   `json:"temperature"`
	Clean         bool   `json:"clean"`
	Brew          string `json:"brew"`
	LED           string `json:"led"`
	Boiler        bool   `json:"boiler"`
	Pumping       bool   `json:"pumping"`
	IdleSeconds   uint32 `json:"idle_seconds"`
	BrewElapsedMs int64  `json:"brew_elapsed_ms"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	OneEspresso int `json:"one_espresso"`
	TwoEspresso int `json:"two_espresso"`
	OneCoffee   int `json:"one_coffee"`
	TwoCoffee   int `json:"two_coffee"`
	Cancelled   int `json:"cancelled"`
	WaterEmpty  int `json:"water_empty"`
	Cleans      int `json:"cleans"`
	PowerOns    int `json:"power_ons"`
	AutoOffs    int `json:"auto_offs"`
	WaterLow    int `json:"water_low"`
}

// LastBrewJSON describes the most recent brew.
type LastBrewJSON struct {
	Brew      string `json:"brew"`
	Outcome   string `json:"outcome"`
	ElapsedMs int64  `json:"elapsed_ms"`
	Timestamp string `json:"timestamp"`
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
	OneEspressoMs int64  `json:"one_espresso_ms"`
	TwoEspressoMs int64  `json:"two_espresso_ms"`
	OneCoffeeMs   int64  `json:"one_coffee_ms"`
	TwoCoffeeMs   int64  `json:"two_coffee_ms"`
	AutoOffMs     int64  `json:"auto_off_ms"`
	CoffeeWish    bool   `json:"coffee_wish"`
	HeartbeatMs   int64  `json:"heartbeat_ms"`
	Broker        string `json:"broker"`
	HTTPPort      string `json:"http_port"`
	WSBroker      string `json:"ws_broker,omitempty"`
	ADCPort       string `json:"adc_port"`
}

// StateName summarizes the machine snapshot in one word, in order of
// precedence: OFF, NO_WATER, CLEANING, BREWING, HEATING, READY.
func StateName(m machine.Snapshot) string {
	switch {
	case !m.Powered:
		return "OFF"
	case !m.Water:
		return "NO_WATER"
	case m.Clean:
		return "CLEANING"
	case m.Pumping:
		return "BREWING"
	case !m.Temperature:
		return "HEATING"
	default:
		return "READY"
	}
}

func buildInner(snap Snapshot) StatusInner {
	m := snap.Machine
	c := snap.Counts

	inner := StatusInner{
		Machine: MachineJSON{
			State:         StateName(m),
			Powered:       m.Powered,
			Water:         m.Water,
			Temperature:   m.Temperature,
			Clean:         m.Clean,
			Brew:          m.Brew.String(),
			LED:           m.LED.String(),
			Boiler:        m.Boiler,
			Pumping:       m.Pumping,
			IdleSeconds:   m.IdleSeconds,
			BrewElapsedMs: m.BrewElapsed.Milliseconds(),
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			OneEspresso: c.OneEspresso,
			TwoEspresso: c.TwoEspresso,
			OneCoffee:   c.OneCoffee,
			TwoCoffee:   c.TwoCoffee,
			Cancelled:   c.Cancelled,
			WaterEmpty:  c.WaterEmpty,
			Cleans:      c.Cleans,
			PowerOns:    c.PowerOns,
			AutoOffs:    c.AutoOffs,
			WaterLow:    c.WaterLow,
		},
		Config: ConfigJSON{
			OneEspressoMs: snap.Config.OneEspressoMs,
			TwoEspressoMs: snap.Config.TwoEspressoMs,
			OneCoffeeMs:   snap.Config.OneCoffeeMs,
			TwoCoffeeMs:   snap.Config.TwoCoffeeMs,
			AutoOffMs:     snap.Config.AutoOffMs,
			CoffeeWish:    snap.Config.CoffeeWish,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			Broker:        snap.Config.Broker,
			HTTPPort:      snap.Config.HTTPPort,
			WSBroker:      snap.Config.WSBroker,
			ADCPort:       snap.Config.ADCPort,
		},
	}

	if b := snap.LastBrew; b != nil {
		inner.LastBrew = &LastBrewJSON{
			Brew:      b.Brew.String(),
			Outcome:   string(b.Outcome),
			ElapsedMs: b.Elapsed.Milliseconds(),
			Timestamp: b.Timestamp.UTC().Format(time.RFC3339),
		}
	}
	if n := snap.Network; n != nil {
		inner.Network = &NetworkJSON{
			Type:       n.Type,
			IP:         n.IP,
			Status:     n.Status,
			Gateway:    n.Gateway,
			WifiStatus: n.WifiStatus,
			SSID:       n.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
