// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/senseo-control/internal/machine"
)

// Topic is the MQTT topic for machine events.
const Topic = "appliance/coffee/senseo/events"

// TopicSystem is the MQTT topic for daemon lifecycle events.
const TopicSystem = "appliance/coffee/senseo/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a machine event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event machine.Event) error

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
	Coffee CoffeePayload `json:"coffee"`
}

// CoffeePayload contains the machine event details. Only the fields that
// belong to the event type are present.
type CoffeePayload struct {
	Timestamp  string `json:"timestamp"`
	Event      string `json:"event"`
	Brew       string `json:"brew,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Outcome    string `json:"outcome,omitempty"`
	DurationMs *int64 `json:"duration_ms,omitempty"`
	ElapsedMs  *int64 `json:"elapsed_ms,omitempty"`
	Pulses     *int   `json:"pulses,omitempty"`
	CycleID    string `json:"cycle_id,omitempty"`
}

// FormatPayload creates the JSON payload for a machine event.
func FormatPayload(event machine.Event) ([]byte, error) {
	p := CoffeePayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     string(event.Type),
		CycleID:   event.CycleID,
	}

	switch event.Type {
	case machine.EventPowerOff:
		p.Reason = event.Reason
	case machine.EventBrewQueued:
		p.Brew = event.Brew.String()
	case machine.EventBrewStart:
		p.Brew = event.Brew.String()
		p.DurationMs = millis(event.Duration)
	case machine.EventBrewEnd:
		p.Brew = event.Brew.String()
		p.Outcome = string(event.Outcome)
		p.DurationMs = millis(event.Duration)
		p.ElapsedMs = millis(event.Elapsed)
		p.Pulses = &event.Pulses
	case machine.EventCleanEnd:
		p.Outcome = string(event.Outcome)
		p.ElapsedMs = millis(event.Elapsed)
		p.Pulses = &event.Pulses
	}

	return json.Marshal(Payload{Coffee: p})
}

func millis(d time.Duration) *int64 {
	ms := d.Milliseconds()
	return &ms
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

// NopPublisher discards everything. Used when no broker is configured.
type NopPublisher struct{}

// Publish discards the event.
func (NopPublisher) Publish(machine.Event) error { return nil }

// PublishSystem discards the event.
func (NopPublisher) PublishSystem(SystemEvent) error { return nil }

// Close does nothing.
func (NopPublisher) Close() error { return nil }

// IsConnected always reports false.
func (NopPublisher) IsConnected() bool { return false }
