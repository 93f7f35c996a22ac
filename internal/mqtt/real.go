package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/senseo-control/internal/machine"
)

const (
	bufferCapacity = 256
	publishTimeout = 5 * time.Second
)

// RealPublisher publishes to an actual MQTT broker. The connection is made
// in the background and re-established automatically; messages published
// while offline are buffered and replayed on connect.
type RealPublisher struct {
	client paho.Client
	now    func() time.Time

	mu            sync.Mutex
	buffer        *ringBuffer
	everConnected bool
}

// NewRealPublisher creates a publisher for the given broker. It does not
// wait for the connection.
func NewRealPublisher(broker, clientID string) *RealPublisher {
	p := &RealPublisher{
		now:    time.Now,
		buffer: newRingBuffer(bufferCapacity),
	}

	// Published by the broker if we vanish without a clean disconnect.
	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: p.now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

func (p *RealPublisher) onConnect(paho.Client) {
	p.mu.Lock()
	reconnect := p.everConnected
	p.everConnected = true
	pending := p.buffer.drainAll()
	p.mu.Unlock()

	log.Printf("mqtt: connected, replaying %d buffered messages", len(pending))
	for _, m := range pending {
		if err := p.send(m); err != nil {
			log.Printf("mqtt: replay: %v", err)
		}
	}

	if reconnect {
		payload, err := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"})
		if err == nil {
			err = p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1})
		}
		if err != nil {
			log.Printf("mqtt: reconnected event: %v", err)
		}
	}
}

// Publish sends a machine event to the MQTT broker.
func (p *RealPublisher) Publish(event machine.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.send(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once): lifecycle events must arrive
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// send publishes m, or buffers it if the broker is unreachable.
func (p *RealPublisher) send(m bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.hold(m)
		return nil
	}

	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		p.hold(m)
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		p.hold(m)
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

func (p *RealPublisher) hold(m bufferedMsg) {
	p.mu.Lock()
	p.buffer.push(m)
	p.mu.Unlock()
}

// Buffered returns the number of messages waiting for the broker.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second quiesce
	return nil
}

var (
	_ Publisher        = (*RealPublisher)(nil)
	_ ConnectionStatus = (*RealPublisher)(nil)
	_ Publisher        = (*FakePublisher)(nil)
	_ ConnectionStatus = (*FakePublisher)(nil)
	_ Publisher        = NopPublisher{}
	_ ConnectionStatus = NopPublisher{}
)
