package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/habit-button/internal/controller"
)

// DefaultOutboxSize is how many messages are kept while the broker is unreachable.
const DefaultOutboxSize = 100

const publishTimeout = 5 * time.Second

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are held in an outbox and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	now    func() time.Time

	mu        sync.Mutex
	outbox    *outbox
	connected bool // a connection has been made at least once
}

func newPublisher(client paho.Client, outboxSize int, now func() time.Time) *RealPublisher {
	return &RealPublisher{
		client: client,
		now:    now,
		outbox: newOutbox(outboxSize),
	}
}

// NewRealPublisher creates a publisher connected to the given broker. The
// broker is told to publish a retained OFFLINE message if the daemon
// disappears without a clean shutdown.
func NewRealPublisher(broker, clientID string, outboxSize int) (*RealPublisher, error) {
	p := newPublisher(nil, outboxSize, time.Now)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		// paho keeps retrying; publishes are held in the outbox until then.
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// onConnect runs after every successful (re)connection. Held messages are
// replayed oldest first, after a RECONNECTED notice on reconnects.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	first := !p.connected
	p.connected = true
	pending := p.outbox.flush()
	p.mu.Unlock()

	if first {
		log.Printf("mqtt: connected")
	} else {
		log.Printf("mqtt: reconnected, replaying %d messages", len(pending))
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"})
		if err := send(c, TopicSystem, 1, false, payload); err != nil {
			log.Printf("mqtt: publish reconnected: %v", err)
		}
	}

	for _, m := range pending {
		if err := send(c, m.topic, m.qos, m.retained, m.payload); err != nil {
			log.Printf("mqtt: replay to %s: %v", m.topic, err)
		}
	}
}

// Publish sends a habit event to the MQTT broker.
func (p *RealPublisher) Publish(event controller.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.publish(Topic, 0, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	return p.publish(TopicSystem, 1, event.Retained, payload)
}

// publish holds the message while the connection is down. The check and the
// add happen under p.mu, which onConnect takes to flush, so a message is
// either sent or replayed by the next onConnect.
func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.outbox.add(pendingMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return send(p.client, topic, qos, retained, payload)
}

func send(c paho.Client, topic string, qos byte, retained bool, payload []byte) error {
	token := c.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Pending returns the number of messages waiting for the broker.
func (p *RealPublisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outbox.len()
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
