package sensor

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"engine-health-monitor/internal/parser"
)

// MQTTProvider keeps the latest reading published on a broker topic
type MQTTProvider struct {
	client mqtt.Client
	topic  string
	maxAge time.Duration
	log    logrus.FieldLogger

	mu       sync.RWMutex
	latest   parser.Record
	received time.Time
	now      func() time.Time
}

// NewMQTTProvider connects to broker and subscribes to topic. Readings
// older than maxAge are not returned; zero disables the check.
func NewMQTTProvider(broker, clientID, topic string, maxAge time.Duration, log logrus.FieldLogger) (*MQTTProvider, error) {
	p := &MQTTProvider{
		topic:  topic,
		maxAge: maxAge,
		log:    log,
		now:    time.Now,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second).
		SetOnConnectHandler(func(c mqtt.Client) {
			token := c.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
				p.handle(msg.Payload())
			})
			token.Wait()
			if err := token.Error(); err != nil {
				log.WithError(err).WithField("topic", topic).Error("MQTT subscribe failed")
			}
		})

	p.client = mqtt.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", broker, err)
	}
	return p, nil
}

// handle stores a valid payload as the latest reading
func (p *MQTTProvider) handle(payload []byte) {
	rec, err := parser.DecodeReading(bytes.NewReader(payload))
	if err != nil {
		p.log.WithError(err).WithField("topic", p.topic).Warn("Dropping sensor message")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.latest = rec
	p.received = p.now()
}

// Read implements Provider
func (p *MQTTProvider) Read(ctx context.Context) (parser.Record, error) {
	if err := ctx.Err(); err != nil {
		return parser.Record{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.received.IsZero() {
		return parser.Record{}, ErrNoReading
	}
	if p.maxAge > 0 && p.now().Sub(p.received) > p.maxAge {
		return parser.Record{}, fmt.Errorf("%w: last reading is %s old", ErrNoReading, p.now().Sub(p.received).Round(time.Second))
	}
	return p.latest, nil
}

// Close disconnects from the broker
func (p *MQTTProvider) Close() {
	if p.client != nil {
		p.client.Disconnect(250)
	}
}
