// v0
// internal/ingest/mqtt.go
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/Mohammed19J/Robomo-2.0/internal/engine"
	"github.com/Mohammed19J/Robomo-2.0/internal/observability"
	"github.com/Mohammed19J/Robomo-2.0/internal/reading"
)

// MQTTConfig captures the tunables for the broker subscription. Topic may
// carry a single-level wildcard for the device segment, e.g.
// "sensors/+/readings".
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
}

// MQTTConsumer feeds readings published on an MQTT broker into the engine.
type MQTTConsumer struct {
	cfg     MQTTConfig
	client  mqtt.Client
	eng     *engine.Engine
	lg      *slog.Logger
	metrics *observability.Metrics
}

func NewMQTTConsumer(cfg MQTTConfig, eng *engine.Engine, lg *slog.Logger, m *observability.Metrics) (*MQTTConsumer, error) {
	if lg == nil {
		return nil, errors.New("logger must not be nil")
	}
	if eng == nil {
		return nil, errors.New("engine must not be nil")
	}
	if strings.TrimSpace(cfg.Broker) == "" {
		return nil, errors.New("mqtt broker must not be empty")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("mqtt topic must not be empty")
	}

	c := &MQTTConsumer{cfg: cfg, eng: eng, lg: lg, metrics: m}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "baseline-" + uuid.NewString()[:8]
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		lg.Warn("mqtt connection lost", "broker", cfg.Broker, "err", err)
	})
	// Subscribing inside OnConnect keeps the subscription alive across
	// broker reconnects.
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		if token := client.Subscribe(cfg.Topic, 0, c.onMessage); token.Wait() && token.Error() != nil {
			lg.Error("mqtt subscribe failed", "topic", cfg.Topic, "err", token.Error())
			return
		}
		lg.Info("mqtt subscribed", "broker", cfg.Broker, "topic", cfg.Topic, "client_id", clientID)
	})
	c.client = mqtt.NewClient(opts)
	return c, nil
}

func (c *MQTTConsumer) Start() error {
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return nil
}

func (c *MQTTConsumer) Stop() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}

func (c *MQTTConsumer) onMessage(_ mqtt.Client, msg mqtt.Message) {
	c.handlePayload(msg.Topic(), msg.Payload())
}

// handlePayload decodes one reading and feeds it through the streaming path.
// A payload without a device id inherits the device segment of the topic.
func (c *MQTTConsumer) handlePayload(topic string, raw []byte) {
	var wire reading.Wire
	if err := json.Unmarshal(raw, &wire); err != nil {
		c.metrics.ReadingDiscarded("bad_json")
		c.lg.Warn("undecodable mqtt reading dropped", "topic", topic, "err", err)
		return
	}
	if wire.DeviceID == nil {
		if id := deviceIDFromTopic(topic); id != "" {
			wire.DeviceID = id
		}
	}

	if _, err := c.eng.Submit(wire, engine.Overrides{}); err != nil {
		c.lg.Warn("mqtt reading rejected", "topic", topic, "err", err)
		return
	}
	c.metrics.ReadingIngested("mqtt")
}

// deviceIDFromTopic extracts the device segment from topics shaped like
// "sensors/<device>/readings".
func deviceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[1]
}
