// MQTT push channel
//
// Renderers (or a bridge in front of them) publish JSON snapshots to
// <base>/<renderer>/state and <base>/<renderer>/queue.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/shared"
)

const (
	mqttQoS         = 1
	mqttWaitTimeout = 10 * time.Second
	mqttQuiesce     = 250 // milliseconds
)

// StateTopic returns the topic carrying a renderer's state.
func StateTopic(base, rendererID string) string {
	return strings.TrimRight(base, "/") + "/" + rendererID + "/state"
}

// QueueTopic returns the topic carrying a renderer's queue.
func QueueTopic(base, rendererID string) string {
	return strings.TrimRight(base, "/") + "/" + rendererID + "/queue"
}

// MQTTService subscribes to pushed renderer snapshots and can publish them.
type MQTTService struct {
	cfg    shared.MQTTConfig
	sink   PushSink
	client paho.Client
	logger *log.Logger
}

// NewMQTTService creates an unconnected service. sink may be nil for a publish-only client.
func NewMQTTService(cfg shared.MQTTConfig, sink PushSink, logger *log.Logger) *MQTTService {
	if cfg.TopicBase == "" {
		cfg.TopicBase = "renderkit"
	}
	return &MQTTService{
		cfg:    cfg,
		sink:   sink,
		logger: shared.WithLogger(logger, "component", "mqtt", "broker", cfg.Broker),
	}
}

// Connect dials the broker and, when a sink is set, subscribes to every renderer's topics.
// Subscriptions are restored on reconnect. The connection is closed when ctx ends.
func (m *MQTTService) Connect(ctx context.Context) error {
	if !m.cfg.Enabled() {
		return fmt.Errorf("%w: mqtt broker is not configured", shared.ErrMissingConfig)
	}

	opts := paho.NewClientOptions().
		AddBroker(m.cfg.Broker).
		SetClientID(m.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetOnConnectHandler(func(c paho.Client) {
			if err := m.subscribe(c); err != nil {
				m.logger.Warn("subscribe failed", "error", err)
			}
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			m.logger.Warn("connection lost", "error", err)
		})
	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password)
	}

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttWaitTimeout) {
		return fmt.Errorf("%w: mqtt connect to %s timed out", shared.ErrSourceUnavailable, m.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: mqtt connect: %w", shared.ErrSourceUnavailable, err)
	}
	m.client = client
	m.logger.Info("connected", "topics", m.cfg.TopicBase+"/+/{state,queue}")

	go func() {
		<-ctx.Done()
		client.Disconnect(mqttQuiesce)
	}()
	return nil
}

func (m *MQTTService) subscribe(c paho.Client) error {
	if m.sink == nil {
		return nil
	}
	handler := func(_ paho.Client, msg paho.Message) {
		if err := m.HandleMessage(msg.Topic(), msg.Payload()); err != nil {
			m.logger.Warn("dropped message", "topic", msg.Topic(), "error", err)
		}
	}
	filters := map[string]byte{
		StateTopic(m.cfg.TopicBase, "+"): mqttQoS,
		QueueTopic(m.cfg.TopicBase, "+"): mqttQoS,
	}
	token := c.SubscribeMultiple(filters, handler)
	if !token.WaitTimeout(mqttWaitTimeout) {
		return fmt.Errorf("subscribe timed out")
	}
	return token.Error()
}

// HandleMessage decodes one pushed message and forwards it to the sink.
func (m *MQTTService) HandleMessage(topic string, payload []byte) error {
	if m.sink == nil {
		return nil
	}

	rest, ok := strings.CutPrefix(topic, strings.TrimRight(m.cfg.TopicBase, "/")+"/")
	if !ok {
		return fmt.Errorf("%w: unexpected topic %q", shared.ErrInvalidInput, topic)
	}
	rendererID, kind, ok := strings.Cut(rest, "/")
	if !ok || rendererID == "" {
		return fmt.Errorf("%w: unexpected topic %q", shared.ErrInvalidInput, topic)
	}

	switch kind {
	case "state":
		var s models.RendererState
		if err := json.Unmarshal(payload, &s); err != nil {
			return fmt.Errorf("%w: state for %s: %w", shared.ErrMalformedResponse, rendererID, err)
		}
		if s.ID == "" {
			s.ID = rendererID
		}
		if s.ID != rendererID {
			return fmt.Errorf("%w: state for %s published on %s", shared.ErrMalformedResponse, s.ID, topic)
		}
		return m.sink.PushState(s)
	case "queue":
		var entries []models.QueueEntry
		if err := json.Unmarshal(payload, &entries); err != nil {
			return fmt.Errorf("%w: queue for %s: %w", shared.ErrMalformedResponse, rendererID, err)
		}
		if entries == nil {
			entries = []models.QueueEntry{}
		}
		return m.sink.PushQueue(rendererID, entries)
	default:
		return fmt.Errorf("%w: unexpected topic %q", shared.ErrInvalidInput, topic)
	}
}

// PublishState publishes s, retained, on its state topic.
func (m *MQTTService) PublishState(s models.RendererState) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return m.publish(StateTopic(m.cfg.TopicBase, s.ID), payload)
}

// PublishQueue publishes entries, retained, on the renderer's queue topic.
func (m *MQTTService) PublishQueue(rendererID string, entries []models.QueueEntry) error {
	payload, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return m.publish(QueueTopic(m.cfg.TopicBase, rendererID), payload)
}

func (m *MQTTService) publish(topic string, payload []byte) error {
	if m.client == nil {
		return fmt.Errorf("%w: mqtt client is not connected", shared.ErrSourceUnavailable)
	}
	token := m.client.Publish(topic, mqttQoS, true, payload)
	if !token.WaitTimeout(mqttWaitTimeout) {
		return fmt.Errorf("%w: publish to %s timed out", shared.ErrSourceUnavailable, topic)
	}
	return token.Error()
}

// Mirror returns a [PushSink] that republishes every push on the broker.
func (m *MQTTService) Mirror() PushSink {
	return mqttMirror{m}
}

type mqttMirror struct{ m *MQTTService }

func (p mqttMirror) PushState(s models.RendererState) error { return p.m.PublishState(s) }

func (p mqttMirror) PushQueue(rendererID string, entries []models.QueueEntry) error {
	return p.m.PublishQueue(rendererID, entries)
}
