package display

import (
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gadgetini/display-agent/internal/infrastructure/log"
	"go.uber.org/zap"
)

// LeakEvent is published on every leak alert transition.
type LeakEvent struct {
	AgentID   string    `json:"agent_id"`
	Product   string    `json:"product"`
	Sensor    string    `json:"sensor"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Active    bool      `json:"active"`
	Timestamp time.Time `json:"timestamp"`
}

type AlertPublisher interface {
	PublishLeak(ev LeakEvent) error
}

// MQTTAlertPublisher publishes leak events as retained JSON messages so a
// late subscriber still sees the current alert state.
type MQTTAlertPublisher struct {
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
	logger  *log.Logger
}

func NewMQTTAlertPublisher(client mqtt.Client, topic string, qos byte, timeout time.Duration) *MQTTAlertPublisher {
	return &MQTTAlertPublisher{client: client, topic: topic, qos: qos, timeout: timeout, logger: log.Component("leak-publisher")}
}

// PublishLeak does not wait for delivery; failures are logged.
func (p *MQTTAlertPublisher) PublishLeak(ev LeakEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	token := p.client.Publish(p.topic, p.qos, true, payload)
	go func() {
		if !token.WaitTimeout(p.timeout) {
			p.logger.Warn("leak event publish timed out", zap.String("topic", p.topic))
			return
		}
		if err := token.Error(); err != nil {
			p.logger.Warn("leak event publish failed", zap.String("topic", p.topic), zap.Error(err))
		}
	}()
	return nil
}
