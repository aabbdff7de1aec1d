package trigger

import (
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/solatis/trapmapper/internal/core/logging"
)

// MQTTConfig configures the MQTT measurement subscription.
type MQTTConfig struct {
	Broker         string
	Topic          string
	ClientID       string
	QoS            byte
	ConnectTimeout time.Duration
}

// MQTTFeed forwards measurements published on an MQTT topic.
type MQTTFeed struct {
	feedBase
	client mqtt.Client
	topic  string
}

// NewMQTTFeed builds an unconnected feed; Connect subscribes it.
func NewMQTTFeed(handler MeasurementHandler, logger *slog.Logger) *MQTTFeed {
	return &MQTTFeed{feedBase: feedBase{
		handler: handler,
		logger:  logging.OrDefault(logger).With(logging.Component("mqtt-feed")),
	}}
}

// Connect dials the broker and subscribes to cfg.Topic. The subscription is
// renewed on every reconnect.
func (f *MQTTFeed) Connect(cfg MQTTConfig) error {
	if cfg.Broker == "" {
		return fmt.Errorf("mqtt broker is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "trapmapper-trigger"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	f.topic = cfg.Topic

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		f.logger.Warn("MQTT connection lost", logging.Error(err))
	})
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		token := c.Subscribe(cfg.Topic, cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
			f.receive(msg.Topic(), msg.Payload())
		})
		if token.WaitTimeout(cfg.ConnectTimeout) && token.Error() != nil {
			f.logger.Error("MQTT subscribe failed", slog.String("topic", cfg.Topic), logging.Error(token.Error()))
			return
		}
		f.logger.Info("subscribed to measurements", slog.String("topic", cfg.Topic))
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return fmt.Errorf("mqtt connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	f.client = client
	return nil
}

// Close unsubscribes and disconnects.
func (f *MQTTFeed) Close() error {
	if f.client == nil {
		return nil
	}
	if f.client.IsConnected() {
		f.client.Unsubscribe(f.topic).WaitTimeout(time.Second)
	}
	f.client.Disconnect(250)
	return nil
}
