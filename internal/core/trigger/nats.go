package trigger

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/solatis/trapmapper/internal/core/logging"
)

// NATSConfig configures the NATS measurement subscription.
type NATSConfig struct {
	URL           string
	Subject       string
	Name          string
	ReconnectWait time.Duration
}

// NATSFeed forwards measurements published on a NATS subject.
type NATSFeed struct {
	feedBase
	conn *nats.Conn
	sub  *nats.Subscription
}

// NewNATSFeed builds an unconnected feed; Connect subscribes it.
func NewNATSFeed(handler MeasurementHandler, logger *slog.Logger) *NATSFeed {
	return &NATSFeed{feedBase: feedBase{
		handler: handler,
		logger:  logging.OrDefault(logger).With(logging.Component("nats-feed")),
	}}
}

// Connect dials NATS and subscribes to cfg.Subject.
func (f *NATSFeed) Connect(cfg NATSConfig) error {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Name == "" {
		cfg.Name = "trapmapper-trigger"
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1), // Infinite reconnects
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				f.logger.Warn("NATS disconnected", logging.Error(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			f.logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	sub, err := conn.Subscribe(cfg.Subject, func(msg *nats.Msg) {
		f.receive(msg.Subject, msg.Data)
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", cfg.Subject, err)
	}

	f.conn = conn
	f.sub = sub
	f.logger.Info("subscribed to measurements", slog.String("subject", cfg.Subject))
	return nil
}

// Close unsubscribes and drains the connection.
func (f *NATSFeed) Close() error {
	if f.conn == nil {
		return nil
	}
	if f.sub != nil {
		_ = f.sub.Unsubscribe()
	}
	return f.conn.Drain()
}
