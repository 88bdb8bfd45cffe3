package infrastructure

import (
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"user-service/internal/adapter/events"
	"user-service/internal/config"
)

// NewEventPublisher connects to NATS when NATS_URL is set. Both results are
// nil when events are disabled.
func NewEventPublisher(cfg *config.Config, l *zap.Logger) (*events.NatsPublisher, *nats.Conn, error) {
	if cfg.NATS.URL == "" {
		l.Info("NATS_URL not set, user events disabled")
		return nil, nil, nil
	}

	pub, nc, err := events.Connect(cfg.NATS.URL, cfg.Logger.ServiceName, l)
	if err != nil {
		return nil, nil, err
	}

	l.Info("connected to NATS", zap.String("url", nc.ConnectedUrl()))
	return pub, nc, nil
}
