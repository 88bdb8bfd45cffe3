package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	domain "user-service/internal/domain/user"
	"user-service/pkg/logger"
)

// msgPublisher is the subset of *nats.Conn the publisher needs.
type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NatsPublisher publishes user events as JSON to NATS.
type NatsPublisher struct {
	conn msgPublisher
	log  *zap.Logger
}

// Connect dials NATS and returns a publisher together with the underlying
// connection, which the caller drains on shutdown.
func Connect(url, name string, log *zap.Logger) (*NatsPublisher, *nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return NewNatsPublisher(nc, log), nc, nil
}

// NewNatsPublisher wraps an established connection.
func NewNatsPublisher(conn msgPublisher, log *zap.Logger) *NatsPublisher {
	return &NatsPublisher{conn: conn, log: log}
}

// Publish sends event on the subject named by its type, e.g. "user.created".
// Each message carries a unique Nats-Msg-Id header and the originating
// request ID when known.
func (p *NatsPublisher) Publish(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}

	msg := nats.NewMsg(string(event.Type))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())
	if id := logger.GetRequestID(ctx); id != "" {
		msg.Header.Set(logger.RequestIDHeader, id)
	}

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}

	logger.WithContext(ctx, p.log).Debug("published event",
		zap.String("subject", msg.Subject),
		zap.Int64("user_id", event.User.ID),
	)
	return nil
}
