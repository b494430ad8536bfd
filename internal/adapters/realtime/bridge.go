package realtime

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
)

// Bridge feeds notifications published on the Redis channel into the hub.
type Bridge struct {
	client  redis.UniversalClient
	channel string
	hub     *Hub
	logger  *logrus.Logger
}

func NewBridge(client redis.UniversalClient, channel string, hub *Hub, logger *logrus.Logger) *Bridge {
	return &Bridge{client: client, channel: channel, hub: hub, logger: logger}
}

// Run blocks until ctx is cancelled. go-redis reconnects the subscription
// on its own.
func (b *Bridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return errors.Wrapf(err, "redis: subscribe %s", b.channel)
	}
	b.logger.WithField("channel", b.channel).Info("notification bridge subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis: subscription channel closed")
			}
			b.handle(msg.Payload)
		}
	}
}

func (b *Bridge) handle(payload string) {
	var n domain.Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		b.logger.WithError(err).Warn("bridge: dropping malformed notification")
		return
	}
	if err := b.hub.Deliver(n); err != nil {
		b.logger.WithError(err).WithField("tag", n.Tag).Warn("bridge: delivery failed")
	}
}
