package realtime

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/config"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/ports"
)

// RedisNotifier fans notifications out to every replica through a Redis
// pub/sub channel. Each replica's Bridge hands them to its local Hub.
type RedisNotifier struct {
	client  redis.UniversalClient
	channel string
	cb      *gobreaker.CircuitBreaker
}

var _ ports.Notifier = (*RedisNotifier)(nil)

func NewRedisNotifier(client redis.UniversalClient, channel string, logger *logrus.Logger) *RedisNotifier {
	return &RedisNotifier{
		client:  client,
		channel: channel,
		cb:      config.NewCircuitBreaker(config.BreakerRedisPublish, logger),
	}
}

func (n *RedisNotifier) Notify(ctx context.Context, notification domain.Notification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return errors.Wrap(err, "encode notification")
	}
	_, err = n.cb.Execute(func() (interface{}, error) {
		return nil, n.client.Publish(ctx, n.channel, body).Err()
	})
	return errors.Wrap(err, "redis: publish notification")
}
