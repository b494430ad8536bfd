package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/ports"
)

var _ ports.QueueEventPublisher = (*RabbitMQBroker)(nil)

// RoutingKey is "<tag>.<target kind>", e.g. "meeting_started.teacher".
func RoutingKey(n domain.Notification) string {
	return string(n.Tag) + "." + string(n.Target.Kind)
}

func (rmq *RabbitMQBroker) PublishQueueEvent(ctx context.Context, n domain.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "encode queue event")
	}

	if deadline, ok := ctx.Deadline(); ok {
		if time.Until(deadline) <= 0 {
			return ctx.Err()
		}
	}

	_, err = rmq.cb.Execute(func() (interface{}, error) {
		err := rmq.ch.PublishWithContext(
			ctx,
			rmq.exchange,
			RoutingKey(n),
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    n.ID,
				Type:         string(n.Tag),
				Timestamp:    n.OccurredAt,
				Body:         body,
			},
		)
		return nil, err
	})
	return errors.Wrap(err, "rabbitmq: publish queue event")
}
