package ports

import (
	"context"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
)

// Notifier receives scheduler notifications after their unit of work has
// committed. Delivery is fire-and-forget from the scheduler's side.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// QueueEventPublisher forwards committed outbox events to the message broker.
type QueueEventPublisher interface {
	PublishQueueEvent(ctx context.Context, n domain.Notification) error
}
