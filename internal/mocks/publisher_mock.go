package mocks

import (
	"context"
	"sync"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/ports"
)

// MockQueueEventPublisher implements ports.QueueEventPublisher so the outbox
// relay can be tested without RabbitMQ.
type MockQueueEventPublisher struct {
	mu sync.RWMutex

	PublishedEvents []domain.Notification

	PublishError error

	PublishCallCount int
}

var _ ports.QueueEventPublisher = (*MockQueueEventPublisher)(nil)

func NewMockQueueEventPublisher() *MockQueueEventPublisher {
	return &MockQueueEventPublisher{PublishedEvents: make([]domain.Notification, 0)}
}

func (m *MockQueueEventPublisher) PublishQueueEvent(ctx context.Context, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PublishCallCount++
	if m.PublishError != nil {
		return m.PublishError
	}
	m.PublishedEvents = append(m.PublishedEvents, n)
	return nil
}

func (m *MockQueueEventPublisher) GetPublishedEvents() []domain.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]domain.Notification, len(m.PublishedEvents))
	copy(events, m.PublishedEvents)
	return events
}

func (m *MockQueueEventPublisher) GetPublishCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PublishCallCount
}
