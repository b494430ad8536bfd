package mocks

import (
	"context"
	"sync"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/ports"
)

// MockNotifier implements ports.Notifier for testing. It records every
// notification the scheduler dispatches after commit.
type MockNotifier struct {
	mu sync.RWMutex

	Notifications []domain.Notification

	// Error injection; the notification is still recorded.
	NotifyError error

	NotifyCallCount int
}

var _ ports.Notifier = (*MockNotifier)(nil)

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{Notifications: make([]domain.Notification, 0)}
}

func (m *MockNotifier) Notify(ctx context.Context, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.NotifyCallCount++
	m.Notifications = append(m.Notifications, n)
	return m.NotifyError
}

// GetNotifications returns a copy of everything recorded so far.
func (m *MockNotifier) GetNotifications() []domain.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Notification, len(m.Notifications))
	copy(out, m.Notifications)
	return out
}

// For returns the recorded notifications with the given tag whose target
// selects sub.
func (m *MockNotifier) For(tag domain.NotificationTag, sub domain.Subscriber) []domain.Notification {
	var out []domain.Notification
	for _, n := range m.GetNotifications() {
		if n.Tag == tag && n.Target.Matches(sub) {
			out = append(out, n)
		}
	}
	return out
}

func (m *MockNotifier) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Notifications = make([]domain.Notification, 0)
	m.NotifyError = nil
	m.NotifyCallCount = 0
}
