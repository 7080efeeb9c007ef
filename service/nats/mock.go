package nats

import (
	"context"
	"sync"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu                sync.RWMutex
	publishedEvents   []*TransactionEvent
	badgeEvents       []*BadgeEvent
	publishError      error
	publishBadgeError error
	closed            bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		publishedEvents: make([]*TransactionEvent, 0),
		badgeEvents:     make([]*BadgeEvent, 0),
	}
}

// PublishTransaction records the event and returns any configured error.
func (m *MockPublisher) PublishTransaction(ctx context.Context, event *TransactionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}

	m.publishedEvents = append(m.publishedEvents, event)
	return nil
}

// PublishBadge records the event and returns any configured error.
func (m *MockPublisher) PublishBadge(ctx context.Context, event *BadgeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishBadgeError != nil {
		return m.publishBadgeError
	}

	m.badgeEvents = append(m.badgeEvents, event)
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetPublishedEvents returns all published transaction events (for testing).
func (m *MockPublisher) GetPublishedEvents() []*TransactionEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to avoid race conditions
	events := make([]*TransactionEvent, len(m.publishedEvents))
	copy(events, m.publishedEvents)
	return events
}

// GetPublishedEventCount returns the number of published transaction events.
func (m *MockPublisher) GetPublishedEventCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.publishedEvents)
}

// GetPublishedEventsForAccount returns transaction events sent by account.
func (m *MockPublisher) GetPublishedEventsForAccount(account string) []*TransactionEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*TransactionEvent, 0)
	for _, event := range m.publishedEvents {
		if event.From == account {
			events = append(events, event)
		}
	}
	return events
}

// GetBadgeEvents returns all published badge events.
func (m *MockPublisher) GetBadgeEvents() []*BadgeEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*BadgeEvent, len(m.badgeEvents))
	copy(events, m.badgeEvents)
	return events
}

// SetPublishError configures the mock to return an error on PublishTransaction.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// SetPublishBadgeError configures the mock to return an error on PublishBadge.
func (m *MockPublisher) SetPublishBadgeError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishBadgeError = err
}

// Reset clears all published events and errors.
func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishedEvents = make([]*TransactionEvent, 0)
	m.badgeEvents = make([]*BadgeEvent, 0)
	m.publishError = nil
	m.publishBadgeError = nil
	m.closed = false
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
