package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/fableforge/fableforge/pkg/eventstream"
)

// MockPublisher is a test event publisher that records published events.
type MockPublisher struct {
	mu sync.Mutex

	// Events accumulates every event passed to PublishTurn.
	Events []*eventstream.TurnCompletedEvent

	// FailPublish causes PublishTurn to return an error.
	FailPublish bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishTurn(_ context.Context, event *eventstream.TurnCompletedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailPublish {
		return fmt.Errorf("mock publish failure")
	}

	m.Events = append(m.Events, event)
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// EventCount returns the number of events published so far.
func (m *MockPublisher) EventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Events)
}

var _ eventstream.Publisher = (*MockPublisher)(nil)
