package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/fableforge/fableforge/pkg/generation"
)

// MockThreadService is a test thread backend that tracks threads, messages,
// and runs in memory with configurable status sequences.
type MockThreadService struct {
	mu sync.Mutex

	// Messages holds appended messages per thread id, in order.
	Messages map[string][]MockThreadMessage

	// Statuses, when non-empty, is consumed one entry per RunStatus call.
	// Once exhausted, RunStatus keeps returning the final entry.
	Statuses []generation.Status

	// AssistantText is returned by LatestAssistantText.
	AssistantText string

	// FailCreate, FailAdd, FailStart, and FailStatus force the matching
	// operation to return an error.
	FailCreate bool
	FailAdd    bool
	FailStart  bool
	FailStatus bool

	threadSeq int
	runSeq    int
	statusIdx int
}

// MockThreadMessage is one message recorded by MockThreadService.
type MockThreadMessage struct {
	Role    string
	Content string
}

func NewMockThreadService() *MockThreadService {
	return &MockThreadService{
		Messages: make(map[string][]MockThreadMessage),
		Statuses: []generation.Status{generation.StatusCompleted},
	}
}

func (m *MockThreadService) CreateThread(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailCreate {
		return "", fmt.Errorf("mock thread creation failure")
	}

	m.threadSeq++
	id := fmt.Sprintf("thread-%d", m.threadSeq)
	m.Messages[id] = nil
	return id, nil
}

func (m *MockThreadService) AddMessage(_ context.Context, threadID, role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailAdd {
		return fmt.Errorf("mock add message failure")
	}

	m.Messages[threadID] = append(m.Messages[threadID], MockThreadMessage{Role: role, Content: content})
	return nil
}

func (m *MockThreadService) StartRun(_ context.Context, threadID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailStart {
		return "", fmt.Errorf("mock start run failure")
	}

	m.runSeq++
	m.statusIdx = 0
	return fmt.Sprintf("run-%d", m.runSeq), nil
}

func (m *MockThreadService) RunStatus(_ context.Context, _, _ string) (generation.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailStatus {
		return "", fmt.Errorf("mock run status failure")
	}

	if len(m.Statuses) == 0 {
		return generation.StatusCompleted, nil
	}

	status := m.Statuses[m.statusIdx]
	if m.statusIdx < len(m.Statuses)-1 {
		m.statusIdx++
	}
	return status, nil
}

func (m *MockThreadService) LatestAssistantText(_ context.Context, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.AssistantText, nil
}

func (m *MockThreadService) Close() error {
	return nil
}

// ThreadCount returns the number of threads created so far.
func (m *MockThreadService) ThreadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.threadSeq
}

var _ generation.ThreadService = (*MockThreadService)(nil)
