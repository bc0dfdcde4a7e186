package testutils

import (
	"sync"

	"github.com/fableforge/fableforge/pkg/engine/updater"
)

// MockUpdater is a test memory updater that records enqueued jobs.
type MockUpdater struct {
	mu sync.Mutex

	// Jobs accumulates every job passed to Enqueue.
	Jobs []updater.Job

	// Reject causes Enqueue to report a full queue.
	Reject bool
}

func NewMockUpdater() *MockUpdater {
	return &MockUpdater{}
}

func (m *MockUpdater) Enqueue(job updater.Job) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Reject {
		return false
	}

	m.Jobs = append(m.Jobs, job)
	return true
}

// JobCount returns the number of jobs enqueued so far.
func (m *MockUpdater) JobCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Jobs)
}
