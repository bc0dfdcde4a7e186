package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/fableforge/fableforge/pkg/generation"
)

// MockGenerator is a test generation service that records prompts and returns
// configurable replies.
type MockGenerator struct {
	mu sync.Mutex

	// Prompts accumulates every prompt passed to Generate.
	Prompts []string

	// Reply is returned by Generate unless Replies has entries remaining.
	Reply string

	// Replies, when non-empty, is consumed one entry per Generate call.
	Replies []string

	// FailOn causes Generate to return an error when the prompt contains
	// the given substring.
	FailOn string

	// Err, when set, is returned by every Generate call.
	Err error

	next int
}

func NewMockGenerator(reply string) *MockGenerator {
	return &MockGenerator{
		Reply: reply,
	}
}

func (m *MockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Prompts = append(m.Prompts, prompt)

	if m.Err != nil {
		return "", m.Err
	}
	if m.FailOn != "" && strings.Contains(prompt, m.FailOn) {
		return "", fmt.Errorf("mock generation failure for: %s", m.FailOn)
	}

	if m.next < len(m.Replies) {
		reply := m.Replies[m.next]
		m.next++
		return reply, nil
	}

	return m.Reply, nil
}

func (m *MockGenerator) Close() error {
	return nil
}

// LastPrompt returns the most recent prompt passed to Generate, empty when
// Generate has never been called.
func (m *MockGenerator) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Prompts) == 0 {
		return ""
	}
	return m.Prompts[len(m.Prompts)-1]
}

var _ generation.Service = (*MockGenerator)(nil)
