package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/fableforge/fableforge/pkg/speech"
)

// MockSynthesizer is a test synthesizer that records spoken text.
type MockSynthesizer struct {
	mu sync.Mutex

	// Spoken accumulates every text passed to Speak.
	Spoken []string

	// Audio is returned by Speak.
	Audio []byte

	// FailSpeak causes Speak to return an error.
	FailSpeak bool
}

func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{
		Audio: []byte("audio"),
	}
}

func (m *MockSynthesizer) Speak(_ context.Context, text string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSpeak {
		return nil, fmt.Errorf("mock synthesis failure")
	}

	m.Spoken = append(m.Spoken, text)
	return m.Audio, nil
}

func (m *MockSynthesizer) Close() error {
	return nil
}

// SpokenCount returns the number of texts spoken so far.
func (m *MockSynthesizer) SpokenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Spoken)
}

var _ speech.Synthesizer = (*MockSynthesizer)(nil)
