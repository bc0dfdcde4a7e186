package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/fableforge/fableforge/pkg/memory"
)

// MockIndex is a test memory index that records writes and returns
// configurable retrieval results.
type MockIndex struct {
	mu sync.Mutex

	// Scenes and Facts accumulate recorded entries per campaign id.
	Scenes map[string][]string
	Facts  map[string][]string

	// SceneResults and FactResults are returned by QueryRelevant for the
	// matching kind.
	SceneResults []string
	FactResults  []string

	// Canons holds canon state per campaign id.
	Canons map[string]memory.Canon

	// Queries accumulates every query string passed to QueryRelevant.
	Queries []string

	// Limits accumulates every limit passed to QueryRelevant.
	Limits []int

	// FailRecord causes RecordScene and RecordFact to return an error.
	FailRecord bool

	// FailQuery causes QueryRelevant to return an error.
	FailQuery bool

	// FailCanon causes Canon and SetCanon to return an error.
	FailCanon bool
}

func NewMockIndex() *MockIndex {
	return &MockIndex{
		Scenes: make(map[string][]string),
		Facts:  make(map[string][]string),
		Canons: make(map[string]memory.Canon),
	}
}

func (m *MockIndex) RecordScene(_ context.Context, campaignID, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailRecord {
		return fmt.Errorf("mock record failure")
	}
	m.Scenes[campaignID] = append(m.Scenes[campaignID], summary)
	return nil
}

func (m *MockIndex) RecordFact(_ context.Context, campaignID, fact string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailRecord {
		return fmt.Errorf("mock record failure")
	}
	m.Facts[campaignID] = append(m.Facts[campaignID], fact)
	return nil
}

func (m *MockIndex) QueryRelevant(_ context.Context, _, query string, kind memory.Kind, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailQuery {
		return nil, fmt.Errorf("mock query failure")
	}

	m.Queries = append(m.Queries, query)
	m.Limits = append(m.Limits, limit)

	switch kind {
	case memory.KindScene:
		return m.SceneResults, nil
	case memory.KindFact:
		return m.FactResults, nil
	default:
		return nil, memory.ErrUnknownKind
	}
}

func (m *MockIndex) Canon(_ context.Context, campaignID string) (memory.Canon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailCanon {
		return nil, fmt.Errorf("mock canon failure")
	}

	c, ok := m.Canons[campaignID]
	if !ok {
		return memory.Canon{}, nil
	}
	return c, nil
}

func (m *MockIndex) SetCanon(_ context.Context, campaignID string, c memory.Canon) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailCanon {
		return fmt.Errorf("mock canon failure")
	}

	m.Canons[campaignID] = c
	return nil
}

func (m *MockIndex) Close() error {
	return nil
}

var _ memory.Index = (*MockIndex)(nil)
