// Package inmemory provides an in-process convo.Store backed by a map.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fableforge/fableforge/pkg/convo"
)

// Store implements convo.Store using an in-memory map.
type Store struct {
	// preamble, when non-empty, is recorded as the first system turn of
	// every new conversation.
	preamble string

	mu sync.RWMutex

	// conversations maps conversation id to its record.
	conversations map[string]*convo.Conversation
}

// Option configures a Store created with NewStore.
type Option func(*Store)

// WithPreamble sets the system preamble recorded as the first turn of every
// new conversation.
func WithPreamble(text string) Option {
	return func(s *Store) {
		s.preamble = text
	}
}

// NewStore creates a new in-memory conversation store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		conversations: make(map[string]*convo.Conversation),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Create allocates a fresh conversation with an empty turn log.
func (s *Store) Create(_ context.Context, campaignID, playerID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	c := &convo.Conversation{
		ID:         id,
		CampaignID: campaignID,
		PlayerID:   playerID,
		CreatedAt:  time.Now().UTC(),
	}

	if s.preamble != "" {
		c.Turns = append(c.Turns, convo.Turn{
			Role:      convo.RoleSystem,
			Content:   s.preamble,
			CreatedAt: c.CreatedAt,
		})
	}

	s.conversations[id] = c
	return id, nil
}

// Append records a turn at the end of the conversation's log.
func (s *Store) Append(_ context.Context, conversationID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		return convo.NotFoundError{ID: conversationID}
	}

	c.Turns = append(c.Turns, convo.Turn{
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// Turns returns the conversation's turns in append order.
func (s *Store) Turns(_ context.Context, conversationID string) ([]convo.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		return nil, convo.NotFoundError{ID: conversationID}
	}

	// Return a copy to avoid callers mutating internal state.
	turns := make([]convo.Turn, len(c.Turns))
	copy(turns, c.Turns)
	return turns, nil
}

// Get returns the full conversation record.
func (s *Store) Get(_ context.Context, conversationID string) (*convo.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		return nil, convo.NotFoundError{ID: conversationID}
	}

	out := *c
	out.Turns = make([]convo.Turn, len(c.Turns))
	copy(out.Turns, c.Turns)
	return &out, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// Ensure Store implements convo.Store
var _ convo.Store = (*Store)(nil)
