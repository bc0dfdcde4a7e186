// Package session binds client sessions to durable conversation ids so a
// campaign's dialogue survives client restarts and reconnects.
//
// A session key is whatever identity the client supplies (device id, auth
// subject, cookie). Ensure is idempotent: concurrent calls for one key
// resolve to a single conversation. Player profile soft state is tracked
// alongside the binding.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fableforge/fableforge/pkg/convo"
	"github.com/fableforge/fableforge/pkg/profile"
)

// binding is one session's resolved conversation and soft state.
type binding struct {
	conversationID string
	campaignID     string
	prof           profile.Profile
}

// Binder maps session keys to conversations, creating them on first use.
type Binder struct {
	store     convo.Store
	extractor profile.Extractor
	logger    *zap.Logger

	mu       sync.Mutex
	bindings map[string]*binding
}

// NewBinder creates a session binder over the given conversation store.
// A nil extractor disables profile inference.
func NewBinder(store convo.Store, extractor profile.Extractor, logger *zap.Logger) *Binder {
	if extractor == nil {
		extractor = profile.NopExtractor{}
	}

	return &Binder{
		store:     store,
		extractor: extractor,
		logger:    logger,
		bindings:  make(map[string]*binding),
	}
}

// Ensure resolves the session's conversation id, creating a conversation for
// the campaign on first call. At most one conversation is created per
// session key unless Reset intervenes; concurrent calls collapse to one
// create because the binding table is checked and written under one lock.
func (b *Binder) Ensure(ctx context.Context, sessionKey, campaignID, playerID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if bound, ok := b.bindings[sessionKey]; ok {
		return bound.conversationID, nil
	}

	id, err := b.store.Create(ctx, campaignID, playerID)
	if err != nil {
		return "", err
	}

	b.bindings[sessionKey] = &binding{
		conversationID: id,
		campaignID:     campaignID,
	}

	b.logger.Info("session bound to conversation",
		zap.String("session_key", sessionKey),
		zap.String("conversation_id", id),
		zap.String("campaign_id", campaignID),
	)

	return id, nil
}

// Lookup returns the session's conversation id without creating one.
func (b *Binder) Lookup(sessionKey string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bound, ok := b.bindings[sessionKey]
	if !ok {
		return "", false
	}
	return bound.conversationID, true
}

// Reset drops the session's binding so the next Ensure creates a fresh
// conversation. The old conversation itself is never deleted.
func (b *Binder) Reset(sessionKey string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.bindings, sessionKey)
}

// Observe feeds one player utterance through the profile extractor and
// merges the result into the session's soft state. Best-effort; unknown
// sessions are ignored.
func (b *Binder) Observe(sessionKey, text string) {
	extracted := b.extractor.Extract(text)
	if extracted.Empty() {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	bound, ok := b.bindings[sessionKey]
	if !ok {
		return
	}

	bound.prof.Merge(extracted)
	b.logger.Debug("player profile updated",
		zap.String("session_key", sessionKey),
		zap.String("name", bound.prof.Name),
		zap.String("class", bound.prof.Class),
	)
}

// Profile returns the session's inferred player profile.
func (b *Binder) Profile(sessionKey string) profile.Profile {
	b.mu.Lock()
	defer b.mu.Unlock()

	if bound, ok := b.bindings[sessionKey]; ok {
		return bound.prof
	}
	return profile.Profile{}
}
