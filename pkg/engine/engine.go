// Package engine orchestrates conversational turns: accept the player's
// utterance, compose the bounded prompt, invoke generation, await the reply,
// persist it, and hand the completed exchange to the memory updater.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fableforge/fableforge/pkg/convo"
	"github.com/fableforge/fableforge/pkg/engine/updater"
	"github.com/fableforge/fableforge/pkg/eventstream"
	"github.com/fableforge/fableforge/pkg/speech"
	"github.com/fableforge/fableforge/pkg/utils"
)

const (
	// DefaultPollInterval is how often an asynchronous run's status is checked.
	DefaultPollInterval = 800 * time.Millisecond

	// DefaultTurnTimeout bounds one turn's total generation wait.
	DefaultTurnTimeout = 60 * time.Second

	// EmptyReplyPlaceholder is returned in place of a reply when generation
	// completes but yields no text. Operators need a distinguishable signal
	// that setup is broken, not a generic error.
	EmptyReplyPlaceholder = "(The Game Master is silent - check the narrator model configuration and instructions.)"
)

// Composer builds the bounded prompt for one turn.
type Composer interface {
	Compose(ctx context.Context, campaignID, utterance string) (string, error)
}

// MemoryUpdater receives completed exchanges for asynchronous processing.
type MemoryUpdater interface {
	Enqueue(job updater.Job) bool
}

// ThreadPreparer is implemented by runners that bind a backend thread per
// conversation and can establish it eagerly at creation time.
type ThreadPreparer interface {
	PrepareThread(ctx context.Context, conversationID string) error
}

// Config holds configuration for the turn engine.
type Config struct {
	// PollInterval is the async-backend status check interval.
	// Defaults to DefaultPollInterval when non-positive.
	PollInterval time.Duration

	// TurnTimeout bounds one turn's total generation wait.
	// Defaults to DefaultTurnTimeout when non-positive.
	TurnTimeout time.Duration
}

// Engine is the turn executor.
type Engine struct {
	config    Config
	store     convo.Store
	composer  Composer
	runner    Runner
	updater   MemoryUpdater
	publisher eventstream.Publisher
	synth     speech.Synthesizer
	logger    *zap.Logger

	mu sync.Mutex
	// states tracks each conversation's lifecycle position.
	states map[string]State
	// turnLocks serializes turns per conversation. Turns across different
	// conversations proceed concurrently.
	turnLocks map[string]*sync.Mutex
}

// Option configures an Engine created with New.
type Option func(*Engine)

// WithPublisher attaches a best-effort turn event publisher.
func WithPublisher(p eventstream.Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithSynthesizer attaches a best-effort text-to-speech enrichment.
func WithSynthesizer(s speech.Synthesizer) Option {
	return func(e *Engine) {
		e.synth = s
	}
}

// New creates a turn engine.
func New(config Config, store convo.Store, composer Composer, runner Runner, up MemoryUpdater, logger *zap.Logger, opts ...Option) *Engine {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.TurnTimeout <= 0 {
		config.TurnTimeout = DefaultTurnTimeout
	}

	e := &Engine{
		config:    config,
		store:     store,
		composer:  composer,
		runner:    runner,
		updater:   up,
		logger:    logger,
		states:    make(map[string]State),
		turnLocks: make(map[string]*sync.Mutex),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// CreateConversation allocates a conversation for a campaign. playerID may
// be empty.
func (e *Engine) CreateConversation(ctx context.Context, campaignID, playerID string) (string, error) {
	id, err := e.store.Create(ctx, campaignID, playerID)
	if err != nil {
		return "", fmt.Errorf("creating conversation: %w", err)
	}

	e.setState(id, StateAwaitingThread)

	state := StateThreadReady
	if prep, ok := e.runner.(ThreadPreparer); ok {
		if err := prep.PrepareThread(ctx, id); err != nil {
			// The runner retries lazily on the first turn; the conversation
			// stays usable but is not yet bound to a backend thread.
			e.logger.Warn("thread preparation failed",
				zap.String("conversation_id", id),
				zap.Error(err),
			)
			state = StateAwaitingThread
		}
	}
	e.setState(id, state)

	e.logger.Info("conversation created",
		zap.String("conversation_id", id),
		zap.String("campaign_id", campaignID),
	)

	return id, nil
}

// SubmitMessage appends a user turn without running generation. Used by
// clients that submit and run as separate operations.
func (e *Engine) SubmitMessage(ctx context.Context, conversationID, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: message text is required", ErrValidation)
	}

	if err := e.store.Append(ctx, conversationID, convo.RoleUser, text); err != nil {
		return err
	}

	e.setState(conversationID, StateSubmitting)
	return nil
}

// RunTurn composes the prompt from the conversation's latest user turn and
// campaign memory, invokes generation, and persists the reply. The caller is
// suspended until a reply or terminal failure.
func (e *Engine) RunTurn(ctx context.Context, conversationID string) (string, error) {
	lock := e.turnLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	c, err := e.store.Get(ctx, conversationID)
	if err != nil {
		return "", err
	}

	last := c.LastTurn()
	if last == nil || last.Role != convo.RoleUser {
		return "", fmt.Errorf("%w: no pending user message to run", ErrValidation)
	}

	return e.runExchange(ctx, c, last.Content)
}

// SubmitTurn appends the user turn and runs generation in one operation.
// On timeout or failure the user turn remains recorded - the system never
// silently drops a player message, it only fails to produce a reply.
func (e *Engine) SubmitTurn(ctx context.Context, conversationID, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: message text is required", ErrValidation)
	}

	lock := e.turnLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	c, err := e.store.Get(ctx, conversationID)
	if err != nil {
		return "", err
	}

	e.setState(conversationID, StateSubmitting)
	if err := e.store.Append(ctx, conversationID, convo.RoleUser, text); err != nil {
		return "", err
	}

	return e.runExchange(ctx, c, text)
}

// State reports the conversation's current lifecycle state.
func (e *Engine) State(conversationID string) State {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.states[conversationID]; ok {
		return s
	}
	return StateIdle
}

// runExchange drives generation for an already-recorded user turn and
// persists the assistant reply. Caller holds the conversation's turn lock.
func (e *Engine) runExchange(ctx context.Context, c *convo.Conversation, userText string) (string, error) {
	started := time.Now().UTC()

	promptText, err := e.composer.Compose(ctx, c.CampaignID, userText)
	if err != nil {
		e.setState(c.ID, StateFailed)
		return "", fmt.Errorf("%w: composing prompt: %v", ErrGenerationFailed, err)
	}

	e.logger.Debug("prompt composed",
		zap.String("conversation_id", c.ID),
		zap.String("preview", utils.Truncate(promptText, 160)),
	)

	e.setState(c.ID, StateRunning)

	runCtx, cancel := context.WithTimeout(ctx, e.config.TurnTimeout)
	defer cancel()

	reply, err := e.runner.Run(runCtx, c.ID, promptText)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			e.setState(c.ID, StateTimedOut)
			e.logger.Warn("turn timed out",
				zap.String("conversation_id", c.ID),
				zap.Duration("timeout", e.config.TurnTimeout),
			)
			return "", fmt.Errorf("%w: no reply within %s", ErrTimedOut, e.config.TurnTimeout)
		}

		e.setState(c.ID, StateFailed)
		e.logger.Error("generation failed",
			zap.String("conversation_id", c.ID),
			zap.Error(err),
		)
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if strings.TrimSpace(reply) == "" {
		reply = EmptyReplyPlaceholder
	}

	if err := e.store.Append(ctx, c.ID, convo.RoleAssistant, reply); err != nil {
		e.setState(c.ID, StateFailed)
		return "", fmt.Errorf("appending reply: %w", err)
	}

	e.setState(c.ID, StateCompleted)
	completed := time.Now().UTC()

	e.logger.Info("turn completed",
		zap.String("conversation_id", c.ID),
		zap.String("campaign_id", c.CampaignID),
		zap.String("reply_preview", utils.Truncate(reply, 80)),
		zap.Duration("duration", completed.Sub(started)),
	)

	// Memory bookkeeping runs after the reply is already on its way back;
	// the user-visible turn is never blocked on it.
	if e.updater != nil {
		e.updater.Enqueue(updater.Job{
			CampaignID:     c.CampaignID,
			ConversationID: c.ID,
			UserText:       userText,
			AssistantText:  reply,
		})
	}

	e.publishTurn(c, userText, reply, started, completed)
	e.speakReply(c.ID, reply)

	return reply, nil
}

// publishTurn emits a turn-completed event. Best-effort; failures are logged.
func (e *Engine) publishTurn(c *convo.Conversation, userText, reply string, started, completed time.Time) {
	if e.publisher == nil {
		return
	}

	event := &eventstream.TurnCompletedEvent{
		SchemaVersion:  eventstream.SchemaVersionV1,
		EventType:      eventstream.EventTypeTurnCompleted,
		EventID:        uuid.NewString(),
		EmittedAt:      time.Now().UTC(),
		ConversationID: c.ID,
		CampaignID:     c.CampaignID,
		UserText:       userText,
		AssistantText:  reply,
		StartedAt:      started,
		CompletedAt:    completed,
		DurationMs:     completed.Sub(started).Milliseconds(),
	}

	if err := e.publisher.PublishTurn(context.Background(), event); err != nil {
		e.logger.Warn("failed to publish turn event",
			zap.String("conversation_id", c.ID),
			zap.Error(err),
		)
	}
}

// speakReply renders the reply as audio in the background. Fire-and-forget:
// failures are swallowed and logged, never surfacing to the dialogue flow.
func (e *Engine) speakReply(conversationID, reply string) {
	if e.synth == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.config.TurnTimeout)
		defer cancel()

		if _, err := e.synth.Speak(ctx, reply); err != nil {
			e.logger.Warn("speech synthesis failed",
				zap.String("conversation_id", conversationID),
				zap.Error(err),
			)
		}
	}()
}

func (e *Engine) setState(conversationID string, s State) {
	if conversationID == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.states[conversationID] = s
}

func (e *Engine) turnLock(conversationID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.turnLocks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		e.turnLocks[conversationID] = lock
	}
	return lock
}
