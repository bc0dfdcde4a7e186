package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fableforge/fableforge/pkg/generation"
)

// Runner executes one generation request for a conversation and returns the
// reply text. Implementations adapt the two backend shapes in
// pkg/generation to a single call the executor can drive.
type Runner interface {
	Run(ctx context.Context, conversationID, prompt string) (string, error)
}

// SyncRunner adapts a synchronous-completion generation.Service.
type SyncRunner struct {
	service generation.Service
}

// NewSyncRunner creates a runner over a single-call generation backend.
func NewSyncRunner(service generation.Service) *SyncRunner {
	return &SyncRunner{service: service}
}

// Run generates the reply in one call.
func (r *SyncRunner) Run(ctx context.Context, _ string, prompt string) (string, error) {
	return r.service.Generate(ctx, prompt)
}

// ThreadRunner adapts an asynchronous generation.ThreadService: it binds one
// server-side thread per conversation, submits the prompt as a user message,
// starts a run and polls at a fixed interval until a terminal status.
type ThreadRunner struct {
	service      generation.ThreadService
	pollInterval time.Duration
	logger       *zap.Logger

	mu sync.Mutex
	// threads maps conversation id -> server-side thread id.
	threads map[string]string
}

// NewThreadRunner creates a runner over a hosted-assistant backend. A
// non-positive pollInterval falls back to DefaultPollInterval.
func NewThreadRunner(service generation.ThreadService, pollInterval time.Duration, logger *zap.Logger) *ThreadRunner {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	return &ThreadRunner{
		service:      service,
		pollInterval: pollInterval,
		logger:       logger,
		threads:      make(map[string]string),
	}
}

// Run submits the prompt to the conversation's thread and polls the run to
// completion. The overall deadline comes from ctx; expiry surfaces as the
// ctx error so the executor can map it to ErrTimedOut.
func (r *ThreadRunner) Run(ctx context.Context, conversationID, prompt string) (string, error) {
	threadID, err := r.ensureThread(ctx, conversationID)
	if err != nil {
		return "", fmt.Errorf("ensuring thread: %w", err)
	}

	if err := r.service.AddMessage(ctx, threadID, "user", prompt); err != nil {
		return "", fmt.Errorf("adding message: %w", err)
	}

	runID, err := r.service.StartRun(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("starting run: %w", err)
	}

	status, err := r.poll(ctx, threadID, runID)
	if err != nil {
		return "", err
	}

	if status != generation.StatusCompleted {
		return "", fmt.Errorf("%w: run finished with status %q", generation.ErrGeneration, status)
	}

	return r.service.LatestAssistantText(ctx, threadID)
}

// PrepareThread eagerly binds the conversation to a backend thread so the
// first turn doesn't pay the creation round-trip.
func (r *ThreadRunner) PrepareThread(ctx context.Context, conversationID string) error {
	_, err := r.ensureThread(ctx, conversationID)
	return err
}

// ensureThread resolves the conversation's thread id, creating one on first use.
func (r *ThreadRunner) ensureThread(ctx context.Context, conversationID string) (string, error) {
	r.mu.Lock()
	threadID, ok := r.threads[conversationID]
	r.mu.Unlock()
	if ok {
		return threadID, nil
	}

	threadID, err := r.service.CreateThread(ctx)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	// A concurrent call may have won; keep the first thread so the
	// conversation stays on a single thread.
	if existing, ok := r.threads[conversationID]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.threads[conversationID] = threadID
	r.mu.Unlock()

	r.logger.Debug("thread created for conversation",
		zap.String("conversation_id", conversationID),
		zap.String("thread_id", threadID),
	)

	return threadID, nil
}

// poll waits for the run to reach a terminal status, checking at the
// configured interval. Cooperative: the wait suspends on the ticker and the
// ctx, never busy-spins.
func (r *ThreadRunner) poll(ctx context.Context, threadID, runID string) (generation.Status, error) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		status, err := r.service.RunStatus(ctx, threadID, runID)
		if err != nil {
			return "", fmt.Errorf("retrieving run status: %w", err)
		}

		if status.Terminal() {
			return status, nil
		}
	}
}

// Ensure runners implement Runner
var (
	_ Runner         = (*SyncRunner)(nil)
	_ Runner         = (*ThreadRunner)(nil)
	_ ThreadPreparer = (*ThreadRunner)(nil)
)
