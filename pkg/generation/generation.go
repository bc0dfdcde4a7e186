// Package generation abstracts the external narrative-generation capability.
//
// Two backend shapes exist in the wild: synchronous single-call chat APIs
// (Ollama /api/chat, OpenAI /v1/chat/completions) and hosted-assistant APIs
// where a run is started against a thread and polled to completion. Service
// covers the first; ThreadService covers the second. The turn engine drives
// either through a Runner.
package generation

import (
	"context"
	"errors"
)

// ErrGeneration is returned when the generation backend errors or returns an
// unexpected payload.
var ErrGeneration = errors.New("generation failed")

// Status is a run's lifecycle state on an asynchronous backend.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusExpired    Status = "expired"
)

// Terminal reports whether the status is a run's final state.
func (s Status) Terminal() bool {
	switch s {
	case StatusQueued, StatusInProgress:
		return false
	}
	return true
}

// Service is a synchronous-completion generation backend.
type Service interface {
	// Generate produces text from prompt in a single call.
	Generate(ctx context.Context, prompt string) (string, error)

	// Close releases any resources held by the service.
	Close() error
}

// ThreadService is an asynchronous hosted-assistant generation backend.
// Callers append messages to a server-side thread, start a run, poll its
// status, and read the newest assistant message once the run completes.
type ThreadService interface {
	// CreateThread allocates a server-side thread and returns its id.
	CreateThread(ctx context.Context) (string, error)

	// AddMessage appends a message to the thread.
	AddMessage(ctx context.Context, threadID, role, content string) error

	// StartRun begins generation against the thread and returns a run id.
	StartRun(ctx context.Context, threadID string) (string, error)

	// RunStatus reports the run's current status.
	RunStatus(ctx context.Context, threadID, runID string) (Status, error)

	// LatestAssistantText returns the text of the thread's most recent
	// assistant message, empty when none exists.
	LatestAssistantText(ctx context.Context, threadID string) (string, error)

	// Close releases any resources held by the service.
	Close() error
}
