// Package eventstream defines transport-neutral events emitted after
// conversational turns complete, with pluggable publisher backends.
package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnCompleted is emitted after an assistant reply is persisted.
	EventTypeTurnCompleted = "fableforge.turn.completed"
)

// TurnCompletedEvent is a transport-neutral event payload for one completed
// turn-exchange.
type TurnCompletedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	ConversationID string `json:"conversation_id"`
	CampaignID     string `json:"campaign_id"`

	UserText      string    `json:"user_text"`
	AssistantText string    `json:"assistant_text"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
	DurationMs    int64     `json:"duration_ms"`
}
