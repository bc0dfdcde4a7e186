package convo

import "context"

// Store persists conversations and their turn logs.
//
// Implementations must preserve append order exactly as received - callers
// reconstruct dialogue from the returned order. The interface makes no
// in-memory assumption; implementations may back it with any durable store.
type Store interface {
	// Create allocates a fresh conversation for a campaign. playerID may be
	// empty. If the store is configured with a system preamble, it is
	// recorded as the first turn with RoleSystem.
	Create(ctx context.Context, campaignID, playerID string) (string, error)

	// Append records a turn at the end of the conversation's log.
	// Returns a NotFoundError if the conversation is unknown.
	Append(ctx context.Context, conversationID, role, content string) error

	// Turns returns the conversation's turns in append order.
	// Returns a NotFoundError if the conversation is unknown.
	Turns(ctx context.Context, conversationID string) ([]Turn, error)

	// Get returns the full conversation record.
	// Returns a NotFoundError if the conversation is unknown.
	Get(ctx context.Context, conversationID string) (*Conversation, error)

	// Close releases any resources held by the store.
	Close() error
}
