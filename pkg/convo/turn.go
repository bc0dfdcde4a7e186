// Package convo defines the conversation model: an append-only log of turns
// bound to a campaign. The Store interface is the leaf dependency for the
// turn engine and the session binder.
package convo

import "time"

// Turn roles. A conversation's first turn carries RoleSystem when a system
// preamble is configured on the store.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single message in a conversation's log. Turns are immutable once
// appended; append order defines causal order.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is a durable dialogue session bound to one campaign and,
// optionally, one player.
type Conversation struct {
	ID         string    `json:"id"`
	CampaignID string    `json:"campaign_id"`
	PlayerID   string    `json:"player_id,omitempty"`
	Turns      []Turn    `json:"turns"`
	CreatedAt  time.Time `json:"created_at"`
}

// LastTurn returns the most recently appended turn, or nil for an empty log.
func (c *Conversation) LastTurn() *Turn {
	if len(c.Turns) == 0 {
		return nil
	}
	return &c.Turns[len(c.Turns)-1]
}
