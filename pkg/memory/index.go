// Package memory provides the campaign memory index: append-only scene
// summaries and facts with similarity-ranked retrieval, plus one mutable
// canon state blob per campaign.
//
// Scenes are short recaps of completed turn-exchanges. Facts are single
// extracted statements. Canon is the authoritative current-world-state
// mapping, owned by the post-turn updater and read at prompt composition.
//
// Implementations are pluggable via configuration:
//
//	[memory]
//	provider = "local"   # or "sqlite"
package memory

import "context"

// Kind selects which memory kind a retrieval query runs against.
type Kind string

const (
	// KindScene selects episodic memory (scene summaries).
	KindScene Kind = "scene"

	// KindFact selects factual memory (extracted statements).
	KindFact Kind = "fact"
)

// DefaultLimit is the number of entries a relevance query returns when the
// caller passes a non-positive limit.
const DefaultLimit = 8

// Canon is the current-world-state mapping for a campaign. Updates are
// full-replace, never field-level patches.
type Canon map[string]any

// Index stores and recalls campaign memory.
type Index interface {
	// RecordScene embeds summary and stores it append-only for the campaign.
	RecordScene(ctx context.Context, campaignID, summary string) error

	// RecordFact embeds fact and stores it append-only for the campaign.
	RecordFact(ctx context.Context, campaignID, fact string) error

	// QueryRelevant embeds query and returns up to limit stored entries of
	// the requested kind, most relevant first. A campaign with no stored
	// entries yields an empty result, not an error. A non-positive limit
	// falls back to DefaultLimit.
	QueryRelevant(ctx context.Context, campaignID, query string, kind Kind, limit int) ([]string, error)

	// Canon returns the campaign's canon state, or an empty Canon when none
	// has been recorded.
	Canon(ctx context.Context, campaignID string) (Canon, error)

	// SetCanon replaces the campaign's canon state wholesale and records an
	// update timestamp.
	SetCanon(ctx context.Context, campaignID string, c Canon) error

	// Close releases index resources.
	Close() error
}
