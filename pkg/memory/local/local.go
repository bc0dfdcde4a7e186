// Package local provides an in-process implementation of the memory.Index
// interface.
//
// Scenes and facts are embedded through the injected embedder and held in
// per-campaign slices; relevance queries rank by cosine similarity. This is
// a local-dev and test story - durable deployments use the sqlite-vec index.
package local

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/fableforge/fableforge/pkg/embeddings"
	"github.com/fableforge/fableforge/pkg/memory"
)

// entry is a stored scene or fact with its embedding.
type entry struct {
	text      string
	embedding []float32
	createdAt time.Time
}

// Index implements memory.Index using in-process data structures.
type Index struct {
	embedder embeddings.Embedder

	mu sync.RWMutex

	// scenes and facts map campaign id -> append-only entries.
	scenes map[string][]entry
	facts  map[string][]entry

	// canons maps campaign id -> current canon state.
	canons map[string]memory.Canon
}

// NewIndex creates a local in-process memory index.
func NewIndex(embedder embeddings.Embedder) *Index {
	return &Index{
		embedder: embedder,
		scenes:   make(map[string][]entry),
		facts:    make(map[string][]entry),
		canons:   make(map[string]memory.Canon),
	}
}

// RecordScene embeds summary and appends it to the campaign's episodic memory.
func (i *Index) RecordScene(ctx context.Context, campaignID, summary string) error {
	return i.record(ctx, i.scenes, campaignID, summary)
}

// RecordFact embeds fact and appends it to the campaign's factual memory.
func (i *Index) RecordFact(ctx context.Context, campaignID, fact string) error {
	return i.record(ctx, i.facts, campaignID, fact)
}

func (i *Index) record(ctx context.Context, dst map[string][]entry, campaignID, text string) error {
	embedding, err := i.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding entry: %w", err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	dst[campaignID] = append(dst[campaignID], entry{
		text:      text,
		embedding: embedding,
		createdAt: time.Now().UTC(),
	})
	return nil
}

// QueryRelevant returns up to limit entries of the requested kind ranked by
// cosine similarity to query, most relevant first.
func (i *Index) QueryRelevant(ctx context.Context, campaignID, query string, kind memory.Kind, limit int) ([]string, error) {
	if limit <= 0 {
		limit = memory.DefaultLimit
	}

	var src map[string][]entry
	switch kind {
	case memory.KindScene:
		src = i.scenes
	case memory.KindFact:
		src = i.facts
	default:
		return nil, fmt.Errorf("%w: %q", memory.ErrUnknownKind, kind)
	}

	i.mu.RLock()
	stored := src[campaignID]
	i.mu.RUnlock()

	if len(stored) == 0 {
		return []string{}, nil
	}

	queryEmbedding, err := i.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	type scored struct {
		text  string
		score float64
	}

	ranked := make([]scored, 0, len(stored))
	for _, e := range stored {
		ranked = append(ranked, scored{
			text:  e.text,
			score: cosineSimilarity(queryEmbedding, e.embedding),
		})
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	texts := make([]string, len(ranked))
	for n, r := range ranked {
		texts[n] = r.text
	}
	return texts, nil
}

// Canon returns the campaign's canon state, defaulting to an empty mapping.
func (i *Index) Canon(_ context.Context, campaignID string) (memory.Canon, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	c, ok := i.canons[campaignID]
	if !ok {
		return memory.Canon{}, nil
	}

	// Return a copy to avoid callers mutating internal state.
	out := make(memory.Canon, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out, nil
}

// SetCanon replaces the campaign's canon state wholesale.
func (i *Index) SetCanon(_ context.Context, campaignID string, c memory.Canon) error {
	stored := make(memory.Canon, len(c))
	for k, v := range c {
		stored[k] = v
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.canons[campaignID] = stored
	return nil
}

// Close is a no-op for the in-process index.
func (i *Index) Close() error {
	return nil
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero-magnitude vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for n := range a {
		dot += float64(a[n]) * float64(b[n])
		magA += float64(a[n]) * float64(a[n])
		magB += float64(b[n]) * float64(b[n])
	}

	if magA == 0 || magB == 0 {
		return 0
	}

	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// Ensure Index implements memory.Index
var _ memory.Index = (*Index)(nil)
