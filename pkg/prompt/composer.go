// Package prompt composes the bounded context sent to the generation
// service for one conversational turn: canon state, the most relevant scene
// summaries, the most relevant facts, then the player's utterance, each
// under a delimited section so the narrator can tell context from the live
// turn.
package prompt

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/fableforge/fableforge/pkg/memory"
)

// Section headers. The generation service is instructed to treat everything
// above the player section as background, never as the current action.
const (
	canonHeader     = "### WORLD STATE (canon)"
	scenesHeader    = "### PAST SCENES"
	factsHeader     = "### KNOWN FACTS"
	utteranceHeader = "### PLAYER"
)

// Composer builds generation prompts from campaign memory.
type Composer struct {
	index  memory.Index
	topK   int
	logger *zap.Logger
}

// Config holds configuration for the composer.
type Config struct {
	// TopK is the number of scenes and facts retrieved per turn.
	// Defaults to memory.DefaultLimit when non-positive.
	TopK int
}

// NewComposer creates a prompt composer over the given memory index.
func NewComposer(c Config, index memory.Index, logger *zap.Logger) *Composer {
	topK := c.TopK
	if topK <= 0 {
		topK = memory.DefaultLimit
	}

	return &Composer{
		index:  index,
		topK:   topK,
		logger: logger,
	}
}

// Compose builds the prompt for one turn. Missing memory kinds are omitted
// rather than failing: an empty campaign still produces a valid prompt
// containing the utterance. Retrieval failures degrade to omission and are
// logged.
func (c *Composer) Compose(ctx context.Context, campaignID, utterance string) (string, error) {
	var b strings.Builder

	if canonSection := c.canonSection(ctx, campaignID); canonSection != "" {
		b.WriteString(canonSection)
	}

	if scenes := c.querySection(ctx, campaignID, utterance, memory.KindScene); len(scenes) > 0 {
		writeSection(&b, scenesHeader, scenes)
	}

	if facts := c.querySection(ctx, campaignID, utterance, memory.KindFact); len(facts) > 0 {
		writeSection(&b, factsHeader, facts)
	}

	b.WriteString(utteranceHeader)
	b.WriteString("\n")
	b.WriteString(utterance)
	b.WriteString("\n")

	return b.String(), nil
}

func (c *Composer) canonSection(ctx context.Context, campaignID string) string {
	canon, err := c.index.Canon(ctx, campaignID)
	if err != nil {
		c.logger.Warn("failed to fetch canon, omitting from prompt",
			zap.String("campaign_id", campaignID),
			zap.Error(err),
		)
		return ""
	}

	if len(canon) == 0 {
		return ""
	}

	encoded, err := json.Marshal(canon)
	if err != nil {
		c.logger.Warn("failed to encode canon, omitting from prompt",
			zap.String("campaign_id", campaignID),
			zap.Error(err),
		)
		return ""
	}

	return canonHeader + "\n" + string(encoded) + "\n\n"
}

func (c *Composer) querySection(ctx context.Context, campaignID, utterance string, kind memory.Kind) []string {
	entries, err := c.index.QueryRelevant(ctx, campaignID, utterance, kind, c.topK)
	if err != nil {
		c.logger.Warn("memory retrieval failed, omitting from prompt",
			zap.String("campaign_id", campaignID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return nil
	}
	return entries
}

func writeSection(b *strings.Builder, header string, lines []string) {
	b.WriteString(header)
	b.WriteString("\n")
	for _, line := range lines {
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}
