package updater

import (
	"encoding/json"
	"fmt"
)

const summarizeTemplate = `Summarize the following game exchange in 1-2 sentences. Capture what happened, where, and to whom. Output only the summary.

Player: %s
Game Master: %s`

const extractFactsTemplate = `Extract the discrete new facts established by this game exchange. Output one fact per line, no numbering, no commentary. Output nothing if no new facts were established.

Player: %s
Game Master: %s`

const rewriteCanonTemplate = `You maintain the authoritative world state of a roleplaying campaign as a JSON object (locations, NPC status, plot flags). Given the current state and the latest exchange, output ONLY the complete updated JSON object. No prose.

Current state:
%s

Player: %s
Game Master: %s`

func summarizePrompt(job Job) string {
	return fmt.Sprintf(summarizeTemplate, job.UserText, job.AssistantText)
}

func extractFactsPrompt(job Job) string {
	return fmt.Sprintf(extractFactsTemplate, job.UserText, job.AssistantText)
}

func rewriteCanonPrompt(prior map[string]any, job Job) string {
	encoded, err := json.Marshal(prior)
	if err != nil {
		encoded = []byte("{}")
	}
	return fmt.Sprintf(rewriteCanonTemplate, string(encoded), job.UserText, job.AssistantText)
}
