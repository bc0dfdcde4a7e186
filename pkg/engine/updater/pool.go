// Package updater provides the asynchronous post-turn memory pipeline.
//
// The pool decouples memory bookkeeping from the turn's reply path: once an
// assistant reply has been delivered, the completed exchange is enqueued
// here and workers summarize it, extract facts, and refresh the campaign
// canon. Every step is best-effort enrichment; a failed step is logged and
// never rolls back earlier steps or blocks the reply already returned.
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fableforge/fableforge/pkg/generation"
	"github.com/fableforge/fableforge/pkg/memory"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is one completed turn-exchange for the pool to process.
type Job struct {
	CampaignID     string
	ConversationID string
	UserText       string
	AssistantText  string
}

// Config is the configuration options for the updater pool.
type Config struct {
	// Index is the memory index receiving scenes, facts, and canon.
	Index memory.Index

	// Generator produces summaries, fact lists, and canon rewrites.
	Generator generation.Service

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool processes memory update jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	p := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}

	return p, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job
// being dropped.
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("memory update queued",
			zap.String("campaign_id", job.CampaignID),
			zap.String("conversation_id", job.ConversationID),
		)
		return true
	default:
		p.logger.Error("memory update not queued, queue full, job dropped",
			zap.String("campaign_id", job.CampaignID),
			zap.String("conversation_id", job.ConversationID),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the API server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("updater worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("updater worker stopped", zap.Uint("worker_id", id))
}

// processJob runs the three memory update steps in order. Failures are
// logged per step and do not stop the remaining steps.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	p.recordScene(ctx, job)
	p.recordFacts(ctx, job)
	p.updateCanon(ctx, job)

	p.logger.Info("memory updated",
		zap.String("campaign_id", job.CampaignID),
		zap.String("conversation_id", job.ConversationID),
	)
}

// recordScene summarizes the exchange into 1-2 sentences and stores it as
// episodic memory.
func (p *Pool) recordScene(ctx context.Context, job Job) {
	summary, err := p.config.Generator.Generate(ctx, summarizePrompt(job))
	if err != nil {
		p.logger.Warn("failed to summarize exchange",
			zap.String("campaign_id", job.CampaignID),
			zap.Error(err),
		)
		return
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		p.logger.Debug("empty scene summary, skipping",
			zap.String("campaign_id", job.CampaignID),
		)
		return
	}

	if err := p.config.Index.RecordScene(ctx, job.CampaignID, summary); err != nil {
		p.logger.Warn("failed to record scene",
			zap.String("campaign_id", job.CampaignID),
			zap.Error(err),
		)
	}
}

// recordFacts extracts discrete statements (one per line, blanks discarded)
// and stores each as factual memory.
func (p *Pool) recordFacts(ctx context.Context, job Job) {
	raw, err := p.config.Generator.Generate(ctx, extractFactsPrompt(job))
	if err != nil {
		p.logger.Warn("failed to extract facts",
			zap.String("campaign_id", job.CampaignID),
			zap.Error(err),
		)
		return
	}

	for _, line := range strings.Split(raw, "\n") {
		fact := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if fact == "" {
			continue
		}

		if err := p.config.Index.RecordFact(ctx, job.CampaignID, fact); err != nil {
			p.logger.Warn("failed to record fact",
				zap.String("campaign_id", job.CampaignID),
				zap.Error(err),
			)
		}
	}
}

// updateCanon asks the generator for a full canon rewrite given the prior
// canon and the new exchange. A response that doesn't parse as a JSON object
// keeps the previous canon unchanged - a malformed model response must never
// corrupt persisted world state.
func (p *Pool) updateCanon(ctx context.Context, job Job) {
	prior, err := p.config.Index.Canon(ctx, job.CampaignID)
	if err != nil {
		p.logger.Warn("failed to read canon, skipping canon update",
			zap.String("campaign_id", job.CampaignID),
			zap.Error(err),
		)
		return
	}

	next := prior

	raw, err := p.config.Generator.Generate(ctx, rewriteCanonPrompt(prior, job))
	if err != nil {
		p.logger.Warn("canon rewrite generation failed, keeping prior canon",
			zap.String("campaign_id", job.CampaignID),
			zap.Error(err),
		)
	} else {
		// A JSON null unmarshals into a nil map without error; treat it the
		// same as a parse failure so a degenerate rewrite cannot erase the
		// campaign's world state.
		var parsed memory.Canon
		if parseErr := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); parseErr != nil || parsed == nil {
			p.logger.Warn("canon rewrite unparsable, keeping prior canon",
				zap.String("campaign_id", job.CampaignID),
				zap.Error(parseErr),
			)
		} else {
			next = parsed
		}
	}

	if err := p.config.Index.SetCanon(ctx, job.CampaignID, next); err != nil {
		p.logger.Warn("failed to persist canon",
			zap.String("campaign_id", job.CampaignID),
			zap.Error(err),
		)
	}
}

// extractJSONObject trims everything outside the outermost braces so fenced
// or prose-wrapped model output still parses.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return raw
	}
	return raw[start : end+1]
}
