// Package kafka publishes turn events to a Kafka topic via segmentio/kafka-go.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/fableforge/fableforge/pkg/eventstream"
)

// DefaultTopic is the topic turn events are written to when none is configured.
const DefaultTopic = "fableforge.turns"

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers is the list of bootstrap broker addresses. Required.
	Brokers []string

	// Topic is the destination topic. Defaults to DefaultTopic.
	Topic string
}

// Publisher implements eventstream.Publisher over a Kafka topic. Events are
// keyed by campaign id so one campaign's events stay ordered within a
// partition.
type Publisher struct {
	writer *kafkago.Writer
	logger *zap.Logger
}

// NewPublisher creates a Kafka-backed turn event publisher.
func NewPublisher(c Config, logger *zap.Logger) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}

	topic := c.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(c.Brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		WriteTimeout: 10 * time.Second,
		// Turn events are best-effort enrichment; one ack is enough.
		RequiredAcks: kafkago.RequireOne,
	}

	logger.Info("kafka eventstream publisher initialized",
		zap.Strings("brokers", c.Brokers),
		zap.String("topic", topic),
	)

	return &Publisher{
		writer: writer,
		logger: logger,
	}, nil
}

// PublishTurn writes the event to the configured topic.
func (p *Publisher) PublishTurn(ctx context.Context, event *eventstream.TurnCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding turn event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(event.CampaignID),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("writing turn event: %w", err)
	}

	p.logger.Debug("published turn event",
		zap.String("event_id", event.EventID),
		zap.String("campaign_id", event.CampaignID),
	)

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Ensure Publisher implements eventstream.Publisher
var _ eventstream.Publisher = (*Publisher)(nil)
