package stream

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/config"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes search events to the analytics topic.
type Publisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewPublisher creates a Publisher for cfg.AnalyticsTopic. No connection is
// made until the first write.
func NewPublisher(cfg config.KafkaConfig) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.AnalyticsTopic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Lz4,
	}
	return &Publisher{
		writer: w,
		topic:  cfg.AnalyticsTopic,
		logger: slog.Default().With("component", "event-publisher", "topic", cfg.AnalyticsTopic),
	}
}

// PublishSearchEvents writes events in one call. An event that cannot be
// encoded fails the whole batch before anything is sent.
func (p *Publisher) PublishSearchEvents(ctx context.Context, events []analytics.SearchEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		msg, err := encode(e)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publishing %d search events to %s: %w", len(msgs), p.topic, err)
	}
	p.logger.Debug("search events published", "count", len(msgs))
	return nil
}

// Close flushes pending writes.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
