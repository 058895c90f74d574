package stream

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/config"
)

const fetchBackoff = time.Second

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// HandlerFunc processes one decoded search event.
type HandlerFunc func(ctx context.Context, event analytics.SearchEvent) error

// Subscriber reads search events from the analytics topic as part of a
// consumer group.
type Subscriber struct {
	reader  messageReader
	onSkip  func(err error)
	backoff time.Duration
	logger  *slog.Logger
}

// NewSubscriber joins cfg.ConsumerGroup on cfg.AnalyticsTopic. A group with
// no committed offsets starts from the oldest retained event, so a fresh
// analytics service rebuilds its aggregate from history.
func NewSubscriber(cfg config.KafkaConfig) *Subscriber {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.AnalyticsTopic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    1 << 20,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
	})
	return &Subscriber{
		reader:  r,
		backoff: fetchBackoff,
		logger:  slog.Default().With("component", "event-subscriber", "topic", cfg.AnalyticsTopic),
	}
}

// OnSkip registers a callback for messages that were committed without
// being handled because they could not be decoded.
func (s *Subscriber) OnSkip(fn func(err error)) {
	s.onSkip = fn
}

// Run hands each event to handle until ctx is cancelled. Undecodable
// messages are committed and skipped. A message whose handler fails is not
// committed, so it is redelivered after a rebalance or restart.
func (s *Subscriber) Run(ctx context.Context, handle HandlerFunc) error {
	s.logger.Info("subscriber started")
	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("subscriber stopping", "reason", ctx.Err())
				return nil
			}
			s.logger.Error("failed to fetch message", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.backoff):
			}
			continue
		}

		event, err := decode(msg)
		if err != nil {
			s.logger.Warn("skipping search event",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			if s.onSkip != nil {
				s.onSkip(err)
			}
			s.commit(ctx, msg)
			continue
		}

		if err := handle(ctx, event); err != nil {
			s.logger.Error("failed to handle search event",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"query", event.Normalized,
				"error", err,
			)
			continue
		}
		s.commit(ctx, msg)
	}
}

func (s *Subscriber) commit(ctx context.Context, msg kafka.Message) {
	if err := s.reader.CommitMessages(ctx, msg); err != nil {
		s.logger.Error("failed to commit message",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
	}
}

// Close leaves the consumer group.
func (s *Subscriber) Close() error {
	return s.reader.Close()
}
