package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/config"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

// fakeReader serves queued messages, then cancels the run once drained.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	fetchErrs []error
	committed []int64
	cancel    context.CancelFunc
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.fetchErrs) > 0 {
		err := f.fetchErrs[0]
		f.fetchErrs = f.fetchErrs[1:]
		return kafka.Message{}, err
	}
	if len(f.queue) == 0 {
		f.cancel()
		return kafka.Message{}, ctx.Err()
	}
	msg := f.queue[0]
	f.queue = f.queue[1:]
	return msg, nil
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func encoded(t *testing.T, offset int64, e analytics.SearchEvent) kafka.Message {
	t.Helper()
	msg, err := encode(e)
	require.NoError(t, err)
	msg.Offset = offset
	return msg
}

func TestPublishSearchEvents(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{writer: w, topic: "search-analytics", logger: slog.Default()}
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	err := p.PublishSearchEvents(context.Background(), []analytics.SearchEvent{
		{Query: "Jesus Wept", Normalized: "jesus wept", Returned: 1, Timestamp: ts},
		{Query: "ZZZ", Returned: 0},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)

	assert.Equal(t, "jesus wept", string(w.msgs[0].Key))
	assert.Equal(t, ts, w.msgs[0].Time)
	assert.Equal(t, []kafka.Header{{Key: schemaHeader, Value: []byte(schemaV1)}}, w.msgs[0].Headers)
	assert.Equal(t, "ZZZ", string(w.msgs[1].Key), "raw query keys events with no normalized form")

	got, err := decode(w.msgs[0])
	require.NoError(t, err)
	assert.Equal(t, "Jesus Wept", got.Query)
	assert.Equal(t, 1, got.Returned)
}

func TestPublishEmptyBatchWritesNothing(t *testing.T) {
	w := &fakeWriter{err: errors.New("must not be called")}
	p := &Publisher{writer: w, topic: "t", logger: slog.Default()}
	assert.NoError(t, p.PublishSearchEvents(context.Background(), nil))
}

func TestPublishWrapsWriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := &Publisher{writer: w, topic: "search-analytics", logger: slog.Default()}
	err := p.PublishSearchEvents(context.Background(), []analytics.SearchEvent{{Query: "a"}})
	assert.ErrorContains(t, err, "publishing 1 search events to search-analytics")
}

func TestDecodeRejectsBadMessages(t *testing.T) {
	_, err := decode(kafka.Message{Value: []byte("{")})
	assert.ErrorIs(t, err, ErrMalformedEvent)

	_, err = decode(kafka.Message{
		Value:   []byte(`{"query":"a"}`),
		Headers: []kafka.Header{{Key: schemaHeader, Value: []byte("search-event/v9")}},
	})
	assert.ErrorIs(t, err, ErrUnknownSchema)

	e, err := decode(kafka.Message{Value: []byte(`{"query":"a","returned":2}`)})
	require.NoError(t, err)
	assert.Equal(t, 2, e.Returned)
}

func TestRunSkipsUndecodableAndLeavesFailedUncommitted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bad := kafka.Message{Offset: 2, Value: []byte("not json")}
	r := &fakeReader{
		cancel:    cancel,
		fetchErrs: []error{errors.New("broker restarting")},
		queue: []kafka.Message{
			encoded(t, 1, analytics.SearchEvent{Normalized: "wept", Returned: 1}),
			bad,
			encoded(t, 3, analytics.SearchEvent{Normalized: "fail", Returned: 1}),
			encoded(t, 4, analytics.SearchEvent{Normalized: "love", Returned: 3}),
		},
	}
	s := &Subscriber{reader: r, backoff: time.Millisecond, logger: slog.Default()}
	var skipped []error
	s.OnSkip(func(err error) { skipped = append(skipped, err) })

	var handled []string
	err := s.Run(ctx, func(ctx context.Context, e analytics.SearchEvent) error {
		handled = append(handled, e.Normalized)
		if e.Normalized == "fail" {
			return errors.New("store down")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"wept", "fail", "love"}, handled)
	assert.Equal(t, []int64{1, 2, 4}, r.committed)
	require.Len(t, skipped, 1)
	assert.ErrorIs(t, skipped[0], ErrMalformedEvent)
}

func TestNewPublisherDoesNotDial(t *testing.T) {
	p := NewPublisher(config.KafkaConfig{Brokers: []string{"localhost:1"}, AnalyticsTopic: "search-analytics"})
	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "search-analytics", w.Topic)
	assert.NoError(t, p.Close())
}
