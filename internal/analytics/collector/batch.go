// Package collector buffers search events in memory and publishes them to
// the analytics stream in batches.
package collector

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/resilience"
)

// Publisher writes a batch of search events; *stream.Publisher satisfies it.
type Publisher interface {
	PublishSearchEvents(ctx context.Context, events []analytics.SearchEvent) error
}

// BatchCollector accumulates search events and publishes them either when
// the batch reaches a configurable size or after a time interval.
type BatchCollector struct {
	publisher     Publisher
	mu            sync.Mutex
	flushMu       sync.Mutex
	buffer        []analytics.SearchEvent
	batchSize     int
	flushInterval time.Duration
	retry         resilience.RetryConfig
	onDrop        func(n int)
	logger        *slog.Logger
	done          chan struct{}
	flushCh       chan struct{}
}

// NewBatchCollector creates a BatchCollector that flushes when the buffer
// reaches batchSize events or after flushInterval, whichever comes first.
func NewBatchCollector(publisher Publisher, batchSize int, flushInterval time.Duration) *BatchCollector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &BatchCollector{
		publisher:     publisher,
		buffer:        make([]analytics.SearchEvent, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Retryable: func(err error) bool {
				return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			},
		},
		logger:  slog.Default().With("component", "batch-collector"),
		done:    make(chan struct{}),
		flushCh: make(chan struct{}, 1),
	}
}

// OnDrop registers a callback invoked with the number of events discarded
// after the buffer overflowed.
func (bc *BatchCollector) OnDrop(fn func(n int)) {
	bc.onDrop = fn
}

// Start launches the background flush loop, which runs until ctx is
// cancelled and then performs a final flush.
func (bc *BatchCollector) Start(ctx context.Context) {
	go func() {
		defer close(bc.done)
		ticker := time.NewTicker(bc.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				bc.flush(ctx)
			case <-bc.flushCh:
				bc.flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				bc.flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	bc.logger.Info("batch collector started",
		"batch_size", bc.batchSize,
		"flush_interval", bc.flushInterval,
	)
}

// TrackSearch adds an event to the buffer. A full buffer wakes the flush
// loop; the caller never waits on the publisher.
func (bc *BatchCollector) TrackSearch(event analytics.SearchEvent) {
	bc.mu.Lock()
	bc.buffer = append(bc.buffer, event)
	shouldFlush := len(bc.buffer) >= bc.batchSize
	bc.mu.Unlock()

	if shouldFlush {
		select {
		case bc.flushCh <- struct{}{}:
		default:
		}
	}
}

// Close waits for the background flush loop to finish.
func (bc *BatchCollector) Close() {
	<-bc.done
}

// BufferLen returns the current number of buffered events.
func (bc *BatchCollector) BufferLen() int {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return len(bc.buffer)
}

// Flush publishes everything buffered so far.
func (bc *BatchCollector) Flush(ctx context.Context) {
	bc.flush(ctx)
}

func (bc *BatchCollector) flush(ctx context.Context) {
	bc.flushMu.Lock()
	defer bc.flushMu.Unlock()

	bc.mu.Lock()
	if len(bc.buffer) == 0 {
		bc.mu.Unlock()
		return
	}
	batch := bc.buffer
	bc.buffer = make([]analytics.SearchEvent, 0, bc.batchSize)
	bc.mu.Unlock()

	err := resilience.Retry(ctx, "analytics-flush", bc.retry, func() error {
		return bc.publisher.PublishSearchEvents(ctx, batch)
	})
	if err != nil {
		bc.logger.Error("batch flush failed",
			"batch_size", len(batch),
			"error", err,
		)
		bc.requeue(batch)
		return
	}

	bc.logger.Debug("batch flushed", "events", len(batch))
}

// requeue puts a failed batch back in front of newer events, keeping at
// most three batches' worth.
func (bc *BatchCollector) requeue(batch []analytics.SearchEvent) {
	bc.mu.Lock()
	bc.buffer = append(batch, bc.buffer...)
	dropped := 0
	if capacity := bc.batchSize * 3; len(bc.buffer) > capacity {
		dropped = len(bc.buffer) - capacity
		bc.buffer = bc.buffer[:capacity]
	}
	bc.mu.Unlock()

	if dropped > 0 {
		bc.logger.Warn("buffer overflow, events dropped", "dropped", dropped)
		if bc.onDrop != nil {
			bc.onDrop(dropped)
		}
	}
}
