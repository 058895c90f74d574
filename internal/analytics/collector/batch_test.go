package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/analytics"
)

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]analytics.SearchEvent
	fail    int
}

func (f *fakePublisher) PublishSearchEvents(ctx context.Context, events []analytics.SearchEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail > 0 {
		f.fail--
		return errors.New("broker unavailable")
	}
	f.batches = append(f.batches, append([]analytics.SearchEvent(nil), events...))
	return nil
}

func (f *fakePublisher) published() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func event(i int) analytics.SearchEvent {
	q := fmt.Sprintf("q%d", i)
	return analytics.SearchEvent{Query: q, Normalized: q, Returned: 1}
}

func TestFlushPublishesBufferedEvents(t *testing.T) {
	pub := &fakePublisher{}
	bc := NewBatchCollector(pub, 10, time.Hour)

	bc.TrackSearch(analytics.SearchEvent{Query: "Wept", Normalized: "wept", Returned: 1})
	bc.TrackSearch(analytics.SearchEvent{Query: "love", Normalized: "love", Returned: 3})
	assert.Equal(t, 2, bc.BufferLen())

	bc.Flush(context.Background())
	assert.Equal(t, 0, bc.BufferLen())
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "wept", pub.batches[0][0].Normalized)
}

func TestFlushRetriesTransientFailure(t *testing.T) {
	pub := &fakePublisher{fail: 1}
	bc := NewBatchCollector(pub, 10, time.Hour)
	bc.TrackSearch(event(0))

	bc.Flush(context.Background())
	assert.Equal(t, 1, pub.published())
	assert.Equal(t, 0, bc.BufferLen())
}

func TestFailedBatchIsRequeuedAndBounded(t *testing.T) {
	pub := &fakePublisher{fail: 1000}
	bc := NewBatchCollector(pub, 2, time.Hour)
	bc.retry.MaxAttempts = 1
	var dropped int
	bc.OnDrop(func(n int) { dropped += n })

	for i := 0; i < 8; i++ {
		bc.TrackSearch(event(i))
	}
	bc.Flush(context.Background())
	assert.Equal(t, 6, bc.BufferLen())
	assert.Equal(t, 2, dropped)
}

func TestFullBufferTriggersBackgroundFlush(t *testing.T) {
	pub := &fakePublisher{}
	bc := NewBatchCollector(pub, 3, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	bc.Start(ctx)

	for i := 0; i < 3; i++ {
		bc.TrackSearch(event(i))
	}
	assert.Eventually(t, func() bool { return pub.published() == 3 }, time.Second, 5*time.Millisecond)

	bc.TrackSearch(event(99))
	cancel()
	bc.Close()
	assert.Equal(t, 4, pub.published())
}
