package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/tracing"
)

// Shard is a contiguous range [Start, End) of corpus positions.
type Shard struct {
	ID    int `json:"id"`
	Start int `json:"start"`
	End   int `json:"end"`
}

func (s Shard) Len() int { return s.End - s.Start }

// Partition splits n records into at most shardCount contiguous shards of
// ceil(n/shardCount) records; the last one may be shorter. Shards that
// would be empty are omitted.
func Partition(n, shardCount int) []Shard {
	if n <= 0 || shardCount <= 0 {
		return nil
	}
	size := (n + shardCount - 1) / shardCount
	shards := make([]Shard, 0, shardCount)
	for start := 0; start < n; start += size {
		shards = append(shards, Shard{
			ID:    len(shards),
			Start: start,
			End:   min(start+size, n),
		})
	}
	return shards
}

// ShardedExecutor scores each shard independently on a worker pool whose
// size is fixed at construction and shared by all concurrent queries, then
// merges the shard top-K lists. Shards only read the arena and write their
// own result slot, so the scan needs no locking.
type ShardedExecutor struct {
	views   []corpus.View
	shards  []Shard
	workers int
	pool    *semaphore.Weighted
	logger  *slog.Logger
}

func NewSharded(arena *corpus.Arena, shardCount, workers int) (*ShardedExecutor, error) {
	if shardCount < 1 {
		return nil, fmt.Errorf("shard count must be at least 1, got %d", shardCount)
	}
	if workers < 1 {
		return nil, fmt.Errorf("worker count must be at least 1, got %d", workers)
	}
	views := arena.Views()
	se := &ShardedExecutor{
		views:   views,
		shards:  Partition(len(views), shardCount),
		workers: workers,
		pool:    semaphore.NewWeighted(int64(workers)),
		logger:  slog.Default().With("component", "sharded-executor"),
	}
	se.logger.Info("sharded executor ready",
		"records", len(views),
		"shards", len(se.shards),
		"workers", workers,
	)
	return se, nil
}

// Shards returns the partition in use.
func (se *ShardedExecutor) Shards() []Shard {
	out := make([]Shard, len(se.shards))
	copy(out, se.shards)
	return out
}

// Workers returns the pool size.
func (se *ShardedExecutor) Workers() int {
	return se.workers
}

// Execute fails only when ctx ends while shards are still waiting for a
// worker; a shard that has started scanning always runs to completion.
func (se *ShardedExecutor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	ctx, span := tracing.StartChildSpan(ctx, "sharded-execute")
	defer span.End()

	start := time.Now()
	shardResults, err := se.fanOut(ctx, plan, limit)
	if err != nil {
		return nil, fmt.Errorf("shard fan-out: %w", err)
	}
	merged := merger.Merge(shardResults, limit)

	result := &SearchResult{
		Query:   plan.RawQuery,
		Matches: merged,
		Scanned: len(se.views),
		Shards:  len(se.shards),
		Elapsed: time.Since(start),
	}
	span.SetAttr("shards", len(se.shards))
	span.SetAttr("results", len(merged))
	se.logger.Debug("sharded query executed",
		"query", plan.RawQuery,
		"shards_queried", len(se.shards),
		"results", len(merged),
		"elapsed", result.Elapsed,
	)
	return result, nil
}

func (se *ShardedExecutor) fanOut(ctx context.Context, plan *parser.QueryPlan, limit int) ([][]ranker.Match, error) {
	results := make([][]ranker.Match, len(se.shards))
	var g errgroup.Group
	for i, sh := range se.shards {
		if err := se.pool.Acquire(ctx, 1); err != nil {
			// Shards already started still own their slots; wait for them
			// before reporting.
			_ = g.Wait()
			return nil, fmt.Errorf("waiting for worker for shard %d: %w", sh.ID, err)
		}
		g.Go(func() error {
			defer se.pool.Release(1)
			results[i] = ranker.Rank(plan.Normalized, se.views[sh.Start:sh.End], limit)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
