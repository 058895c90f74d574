// Package executor runs queries against the corpus, either as one
// synchronous scan or split into shards on a bounded worker pool.
package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/tracing"
)

type SearchResult struct {
	Query   string         `json:"query"`
	Matches []ranker.Match `json:"-"`
	Scanned int            `json:"scanned"`
	Shards  int            `json:"shards"`
	Elapsed time.Duration  `json:"elapsed"`
}

// Hit is the presentation form of a match.
type Hit struct {
	Score   uint32 `json:"score"`
	Text    string `json:"text"`
	Book    uint8  `json:"book"`
	Chapter uint8  `json:"chapter"`
	Verse   uint8  `json:"verse"`
}

// Hits converts matches to their presentation form, keeping order.
func Hits(matches []ranker.Match) []Hit {
	hits := make([]Hit, len(matches))
	for i, m := range matches {
		hits[i] = Hit{
			Score:   m.Score,
			Text:    m.Record.Text(),
			Book:    m.Record.Book,
			Chapter: m.Record.Chapter,
			Verse:   m.Record.Verse,
		}
	}
	return hits
}

// Executor scans the whole corpus on the calling goroutine.
type Executor struct {
	views  []corpus.View
	logger *slog.Logger
}

func New(arena *corpus.Arena) *Executor {
	return &Executor{
		views:  arena.Views(),
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Execute never fails; the error is there to satisfy the same interface
// as ShardedExecutor.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	_, span := tracing.StartChildSpan(ctx, "execute")
	defer span.End()

	start := time.Now()
	matches := ranker.Rank(plan.Normalized, e.views, limit)
	result := &SearchResult{
		Query:   plan.RawQuery,
		Matches: matches,
		Scanned: len(e.views),
		Shards:  1,
		Elapsed: time.Since(start),
	}
	span.SetAttr("results", len(matches))
	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"candidates", len(e.views),
		"results", len(matches),
		"elapsed", result.Elapsed,
	)
	return result, nil
}
