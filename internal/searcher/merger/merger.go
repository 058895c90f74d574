// Package merger combines per-shard top-K lists into one global top-K.
package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/searcher/ranker"
)

// Merge returns the best limit matches across all shard lists, ordered by
// score and then corpus position. The global top-K is always contained in
// the union of the shard top-K lists, so nothing outside them is needed.
func Merge(shardResults [][]ranker.Match, limit int) []ranker.Match {
	if limit <= 0 {
		return []ranker.Match{}
	}
	h := &worstFirst{}
	heap.Init(h)
	for _, results := range shardResults {
		for _, m := range results {
			heap.Push(h, m)
			if h.Len() > limit {
				heap.Pop(h)
			}
		}
	}
	result := make([]ranker.Match, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ranker.Match)
	}
	return result
}

// worstFirst is a heap whose root is the worst retained match.
type worstFirst []ranker.Match

func (h worstFirst) Len() int { return len(h) }

func (h worstFirst) Less(i, j int) bool {
	return h[j].Before(h[i])
}

func (h worstFirst) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *worstFirst) Push(x interface{}) {
	*h = append(*h, x.(ranker.Match))
}

func (h *worstFirst) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
