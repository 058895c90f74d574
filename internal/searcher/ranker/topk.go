package ranker

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/corpus"
)

// DefaultK is the conventional result count.
const DefaultK = 10

// Match is a scored verse.
type Match struct {
	Record corpus.View
	Score  uint32
}

// Before orders matches by score, then by corpus position.
func (m Match) Before(other Match) bool {
	if m.Score != other.Score {
		return m.Score < other.Score
	}
	return m.Record.Index < other.Record.Index
}

// TopK keeps the k best matches seen so far, sorted best first.
type TopK struct {
	k       int
	matches []Match
}

func NewTopK(k int) *TopK {
	if k < 0 {
		k = 0
	}
	return &TopK{k: k, matches: make([]Match, 0, min(k, 64))}
}

// Len returns the number of retained matches.
func (t *TopK) Len() int { return len(t.matches) }

// Full reports whether k matches are retained.
func (t *TopK) Full() bool { return len(t.matches) >= t.k }

// Limit is the score a candidate arriving after every retained match in
// corpus order has to beat strictly. It is NoLimit until the set is full,
// so nothing is rejected while fewer than k matches are held.
func (t *TopK) Limit() uint32 {
	if !t.Full() {
		return NoLimit
	}
	if t.k == 0 {
		return 0
	}
	return t.matches[len(t.matches)-1].Score
}

// Push inserts m in order and drops whatever falls past k. It reports
// whether m was retained.
func (t *TopK) Push(m Match) bool {
	pos := sort.Search(len(t.matches), func(i int) bool {
		return m.Before(t.matches[i])
	})
	if pos >= t.k {
		return false
	}
	if len(t.matches) < t.k {
		t.matches = append(t.matches, Match{})
	}
	copy(t.matches[pos+1:], t.matches[pos:len(t.matches)-1])
	t.matches[pos] = m
	return true
}

// Results returns the retained matches, best first.
func (t *TopK) Results() []Match {
	out := make([]Match, len(t.matches))
	copy(out, t.matches)
	return out
}

// Rank scores every view against an already normalized query and returns
// at most k matches ordered by score, ties in corpus order. Views must be
// in ascending Index order.
func Rank(query []rune, views []corpus.View, k int) []Match {
	top := NewTopK(k)
	if k <= 0 {
		return top.Results()
	}
	for _, v := range views {
		limit := top.Limit()
		if limit == 0 {
			// A full set of zero scores cannot be improved on by later views.
			break
		}
		score, ok := ScoreWithin(query, v.Search, limit)
		if !ok {
			continue
		}
		top.Push(Match{Record: v, Score: score})
	}
	return top.Results()
}
