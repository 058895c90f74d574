package ranker

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/normalize"
)

func TestScore(t *testing.T) {
	tests := []struct {
		query, text string
		want        uint32
		ok          bool
	}{
		{"jn", "john", 2, true},
		{"xyz", "john", 0, false},
		{"begin", "in the beginning", 0, true},
		{"", "anything", 0, true},
		{"", "", 0, true},
		{"a", "", 0, false},
		{"abc", "ab", 0, false},
		{"ac", "abc", 1, true},
		{"aa", "aba", 1, true},
		{"ace", "abcde", 2, true},
		// first occurrence at or after the cursor, not the tightest window
		{"ab", "axxab", 3, true},
		{"ba", "ab", 0, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q in %q", tt.query, tt.text), func(t *testing.T) {
			got, ok := Score([]rune(tt.query), []rune(tt.text))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScoreWithin(t *testing.T) {
	q, text := []rune("ace"), []rune("abcde")

	score, ok := ScoreWithin(q, text, 3)
	require.True(t, ok)
	assert.Equal(t, uint32(2), score)

	_, ok = ScoreWithin(q, text, 2)
	assert.False(t, ok, "a score equal to the limit cannot beat it")

	_, ok = ScoreWithin(nil, text, 0)
	assert.False(t, ok)
}

// views builds an arena over texts. Verse numbers fit in a byte, so large
// fixtures roll over into the next chapter.
func views(tb testing.TB, texts ...string) []corpus.View {
	tb.Helper()
	records := make([]corpus.RawRecord, len(texts))
	for i, text := range texts {
		records[i] = corpus.RawRecord{
			Line:    i + 1,
			Book:    "1",
			Chapter: fmt.Sprint(i/255 + 1),
			Verse:   fmt.Sprint(i%255 + 1),
			Text:    text,
		}
	}
	arena, err := corpus.Build(records)
	require.NoError(tb, err)
	return arena.Views()
}

func indexes(matches []Match) []int {
	out := make([]int, len(matches))
	for i, m := range matches {
		out[i] = m.Record.Index
	}
	return out
}

func TestRankEndToEnd(t *testing.T) {
	vs := views(t, "In the beginning God created", "And the earth was without form")

	matches := Rank(normalize.Runes("begod"), vs, DefaultK)
	require.Len(t, matches, 1)
	assert.Equal(t, corpus.Ref{Book: 1, Chapter: 1, Verse: 1}, matches[0].Record.Ref)
	// "beg" is contiguous; the next "o" is the one in "god", eight
	// characters past the "g" ("inning g"), and "d" follows it directly.
	assert.Equal(t, uint32(8), matches[0].Score)
}

func TestRankContiguousScoresZero(t *testing.T) {
	matches := Rank(normalize.Runes("BEGIN"), views(t, "in the beginning"), DefaultK)
	require.Len(t, matches, 1)
	assert.Zero(t, matches[0].Score)
}

func TestRankEmptyQueryReturnsCorpusPrefix(t *testing.T) {
	vs := views(t, "a", "b", "c", "d")

	matches := Rank(nil, vs, 3)
	assert.Equal(t, []int{0, 1, 2}, indexes(matches))
	for _, m := range matches {
		assert.Zero(t, m.Score)
	}

	assert.Equal(t, []int{0, 1, 2, 3}, indexes(Rank(nil, vs, 10)))
}

func TestRankOrdersByScoreThenCorpusOrder(t *testing.T) {
	vs := views(t, "a-b", "ab", "a--b", "xab", "a-b")
	matches := Rank([]rune("ab"), vs, 10)
	assert.Equal(t, []int{1, 3, 0, 4, 2}, indexes(matches))
}

// Fewer matching candidates than k must all come back, whatever order
// their scores arrive in.
func TestRankDoesNotRejectBeforeFull(t *testing.T) {
	vs := views(t, "a-----b", "a---b", "a-b", "ab", "zzz")
	matches := Rank([]rune("ab"), vs, 10)
	assert.Equal(t, []int{3, 2, 1, 0}, indexes(matches))

	matches = Rank([]rune("ab"), vs, 4)
	assert.Equal(t, []int{3, 2, 1, 0}, indexes(matches))
}

func TestRankBoundedAndNoMatch(t *testing.T) {
	vs := views(t, "ab", "ab", "ab")
	assert.Len(t, Rank([]rune("ab"), vs, 2), 2)
	assert.Empty(t, Rank([]rune("ab"), vs, 0))
	assert.Empty(t, Rank([]rune("q"), vs, 10))
}

func TestRankDeterministic(t *testing.T) {
	vs := randomViews(t, rand.New(rand.NewSource(7)), 300)
	require.Len(t, vs, 300)
	q := []rune("ae")
	assert.Equal(t, Rank(q, vs, 10), Rank(q, vs, 10))
}

// TestRankMatchesExhaustiveSort checks the pruned scan against scoring
// everything and sorting.
func TestRankMatchesExhaustiveSort(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	vs := randomViews(t, rng, 500)
	for _, q := range []string{"", "a", "ab", "ea", "abc", "cab", "eeee"} {
		for _, k := range []int{1, 3, 10, 50, 1000} {
			var all []Match
			for _, v := range vs {
				if s, ok := Score([]rune(q), v.Search); ok {
					all = append(all, Match{Record: v, Score: s})
				}
			}
			sort.SliceStable(all, func(i, j int) bool { return all[i].Score < all[j].Score })
			if len(all) > k {
				all = all[:k]
			}
			got := Rank([]rune(q), vs, k)
			assert.Equal(t, indexes(all), indexes(got), "query %q k=%d", q, k)
		}
	}
}

func TestTopKPush(t *testing.T) {
	vs := views(t, "a", "b", "c", "d")
	top := NewTopK(2)
	assert.Equal(t, uint32(NoLimit), top.Limit())

	assert.True(t, top.Push(Match{Record: vs[0], Score: 5}))
	assert.Equal(t, uint32(NoLimit), top.Limit())
	assert.True(t, top.Push(Match{Record: vs[1], Score: 3}))
	assert.True(t, top.Full())
	assert.Equal(t, uint32(5), top.Limit())

	assert.False(t, top.Push(Match{Record: vs[2], Score: 5}), "tie with a later index loses")
	assert.True(t, top.Push(Match{Record: vs[3], Score: 4}))
	assert.Equal(t, []int{1, 3}, indexes(top.Results()))
}

func randomViews(tb testing.TB, rng *rand.Rand, n int) []corpus.View {
	tb.Helper()
	texts := make([]string, n)
	for i := range texts {
		b := make([]byte, 4+rng.Intn(20))
		for j := range b {
			b[j] = "abcde "[rng.Intn(6)]
		}
		texts[i] = string(b)
	}
	return views(tb, texts...)
}

func BenchmarkRank(b *testing.B) {
	vs := randomViews(b, rand.New(rand.NewSource(1)), 30000)
	q := normalize.Runes("bead")
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Rank(q, vs, DefaultK)
	}
}
