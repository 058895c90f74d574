// Package ranker scores verses against a query by ordered subsequence
// matching and keeps the best K candidates. A lower score is a better match.
package ranker

import "math"

// NoLimit disables early termination in ScoreWithin.
const NoLimit = math.MaxUint32

// Score reports whether query occurs in text as a subsequence and, if so,
// the number of unmatched characters between consecutive matched ones.
// Each query character takes the first occurrence at or after the cursor.
// A contiguous occurrence scores 0; an empty query scores 0 everywhere.
func Score(query, text []rune) (uint32, bool) {
	return ScoreWithin(query, text, NoLimit)
}

// ScoreWithin is Score restricted to results strictly below limit. It
// gives up as soon as the running gap sum reaches limit, and such a
// candidate reports false like a non-match.
func ScoreWithin(query, text []rune, limit uint32) (uint32, bool) {
	if len(query) == 0 {
		return 0, limit > 0
	}
	if len(query) > len(text) {
		return 0, false
	}

	var score uint32
	cursor := 0
	prev := -1
	for _, qc := range query {
		pos := -1
		for i := cursor; i < len(text); i++ {
			if text[i] == qc {
				pos = i
				break
			}
		}
		if pos < 0 {
			return 0, false
		}
		if prev >= 0 {
			score += uint32(pos - prev - 1)
			if score >= limit {
				return 0, false
			}
		}
		prev = pos
		cursor = pos + 1
	}
	if score >= limit {
		return 0, false
	}
	return score, true
}
