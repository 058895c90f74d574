// Package parser turns a raw query string into the plan the executors run.
package parser

import (
	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/normalize"
)

// QueryPlan is a query normalized once for all candidates.
type QueryPlan struct {
	RawQuery   string
	Normalized []rune
}

// Parse normalizes query with the same function used to build the corpus
// search buffer. It does not trim; frontends decide that.
func Parse(query string) *QueryPlan {
	return &QueryPlan{
		RawQuery:   query,
		Normalized: normalize.Runes(query),
	}
}

// Empty reports whether the normalized query has no characters, in which
// case every record matches with score 0.
func (p *QueryPlan) Empty() bool {
	return len(p.Normalized) == 0
}

// Key is the normalized query as a string, suitable for cache keys.
func (p *QueryPlan) Key() string {
	return string(p.Normalized)
}
