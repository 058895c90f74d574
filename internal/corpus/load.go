package corpus

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/verse-search/pkg/errors"
)

// Source yields raw records in a stable order. A failure to read the
// source at all is reported as an error wrapping ErrSourceUnavailable;
// a single unusable row is reported as ErrMalformedRecord and iteration
// continues.
type Source interface {
	Name() string
	Records(ctx context.Context) iter.Seq2[RawRecord, error]
}

// LoadOptions selects the MalformedRecord policy.
type LoadOptions struct {
	// SkipMalformed logs and drops malformed records. When false the first
	// malformed record aborts the load. Oversized records always abort.
	SkipMalformed bool
}

// LoadReport describes the outcome of a Load.
type LoadReport struct {
	Source   string        `json:"source"`
	Loaded   int           `json:"loaded"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// Load drains src into a new Arena.
func Load(ctx context.Context, src Source, opts LoadOptions) (*Arena, LoadReport, error) {
	start := time.Now()
	logger := slog.Default().With("component", "corpus-loader", "source", src.Name())
	report := LoadReport{Source: src.Name()}
	b := NewBuilder(0)

	for rec, err := range src.Records(ctx) {
		if err == nil {
			err = b.Append(rec)
		}
		if err == nil {
			continue
		}
		if opts.SkipMalformed && apperrors.Is(err, apperrors.ErrMalformedRecord) {
			report.Skipped++
			logger.Warn("skipping malformed record", "error", err)
			continue
		}
		return nil, report, fmt.Errorf("loading corpus from %s: %w", src.Name(), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, report, fmt.Errorf("loading corpus from %s: %w", src.Name(), err)
	}

	report.Loaded = b.Len()
	report.Duration = time.Since(start)
	arena := b.Finish()
	stats := arena.Stats()
	logger.Info("corpus loaded",
		"records", report.Loaded,
		"skipped", report.Skipped,
		"display_bytes", stats.DisplayBytes,
		"search_runes", stats.SearchRunes,
		"duration", report.Duration,
	)
	return arena, report, nil
}

// SliceSource serves records from memory.
type SliceSource []RawRecord

func (s SliceSource) Name() string { return "memory" }

func (s SliceSource) Records(ctx context.Context) iter.Seq2[RawRecord, error] {
	return func(yield func(RawRecord, error) bool) {
		for _, rec := range s {
			if ctx.Err() != nil {
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}
