package source

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/verse-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/postgres"
)

// Open builds the record source named by cfg.Source. The returned close
// function releases any connection the source holds and is never nil.
func Open(ctx context.Context, cfg config.CorpusConfig, pg config.PostgresConfig) (corpus.Source, func() error, error) {
	switch cfg.Source {
	case "csv":
		return NewCSV(cfg.Path), func() error { return nil }, nil
	case "postgres":
		db, err := postgres.New(ctx, pg)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrSourceUnavailable, err)
		}
		return NewPostgres(db, cfg.Table), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown corpus source %q", apperrors.ErrInvalidInput, cfg.Source)
	}
}

// LoadFromConfig opens the configured source and loads it into an arena.
func LoadFromConfig(ctx context.Context, cfg config.CorpusConfig, pg config.PostgresConfig) (*corpus.Arena, corpus.LoadReport, error) {
	src, closeFn, err := Open(ctx, cfg, pg)
	if err != nil {
		return nil, corpus.LoadReport{}, err
	}
	defer closeFn()
	return corpus.Load(ctx, src, corpus.LoadOptions{SkipMalformed: cfg.SkipMalformed})
}
