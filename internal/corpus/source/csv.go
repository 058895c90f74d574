// Package source provides corpus.Source implementations: a CSV file in the
// id,book,chapter,verse,text layout and a PostgreSQL table.
package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/verse-search/pkg/errors"
)

// Column positions in the corpus CSV. Column 0 is the row id, which the
// engine does not use.
const (
	colBook = iota + 1
	colChapter
	colVerse
	colText
)

// CSV reads verses from a comma-separated file with a header row.
type CSV struct {
	Path string
	// NoHeader treats the first row as data.
	NoHeader bool
}

func NewCSV(path string) *CSV {
	return &CSV{Path: path}
}

func (c *CSV) Name() string { return "csv:" + c.Path }

func (c *CSV) Records(ctx context.Context) iter.Seq2[corpus.RawRecord, error] {
	return func(yield func(corpus.RawRecord, error) bool) {
		f, err := os.Open(c.Path)
		if err != nil {
			yield(corpus.RawRecord{}, fmt.Errorf("opening %s: %v: %w", c.Path, err, apperrors.ErrSourceUnavailable))
			return
		}
		defer f.Close()
		readCSV(ctx, f, !c.NoHeader, yield)
	}
}

// Reader adapts any io.Reader holding the corpus CSV layout.
type Reader struct {
	R         io.Reader
	Label     string
	HasHeader bool
}

func (r *Reader) Name() string { return r.Label }

func (r *Reader) Records(ctx context.Context) iter.Seq2[corpus.RawRecord, error] {
	return func(yield func(corpus.RawRecord, error) bool) {
		readCSV(ctx, r.R, r.HasHeader, yield)
	}
}

func readCSV(ctx context.Context, r io.Reader, header bool, yield func(corpus.RawRecord, error) bool) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			yield(corpus.RawRecord{}, err)
			return
		}
		row, err := cr.Read()
		if err == io.EOF {
			return
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				if !yield(corpus.RawRecord{Line: line}, fmt.Errorf("line %d: %v: %w", parseErr.Line, parseErr.Err, apperrors.ErrMalformedRecord)) {
					return
				}
				continue
			}
			yield(corpus.RawRecord{}, fmt.Errorf("reading csv: %v: %w", err, apperrors.ErrSourceUnavailable))
			return
		}
		if header && line == 1 {
			continue
		}
		if !yield(recordFromRow(line, row), nil) {
			return
		}
	}
}

func recordFromRow(line int, row []string) corpus.RawRecord {
	field := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	return corpus.RawRecord{
		Line:    line,
		Book:    field(colBook),
		Chapter: field(colChapter),
		Verse:   field(colVerse),
		Text:    field(colText),
	}
}
