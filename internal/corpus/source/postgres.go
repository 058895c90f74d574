package source

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/verse-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/postgres"
)

// Postgres reads verses from a table shaped like:
//
//	CREATE TABLE verses (
//	    id      BIGINT PRIMARY KEY,
//	    book    TEXT,
//	    chapter TEXT,
//	    verse   TEXT,
//	    text    TEXT
//	);
//
// Rows are returned in id order. NULL columns count as absent fields.
type Postgres struct {
	db    *postgres.Client
	table string
}

func NewPostgres(db *postgres.Client, table string) *Postgres {
	return &Postgres{db: db, table: table}
}

func (p *Postgres) Name() string { return "postgres:" + p.table }

func (p *Postgres) Records(ctx context.Context) iter.Seq2[corpus.RawRecord, error] {
	return func(yield func(corpus.RawRecord, error) bool) {
		query := fmt.Sprintf(`SELECT id, book, chapter, verse, text FROM %s ORDER BY id`,
			pq.QuoteIdentifier(p.table))
		rows, err := p.db.DB.QueryContext(ctx, query)
		if err != nil {
			yield(corpus.RawRecord{}, fmt.Errorf("querying %s: %v: %w", p.table, err, apperrors.ErrSourceUnavailable))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id                         int64
				book, chapter, verse, text sql.NullString
			)
			if err := rows.Scan(&id, &book, &chapter, &verse, &text); err != nil {
				yield(corpus.RawRecord{}, fmt.Errorf("scanning %s row: %v: %w", p.table, err, apperrors.ErrSourceUnavailable))
				return
			}
			rec := corpus.RawRecord{
				Line:    int(id),
				Book:    book.String,
				Chapter: chapter.String,
				Verse:   verse.String,
				Text:    text.String,
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(corpus.RawRecord{}, fmt.Errorf("iterating %s: %v: %w", p.table, err, apperrors.ErrSourceUnavailable))
		}
	}
}

// Import copies every record of src into table, replacing its contents.
// Records are stored as delivered; validation happens when the corpus is
// loaded. Rows the source itself flags as malformed are skipped.
func Import(ctx context.Context, db *postgres.Client, table string, src corpus.Source) (int, error) {
	logger := slog.Default().With("component", "corpus-import", "table", table)
	ident := pq.QuoteIdentifier(table)
	imported := 0

	err := db.InTx(ctx, func(tx *sql.Tx) error {
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id      BIGINT PRIMARY KEY,
			book    TEXT,
			chapter TEXT,
			verse   TEXT,
			text    TEXT
		)`, ident)
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`TRUNCATE %s`, ident)); err != nil {
			return fmt.Errorf("truncating table: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, "id", "book", "chapter", "verse", "text"))
		if err != nil {
			return fmt.Errorf("preparing copy: %w", err)
		}
		defer stmt.Close()

		for rec, err := range src.Records(ctx) {
			if err != nil {
				if apperrors.Is(err, apperrors.ErrMalformedRecord) {
					logger.Warn("skipping unreadable row", "error", err)
					continue
				}
				return err
			}
			if _, err := stmt.ExecContext(ctx, rec.Line, rec.Book, rec.Chapter, rec.Verse, rec.Text); err != nil {
				return fmt.Errorf("copying line %d: %w", rec.Line, err)
			}
			imported++
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			return fmt.Errorf("flushing copy: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("importing into %s: %w", table, err)
	}
	logger.Info("corpus imported", "rows", imported)
	return imported, nil
}
