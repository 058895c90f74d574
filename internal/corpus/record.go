package corpus

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/verse-search/pkg/errors"
)

// RawRecord is one verse as delivered by a Source, before validation.
// An empty field counts as absent.
type RawRecord struct {
	// Line is the position of the record in its source, used in errors.
	Line    int
	Book    string
	Chapter string
	Verse   string
	Text    string
}

// Ref identifies a verse by its numbering.
type Ref struct {
	Book    uint8 `json:"book"`
	Chapter uint8 `json:"chapter"`
	Verse   uint8 `json:"verse"`
}

func (r Ref) String() string {
	return fmt.Sprintf("%d:%d:%d", r.Book, r.Chapter, r.Verse)
}

// Descriptor locates a record's spans inside the arena buffers.
type Descriptor struct {
	DisplayOffset uint32
	DisplayLen    uint16
	SearchOffset  uint32
	SearchLen     uint16
	Ref
}

// parseRef validates the numbering fields of rec.
func parseRef(rec RawRecord) (Ref, error) {
	book, err := parseSmallInt(rec, "book", rec.Book)
	if err != nil {
		return Ref{}, err
	}
	chapter, err := parseSmallInt(rec, "chapter", rec.Chapter)
	if err != nil {
		return Ref{}, err
	}
	verse, err := parseSmallInt(rec, "verse", rec.Verse)
	if err != nil {
		return Ref{}, err
	}
	return Ref{Book: book, Chapter: chapter, Verse: verse}, nil
}

func parseSmallInt(rec RawRecord, field, value string) (uint8, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("line %d: %s is missing: %w", rec.Line, field, apperrors.ErrMalformedRecord)
	}
	n, err := strconv.ParseUint(value, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("line %d: %s %q is not an integer in 0-255: %w",
			rec.Line, field, value, apperrors.ErrMalformedRecord)
	}
	return uint8(n), nil
}
