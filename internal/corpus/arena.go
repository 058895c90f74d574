// Package corpus holds the verse corpus in two flat buffers: the display
// text exactly as ingested and its normalized search form. Each record is a
// Descriptor of offset/length pairs into both buffers, and Views hand out
// zero-copy slices of them. An Arena is built once and never mutated, so it
// may be shared by any number of concurrent searches without locking.
package corpus

import (
	"fmt"
	"math"
	"sync"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/normalize"
	apperrors "github.com/Adithya-Monish-Kumar-K/verse-search/pkg/errors"
)

// Arena owns the display buffer (UTF-8 bytes), the search buffer
// (normalized characters) and the descriptors indexing both.
type Arena struct {
	display     []byte
	search      []rune
	descriptors []Descriptor

	viewsOnce sync.Once
	views     []View
}

// Stats summarizes an arena's size.
type Stats struct {
	Records      int `json:"records"`
	DisplayBytes int `json:"display_bytes"`
	SearchRunes  int `json:"search_runes"`
}

// Builder appends records to a new arena. It is not safe for concurrent use
// and must not be used after Finish.
type Builder struct {
	display     []byte
	search      []rune
	descriptors []Descriptor
}

// NewBuilder returns a Builder with room for roughly records verses.
func NewBuilder(records int) *Builder {
	if records < 0 {
		records = 0
	}
	return &Builder{
		display:     make([]byte, 0, records*128),
		search:      make([]rune, 0, records*128),
		descriptors: make([]Descriptor, 0, records),
	}
}

// Append validates rec and adds it after the previously appended records.
// On error nothing is appended.
func (b *Builder) Append(rec RawRecord) error {
	ref, err := parseRef(rec)
	if err != nil {
		return err
	}
	if rec.Text == "" {
		return fmt.Errorf("line %d: text is missing: %w", rec.Line, apperrors.ErrMalformedRecord)
	}

	searchText := normalize.String(rec.Text)
	displayLen := len(rec.Text)
	searchLen := utf8.RuneCountInString(searchText)
	if displayLen > math.MaxUint16 || searchLen > math.MaxUint16 {
		return fmt.Errorf("line %d (%s): %d bytes / %d normalized characters exceeds %d: %w",
			rec.Line, ref, displayLen, searchLen, math.MaxUint16, apperrors.ErrRecordTooLarge)
	}
	if uint64(len(b.display))+uint64(displayLen) > math.MaxUint32 ||
		uint64(len(b.search))+uint64(searchLen) > math.MaxUint32 {
		return fmt.Errorf("line %d (%s): arena offsets exceed 32 bits: %w",
			rec.Line, ref, apperrors.ErrCorpusTooLarge)
	}

	displayOffset := len(b.display)
	searchOffset := len(b.search)
	b.display = append(b.display, rec.Text...)
	for _, r := range searchText {
		b.search = append(b.search, r)
	}
	b.descriptors = append(b.descriptors, Descriptor{
		DisplayOffset: uint32(displayOffset),
		DisplayLen:    uint16(len(b.display) - displayOffset),
		SearchOffset:  uint32(searchOffset),
		SearchLen:     uint16(len(b.search) - searchOffset),
		Ref:           ref,
	})
	return nil
}

// Len returns the number of records appended so far.
func (b *Builder) Len() int {
	return len(b.descriptors)
}

// Finish hands the buffers over to an immutable Arena.
func (b *Builder) Finish() *Arena {
	a := &Arena{
		display:     b.display,
		search:      b.search,
		descriptors: b.descriptors,
	}
	*b = Builder{}
	return a
}

// Build creates an arena from records in order, failing on the first
// record that cannot be ingested.
func Build(records []RawRecord) (*Arena, error) {
	b := NewBuilder(len(records))
	for _, rec := range records {
		if err := b.Append(rec); err != nil {
			return nil, err
		}
	}
	return b.Finish(), nil
}

// Len returns the number of records.
func (a *Arena) Len() int {
	return len(a.descriptors)
}

// Descriptor returns the i-th record descriptor.
func (a *Arena) Descriptor(i int) Descriptor {
	return a.descriptors[i]
}

// View returns a zero-copy view of the i-th record. The slices are capped
// so appending to them can never write into a neighbouring record.
func (a *Arena) View(i int) View {
	d := a.descriptors[i]
	displayEnd := int(d.DisplayOffset) + int(d.DisplayLen)
	searchEnd := int(d.SearchOffset) + int(d.SearchLen)
	return View{
		Display: a.display[d.DisplayOffset:displayEnd:displayEnd],
		Search:  a.search[d.SearchOffset:searchEnd:searchEnd],
		Ref:     d.Ref,
		Index:   i,
	}
}

// Views returns all records in corpus order. The slice is computed once
// and shared; callers must treat it as read-only.
func (a *Arena) Views() []View {
	a.viewsOnce.Do(func() {
		views := make([]View, len(a.descriptors))
		for i := range a.descriptors {
			views[i] = a.View(i)
		}
		a.views = views
	})
	return a.views
}

// Stats reports record count and buffer sizes.
func (a *Arena) Stats() Stats {
	return Stats{
		Records:      len(a.descriptors),
		DisplayBytes: len(a.display),
		SearchRunes:  len(a.search),
	}
}
