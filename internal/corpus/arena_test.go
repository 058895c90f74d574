package corpus

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/normalize"
	apperrors "github.com/Adithya-Monish-Kumar-K/verse-search/pkg/errors"
)

func genesis() []RawRecord {
	return []RawRecord{
		{Line: 2, Book: "1", Chapter: "1", Verse: "1", Text: "In the beginning God created the heavens and the earth."},
		{Line: 3, Book: "1", Chapter: "1", Verse: "2", Text: "And the earth was waste and void; and darkness was upon the face of the deep"},
		{Line: 4, Book: " 1 ", Chapter: "1", Verse: "3", Text: "And God said, Let there be light: and there was light."},
		{Line: 5, Book: "43", Chapter: "11", Verse: "35", Text: "JESUS WEPT. Straße Café"},
	}
}

func TestBuildRoundTrip(t *testing.T) {
	records := genesis()
	arena, err := Build(records)
	require.NoError(t, err)
	require.Equal(t, len(records), arena.Len())

	views := arena.Views()
	require.Len(t, views, len(records))
	for i, rec := range records {
		v := views[i]
		assert.Equal(t, rec.Text, v.Text(), "display text must be stored verbatim")
		assert.Equal(t, normalize.String(rec.Text), v.SearchText())
		assert.Equal(t, i, v.Index)
	}
	assert.Equal(t, Ref{Book: 1, Chapter: 1, Verse: 3}, views[2].Ref)
	assert.Equal(t, Ref{Book: 43, Chapter: 11, Verse: 35}, views[3].Ref)
	assert.Equal(t, "jesus wept. strasse café", views[3].SearchText())
}

func TestDescriptorsAreContiguous(t *testing.T) {
	arena, err := Build(genesis())
	require.NoError(t, err)

	var displayEnd, searchEnd uint32
	for i := 0; i < arena.Len(); i++ {
		d := arena.Descriptor(i)
		assert.Equal(t, displayEnd, d.DisplayOffset, "record %d display offset", i)
		assert.Equal(t, searchEnd, d.SearchOffset, "record %d search offset", i)
		displayEnd = d.DisplayOffset + uint32(d.DisplayLen)
		searchEnd = d.SearchOffset + uint32(d.SearchLen)
	}
	stats := arena.Stats()
	assert.Equal(t, int(displayEnd), stats.DisplayBytes)
	assert.Equal(t, int(searchEnd), stats.SearchRunes)
}

func TestViewsAreCachedAndCapped(t *testing.T) {
	arena, err := Build(genesis())
	require.NoError(t, err)

	first := arena.Views()
	second := arena.Views()
	assert.Same(t, &first[0], &second[0])

	v := arena.View(0)
	assert.Equal(t, len(v.Display), cap(v.Display))
	assert.Equal(t, len(v.Search), cap(v.Search))
	_ = append(v.Search, 'x')
	assert.Equal(t, normalize.String(genesis()[1].Text), arena.View(1).SearchText())
}

func TestBuildMalformed(t *testing.T) {
	tests := []struct {
		name string
		rec  RawRecord
	}{
		{"missing book", RawRecord{Chapter: "1", Verse: "1", Text: "x"}},
		{"missing chapter", RawRecord{Book: "1", Verse: "1", Text: "x"}},
		{"missing verse", RawRecord{Book: "1", Chapter: "1", Text: "x"}},
		{"missing text", RawRecord{Book: "1", Chapter: "1", Verse: "1"}},
		{"not a number", RawRecord{Book: "Gen", Chapter: "1", Verse: "1", Text: "x"}},
		{"negative", RawRecord{Book: "1", Chapter: "-1", Verse: "1", Text: "x"}},
		{"out of range", RawRecord{Book: "1", Chapter: "1", Verse: "256", Text: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build([]RawRecord{tt.rec})
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrMalformedRecord)
		})
	}
}

func TestBuildRecordTooLarge(t *testing.T) {
	b := NewBuilder(2)
	require.NoError(t, b.Append(RawRecord{Book: "1", Chapter: "1", Verse: "1", Text: "before"}))

	huge := strings.Repeat("a", 1<<16)
	err := b.Append(RawRecord{Line: 9, Book: "1", Chapter: "1", Verse: "2", Text: huge})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrRecordTooLarge)
	assert.Contains(t, err.Error(), "line 9")

	// A rejected record leaves the builder untouched.
	arena := b.Finish()
	assert.Equal(t, 1, arena.Len())
	assert.Equal(t, Stats{Records: 1, DisplayBytes: 6, SearchRunes: 6}, arena.Stats())
}

func TestBuildAtLengthLimit(t *testing.T) {
	max := strings.Repeat("a", 1<<16-1)
	arena, err := Build([]RawRecord{{Book: "1", Chapter: "1", Verse: "1", Text: max}})
	require.NoError(t, err)
	assert.Equal(t, uint16(1<<16-1), arena.Descriptor(0).DisplayLen)
}

func TestEmptyArena(t *testing.T) {
	arena, err := Build(nil)
	require.NoError(t, err)
	assert.Zero(t, arena.Len())
	assert.Empty(t, arena.Views())
}
