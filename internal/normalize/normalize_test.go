package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ascii", "In the Beginning", "in the beginning"},
		{"empty", "", ""},
		{"full fold sharp s", "Stra\u00dfe", "strasse"},
		{"greek", "\u0391\u0392\u0393", "\u03b1\u03b2\u03b3"},
		{"decomposed composes", "Cafe\u0301", "caf\u00e9"},
		{"precomposed stays", "CAF\u00c9", "caf\u00e9"},
		{"ligature", "\ufb01re", "fire"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, String(tt.in))
		})
	}
}

func TestStringIsIdempotent(t *testing.T) {
	for _, s := range []string{"Jesus wept.", "A\u030aNGSTR\u00d6M", "\u0130stanbul"} {
		once := String(s)
		assert.Equal(t, once, String(once), s)
	}
}

func TestRunes(t *testing.T) {
	assert.Equal(t, []rune("jn"), Runes("JN"))
	assert.Empty(t, Runes(""))
}
