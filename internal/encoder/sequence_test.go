package encoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSequence(t *testing.T) {
	t.Parallel()

	defaults := SequenceOptions{RemoveSpaces: true, Clip: true}

	tests := []struct {
		name      string
		input     string
		opts      SequenceOptions
		text      string
		key       byte
		space     Space
		clipLeft  int
		clipRight int
		valid     bool
	}{
		{"plain bases", "ACGT", defaults, "ACGT", 0, BaseSpace, 0, 0, true},
		{"iupac", "ACGTRYKMN", defaults, "ACGTRYKMN", 0, BaseSpace, 0, 0, true},
		{"dots as N", "AC..GT", defaults, "AC..GT", 0, BaseSpace, 0, 0, true},
		{"leading space removed", " AC", defaults, "AC", 0, BaseSpace, 0, 0, true},
		{"case clips", "acgTACGTacg", defaults, "ACGTACGTACG", 0, BaseSpace, 3, 3, true},
		{"clip disabled", "acgTACGT", SequenceOptions{}, "ACGTACGT", 0, BaseSpace, 0, 0, true},
		{"all lowercase has no clip", "acgt", defaults, "ACGT", 0, BaseSpace, 0, 0, true},
		{"color space", "T0123.012", defaults, "0123.012", 'T', ColorSpace, 0, 0, true},
		{"invalid character", "ACGT!", defaults, "ACGT!", 0, BaseSpace, 0, 0, false},
		{"stripped bad character", "AC#GT", SequenceOptions{StripBadChars: true}, "ACGT", 0, BaseSpace, 0, 0, true},
		{"empty", "", defaults, "", 0, BaseSpace, 0, 0, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ValidateSequence(tt.input, tt.opts)
			assert.Equal(t, tt.text, got.Text)
			assert.Equal(t, tt.key, got.Key)
			assert.Equal(t, tt.space, got.Space)
			assert.Equal(t, tt.clipLeft, got.ClipLeft)
			assert.Equal(t, tt.clipRight, got.ClipRight)
			assert.Equal(t, tt.valid, got.Valid)
		})
	}
}

func TestJoinSequence(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ACGTTTGG", JoinSequence([]string{"ACGT", "TT ", "GG"}))
	assert.Equal(t, "AC", JoinSequence([]string{"AC"}))
}

func TestSpaceString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "base", BaseSpace.String())
	assert.Equal(t, "color", ColorSpace.String())
}
