package spot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertti/fastqload/internal/defline"
	"github.com/vertti/fastqload/internal/encoder"
	"github.com/vertti/fastqload/internal/parser"
)

func rec(name string, readNum int, seq, qual string) *parser.Record {
	return &parser.Record{
		Defline:    defline.Defline{Kind: defline.GenericSlashRead, Name: name, ReadNum: readNum, Valid: true},
		Sequence:   encoder.ValidateSequence(seq, encoder.SequenceOptions{Clip: true}),
		Quality:    encoder.ValidateQuality(qual),
		HasQuality: true,
	}
}

func TestAssemble_Pair(t *testing.T) {
	t.Parallel()

	s, err := Assemble([]*parser.Record{
		rec("SEQ1", 1, "ACGT", "!!!!"),
		rec("SEQ1", 2, "TTTT", "####"),
	}, Options{})
	require.NoError(t, err)

	assert.Equal(t, "SEQ1", s.Name)
	assert.Equal(t, "ACGTTTTT", s.Sequence)
	assert.Equal(t, "!!!!####", s.Quality)
	assert.False(t, s.Numeric)
	require.Len(t, s.Reads, 2)
	assert.Equal(t, 0, s.Reads[0].Start)
	assert.Equal(t, 4, s.Reads[0].Len)
	assert.Equal(t, 4, s.Reads[1].Start)
	assert.Equal(t, 4, s.Reads[1].Len)
	assert.Equal(t, 1, s.Reads[0].Number)
	assert.Equal(t, 2, s.Reads[1].Number)
	assert.Zero(t, s.ClipLeft)
	assert.Zero(t, s.ClipRight)
}

func TestAssemble_Clip(t *testing.T) {
	t.Parallel()

	reads := []*parser.Record{
		rec("A", 1, "acGTAC", "IIIIII"),
		rec("A", 2, "GGTtt", "IIIII"),
	}

	s, err := Assemble(reads, Options{Clip: true})
	require.NoError(t, err)
	assert.Equal(t, "ACGTACGGTTT", s.Sequence)
	assert.Equal(t, 3, s.ClipLeft)
	assert.Equal(t, 9, s.ClipRight)

	s, err = Assemble(reads, Options{})
	require.NoError(t, err)
	assert.Zero(t, s.ClipLeft)
	assert.Zero(t, s.ClipRight)
}

func TestAssemble_FilterAndSpotGroup(t *testing.T) {
	t.Parallel()

	r1 := rec("A", 1, "AC", "II")
	r2 := rec("A", 2, "GT", "II")
	r1.Defline.Filtered = true
	r2.Defline.SpotGroup = "ACGTAC"

	s, err := Assemble([]*parser.Record{r1, r2}, Options{})
	require.NoError(t, err)
	assert.True(t, s.Filtered)
	assert.True(t, s.Reads[0].Filtered)
	assert.False(t, s.Reads[1].Filtered)
	assert.Equal(t, "ACGTAC", s.SpotGroup)
}

func TestAssemble_NumericQuality(t *testing.T) {
	t.Parallel()

	s, err := Assemble([]*parser.Record{
		rec("A", 1, "AC", "30 31"),
		rec("A", 2, "GT", "10 11"),
	}, Options{})
	require.NoError(t, err)
	assert.True(t, s.Numeric)
	assert.Equal(t, "30 31 10 11", s.Quality)

	_, err = Assemble([]*parser.Record{
		rec("A", 1, "AC", "30 31"),
		rec("A", 2, "GT", "II"),
	}, Options{})
	assert.ErrorIs(t, err, ErrMixedQuality)
}

func TestAssemble_ColorSpace(t *testing.T) {
	t.Parallel()

	s, err := Assemble([]*parser.Record{
		rec("A", 0, "T0123", "IIII"),
		rec("A", 0, "G3210", "IIII"),
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "01233210", s.Sequence)
	assert.Equal(t, "TG", s.CSKey)
	assert.Equal(t, 1, s.Reads[0].Number)
	assert.Equal(t, 2, s.Reads[1].Number)
}

func TestAssemble_EmptyMate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		configured []ReadType
		seq1, seq2 string
		want       []ReadType
	}{
		{"first empty", []ReadType{Biological, Biological}, "", "ACGT", []ReadType{Technical, Biological}},
		{"second empty", []ReadType{Technical, Biological}, "ACGT", "", []ReadType{Biological, Technical}},
		{"both present keeps configuration", []ReadType{Technical, Biological}, "AC", "GT", []ReadType{Technical, Biological}},
		{"both empty keeps configuration", []ReadType{Biological, Biological}, "", "", []ReadType{Biological, Biological}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts := Options{Types: tt.configured}
			s, err := Assemble([]*parser.Record{
				rec("A", 1, tt.seq1, ""),
				rec("A", 2, tt.seq2, ""),
			}, opts)
			require.NoError(t, err)
			require.Len(t, s.Reads, 2)
			assert.Equal(t, tt.want, []ReadType{s.Reads[0].Type, s.Reads[1].Type})
			assert.Equal(t, tt.configured, opts.Types)
		})
	}
}

func TestAssemble_Grouping(t *testing.T) {
	t.Parallel()

	s, err := Assemble([]*parser.Record{
		rec("A", 1, "ACGTACGT", "IIIIIIII"),
		rec("A", 2, "GGCC", "IIII"),
	}, Options{Types: []ReadType{Biological, Grouping}, Labels: []string{"forward", "barcode"}})
	require.NoError(t, err)
	assert.Equal(t, "ACGTACGT", s.Sequence)
	assert.Equal(t, "IIIIIIII", s.Quality)
	assert.Equal(t, "GGCC", s.SpotGroup)
	require.Len(t, s.Reads, 1)
	assert.Equal(t, "forward", s.Reads[0].Label)
}

func TestAssemble_Nanopore(t *testing.T) {
	t.Parallel()

	r := rec("channel_5_read_9", 0, "ACGT", "IIII")
	r.Defline.Kind = defline.NanoporeChannel
	r.Defline.Channel = 5
	r.Defline.NanoReadNo = 9
	r.Defline.PoreRead = defline.PoreTemplate

	s, err := Assemble([]*parser.Record{r}, Options{})
	require.NoError(t, err)
	assert.Equal(t, defline.PlatformNanopore, s.Platform)
	assert.Equal(t, 5, s.Channel)
	assert.Equal(t, 9, s.NanoReadNo)
	assert.Equal(t, defline.PoreTemplate, s.Reads[0].PoreRead)
}

func TestAssemble_Errors(t *testing.T) {
	t.Parallel()

	_, err := Assemble(nil, Options{})
	assert.ErrorIs(t, err, ErrNoReads)

	reads := make([]*parser.Record, MaxReads+1)
	for i := range reads {
		reads[i] = rec("A", 0, "A", "I")
	}
	_, err = Assemble(reads, Options{})
	assert.ErrorIs(t, err, ErrTooManyReads)
}

func TestParseReadType(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]ReadType{"B": Biological, "t": Technical, "grouping": Grouping} {
		got, err := ParseReadType(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseReadType("X")
	assert.Error(t, err)
}
