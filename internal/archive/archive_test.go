package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertti/fastqload/internal/defline"
	"github.com/vertti/fastqload/internal/encoder"
	"github.com/vertti/fastqload/internal/format"
	"github.com/vertti/fastqload/internal/loader"
	"github.com/vertti/fastqload/internal/spot"
)

func pair(name, seq1, seq2, qual string) *spot.Spot {
	return &spot.Spot{
		Name:     name,
		Platform: defline.PlatformIllumina,
		Sequence: seq1 + seq2,
		Quality:  qual,
		Reads: []spot.Read{
			{Start: 0, Len: len(seq1), Number: 1},
			{Start: len(seq1), Len: len(seq2), Number: 2},
		},
	}
}

func testSpots() []*spot.Spot {
	return []*spot.Spot{
		pair("A", "ACGT", "TTGG", "?#5I?#5I"),
		{
			Name:      "B",
			SpotGroup: "ACGT+TTAA",
			Sequence:  "NNACGTAC",
			Quality:   "########",
			Filtered:  true,
			ClipLeft:  3,
			ClipRight: 8,
			Reads: []spot.Read{
				{Start: 0, Len: 2, Type: spot.Technical, Number: 1, Label: "bc"},
				{Start: 2, Len: 6, Number: 2, Filtered: true, Label: "body"},
			},
		},
		{
			Name:     "C",
			Sequence: "0123",
			Quality:  "40 30 20 10",
			Numeric:  true,
			CSKey:    "T",
			Reads:    []spot.Read{{Start: 0, Len: 4, Number: 1}},
		},
		{
			Name:       "channel_7_read_3",
			Platform:   defline.PlatformNanopore,
			Sequence:   "GATTACA",
			Quality:    "+++++++",
			Channel:    7,
			NanoReadNo: 3,
			Reads:      []spot.Read{{Start: 0, Len: 7, Number: 1, PoreRead: defline.PoreTemplate}},
		},
		pair("E", "", "AC", "II"),
	}
}

func write(t *testing.T, spots []*spot.Spot, h loader.Header, opts *Options) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf, opts)
	require.NoError(t, w.Start(h))
	for _, s := range spots {
		require.NoError(t, w.Write(s))
	}
	require.NoError(t, w.Close())
	assert.Equal(t, len(spots), w.Spots())
	return buf.Bytes()
}

func readAll(t *testing.T, data []byte, workers int) []*spot.Spot {
	t.Helper()
	r, err := NewReader(bytes.NewReader(data), workers)
	require.NoError(t, err)
	var out []*spot.Spot
	require.NoError(t, r.Each(context.Background(), func(s *spot.Spot) error {
		out = append(out, s)
		return nil
	}))
	return out
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		blockSize uint32
		workers   int
	}{
		{"single block", 0, 1},
		{"one spot per block", 1, 4},
		{"partial last block", 2, 3},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			spots := testSpots()
			data := write(t, spots, loader.Header{Encoding: encoder.EncodingPhred33},
				&Options{BlockSize: tt.blockSize, Workers: tt.workers})
			got := readAll(t, data, tt.workers)
			assert.Equal(t, spots, got)
		})
	}
}

func TestRoundTrip_Header(t *testing.T) {
	t.Parallel()

	data := write(t, nil, loader.Header{Encoding: encoder.EncodingPhred64, NamesDiscarded: true}, &Options{BlockSize: 10})
	r, err := NewReader(bytes.NewReader(data), 1)
	require.NoError(t, err)
	assert.Equal(t, encoder.EncodingPhred64, r.Encoding())
	assert.Equal(t, uint32(10), r.Header().BlockSize)
	assert.NotZero(t, r.Header().Flags&format.FlagNoNames)
	assert.Empty(t, readAll(t, data, 1))
}

func TestWriter_Lifecycle(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf, nil)
	assert.ErrorIs(t, w.Write(&spot.Spot{}), ErrNotStarted)
	require.NoError(t, w.Start(loader.Header{}))
	require.Error(t, w.Start(loader.Header{}))
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Write(&spot.Spot{}), ErrClosed)
	require.NoError(t, w.Close())
}

var errDisk = errors.New("disk full")

// failingWriter accepts limit writes, then fails.
type failingWriter struct {
	limit int
}

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.limit == 0 {
		return 0, errDisk
	}
	f.limit--
	return len(p), nil
}

func TestWriter_WriteError(t *testing.T) {
	t.Parallel()

	// The file header takes two writes.
	w := NewWriter(&failingWriter{limit: 2}, &Options{BlockSize: 1, Workers: 2})
	require.NoError(t, w.Start(loader.Header{}))

	var err error
	for _, s := range testSpots() {
		if err = w.Write(s); err != nil {
			break
		}
	}
	if err == nil {
		err = w.Close()
	}
	assert.ErrorIs(t, err, errDisk)
}

func TestReader_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewReader(strings.NewReader("@A\nACGT\n+\nIIII\n"), 1)
	require.ErrorIs(t, err, format.ErrBadMagic)

	data := write(t, testSpots(), loader.Header{}, &Options{BlockSize: 2, Workers: 1})
	r, err := NewReader(bytes.NewReader(data[:len(data)-5]), 2)
	require.NoError(t, err)
	err = r.Each(context.Background(), func(*spot.Spot) error { return nil })
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReader_StopsOnCallbackError(t *testing.T) {
	t.Parallel()

	data := write(t, testSpots(), loader.Header{}, &Options{BlockSize: 1, Workers: 2})
	r, err := NewReader(bytes.NewReader(data), 2)
	require.NoError(t, err)

	stop := errors.New("stop")
	var seen []string
	err = r.Each(context.Background(), func(s *spot.Spot) error {
		seen = append(seen, s.Name)
		if len(seen) == 2 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []string{"A", "B"}, seen)
}

func TestDecodeBlock_Corrupt(t *testing.T) {
	t.Parallel()

	data := write(t, testSpots()[:1], loader.Header{}, &Options{Workers: 1})
	// Claim one more spot than the block holds.
	off := len(format.Magic) + 7
	data[off]++
	r, err := NewReader(bytes.NewReader(data), 1)
	require.NoError(t, err)
	err = r.Each(context.Background(), func(*spot.Spot) error { return nil })
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestDump(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		header  loader.Header
		spots   []*spot.Spot
		opts    DumpOptions
		want    string
		wantLen int
	}{
		{
			name:   "one record per spot",
			spots:  []*spot.Spot{pair("A", "AC", "GT", "?#5I")},
			want:   "@A\nACGT\n+\n?#5I\n",
			header: loader.Header{Encoding: encoder.EncodingPhred33},
		},
		{
			name:   "one record per read",
			spots:  []*spot.Spot{pair("A", "AC", "GT", "?#5I")},
			opts:   DumpOptions{Split: true},
			want:   "@A/1\nAC\n+\n?#\n@A/2\nGT\n+\n5I\n",
			header: loader.Header{Encoding: encoder.EncodingPhred33},
		},
		{
			name:   "phred64 converted",
			spots:  []*spot.Spot{pair("A", "AC", "GT", "hhhh")},
			want:   "@A\nACGT\n+\nIIII\n",
			header: loader.Header{Encoding: encoder.EncodingPhred64},
		},
		{
			name: "numeric converted",
			spots: []*spot.Spot{{
				Name: "N", Sequence: "AC", Quality: "40 2", Numeric: true,
				Reads: []spot.Read{{Start: 0, Len: 2, Number: 1}},
			}},
			want:   "@N\nAC\n+\nI#\n",
			header: loader.Header{Encoding: encoder.EncodingNumeric},
		},
		{
			name:   "discarded names are numbered",
			spots:  []*spot.Spot{pair("", "A", "C", "!!"), pair("", "G", "T", "!!")},
			opts:   DumpOptions{Split: true},
			want:   "@1/1\nA\n+\n!\n@1/2\nC\n+\n!\n@2/1\nG\n+\n!\n@2/2\nT\n+\n!\n",
			header: loader.Header{NamesDiscarded: true},
		},
		{
			name: "technical reads skipped",
			spots: []*spot.Spot{{
				Name: "T", Sequence: "NNACGT", Quality: "!!IIII",
				Reads: []spot.Read{
					{Start: 0, Len: 2, Type: spot.Technical, Number: 1},
					{Start: 2, Len: 4, Number: 2},
				},
			}},
			opts:   DumpOptions{SkipTechnical: true},
			want:   "@T\nACGT\n+\nIIII\n",
			header: loader.Header{Encoding: encoder.EncodingPhred33},
		},
		{
			name: "sequence only padded",
			spots: []*spot.Spot{{
				Name: "F", Sequence: "ACGTAC",
				Reads: []spot.Read{{Start: 0, Len: 4, Number: 1}, {Start: 4, Len: 2, Number: 2}},
			}},
			opts:   DumpOptions{Split: true},
			want:   "@F/1\nACGT\n+\n????\n@F/2\nAC\n+\n??\n",
			header: loader.Header{Encoding: encoder.EncodingPhred33},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data := write(t, tt.spots, tt.header, &Options{Workers: 1})
			var out bytes.Buffer
			n, err := Dump(context.Background(), bytes.NewReader(data), &out, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, len(tt.spots), n)
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestLoadAndDump(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"r1.fq": "@A/1\nACGT\n+\n?#5I\n@B/1\nGGGG\n+\n5555\n",
		"r2.fq": "@A/2\nTTGG\n+\n?#5I\n@B/2\nCCCC\n+\n####\n",
	}
	open := func(name string) (io.ReadCloser, error) {
		s, ok := files[name]
		if !ok {
			return nil, fmt.Errorf("no such file %s", name)
		}
		return io.NopCloser(strings.NewReader(s)), nil
	}

	l, err := loader.New(loader.DefaultConfig(), open, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	w := NewWriter(&buf, &Options{Workers: 2})
	stats, err := l.Run(context.Background(), []loader.Input{
		{Name: "r1.fq", Size: int64(len(files["r1.fq"]))},
		{Name: "r2.fq", Size: int64(len(files["r2.fq"]))},
	}, w)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, 2, stats.Spots)

	var out bytes.Buffer
	n, err := Dump(context.Background(), &buf, &out, DumpOptions{Split: true})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t,
		"@A/1\nACGT\n+\n?#5I\n@A/2\nTTGG\n+\n?#5I\n"+
			"@B/1\nGGGG\n+\n5555\n@B/2\nCCCC\n+\n####\n",
		out.String())
}
