package archive

import (
	"bufio"
	"context"
	"io"
	"strconv"

	"github.com/vertti/fastqload/internal/encoder"
	"github.com/vertti/fastqload/internal/format"
	"github.com/vertti/fastqload/internal/spot"
)

// DumpOptions configures Dump.
type DumpOptions struct {
	Split         bool // one record per read instead of one per spot
	SkipTechnical bool // leave technical reads out
	Workers       int
}

// Dump writes every spot of the archive in r to w as FASTQ with Phred+33
// quality. Spots whose names were discarded are named by their 1-based
// position. It returns the number of spots written.
func Dump(ctx context.Context, r io.Reader, w io.Writer, opts DumpOptions) (int, error) {
	ar, err := NewReader(r, opts.Workers)
	if err != nil {
		return 0, err
	}
	enc := ar.Encoding()
	noNames := ar.Header().Flags&format.FlagNoNames != 0

	bw := bufio.NewWriterSize(w, 1<<20)
	n := 0
	err = ar.Each(ctx, func(s *spot.Spot) error {
		n++
		name := s.Name
		if noNames || name == "" {
			name = strconv.Itoa(n)
		}
		return writeSpot(bw, s, name, enc, opts)
	})
	if err != nil {
		return n, err
	}
	return n, bw.Flush()
}

func writeSpot(w *bufio.Writer, s *spot.Spot, name string, enc encoder.QualityEncoding, opts DumpOptions) error {
	qual := encoder.Phred(s.Quality, s.Numeric, enc)
	for i := range qual {
		qual[i] += encoder.Phred33Offset
	}
	// Sequence-only inputs carry no quality.
	for len(qual) < len(s.Sequence) {
		qual = append(qual, encoder.SyntheticScore+encoder.Phred33Offset)
	}

	if !opts.Split {
		var seq, q []byte
		for _, r := range s.Reads {
			if opts.SkipTechnical && r.Type == spot.Technical {
				continue
			}
			seq = append(seq, s.Sequence[r.Start:r.Start+r.Len]...)
			q = append(q, slice(qual, r.Start, r.Len)...)
		}
		return writeRecord(w, name, seq, q)
	}

	for _, r := range s.Reads {
		if opts.SkipTechnical && r.Type == spot.Technical {
			continue
		}
		id := name + "/" + strconv.Itoa(r.Number)
		if err := writeRecord(w, id, []byte(s.Sequence[r.Start:r.Start+r.Len]), slice(qual, r.Start, r.Len)); err != nil {
			return err
		}
	}
	return nil
}

// slice returns the quality of one read.
func slice(qual []byte, start, n int) []byte {
	if start+n > len(qual) {
		return nil
	}
	return qual[start : start+n]
}

func writeRecord(w *bufio.Writer, id string, seq, qual []byte) error {
	w.WriteByte('@')
	w.WriteString(id)
	w.WriteByte('\n')
	w.Write(seq)
	w.WriteString("\n+\n")
	w.Write(qual)
	_, err := w.WriteString("\n")
	return err
}
