package parser

import (
	"errors"
	"io"

	"github.com/vertti/fastqload/internal/defline"
	"github.com/vertti/fastqload/internal/diag"
	"github.com/vertti/fastqload/internal/encoder"
)

// DefaultPending bounds how many out-of-order quality records a SplitReader
// keeps while looking for a match.
const DefaultPending = 10000

// SplitReader joins a sequence-only stream with a quality-only stream by
// record name rather than by position.
type SplitReader struct {
	seq, qual *Reader
	opts      Options
	pending   map[string]*Record
	limit     int
	qualDone  bool
}

// NewSplitReader pairs seq (FASTA) with qual (.qual). Both readers report
// diagnostics through seq's options.
func NewSplitReader(seq, qual *Reader, limit int) *SplitReader {
	if limit <= 0 {
		limit = DefaultPending
	}
	return &SplitReader{
		seq:     seq,
		qual:    qual,
		opts:    seq.opts,
		pending: make(map[string]*Record),
		limit:   limit,
	}
}

// Hint returns the defline hint of the sequence stream.
func (s *SplitReader) Hint() defline.Hint {
	return s.seq.Hint()
}

// QualityHint returns the defline hint of the quality stream.
func (s *SplitReader) QualityHint() defline.Hint {
	return s.qual.Hint()
}

// Next returns the next sequence record with its quality attached.
func (s *SplitReader) Next() (*Record, error) {
	rec, err := s.seq.Next()
	if err != nil {
		return nil, err
	}
	q, err := s.find(rec.Name())
	if err != nil {
		return nil, err
	}
	out := *rec
	if q != nil {
		out.Quality, out.HasQuality = q.Quality, true
	} else {
		s.opts.Tracker.Warn(diag.KindMissingQuality, s.opts.File, rec.Line, "no quality for %s", rec.Name())
	}
	qa, adj := encoder.ReconcileQuality(out.Quality, out.Sequence.Len(), s.opts.Encoding)
	out.Quality, out.Adjusted = qa, adj
	if adj.Changed() {
		t := s.opts.Tracker
		t.Warn(diag.KindQualityLength, s.opts.File, rec.Line,
			"record %s: quality length adjusted (padded %d, truncated %d)", rec.Name(), adj.Padded, adj.Truncated)
		if n := t.Count(diag.KindQualityLength); n > s.opts.MaxMismatches {
			return nil, t.Corrupt(s.opts.File, rec.Line, diag.ErrMismatchCeiling, "%d records", n)
		}
	}
	return &out, nil
}

func (s *SplitReader) find(name string) (*Record, error) {
	if q, ok := s.pending[name]; ok {
		delete(s.pending, name)
		return q, nil
	}
	for !s.qualDone {
		q, err := s.qual.Next()
		if errors.Is(err, io.EOF) {
			s.qualDone = true
			break
		}
		if err != nil {
			return nil, err
		}
		if q.Name() == name {
			return q, nil
		}
		if len(s.pending) >= s.limit {
			return nil, diag.Fatalf(s.qual.opts.File, q.Line, diag.ErrMateNames,
				"quality for %s not found within %d records", name, s.limit)
		}
		s.pending[q.Name()] = q
	}
	return nil, nil
}
