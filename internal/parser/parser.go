// Package parser turns raw line streams into sequencing records. It reads
// FASTQ (single and multi-line), FASTA, split sequence/quality pairs and
// single-line columnar files.
package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/vertti/fastqload/internal/defline"
	"github.com/vertti/fastqload/internal/diag"
	"github.com/vertti/fastqload/internal/encoder"
)

// Default ceilings.
const (
	DefaultMaxDiscards   = 10000
	DefaultMaxSearch     = 1000
	DefaultMaxLines      = 1000000
	DefaultMaxDeflineLen = 65536
	DefaultMaxMismatches = 1000000
)

// Record is one read. The reader never reuses a Record.
type Record struct {
	File       string
	Line       int // line of the identifier
	Defline    defline.Defline
	Sequence   encoder.SequenceInfo
	Quality    encoder.QualityInfo
	HasQuality bool // the file carried quality for this record
	Adjusted   encoder.Adjustment
}

// Name returns the mate-matching name.
func (r *Record) Name() string {
	return r.Defline.Name
}

// Source yields records until io.EOF.
type Source interface {
	Next() (*Record, error)
}

// NewSource picks the reader for opts.Layout.
func NewSource(r io.Reader, opts Options) Source {
	if opts.Layout.Columnar() {
		return NewColumnReader(r, opts)
	}
	return New(r, opts)
}

// Sniff returns up to n leading lines of r for DetectLayout.
func Sniff(r io.Reader, n int) ([]string, error) {
	src := newLineSource(r)
	var lines []string
	for len(lines) < n {
		line, err := src.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return lines, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Options configure a reader.
type Options struct {
	File     string // name used in diagnostics
	Layout   Layout
	Defline  defline.Options
	Sequence encoder.SequenceOptions
	Encoding encoder.QualityEncoding // used to pad short quality
	Hint     defline.Hint            // initial sticky hint, usually from a survey pass

	MaxDiscards   int // discarded lines per file before aborting
	MaxSearch     int // consecutive non-identifier lines while resynchronizing
	MaxLines      int // lines between two identifiers
	MaxDeflineLen int
	MaxMismatches int // sequence/quality length repairs, counted by Tracker

	Tracker *diag.Tracker
}

// DefaultOptions returns FASTQ reading with the default ceilings.
func DefaultOptions() Options {
	return Options{
		Layout:        LayoutFastq,
		Defline:       defline.DefaultOptions(),
		MaxDiscards:   DefaultMaxDiscards,
		MaxSearch:     DefaultMaxSearch,
		MaxLines:      DefaultMaxLines,
		MaxDeflineLen: DefaultMaxDeflineLen,
		MaxMismatches: DefaultMaxMismatches,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Layout == 0 {
		o.Layout = d.Layout
	}
	if o.MaxDiscards <= 0 {
		o.MaxDiscards = d.MaxDiscards
	}
	if o.MaxSearch <= 0 {
		o.MaxSearch = d.MaxSearch
	}
	if o.MaxLines <= 0 {
		o.MaxLines = d.MaxLines
	}
	if o.MaxDeflineLen <= 0 {
		o.MaxDeflineLen = d.MaxDeflineLen
	}
	if o.MaxMismatches <= 0 {
		o.MaxMismatches = d.MaxMismatches
	}
	if o.Tracker == nil {
		o.Tracker = diag.NewTracker(nil, 0, 0)
	}
	return o
}

// base is the per-file state shared by every reader.
type base struct {
	opts     Options
	src      *lineSource
	hint     defline.Hint
	discards int
	warned   bool
}

func newBase(r io.Reader, opts Options) base {
	opts = opts.withDefaults()
	return base{
		opts: opts,
		src:  newLineSource(r),
		hint: opts.Hint,
	}
}

// Hint returns the sticky hint accumulated so far.
func (b *base) Hint() defline.Hint {
	return b.hint
}

// Discards returns the number of lines discarded so far.
func (b *base) Discards() int {
	return b.discards
}

// Line returns the number of the last line consumed.
func (b *base) Line() int {
	return b.src.lineNo
}

// Reader reads identifier-delimited records (FASTQ, FASTA, .qual).
type Reader struct {
	base
}

// New creates a reader over r.
func New(r io.Reader, opts Options) *Reader {
	return &Reader{base: newBase(r, opts)}
}

// Next reads and returns the next record.
// Returns io.EOF when no more records are available.
func (r *Reader) Next() (*Record, error) {
	for {
		d, line, err := r.expectIdentifier()
		if err != nil {
			return nil, err
		}
		rec, err := r.readBody(d, line)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}
}

func (r *Reader) expectIdentifier() (defline.Defline, int, error) {
	search := 0
	for {
		line, err := r.src.next()
		if err != nil {
			return defline.Defline{}, 0, r.ioErr(err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if r.opts.Defline.IsMarker(line[0]) {
			if len(line) > r.opts.MaxDeflineLen {
				return defline.Defline{}, 0, diag.Fatalf(r.opts.File, r.src.lineNo, diag.ErrDeflineLength,
					"%d > %d bytes", len(line), r.opts.MaxDeflineLen)
			}
			d := defline.Classify(line, r.hint, r.opts.Defline)
			if d.Valid {
				if r.opts.Defline.Sticky {
					r.hint = r.hint.Update(d)
				}
				return d, r.src.lineNo, nil
			}
		}
		if err := r.discard(r.src.lineNo, line, "not a valid identifier"); err != nil {
			return defline.Defline{}, 0, err
		}
		search++
		if search > r.opts.MaxSearch {
			return defline.Defline{}, 0, r.opts.Tracker.Corrupt(r.opts.File, r.src.lineNo, diag.ErrDeflineSearch,
				"%d lines", search)
		}
	}
}

// readBody collects the sequence (or .qual) lines and, for FASTQ, the quality
// section. A nil record means the identifier was discarded.
func (r *Reader) readBody(d defline.Defline, idLine int) (*Record, error) {
	rec := &Record{File: r.opts.File, Line: idLine, Defline: d}
	fastq := r.opts.Layout.Has(LayoutFastq)

	var (
		body    []string
		sawPlus bool
		lines   int
	)
	for {
		line, err := r.src.next()
		if err != nil {
			if err = r.ioErr(err); err != io.EOF {
				return nil, err
			}
			break
		}
		lines++
		if lines > r.opts.MaxLines {
			return nil, r.opts.Tracker.Corrupt(r.opts.File, r.src.lineNo, diag.ErrMaxLines, "%d lines", lines)
		}
		if fastq && strings.HasPrefix(line, "+") {
			sawPlus = true
			break
		}
		if line != "" && r.opts.Defline.IsMarker(line[0]) && r.isIdentifier(line) {
			r.src.unread(line)
			break
		}
		body = append(body, line)
	}

	if len(body) == 0 && !sawPlus {
		// two identifiers back to back
		return nil, r.discard(idLine, d.Raw, "identifier without sequence")
	}

	if r.opts.Layout.Has(LayoutQuality) {
		var q encoder.QualityInfo
		for _, l := range body {
			q = encoder.JoinQuality(q, encoder.ValidateNumeric(l))
		}
		if q.Count > 0 && !q.Valid {
			if err := r.discard(idLine+1, body[0], "invalid quality"); err != nil {
				return nil, err
			}
			q = encoder.QualityInfo{}
		}
		rec.Quality, rec.HasQuality = q, true
		return rec, nil
	}

	seq := encoder.ValidateSequence(encoder.JoinSequence(body), r.opts.Sequence)
	seqLen := seq.Len() // quality still covers a discarded sequence
	if !seq.Valid {
		if err := r.discard(idLine+1, body[0], "invalid sequence"); err != nil {
			return nil, err
		}
		seq = encoder.SequenceInfo{Valid: true}
	}
	rec.Sequence = seq
	if !fastq {
		return rec, nil
	}

	if sawPlus {
		q, err := r.readQuality(seqLen, wrapWidth(body), lines)
		if err != nil {
			return nil, err
		}
		if q.Count > 0 && !q.Valid {
			if err := r.discard(r.src.lineNo, q.Text, "invalid quality"); err != nil {
				return nil, err
			}
			q = encoder.QualityInfo{}
		}
		rec.Quality, rec.HasQuality = q, true
	} else {
		r.opts.Tracker.Warn(diag.KindMissingQuality, r.opts.File, idLine, "record %s has no quality", d.Name)
	}
	return rec, r.reconcile(rec)
}

// readQuality accumulates quality lines until they cover seqLen scores. A
// line that looks like an identifier ends the section early when taking it
// as quality would overshoot the sequence or break the wrap width.
func (r *Reader) readQuality(seqLen, width, lines int) (encoder.QualityInfo, error) {
	var q encoder.QualityInfo
	for q.Count < seqLen {
		line, err := r.src.next()
		if err != nil {
			if err = r.ioErr(err); err != io.EOF {
				return q, err
			}
			break
		}
		lines++
		if lines > r.opts.MaxLines {
			return q, r.opts.Tracker.Corrupt(r.opts.File, r.src.lineNo, diag.ErrMaxLines, "%d lines", lines)
		}
		next := encoder.ValidateQuality(line)
		if q.Numeric && !next.Numeric {
			next = encoder.ValidateNumeric(line)
		}
		if line != "" && r.opts.Defline.IsMarker(line[0]) && !next.Numeric {
			want := min(width, seqLen-q.Count)
			if (q.Count+next.Count > seqLen || next.Count != want) && r.isIdentifier(line) {
				r.src.unread(line)
				break
			}
		}
		q = encoder.JoinQuality(q, next)
	}
	return q, nil
}

// reconcile pads or truncates quality to the sequence length.
func (b *base) reconcile(rec *Record) error {
	q, adj := encoder.ReconcileQuality(rec.Quality, rec.Sequence.Len(), b.opts.Encoding)
	rec.Quality, rec.Adjusted = q, adj
	if !adj.Changed() {
		return nil
	}
	t := b.opts.Tracker
	t.Warn(diag.KindQualityLength, b.opts.File, rec.Line,
		"record %s: quality length adjusted (padded %d, truncated %d)", rec.Name(), adj.Padded, adj.Truncated)
	if n := t.Count(diag.KindQualityLength); n > b.opts.MaxMismatches {
		return t.Corrupt(b.opts.File, rec.Line, diag.ErrMismatchCeiling, "%d records", n)
	}
	return nil
}

func (r *Reader) isIdentifier(line string) bool {
	if len(line) > r.opts.MaxDeflineLen {
		return false
	}
	return defline.Classify(line, r.hint, r.opts.Defline).Valid
}

func (b *base) discard(lineNo int, content, reason string) error {
	b.discards++
	t := b.opts.Tracker
	t.Observe(b.opts.File, lineNo, content)
	t.Warn(diag.KindDiscard, b.opts.File, lineNo, "discarded: %s", reason)
	if b.discards > b.opts.MaxDiscards {
		return t.Corrupt(b.opts.File, lineNo, diag.ErrTooManyDiscards, "%d lines", b.discards)
	}
	return nil
}

// ioErr passes io.EOF through, reporting a truncated stream once, and wraps
// anything else.
func (b *base) ioErr(err error) error {
	if err != io.EOF {
		return fmt.Errorf("reading %s: %w", b.opts.File, err)
	}
	if b.src.truncatedAt > 0 && !b.warned {
		b.warned = true
		b.opts.Tracker.Warn(diag.KindTruncated, b.opts.File, b.src.truncatedAt, "stream ended unexpectedly")
	}
	return io.EOF
}

// wrapWidth is the width of a wrapped sequence, used to recognize quality
// lines wrapped the same way.
func wrapWidth(body []string) int {
	if len(body) == 0 {
		return 0
	}
	return len(strings.TrimSpace(body[0]))
}
