package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/vertti/fastqload/internal/defline"
	"github.com/vertti/fastqload/internal/encoder"
)

// Column positions of Illumina qseq and export lines.
const (
	colMachine = iota
	colRun
	colLane
	colTile
	colX
	colY
	colIndex
	colReadNo
	colSeq
	colQual
	colQseqFilter // qseq: 1 passed, 0 failed

	qseqColumns   = 11
	exportColumns = 22
	exportFilter  = 21 // export: Y passed, N failed
)

// ColumnReader reads single-line records and builds a synthetic identifier
// for each so they classify like any other read.
type ColumnReader struct {
	base
}

// NewColumnReader creates a reader for one of the columnar layouts.
func NewColumnReader(r io.Reader, opts Options) *ColumnReader {
	return &ColumnReader{base: newBase(r, opts)}
}

// Next reads and returns the next record.
// Returns io.EOF when no more records are available.
func (c *ColumnReader) Next() (*Record, error) {
	for {
		line, err := c.src.next()
		if err != nil {
			return nil, c.ioErr(err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, reason := c.parse(line)
		if rec == nil {
			if err := c.discard(c.src.lineNo, line, reason); err != nil {
				return nil, err
			}
			continue
		}
		if rec.HasQuality && rec.Quality.Count > 0 && !rec.Quality.Valid {
			if err := c.discard(c.src.lineNo, line, "invalid quality"); err != nil {
				return nil, err
			}
			rec.Quality = encoder.QualityInfo{}
		}
		if err := c.reconcile(rec); err != nil {
			return nil, err
		}
		return rec, nil
	}
}

type columns struct {
	name     string
	seq      string
	qual     string
	hasQual  bool
	filtered bool
	coords   [4]string // lane, tile, x, y
}

// parse returns nil and a reason when the line does not fit the layout.
func (c *ColumnReader) parse(line string) (*Record, string) {
	var (
		cols columns
		ok   bool
	)
	switch l := c.opts.Layout; {
	case l.Has(LayoutQseq):
		cols, ok = splitIllumina(line, qseqColumns)
	case l.Has(LayoutExport):
		cols, ok = splitIllumina(line, exportColumns)
	case l.Has(LayoutTab):
		cols, ok = splitTab(line)
	case l.Has(LayoutColon):
		cols, ok = splitColon(line)
	default:
		return nil, fmt.Sprintf("layout %s is not columnar", l)
	}
	if !ok {
		return nil, "wrong number of columns"
	}

	d := defline.Classify("@"+cols.name, c.hint, c.opts.Defline)
	if !d.Valid {
		return nil, "no usable name"
	}
	if c.opts.Defline.Sticky {
		c.hint = c.hint.Update(d)
	}
	d.Filtered = d.Filtered || cols.filtered
	if cols.coords[0] != "" && d.Lane == "" {
		d.Lane, d.Tile, d.X, d.Y = cols.coords[0], cols.coords[1], cols.coords[2], cols.coords[3]
	}

	rec := &Record{
		File:     c.opts.File,
		Line:     c.src.lineNo,
		Defline:  d,
		Sequence: encoder.ValidateSequence(cols.seq, c.opts.Sequence),
	}
	if !rec.Sequence.Valid {
		return nil, "invalid sequence"
	}
	if cols.hasQual {
		rec.Quality, rec.HasQuality = encoder.ValidateQuality(cols.qual), true
	}
	return rec, ""
}

// splitIllumina handles qseq and export lines, which share their first ten
// columns.
func splitIllumina(line string, n int) (columns, bool) {
	f := strings.Split(line, "\t")
	if len(f) != n {
		return columns{}, false
	}
	name := fmt.Sprintf("%s_%s:%s:%s:%s:%s", f[colMachine], f[colRun], f[colLane], f[colTile], f[colX], f[colY])
	if idx := f[colIndex]; idx != "" {
		name += "#" + idx
	}
	if rn := f[colReadNo]; rn != "" {
		name += "/" + rn
	}
	cols := columns{
		name:    name,
		seq:     strings.ReplaceAll(f[colSeq], ".", "N"),
		qual:    f[colQual],
		hasQual: true,
		coords:  [4]string{f[colLane], f[colTile], f[colX], f[colY]},
	}
	if n == qseqColumns {
		cols.filtered = f[colQseqFilter] == "0"
	} else {
		cols.filtered = f[exportFilter] != "Y"
	}
	return cols, true
}

func splitTab(line string) (columns, bool) {
	f := strings.Split(line, "\t")
	if len(f) < 2 || len(f) > 3 {
		return columns{}, false
	}
	cols := columns{name: strings.TrimLeft(f[0], "@>"), seq: f[1]}
	if len(f) == 3 {
		cols.qual, cols.hasQual = f[2], true
	}
	return cols, cols.name != ""
}

// splitColon handles lane:tile:x:y:sequence[:quality]. Quality may itself
// contain colons.
func splitColon(line string) (columns, bool) {
	f := strings.SplitN(line, ":", 6)
	if len(f) < 5 {
		return columns{}, false
	}
	cols := columns{
		name:   strings.Join(f[:4], ":"),
		seq:    f[4],
		coords: [4]string{f[0], f[1], f[2], f[3]},
	}
	if len(f) == 6 {
		cols.qual, cols.hasQual = f[5], true
	}
	return cols, true
}
