// Package spot merges the mates of one physical observation into a Spot.
package spot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vertti/fastqload/internal/defline"
	"github.com/vertti/fastqload/internal/parser"
)

// MaxReads is the largest number of reads in one spot.
const MaxReads = 6

var (
	// ErrNoReads is returned when Assemble is given nothing.
	ErrNoReads = errors.New("spot has no reads")
	// ErrTooManyReads is returned for more than MaxReads reads.
	ErrTooManyReads = errors.New("spot has too many reads")
	// ErrMixedQuality is returned when numeric and character quality meet
	// in one spot.
	ErrMixedQuality = errors.New("numeric and character quality in one spot")
)

// ReadType is what a read contributes to its spot.
type ReadType uint8

// Read types.
const (
	Biological ReadType = iota
	Technical
	Grouping // barcode read folded into the spot group, not stored
)

func (t ReadType) String() string {
	switch t {
	case Technical:
		return "technical"
	case Grouping:
		return "grouping"
	}
	return "biological"
}

// ParseReadType accepts B, T and G in either case.
func ParseReadType(s string) (ReadType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "B", "BIOLOGICAL":
		return Biological, nil
	case "T", "TECHNICAL":
		return Technical, nil
	case "G", "GROUPING":
		return Grouping, nil
	}
	return Biological, fmt.Errorf("unknown read type %q", s)
}

// Read is the placement of one mate inside the spot payload.
type Read struct {
	Start    int
	Len      int
	Type     ReadType
	Filtered bool
	Number   int // read number, or 1-based position when the name has none
	PoreRead defline.PoreRead
	Label    string
}

// Spot is one assembled observation handed to the writer.
type Spot struct {
	Name      string
	SpotGroup string
	Platform  defline.Platform

	Sequence string
	Quality  string // concatenated characters, or space separated scores
	Numeric  bool
	Reads    []Read

	// ClipLeft and ClipRight are 1-based inclusive; zero when clipping is off.
	ClipLeft  int
	ClipRight int
	Filtered  bool
	CSKey     string // colour-space key of each read, in read order

	Channel    int
	NanoReadNo int
}

// Len returns the number of stored bases.
func (s *Spot) Len() int {
	return len(s.Sequence)
}

// Options configure assembly.
type Options struct {
	Types  []ReadType // per read position; missing entries are biological
	Labels []string
	Clip   bool
}

func (o *Options) typeOf(i int) ReadType {
	if i < len(o.Types) {
		return o.Types[i]
	}
	return Biological
}

func (o *Options) labelOf(i int) string {
	if i < len(o.Labels) {
		return o.Labels[i]
	}
	return ""
}

// Assemble merges reads, given in read order, into a Spot.
func Assemble(reads []*parser.Record, opts Options) (*Spot, error) {
	if len(reads) == 0 {
		return nil, ErrNoReads
	}
	if len(reads) > MaxReads {
		return nil, fmt.Errorf("%w: %d", ErrTooManyReads, len(reads))
	}

	types := make([]ReadType, len(reads))
	for i := range reads {
		types[i] = opts.typeOf(i)
	}
	// One empty read of a pair is stored as technical for this spot only.
	if len(reads) == 2 && types[0] != Grouping && types[1] != Grouping {
		e0, e1 := reads[0].Sequence.Len() == 0, reads[1].Sequence.Len() == 0
		if e0 != e1 {
			types[0], types[1] = Biological, Biological
			if e0 {
				types[0] = Technical
			} else {
				types[1] = Technical
			}
		}
	}

	first := reads[0]
	s := &Spot{
		Name:       first.Name(),
		Platform:   first.Defline.Platform(),
		Channel:    first.Defline.Channel,
		NanoReadNo: first.Defline.NanoReadNo,
		Reads:      make([]Read, 0, len(reads)),
	}

	var (
		seq, qual, keys strings.Builder
		barcodes        []string
		sumLeft         int
		sumRight        int
		numeric, ascii  bool
	)
	for i, r := range reads {
		d := &r.Defline
		if s.SpotGroup == "" && d.SpotGroup != "" {
			s.SpotGroup = d.SpotGroup
		}
		if d.Filtered {
			s.Filtered = true
		}
		if types[i] == Grouping {
			if r.Sequence.Text != "" {
				barcodes = append(barcodes, r.Sequence.Text)
			}
			continue
		}

		num := d.ReadNum
		if num == 0 {
			num = i + 1
		}
		s.Reads = append(s.Reads, Read{
			Start:    seq.Len(),
			Len:      r.Sequence.Len(),
			Type:     types[i],
			Filtered: d.Filtered,
			Number:   num,
			PoreRead: d.PoreRead,
			Label:    opts.labelOf(i),
		})
		seq.WriteString(r.Sequence.Text)
		if r.Sequence.Key != 0 {
			keys.WriteByte(r.Sequence.Key)
		}
		sumLeft += r.Sequence.ClipLeft
		sumRight += r.Sequence.ClipRight

		if r.Quality.Text == "" {
			continue
		}
		if r.Quality.Numeric {
			numeric = true
			if qual.Len() > 0 {
				qual.WriteByte(' ')
			}
		} else {
			ascii = true
		}
		qual.WriteString(r.Quality.Text)
	}
	if numeric && ascii {
		return nil, fmt.Errorf("%s: %w", s.Name, ErrMixedQuality)
	}
	if s.SpotGroup == "" && len(barcodes) > 0 {
		s.SpotGroup = strings.Join(barcodes, "+")
	}

	s.Sequence = seq.String()
	s.Quality = qual.String()
	s.Numeric = numeric
	s.CSKey = keys.String()
	if opts.Clip {
		s.ClipLeft = sumLeft + 1
		s.ClipRight = len(s.Sequence) - sumRight
	}
	return s, nil
}
