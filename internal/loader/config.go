package loader

import (
	"fmt"
	"strings"

	"github.com/vertti/fastqload/internal/defline"
	"github.com/vertti/fastqload/internal/diag"
	"github.com/vertti/fastqload/internal/encoder"
	"github.com/vertti/fastqload/internal/pairing"
	"github.com/vertti/fastqload/internal/parser"
	"github.com/vertti/fastqload/internal/spot"
)

// DefaultWarnLimit is how many warnings of one kind are logged.
const DefaultWarnLimit = 100

// NameMode controls how spot names are used.
type NameMode uint8

// Name modes.
const (
	NamesKeep          NameMode = iota // pair by name, store names
	NamesIgnorePairing                 // pair by position, store names
	NamesDiscard                       // pair by position, drop names
)

func (m NameMode) String() string {
	switch m {
	case NamesIgnorePairing:
		return "ignore"
	case NamesDiscard:
		return "discard"
	}
	return "keep"
}

// ParseNameMode parses keep, ignore or discard.
func ParseNameMode(s string) (NameMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "keep":
		return NamesKeep, nil
	case "ignore":
		return NamesIgnorePairing, nil
	case "discard":
		return NamesDiscard, nil
	}
	return NamesKeep, fmt.Errorf("%w: name mode %q", diag.ErrConfig, s)
}

// Config is the complete option set of a load.
type Config struct {
	Encoding encoder.QualityEncoding

	// Read declarations, by position in the spot. When set, their lengths
	// must agree. ReadLengths splits single-file records into fixed reads;
	// a final length of 0 takes the remainder.
	ReadTypes   []spot.ReadType
	ReadLengths []int
	ReadLabels  []string

	Names           NameMode
	IgnoreSpotGroup bool
	Defline         defline.Options
	Sequence        encoder.SequenceOptions // space removal, bad character stripping, clips

	DetectDuplicates bool // drop a repeated read of the same spot
	AllowEarlyEOF    bool // emit the rest of a mate set as orphans when one file ends
	AllowMixed       bool // mates may have different layouts

	MaxDiscards   int
	MaxSearch     int
	MaxLines      int
	MaxDeflineLen int
	MaxMismatches int
	WarnLimit     int // warnings logged per kind; negative logs all
	RepeatLimit   int // identical discarded lines marking a corrupt region
	Pending       int // unmatched records held per mate file

	InterleaveSample int
	DeepScan         int
	DuplicateLimit   int
	SurveyLimit      int // records per file read by the survey pass, 0 for all
}

// DefaultConfig returns the defaults of every option.
func DefaultConfig() Config {
	return Config{
		Encoding:         encoder.EncodingAuto,
		Defline:          defline.DefaultOptions(),
		Sequence:         encoder.SequenceOptions{RemoveSpaces: true},
		DetectDuplicates: true,
		MaxDiscards:      parser.DefaultMaxDiscards,
		MaxSearch:        parser.DefaultMaxSearch,
		MaxLines:         parser.DefaultMaxLines,
		MaxDeflineLen:    parser.DefaultMaxDeflineLen,
		MaxMismatches:    parser.DefaultMaxMismatches,
		WarnLimit:        DefaultWarnLimit,
		RepeatLimit:      diag.DefaultRepeatLimit,
		Pending:          parser.DefaultPending,
		InterleaveSample: pairing.DefaultInterleaveSample,
		DeepScan:         pairing.DefaultDeepScan,
		DuplicateLimit:   pairing.DefaultDuplicateLimit,
	}
}

// Validate rejects structurally inconsistent configurations.
func (c *Config) Validate() error {
	n := 0
	for _, l := range []int{len(c.ReadTypes), len(c.ReadLengths), len(c.ReadLabels)} {
		if l == 0 {
			continue
		}
		if n != 0 && l != n {
			return fmt.Errorf("%w: %d read types, %d read lengths and %d read labels",
				diag.ErrConfig, len(c.ReadTypes), len(c.ReadLengths), len(c.ReadLabels))
		}
		n = l
	}
	if n > spot.MaxReads {
		return fmt.Errorf("%w: %d reads declared, at most %d", diag.ErrConfig, n, spot.MaxReads)
	}
	for i, l := range c.ReadLengths {
		if l < 0 || (l == 0 && i != len(c.ReadLengths)-1) {
			return fmt.Errorf("%w: read length %d at position %d", diag.ErrConfig, l, i+1)
		}
	}
	if len(c.ReadTypes) > 0 {
		stored := false
		for _, t := range c.ReadTypes {
			stored = stored || t != spot.Grouping
		}
		if !stored {
			return fmt.Errorf("%w: every read is a grouping read", diag.ErrConfig)
		}
	}
	if c.Encoding > encoder.EncodingNumeric {
		return fmt.Errorf("%w: quality encoding %d", diag.ErrConfig, c.Encoding)
	}
	if c.Names == NamesDiscard && c.DetectDuplicates {
		return fmt.Errorf("%w: duplicate detection needs spot names", diag.ErrConfig)
	}
	for name, v := range map[string]int{
		"discard ceiling":      c.MaxDiscards,
		"search ceiling":       c.MaxSearch,
		"line ceiling":         c.MaxLines,
		"defline length":       c.MaxDeflineLen,
		"mismatch ceiling":     c.MaxMismatches,
		"pending records":      c.Pending,
		"interleave sample":    c.InterleaveSample,
		"deep scan":            c.DeepScan,
		"duplicate name limit": c.DuplicateLimit,
		"survey limit":         c.SurveyLimit,
	} {
		if v < 0 {
			return fmt.Errorf("%w: negative %s", diag.ErrConfig, name)
		}
	}
	return nil
}

// ignoreNames reports whether mates are matched by position.
func (c *Config) ignoreNames() bool {
	return c.Names != NamesKeep
}

func (c *Config) readerOptions() parser.Options {
	return parser.Options{
		Defline:       c.Defline,
		Sequence:      c.Sequence,
		Encoding:      c.Encoding,
		MaxDiscards:   c.MaxDiscards,
		MaxSearch:     c.MaxSearch,
		MaxLines:      c.MaxLines,
		MaxDeflineLen: c.MaxDeflineLen,
		MaxMismatches: c.MaxMismatches,
	}
}

func (c *Config) pairingOptions() pairing.Options {
	return pairing.Options{
		InterleaveSample: c.InterleaveSample,
		DeepScan:         c.DeepScan,
		DuplicateLimit:   c.DuplicateLimit,
		IgnoreSpotGroup:  c.IgnoreSpotGroup,
		IgnoreNames:      c.ignoreNames(),
		AllowMixed:       c.AllowMixed,
		Reader:           c.readerOptions(),
	}
}

// spotOptions returns assembly options for reads at the given spot
// positions.
func (c *Config) spotOptions(positions ...int) spot.Options {
	o := spot.Options{Clip: c.Sequence.Clip}
	for _, p := range positions {
		t := spot.Biological
		if p < len(c.ReadTypes) {
			t = c.ReadTypes[p]
		}
		label := ""
		if p < len(c.ReadLabels) {
			label = c.ReadLabels[p]
		}
		o.Types = append(o.Types, t)
		o.Labels = append(o.Labels, label)
	}
	return o
}
