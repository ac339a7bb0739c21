package parser

import (
	"strings"

	"github.com/vertti/fastqload/internal/encoder"
)

// Layout describes how records are laid out in a file.
type Layout uint16

// Layout flags. Interleaved and MultiLine combine with Fastq or Fasta.
const (
	LayoutFastq       Layout = 1 << iota // identifier, sequence, '+', quality
	LayoutMultiLine                      // sequence and quality wrapped over several lines
	LayoutFasta                          // identifier and sequence only
	LayoutQuality                        // identifier and numeric quality (.qual half of a split pair)
	LayoutInterleaved                    // consecutive records are mates of one spot
	LayoutQseq                           // Illumina qseq, 11 tab separated columns
	LayoutExport                         // Illumina export, 22 tab separated columns
	LayoutTab                            // name, sequence and optional quality separated by tabs
	LayoutColon                          // lane:tile:x:y:sequence[:quality]
)

const columnar = LayoutQseq | LayoutExport | LayoutTab | LayoutColon

var layoutNames = []struct {
	flag Layout
	name string
}{
	{LayoutFastq, "fastq"},
	{LayoutMultiLine, "multiline"},
	{LayoutFasta, "fasta"},
	{LayoutQuality, "qual"},
	{LayoutInterleaved, "interleaved"},
	{LayoutQseq, "qseq"},
	{LayoutExport, "export"},
	{LayoutTab, "tab"},
	{LayoutColon, "colon"},
}

// Has reports whether all flags in f are set.
func (l Layout) Has(f Layout) bool {
	return l&f == f
}

// Columnar reports a single-line-per-record layout.
func (l Layout) Columnar() bool {
	return l&columnar != 0
}

// Base strips the flags that do not change how a single file is read.
func (l Layout) Base() Layout {
	return l &^ (LayoutMultiLine | LayoutInterleaved)
}

func (l Layout) String() string {
	if l == 0 {
		return "unknown"
	}
	var parts []string
	for _, n := range layoutNames {
		if l&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// DefaultSniffLines is how many leading lines DetectLayout looks at.
const DefaultSniffLines = 400

// DetectLayout guesses a file layout from its leading lines. It returns 0
// when nothing recognizable was found.
func DetectLayout(lines []string) Layout {
	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i == len(lines) {
		return 0
	}
	first := strings.TrimSpace(lines[i])

	if first[0] != '@' && first[0] != '>' {
		return detectColumns(strings.TrimRight(lines[i], "\r\n"))
	}

	const (
		inHeader = iota
		inSequence
		inQuality
	)
	var (
		layout    Layout
		state     = inHeader
		sawPlus   bool
		multi     bool
		numeric   = true
		bodyLines int
		seqLines  int
		seqLen    int
		qualLen   int
	)
	for _, l := range lines[i:] {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		switch state {
		case inHeader:
			if l[0] == first[0] {
				state, seqLines, seqLen = inSequence, 0, 0
			}
		case inSequence:
			switch {
			case l[0] == '+':
				sawPlus = true
				multi = multi || seqLines > 1
				state, qualLen = inQuality, 0
				if seqLen == 0 {
					state = inHeader
				}
			case l[0] == first[0]:
				multi = multi || seqLines > 1
				seqLines, seqLen = 0, 0
			default:
				seqLines++
				bodyLines++
				seqLen += len(l)
				if !encoder.ValidateQuality(l).Numeric {
					numeric = false
				}
			}
		case inQuality:
			qualLen += len(l)
			if qualLen >= seqLen {
				state = inHeader
			}
		}
	}

	switch {
	case sawPlus:
		layout = LayoutFastq
	case bodyLines > 0 && numeric:
		layout = LayoutQuality
	default:
		layout = LayoutFasta
	}
	if multi {
		layout |= LayoutMultiLine
	}
	return layout
}

func detectColumns(line string) Layout {
	if strings.Contains(line, "\t") {
		switch n := len(strings.Split(line, "\t")); {
		case n == 11:
			return LayoutQseq
		case n == 22:
			return LayoutExport
		case n == 2 || n == 3:
			return LayoutTab
		}
		return 0
	}
	f := strings.SplitN(line, ":", 6)
	if len(f) >= 5 && isDigits(f[0]) && isDigits(f[1]) && isDigits(f[2]) && isDigits(f[3]) {
		return LayoutColon
	}
	return 0
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
