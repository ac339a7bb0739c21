// Package defline classifies sequencing identifier lines.
//
// Classification is a pure function of the line, a sticky Hint carried by
// the caller for the file being read, and the configured Options. Variants
// are tried in a fixed order (see Order); the first structural match wins.
package defline

import (
	"strings"
	"unicode"
)

// Defline is the parsed form of one identifier line.
type Defline struct {
	Kind      Kind
	Raw       string
	Name      string // mate-matching key
	ReadNum   int    // 1-6, 0 when absent
	PoreRead  PoreRead
	SpotGroup string
	Filtered  bool
	Valid     bool

	// Illumina / BGI / Ion Torrent coordinates.
	Lane, Tile, X, Y string

	// 454.
	Region string

	// PacBio.
	Movie, ZMW string

	// Nanopore.
	Channel    int
	NanoReadNo int

	// AB SOLiD.
	Panel   string
	TagType string

	// Original name when the line was rewritten by an archive (SRA, QIIME).
	OrigName string

	embedded bool
}

// Hint carries the sticky classification state for one file.
type Hint struct {
	Kind         Kind
	EmbeddedName bool // spot groups repeat the read name and must be stripped
}

// Hint returns the hint to use for the next line of the same file. Invalid
// deflines return the zero Hint.
func (d Defline) Hint() Hint {
	if !d.Valid {
		return Hint{}
	}
	return Hint{Kind: d.Kind, EmbeddedName: d.embedded}
}

// Update returns the hint for the line after d. The first valid variant of a
// file sticks; later lines of the same variant can only add EmbeddedName.
func (h Hint) Update(d Defline) Hint {
	if !d.Valid {
		return h
	}
	if h.Kind == Undefined {
		return d.Hint()
	}
	if d.Kind == h.Kind && d.embedded {
		h.EmbeddedName = true
	}
	return h
}

// Platform returns the platform of the matched variant.
func (d Defline) Platform() Platform {
	return d.Kind.Platform()
}

// Options are transforms applied before matching.
type Options struct {
	Sticky         bool // try the hint's variant first
	PrefixByte     byte // extra record marker accepted like '@' and '>'
	IgnoreLeading  int  // characters dropped after the marker
	IgnoreTrailing int  // characters dropped from the end
	StripAfterPlus bool // drop everything from the first '+'
}

// DefaultOptions returns sticky classification without transforms.
func DefaultOptions() Options {
	return Options{Sticky: true}
}

// IsMarker reports whether b starts an identifier line.
func (o Options) IsMarker(b byte) bool {
	return b == '@' || b == '>' || (o.PrefixByte != 0 && b == o.PrefixByte)
}

// Classify parses line (including its record marker).
func Classify(line string, hint Hint, opts Options) Defline {
	body, ok := prepare(line, opts)
	if !ok {
		return Defline{Raw: line}
	}

	if opts.Sticky && hint.Kind != Undefined {
		if d, ok := match(patternFor(hint.Kind), body); ok {
			return finish(d, line, hint.EmbeddedName)
		}
	}
	for _, p := range patterns {
		if d, ok := match(p, body); ok {
			return finish(d, line, hint.EmbeddedName)
		}
	}
	return Defline{Raw: line}
}

// prepare strips the marker and applies the configured transforms.
func prepare(line string, opts Options) (string, bool) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" || !opts.IsMarker(line[0]) {
		return "", false
	}
	body := line[1:]
	if opts.IgnoreLeading > 0 {
		if opts.IgnoreLeading >= len(body) {
			return "", false
		}
		body = body[opts.IgnoreLeading:]
	}
	if opts.IgnoreTrailing > 0 {
		if opts.IgnoreTrailing >= len(body) {
			return "", false
		}
		body = body[:len(body)-opts.IgnoreTrailing]
	}
	if opts.StripAfterPlus {
		if i := strings.IndexByte(body, '+'); i >= 0 {
			body = body[:i]
		}
	}
	body = strings.TrimLeft(body, " \t")
	return body, body != ""
}

func match(p *pattern, body string) (Defline, bool) {
	if p == nil {
		return Defline{}, false
	}
	m := p.re.FindStringSubmatch(body)
	if m == nil {
		return Defline{}, false
	}
	d := Defline{Kind: p.kind}
	if !p.extract(m, &d) {
		return Defline{}, false
	}
	return d, true
}

// finish applies the policies shared by every variant.
func finish(d Defline, raw string, stripEmbedded bool) Defline {
	d.Raw = raw
	if d.SpotGroup == "0" {
		d.SpotGroup = ""
	}
	if sg, ok := stripEmbeddedName(d.SpotGroup, d.Name, stripEmbedded); ok {
		d.SpotGroup = sg
		d.embedded = true
		if d.SpotGroup == "0" {
			d.SpotGroup = ""
		}
	}
	d.Valid = hasAlnum(d.Name)
	return d
}

// stripEmbeddedName removes a copy of the read name from the spot group of a
// double-encoded defline. Detection requires a name that cannot be mistaken
// for a barcode; once known for a file (force) short names are stripped too. Only
// whole fields match.
func stripEmbeddedName(spotGroup, name string, force bool) (string, bool) {
	if spotGroup == "" || name == "" {
		return spotGroup, false
	}
	if !force && (len(name) < 3 || isBarcode(name)) {
		return spotGroup, false
	}
	i := fieldIndex(spotGroup, name)
	if i < 0 {
		return spotGroup, false
	}
	rest := spotGroup[:i] + spotGroup[i+len(name):]
	return strings.Trim(rest, " :_#/"), true
}

// fieldIndex finds name in s where it starts and ends on a field boundary.
func fieldIndex(s, name string) int {
	for off := 0; off <= len(s)-len(name); {
		i := strings.Index(s[off:], name)
		if i < 0 {
			return -1
		}
		i += off
		end := i + len(name)
		if (i == 0 || isFieldSep(s[i-1])) && (end == len(s) || isFieldSep(s[end])) {
			return i
		}
		off = i + 1
	}
	return -1
}

func isFieldSep(c byte) bool {
	switch c {
	case ':', '_', '#', '/', ' ':
		return true
	}
	return false
}

func isBarcode(s string) bool {
	for _, r := range s {
		switch r {
		case 'A', 'C', 'G', 'T', 'N', '+', '-':
		default:
			return false
		}
	}
	return true
}

func hasAlnum(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
