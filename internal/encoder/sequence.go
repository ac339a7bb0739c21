// Package encoder validates and normalizes sequence and quality payloads.
package encoder

import (
	"strings"

	"github.com/shenwei356/bio/seq"
)

// Space is the sequence encoding of a read.
type Space uint8

// Sequence spaces.
const (
	BaseSpace  Space = iota
	ColorSpace       // AB SOLiD transitions, preceded by a key base
)

func (s Space) String() string {
	if s == ColorSpace {
		return "color"
	}
	return "base"
}

// SequenceOptions are the configurable line cleanups.
type SequenceOptions struct {
	RemoveSpaces  bool // drop blanks inside the sequence
	StripBadChars bool // drop characters outside the sequence alphabets
	Clip          bool // compute clips from lowercase runs
}

// SequenceInfo is the normalized form of a sequence payload.
type SequenceInfo struct {
	Text      string // upper-cased, without the colour-space key
	Key       byte   // colour-space key base, 0 in base space
	Space     Space
	ClipLeft  int
	ClipRight int
	Valid     bool
}

// Len returns the number of sequence symbols (excluding any key).
func (s SequenceInfo) Len() int {
	return len(s.Text)
}

// ValidateSequence normalizes and classifies a sequence payload.
func ValidateSequence(line string, opts SequenceOptions) SequenceInfo {
	raw := strings.TrimSpace(line)
	if opts.RemoveSpaces {
		raw = strings.Map(func(r rune) rune {
			if r == ' ' || r == '\t' {
				return -1
			}
			return r
		}, raw)
	}
	if opts.StripBadChars {
		raw = strings.Map(func(r rune) rune {
			if isSequenceChar(r) {
				return r
			}
			return -1
		}, raw)
	}
	if raw == "" {
		return SequenceInfo{Valid: true}
	}

	if isColorSpace(raw) {
		return SequenceInfo{
			Text:  raw[1:],
			Key:   upper(raw[0]),
			Space: ColorSpace,
			Valid: true,
		}
	}

	info := SequenceInfo{Text: strings.ToUpper(raw)}
	if opts.Clip {
		info.ClipLeft, info.ClipRight = caseClips(raw)
	}
	info.Valid = validBases(info.Text)
	return info
}

// JoinSequence concatenates wrapped sequence lines before validation.
func JoinSequence(lines []string) string {
	if len(lines) == 1 {
		return lines[0]
	}
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(strings.TrimSpace(l))
	}
	return sb.String()
}

func validBases(text string) bool {
	b := []byte(strings.ReplaceAll(text, ".", "N"))
	return seq.DNAredundant.IsValid(b) == nil
}

func isSequenceChar(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == '.' || r == '-' || r == '*':
		return true
	}
	return false
}

// isColorSpace reports a key base followed only by transition symbols.
func isColorSpace(s string) bool {
	if len(s) < 2 {
		return false
	}
	switch upper(s[0]) {
	case 'A', 'C', 'G', 'T':
	default:
		return false
	}
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '0', '1', '2', '3', '.':
		default:
			return false
		}
	}
	return true
}

// caseClips counts the lowercase runs at both ends. An entirely lowercase
// sequence carries no clip information.
func caseClips(s string) (left, right int) {
	for left < len(s) && isLower(s[left]) {
		left++
	}
	if left == len(s) {
		return 0, 0
	}
	for right < len(s)-left && isLower(s[len(s)-1-right]) {
		right++
	}
	return left, right
}

func isLower(b byte) bool {
	return b >= 'a' && b <= 'z'
}

func upper(b byte) byte {
	if isLower(b) {
		return b - 'a' + 'A'
	}
	return b
}
