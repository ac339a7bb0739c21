package encoder

import (
	"errors"
	"strconv"
	"strings"
)

// Phred encoding offsets.
const (
	Phred33Offset = 33
	Phred64Offset = 64
)

// SyntheticScore is the score used to pad quality strings that are shorter
// than their sequence.
const SyntheticScore = 30

// Numeric quality values outside this range are rejected.
const (
	minNumericScore = -10
	maxNumericScore = 93
)

// QualityEncoding represents the quality score encoding scheme.
type QualityEncoding uint8

// Quality encoding schemes.
const (
	EncodingAuto    QualityEncoding = iota // resolved from OffsetStats
	EncodingPhred33                        // Sanger/Illumina 1.8+ (offset 33)
	EncodingPhred64                        // Illumina 1.3-1.7 (offset 64)
	EncodingNumeric                        // whitespace separated integers (offset 0)
)

// ErrUnknownEncoding is returned by ParseEncoding for unsupported offsets.
var ErrUnknownEncoding = errors.New("quality offset must be one of 0, 33, 64 or auto")

// ParseEncoding maps the configured offset family onto an encoding.
func ParseEncoding(s string) (QualityEncoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return EncodingAuto, nil
	case "0":
		return EncodingNumeric, nil
	case "33":
		return EncodingPhred33, nil
	case "64":
		return EncodingPhred64, nil
	}
	return EncodingAuto, ErrUnknownEncoding
}

// Offset returns the ASCII offset of the encoding. Auto resolves to 33.
func (e QualityEncoding) Offset() int {
	switch e {
	case EncodingPhred64:
		return Phred64Offset
	case EncodingNumeric:
		return 0
	default:
		return Phred33Offset
	}
}

func (e QualityEncoding) String() string {
	switch e {
	case EncodingPhred33:
		return "phred33"
	case EncodingPhred64:
		return "phred64"
	case EncodingNumeric:
		return "numeric"
	default:
		return "auto"
	}
}

// QualityInfo describes one (possibly accumulated) quality payload.
type QualityInfo struct {
	Text    string // trimmed text; numeric scores are single-space separated
	Numeric bool
	Count   int // number of scores
	Valid   bool
	Min     int // smallest byte (ASCII) or value (numeric)
	Max     int
}

// ValidateQuality classifies a quality line. A line is numeric when its
// scores are separated by whitespace and every token is an integer; ASCII
// quality never contains spaces.
func ValidateQuality(line string) QualityInfo {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return QualityInfo{Valid: true}
	}
	if strings.ContainsAny(line, " \t") {
		if info, ok := parseNumeric(trimmed); ok {
			return info
		}
	}

	info := QualityInfo{Text: trimmed, Count: len(trimmed), Valid: true, Min: 255}
	for i := 0; i < len(trimmed); i++ {
		b := int(trimmed[i])
		if b < '!' || b > '~' {
			info.Valid = false
		}
		if b < info.Min {
			info.Min = b
		}
		if b > info.Max {
			info.Max = b
		}
	}
	return info
}

// ValidateNumeric parses line as whitespace separated integer scores, which
// is how single-value continuation lines of numeric quality must be read.
func ValidateNumeric(line string) QualityInfo {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return QualityInfo{Numeric: true, Valid: true}
	}
	if info, ok := parseNumeric(trimmed); ok {
		return info
	}
	return QualityInfo{Text: trimmed, Numeric: true, Count: len(strings.Fields(trimmed))}
}

func parseNumeric(trimmed string) (QualityInfo, bool) {
	fields := strings.Fields(trimmed)
	info := QualityInfo{Numeric: true, Valid: true, Count: len(fields), Min: maxNumericScore, Max: minNumericScore}
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return QualityInfo{}, false
		}
		if v < minNumericScore || v > maxNumericScore {
			info.Valid = false
		}
		info.Min = min(info.Min, v)
		info.Max = max(info.Max, v)
	}
	info.Text = strings.Join(fields, " ")
	return info, true
}

// JoinQuality appends b to a the way multi-line records accumulate quality:
// numeric scores are joined with a space, characters are concatenated.
func JoinQuality(a, b QualityInfo) QualityInfo {
	if a.Count == 0 {
		return b
	}
	if b.Count == 0 {
		return a
	}
	out := QualityInfo{
		Numeric: a.Numeric,
		Count:   a.Count + b.Count,
		Valid:   a.Valid && b.Valid && a.Numeric == b.Numeric,
		Min:     min(a.Min, b.Min),
		Max:     max(a.Max, b.Max),
	}
	if a.Numeric {
		out.Text = a.Text + " " + b.Text
	} else {
		out.Text = a.Text + b.Text
	}
	return out
}

// Adjustment reports what ReconcileQuality changed.
type Adjustment struct {
	Padded    int
	Truncated int
}

// Changed reports whether the quality was modified.
func (a Adjustment) Changed() bool {
	return a.Padded > 0 || a.Truncated > 0
}

// ReconcileQuality makes the score count equal to seqLen. Short quality is
// padded with SyntheticScore in the given encoding and long quality is
// truncated. Applying it to an already reconciled value is a no-op.
func ReconcileQuality(q QualityInfo, seqLen int, enc QualityEncoding) (QualityInfo, Adjustment) {
	var adj Adjustment
	switch {
	case q.Count == seqLen:
		return q, adj
	case q.Count > seqLen:
		adj.Truncated = q.Count - seqLen
		if q.Numeric {
			fields := strings.Fields(q.Text)
			q.Text = strings.Join(fields[:seqLen], " ")
		} else {
			q.Text = q.Text[:seqLen]
		}
	default:
		adj.Padded = seqLen - q.Count
		numeric := q.Numeric || (q.Count == 0 && enc == EncodingNumeric)
		var sb strings.Builder
		sb.WriteString(q.Text)
		for i := 0; i < adj.Padded; i++ {
			if numeric {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(strconv.Itoa(SyntheticScore))
			} else {
				sb.WriteByte(byte(SyntheticScore + enc.Offset()))
			}
		}
		q.Text = sb.String()
		q.Numeric = numeric
		q.Valid = q.Valid || q.Count == 0
	}
	q.Count = seqLen
	return q, adj
}

// Phred converts quality text into 0-based scores clamped to 0..93.
func Phred(text string, numeric bool, enc QualityEncoding) []byte {
	if numeric {
		fields := strings.Fields(text)
		out := make([]byte, len(fields))
		for i, f := range fields {
			v, _ := strconv.Atoi(f) //nolint:errcheck // validated by ValidateQuality
			out[i] = clampScore(v)
		}
		return out
	}
	offset := enc.Offset()
	out := make([]byte, len(text))
	for i := 0; i < len(text); i++ {
		out[i] = clampScore(int(text[i]) - offset)
	}
	return out
}

func clampScore(v int) byte {
	switch {
	case v < 0:
		return 0
	case v > maxNumericScore:
		return maxNumericScore
	}
	return byte(v)
}

// OffsetStats accumulates quality ranges over a pass so the offset family
// can be resolved before output.
type OffsetStats struct {
	minByte  int
	maxByte  int
	ascii    int
	numeric  int
	observed bool
}

// Add records one quality payload.
func (s *OffsetStats) Add(q QualityInfo) {
	if q.Count == 0 {
		return
	}
	if q.Numeric {
		s.numeric++
		return
	}
	if !s.observed || q.Min < s.minByte {
		s.minByte = q.Min
	}
	if !s.observed || q.Max > s.maxByte {
		s.maxByte = q.Max
	}
	s.observed = true
	s.ascii++
}

// Merge folds other into s.
func (s *OffsetStats) Merge(other OffsetStats) {
	s.numeric += other.numeric
	if !other.observed {
		return
	}
	if !s.observed || other.minByte < s.minByte {
		s.minByte = other.minByte
	}
	if !s.observed || other.maxByte > s.maxByte {
		s.maxByte = other.maxByte
	}
	s.observed = true
	s.ascii += other.ascii
}

// Range returns the smallest and largest ASCII quality byte seen.
func (s *OffsetStats) Range() (lo, hi int, ok bool) {
	return s.minByte, s.maxByte, s.observed
}

// Encoding resolves the offset family. Numeric payloads win when they are the
// majority. Otherwise: any byte < 59 (';') means Phred+33, a minimum >= 64
// ('@') means Phred+64, and the ambiguous 59-63 range defaults to Phred+33.
func (s *OffsetStats) Encoding() QualityEncoding {
	if s.numeric > s.ascii {
		return EncodingNumeric
	}
	if !s.observed {
		return EncodingPhred33
	}
	if s.minByte < 59 {
		return EncodingPhred33
	}
	if s.minByte >= 64 {
		return EncodingPhred64
	}
	return EncodingPhred33
}

// DetectEncoding scans raw quality strings and returns the likely encoding.
func DetectEncoding(qualities []string) QualityEncoding {
	var s OffsetStats
	for _, q := range qualities {
		s.Add(ValidateQuality(q))
	}
	return s.Encoding()
}

// DeltaEncode encodes quality scores using delta encoding in-place.
// Each value (except the first) becomes the difference from the previous value.
func DeltaEncode(qual []byte) {
	if len(qual) <= 1 {
		return
	}

	// Encode backwards to allow in-place operation
	for i := len(qual) - 1; i > 0; i-- {
		qual[i] -= qual[i-1]
	}
}

// DeltaDecode decodes delta-encoded quality scores in-place.
func DeltaDecode(qual []byte) {
	if len(qual) <= 1 {
		return
	}

	for i := 1; i < len(qual); i++ {
		qual[i] += qual[i-1]
	}
}
