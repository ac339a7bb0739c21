// Package diag rate-limits warnings and turns exhausted ceilings into fatal
// errors that name the offending file and line.
package diag

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// Fatal conditions.
var (
	ErrTooManyDiscards = errors.New("too many discarded lines")
	ErrDeflineSearch   = errors.New("no valid defline found within search limit")
	ErrMaxLines        = errors.New("too many lines between deflines")
	ErrDeflineLength   = errors.New("defline exceeds maximum length")
	ErrMismatchCeiling = errors.New("too many sequence/quality length mismatches")
	ErrMateEOF         = errors.New("mate file ended early")
	ErrMateNames       = errors.New("mate names do not match")
	ErrMixedLayouts    = errors.New("paired files have different layouts")
	ErrDuplicateNames  = errors.New("duplicate spot names")
	ErrConfig          = errors.New("invalid configuration")
)

// Warning kinds counted by Tracker.
const (
	KindDiscard        = "discard"
	KindQualityLength  = "quality-length"
	KindMissingQuality = "missing-quality"
	KindTruncated      = "truncated-stream"
	KindOrphan         = "orphan"
	KindDuplicate      = "duplicate-read"
	KindEmptyRead      = "empty-read"
)

// DefaultRepeatLimit is the number of identical discarded lines that marks
// the start of a corrupt region.
const DefaultRepeatLimit = 25

// maxTrackedContents bounds the repetition table.
const maxTrackedContents = 10000

// FatalError is an unrecoverable condition tied to a file position.
type FatalError struct {
	File string
	Line int
	Msg  string
	Err  error
}

func (e *FatalError) Error() string {
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
	case e.File != "":
		return fmt.Sprintf("%s: %s", e.File, e.Msg)
	}
	return e.Msg
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatalf builds a FatalError wrapping err.
func Fatalf(file string, line int, err error, format string, args ...any) *FatalError {
	msg := err.Error()
	if format != "" {
		msg = fmt.Sprintf("%s: %s", msg, fmt.Sprintf(format, args...))
	}
	return &FatalError{File: file, Line: line, Msg: msg, Err: err}
}

type occurrence struct {
	file  string
	line  int
	count int
}

// seenKey scopes repeated content to the file it was discarded from.
type seenKey struct {
	file    string
	content string
}

// Tracker counts warning events per kind and remembers discarded content so
// a repeating corrupt pattern can be reported by its first line.
type Tracker struct {
	log         logrus.FieldLogger
	warnLimit   int
	repeatLimit int
	counts      map[string]int
	seen        map[seenKey]*occurrence
}

// NewTracker logs up to warnLimit events per kind. A warnLimit < 0 logs all
// events; repeatLimit <= 0 uses DefaultRepeatLimit.
func NewTracker(log logrus.FieldLogger, warnLimit, repeatLimit int) *Tracker {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	if repeatLimit <= 0 {
		repeatLimit = DefaultRepeatLimit
	}
	return &Tracker{
		log:         log,
		warnLimit:   warnLimit,
		repeatLimit: repeatLimit,
		counts:      make(map[string]int),
		seen:        make(map[seenKey]*occurrence),
	}
}

// Logger returns the underlying logger.
func (t *Tracker) Logger() logrus.FieldLogger {
	return t.log
}

// Warn counts an event of kind and logs it while under the ceiling.
func (t *Tracker) Warn(kind, file string, line int, format string, args ...any) {
	t.counts[kind]++
	if t.warnLimit >= 0 && t.counts[kind] > t.warnLimit {
		return
	}
	entry := t.log.WithField("kind", kind)
	if file != "" {
		entry = entry.WithField("file", file)
	}
	if line > 0 {
		entry = entry.WithField("line", line)
	}
	entry.Warnf(format, args...)
}

// Count returns how many events of kind were seen.
func (t *Tracker) Count(kind string) int {
	return t.counts[kind]
}

// Observe remembers discarded content for repetition detection.
func (t *Tracker) Observe(file string, line int, content string) {
	k := seenKey{file: file, content: content}
	if o, ok := t.seen[k]; ok {
		o.count++
		return
	}
	if len(t.seen) >= maxTrackedContents {
		return
	}
	t.seen[k] = &occurrence{file: file, line: line, count: 1}
}

// CorruptionStart returns the earliest position of any content observed at
// least repeatLimit times.
func (t *Tracker) CorruptionStart(file string) (int, bool) {
	best := 0
	for _, o := range t.seen {
		if o.count < t.repeatLimit || (file != "" && o.file != file) {
			continue
		}
		if best == 0 || o.line < best {
			best = o.line
		}
	}
	return best, best > 0
}

// Corrupt builds a fatal error for an exhausted ceiling, pointing at the
// start of a repeating corrupt region when one was observed.
func (t *Tracker) Corrupt(file string, line int, err error, format string, args ...any) *FatalError {
	fe := Fatalf(file, line, err, format, args...)
	if start, ok := t.CorruptionStart(file); ok {
		fe.Msg += fmt.Sprintf(" (corruption starting at line %d)", start)
	}
	return fe
}

// Reset forgets per-file repetition state for file.
func (t *Tracker) Reset(file string) {
	for k := range t.seen {
		if k.file == file {
			delete(t.seen, k)
		}
	}
}

// Summary logs the totals of kinds whose events were suppressed.
func (t *Tracker) Summary() {
	kinds := make([]string, 0, len(t.counts))
	for k := range t.counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		n := t.counts[k]
		if t.warnLimit >= 0 && n > t.warnLimit {
			t.log.WithFields(logrus.Fields{"kind": k, "total": n}).
				Warnf("%d further %s warnings suppressed", n-t.warnLimit, k)
		}
	}
}
