package loader

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/vertti/fastqload/internal/diag"
	"github.com/vertti/fastqload/internal/encoder"
	"github.com/vertti/fastqload/internal/pairing"
	"github.com/vertti/fastqload/internal/parser"
	"github.com/vertti/fastqload/internal/spot"
)

// mate is the output-pass cursor over one file of a group.
type mate struct {
	fd       *pairing.FileDescriptor
	src      parser.Source
	close    func()
	position int // read position in the spot
	eof      bool
	last     *parser.Record

	// records read ahead while looking for a name
	queue  []*held
	byName map[string][]*held
	live   int
}

type held struct {
	rec   *parser.Record
	at    int // primary record being matched when this was read
	taken bool
}

func (l *Loader) openMate(fd *pairing.FileDescriptor, position int) (*mate, error) {
	src, closeFn, err := l.source(fd, l.outputOptions(fd))
	if err != nil {
		return nil, err
	}
	return &mate{
		fd:       fd,
		src:      src,
		close:    closeFn,
		position: position,
		byName:   make(map[string][]*held),
	}, nil
}

// line returns the last line read from m, when its source tracks lines.
func (m *mate) line() int {
	if s, ok := m.src.(interface{ Line() int }); ok {
		return s.Line()
	}
	if m.last != nil {
		return m.last.Line
	}
	return 0
}

// load writes the spots of one group.
func (l *Loader) load(ctx context.Context, g *pairing.Group) error {
	l.log.WithFields(logrus.Fields{
		"files":        len(g.Files),
		"primary":      g.Primary().Name,
		"interleaved":  g.Interleaved(),
		"concatenated": g.Concatenated(),
	}).Debug("loading group")

	useNames := !l.cfg.ignoreNames() && !g.IgnoreNames
	switch {
	case g.Interleaved():
		return l.loadInterleaved(ctx, g, useNames)
	case g.Concatenated():
		return l.loadConcatenated(ctx, g, useNames)
	case len(g.Files) == 1:
		return l.loadSingle(ctx, g, useNames)
	}
	return l.loadMates(ctx, g, useNames)
}

// next returns the next record of m, or nil at end of file. A record
// repeating the previous one's name and read number is dropped when
// duplicates are detected.
func (l *Loader) next(m *mate, useNames, interleaved bool) (*parser.Record, error) {
	for !m.eof {
		rec, err := m.src.Next()
		if errors.Is(err, io.EOF) {
			m.eof = true
			break
		}
		if err != nil {
			return nil, err
		}
		if useNames && l.cfg.DetectDuplicates && m.last != nil && isDuplicate(m.last, rec, interleaved) {
			l.stats.Duplicates++
			l.tracker.Warn(diag.KindDuplicate, rec.File, rec.Line, "duplicate read %s dropped", rec.Name())
			continue
		}
		m.last = rec
		return rec, nil
	}
	return nil, nil
}

func isDuplicate(prev, rec *parser.Record, interleaved bool) bool {
	if prev.Name() != rec.Name() || prev.Defline.ReadNum != rec.Defline.ReadNum {
		return false
	}
	// Interleaved mates share a name; only a repeated read number is a repeat.
	return !interleaved || rec.Defline.ReadNum != 0
}

func checkpoint(ctx context.Context, n int) error {
	if n%checkEvery == 0 {
		return ctx.Err()
	}
	return nil
}

func positions(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// loadSingle writes one spot per record, splitting records into fixed
// reads when read lengths are declared.
func (l *Loader) loadSingle(ctx context.Context, g *pairing.Group, useNames bool) error {
	m, err := l.openMate(g.Primary(), 0)
	if err != nil {
		return err
	}
	defer m.close()

	for n := 0; ; n++ {
		if err := checkpoint(ctx, n); err != nil {
			return err
		}
		rec, err := l.next(m, useNames, false)
		if err != nil {
			return err
		}
		if rec == nil {
			return nil
		}
		reads := []*parser.Record{rec}
		if len(l.cfg.ReadLengths) > 1 {
			reads = splitRecord(rec, l.cfg.ReadLengths)
		}
		if err := l.emit(reads, positions(len(reads))); err != nil {
			return err
		}
	}
}

// loadInterleaved groups consecutive records of the same spot.
func (l *Loader) loadInterleaved(ctx context.Context, g *pairing.Group, useNames bool) error {
	fd := g.Primary()
	m, err := l.openMate(fd, 0)
	if err != nil {
		return err
	}
	defer m.close()

	size := max(fd.GroupSize, 2)
	var run []*parser.Record
	flush := func() error {
		if len(run) == 0 {
			return nil
		}
		reads := run
		run = nil
		if len(reads) == 1 && size > 1 {
			return l.orphan(reads[0], readPosition(reads[0], 0))
		}
		pos := make([]int, len(reads))
		for i, r := range reads {
			pos[i] = readPosition(r, i)
		}
		byPosition(reads, pos)
		return l.emit(reads, pos)
	}

	for n := 0; ; n++ {
		if err := checkpoint(ctx, n); err != nil {
			return err
		}
		rec, err := l.next(m, useNames, true)
		if err != nil {
			return err
		}
		if rec == nil {
			return flush()
		}
		if len(run) > 0 {
			same := len(run) < size
			if useNames {
				same = len(run) < spot.MaxReads && run[0].Name() == rec.Name()
			}
			if !same {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		run = append(run, rec)
	}
}

// readPosition places a read by its read number, falling back to its
// position in the file.
func readPosition(rec *parser.Record, i int) int {
	if n := rec.Defline.ReadNum; n >= 1 && n <= spot.MaxReads {
		return n - 1
	}
	return i
}

// byPosition orders reads by read position, keeping file order for ties.
func byPosition(reads []*parser.Record, pos []int) {
	idx := positions(len(reads))
	sort.SliceStable(idx, func(x, y int) bool { return pos[idx[x]] < pos[idx[y]] })
	sorted := make([]*parser.Record, len(reads))
	sortedPos := make([]int, len(pos))
	for i, j := range idx {
		sorted[i], sortedPos[i] = reads[j], pos[j]
	}
	copy(reads, sorted)
	copy(pos, sortedPos)
}

// loadConcatenated pairs the first half of a file with its second half. The
// boundary was found in the pairing sample, so the first half is held in
// memory.
func (l *Loader) loadConcatenated(ctx context.Context, g *pairing.Group, useNames bool) error {
	fd := g.Primary()
	m, err := l.openMate(fd, 0)
	if err != nil {
		return err
	}
	defer m.close()

	firsts := make([]*parser.Record, 0, fd.ConcatBoundary)
	for len(firsts) < fd.ConcatBoundary {
		rec, err := l.next(m, useNames, false)
		if err != nil {
			return err
		}
		if rec == nil {
			break
		}
		firsts = append(firsts, rec)
	}

	for n := 0; ; n++ {
		if err := checkpoint(ctx, n); err != nil {
			return err
		}
		rec, err := l.next(m, useNames, false)
		if err != nil {
			return err
		}
		if rec == nil {
			if n < len(firsts) && !l.cfg.AllowEarlyEOF {
				return diag.Fatalf(fd.Name, m.line(), diag.ErrMateEOF,
					"second half has %d of %d records", n, len(firsts))
			}
			for _, r := range firsts[min(n, len(firsts)):] {
				if err := l.orphan(r, 0); err != nil {
					return err
				}
			}
			return nil
		}
		if n >= len(firsts) {
			if err := l.orphan(rec, 1); err != nil {
				return err
			}
			continue
		}
		first := firsts[n]
		firsts[n] = nil
		if useNames && first.Name() != rec.Name() {
			if err := l.orphan(first, 0); err != nil {
				return err
			}
			if err := l.orphan(rec, 1); err != nil {
				return err
			}
			continue
		}
		if err := l.emit([]*parser.Record{first, rec}, []int{0, 1}); err != nil {
			return err
		}
	}
}

// splitRecord cuts rec into reads of the given lengths. A final length of
// 0 takes the remainder; reads past the end of the sequence are empty.
func splitRecord(rec *parser.Record, lengths []int) []*parser.Record {
	seq := rec.Sequence.Text
	var scores []string
	if rec.Quality.Numeric {
		scores = strings.Fields(rec.Quality.Text)
	}
	out := make([]*parser.Record, len(lengths))
	start := 0
	for i, n := range lengths {
		last := i == len(lengths)-1
		end := start + n
		if (last && n == 0) || end > len(seq) {
			end = len(seq)
		}
		part := *rec
		part.Defline.ReadNum = i + 1
		part.Sequence.Text = seq[start:end]
		part.Sequence.ClipLeft, part.Sequence.ClipRight = 0, 0
		if i == 0 {
			part.Sequence.ClipLeft = rec.Sequence.ClipLeft
		} else {
			part.Sequence.Key = 0
		}
		if last {
			part.Sequence.ClipRight = rec.Sequence.ClipRight
		}
		q := rec.Quality
		switch {
		case q.Numeric && end <= len(scores):
			q.Text = strings.Join(scores[start:end], " ")
		case !q.Numeric && end <= len(q.Text):
			q.Text = q.Text[start:end]
		default:
			q.Text = ""
		}
		q.Count = len(part.Sequence.Text)
		if q.Text == "" {
			q = encoder.QualityInfo{Numeric: q.Numeric, Valid: true}
		}
		part.Quality = q
		out[i] = &part
		start = end
	}
	return out
}
