package loader

import (
	"context"

	"github.com/vertti/fastqload/internal/diag"
	"github.com/vertti/fastqload/internal/pairing"
	"github.com/vertti/fastqload/internal/parser"
)

// loadMates reads the files of a group together. The primary file drives
// output order. Mates are found by name, looking ahead in each mate file
// through a bounded buffer, or taken in lockstep when names are not used.
func (l *Loader) loadMates(ctx context.Context, g *pairing.Group, useNames bool) error {
	mates := make([]*mate, 0, len(g.Files))
	defer func() {
		for _, m := range mates {
			m.close()
		}
	}()
	for i, fd := range g.Files {
		m, err := l.openMate(fd, i)
		if err != nil {
			return err
		}
		mates = append(mates, m)
	}

	primary := mates[0]
	for n := 0; ; n++ {
		if err := checkpoint(ctx, n); err != nil {
			return err
		}
		rec, err := l.next(primary, useNames, false)
		if err != nil {
			return err
		}
		if rec == nil {
			break
		}

		reads := []*parser.Record{rec}
		pos := []int{0}
		for _, m := range mates[1:] {
			var r *parser.Record
			if useNames {
				r, err = l.matchByName(m, rec, n, g.Orphans)
			} else {
				r, err = l.matchInStep(m, rec)
			}
			if err != nil {
				return err
			}
			if r != nil {
				reads = append(reads, r)
				pos = append(pos, m.position)
			}
		}
		if len(reads) < len(mates) {
			l.stats.Orphans++
			l.tracker.Warn(diag.KindOrphan, rec.File, rec.Line, "%s has %d of %d mates", rec.Name(), len(reads), len(mates))
		}
		if err := l.emit(reads, pos); err != nil {
			return err
		}
		for _, m := range mates[1:] {
			if err := l.expire(m, n); err != nil {
				return err
			}
		}
	}

	for _, m := range mates[1:] {
		if err := l.drain(m, primary, useNames && g.Orphans); err != nil {
			return err
		}
	}
	return nil
}

// matchInStep takes the next record of m for rec.
func (l *Loader) matchInStep(m *mate, rec *parser.Record) (*parser.Record, error) {
	r, err := l.next(m, false, false)
	if err != nil || r != nil {
		return r, err
	}
	if !l.cfg.AllowEarlyEOF {
		return nil, diag.Fatalf(m.fd.Name, m.line(), diag.ErrMateEOF,
			"%s continues at line %d", rec.File, rec.Line)
	}
	return nil, nil
}

// matchByName finds the record of m named like rec, reading ahead until it
// appears, the buffer is full or m ends. The mate files of a group paired by
// first records must not end first.
func (l *Loader) matchByName(m *mate, rec *parser.Record, n int, orphans bool) (*parser.Record, error) {
	name := rec.Name()
	if r := m.take(name); r != nil {
		return r, nil
	}
	for !m.eof && m.live < l.cfg.Pending {
		r, err := l.next(m, true, false)
		if err != nil {
			return nil, err
		}
		if r == nil {
			break
		}
		if r.Name() == name {
			return r, nil
		}
		m.hold(r, n)
	}
	if m.eof && m.live == 0 && !orphans && !l.cfg.AllowEarlyEOF {
		return nil, diag.Fatalf(m.fd.Name, m.line(), diag.ErrMateEOF,
			"%s continues at line %d", rec.File, rec.Line)
	}
	return nil, nil
}

func (m *mate) hold(rec *parser.Record, at int) {
	h := &held{rec: rec, at: at}
	m.queue = append(m.queue, h)
	m.byName[rec.Name()] = append(m.byName[rec.Name()], h)
	m.live++
}

func (m *mate) take(name string) *parser.Record {
	list := m.byName[name]
	if len(list) == 0 {
		return nil
	}
	h := list[0]
	if len(list) == 1 {
		delete(m.byName, name)
	} else {
		m.byName[name] = list[1:]
	}
	h.taken = true
	m.live--
	return h.rec
}

// expire emits held records of m that were read more than Pending primary
// records ago; their mates are too far away to be found.
func (l *Loader) expire(m *mate, n int) error {
	for len(m.queue) > 0 {
		h := m.queue[0]
		if !h.taken {
			if n-h.at <= l.cfg.Pending {
				return nil
			}
			m.take(h.rec.Name())
			if err := l.orphan(h.rec, m.position); err != nil {
				return err
			}
		}
		m.queue[0] = nil
		m.queue = m.queue[1:]
	}
	return nil
}

// drain emits what is left of m after the primary file ended. Unread
// records mean the primary ended early unless orphans are expected.
func (l *Loader) drain(m, primary *mate, orphans bool) error {
	for _, h := range m.queue {
		if h.taken {
			continue
		}
		if err := l.orphan(h.rec, m.position); err != nil {
			return err
		}
	}
	m.queue, m.byName, m.live = nil, nil, 0

	for {
		r, err := l.next(m, false, false)
		if err != nil {
			return err
		}
		if r == nil {
			return nil
		}
		if !orphans && !l.cfg.AllowEarlyEOF {
			return diag.Fatalf(primary.fd.Name, primary.line(), diag.ErrMateEOF,
				"%s continues at line %d", r.File, r.Line)
		}
		if err := l.orphan(r, m.position); err != nil {
			return err
		}
	}
}
