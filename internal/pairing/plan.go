package pairing

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/vertti/fastqload/internal/defline"
	"github.com/vertti/fastqload/internal/diag"
	"github.com/vertti/fastqload/internal/parser"
)

// Group is one set of files whose records form spots together.
type Group struct {
	// Files holds the mates in read order. Interleaved and concatenated
	// groups have a single file that supplies every mate.
	Files []*FileDescriptor
	// Orphans is set when mates were matched by scanning names rather than
	// by their first records; records may then be unmated.
	Orphans bool
	// IgnoreNames is set when duplicate names make them unusable.
	IgnoreNames bool

	keys []defline.Defline // identifier each file was ordered by
}

// Primary returns the file whose record order drives output.
func (g *Group) Primary() *FileDescriptor {
	return g.Files[0]
}

// Interleaved reports a single file holding consecutive mates.
func (g *Group) Interleaved() bool {
	return len(g.Files) == 1 && g.Files[0].Interleaved
}

// Concatenated reports a single file holding all first reads, then all
// second reads.
func (g *Group) Concatenated() bool {
	return len(g.Files) == 1 && g.Files[0].ConcatBoundary > 0
}

func (g *Group) names() []string {
	out := make([]string, len(g.Files))
	for i, fd := range g.Files {
		out[i] = fd.Name
	}
	return out
}

// Plan is the pairing decision for a whole run.
type Plan struct {
	Groups []*Group
}

// Endpoint is one side of a mate relation, used to order mates.
type Endpoint struct {
	File    string
	Index   int // first-encountered order
	Defline defline.Defline
}

// ReadBefore reports whether a supplies an earlier read of the spot than b.
// Rules apply in order: read number, nanopore template/complement/2D, AB
// SOLiD F3 tag, identifier line, file name, first encountered.
func ReadBefore(a, b Endpoint) bool {
	da, db := &a.Defline, &b.Defline
	if da.ReadNum != 0 && db.ReadNum != 0 && da.ReadNum != db.ReadNum {
		return da.ReadNum < db.ReadNum
	}
	if da.PoreRead != defline.PoreNone && db.PoreRead != defline.PoreNone && da.PoreRead != db.PoreRead {
		return da.PoreRead < db.PoreRead
	}
	if f3a, f3b := da.TagType == "F3", db.TagType == "F3"; f3a != f3b {
		return f3a
	}
	if da.Raw != db.Raw {
		return da.Raw < db.Raw
	}
	if a.File != b.File {
		return a.File < b.File
	}
	return a.Index < b.Index
}

// compatible reports whether b can be a mate of a.
func (e *Engine) compatible(a, b *defline.Defline) bool {
	if !e.opts.IgnoreNames && a.Name != b.Name {
		return false
	}
	if !e.opts.IgnoreSpotGroup && a.SpotGroup != b.SpotGroup {
		return false
	}
	if a.ReadNum != 0 && a.ReadNum == b.ReadNum {
		return false
	}
	if a.PoreRead != defline.PoreNone && a.PoreRead == b.PoreRead {
		return false
	}
	if a.TagType != "" && a.TagType == b.TagType {
		return false
	}
	return true
}

// accepts reports whether key fits every member of g.
func (e *Engine) accepts(g *Group, key *defline.Defline) bool {
	if len(g.Files) >= MaxMates {
		return false
	}
	for i := range g.keys {
		if !e.compatible(&g.keys[i], key) {
			return false
		}
	}
	return true
}

func (g *Group) add(fd *FileDescriptor, key defline.Defline) {
	g.Files = append(g.Files, fd)
	g.keys = append(g.keys, key)
}

// order sorts the mates of g by ReadBefore.
func (g *Group) order() {
	idx := make([]int, len(g.Files))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(x, y int) bool {
		a, b := idx[x], idx[y]
		return ReadBefore(
			Endpoint{File: g.Files[a].Name, Index: g.Files[a].Index, Defline: g.keys[a]},
			Endpoint{File: g.Files[b].Name, Index: g.Files[b].Index, Defline: g.keys[b]},
		)
	})
	files := make([]*FileDescriptor, len(idx))
	keys := make([]defline.Defline, len(idx))
	for i, j := range idx {
		files[i], keys[i] = g.Files[j], g.keys[j]
	}
	g.Files, g.keys = files, keys
}

// Plan builds the mate graph for fs.
func (e *Engine) Plan(fs *FileSet) (*Plan, error) {
	var seqs, quals []*FileDescriptor
	for _, fd := range fs.Files {
		if fd.Layout.Has(parser.LayoutQuality) {
			quals = append(quals, fd)
		} else {
			seqs = append(seqs, fd)
		}
	}

	var (
		groups []*Group
		err    error
	)
	if fs.Configured() {
		groups = e.planConfigured(seqs)
	} else if groups, err = e.planDetected(seqs); err != nil {
		return nil, err
	}

	if err := e.attachQuality(seqs, quals); err != nil {
		return nil, err
	}
	for _, g := range groups {
		if err := e.check(g); err != nil {
			return nil, err
		}
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Primary().Index < groups[j].Primary().Index
	})
	for _, g := range groups {
		e.log.WithFields(logrus.Fields{
			"files":        g.names(),
			"interleaved":  g.Interleaved(),
			"concatenated": g.Concatenated(),
			"orphans":      g.Orphans,
		}).Info("paired files")
	}
	return &Plan{Groups: groups}, nil
}

// planConfigured groups files by their configured roles: a role already
// present in the current group starts the next one.
func (e *Engine) planConfigured(seqs []*FileDescriptor) []*Group {
	var (
		groups []*Group
		cur    *Group
		roles  map[Role]bool
	)
	for _, fd := range seqs {
		if cur == nil || roles[fd.Role] {
			cur = &Group{}
			roles = make(map[Role]bool)
			groups = append(groups, cur)
		}
		var key defline.Defline
		if fd.First != nil {
			key = fd.First.Defline
		}
		key.ReadNum = int(fd.Role)
		cur.add(fd, key)
		roles[fd.Role] = true
	}
	for _, g := range groups {
		g.order()
	}
	return groups
}

func (e *Engine) planDetected(seqs []*FileDescriptor) ([]*Group, error) {
	var groups []*Group
	used := make(map[*FileDescriptor]bool)

	// Step 1: files that are their own mates.
	for _, fd := range seqs {
		if fd.Interleaved || fd.ConcatBoundary > 0 {
			g := &Group{}
			g.add(fd, fd.First.Defline)
			groups = append(groups, g)
			used[fd] = true
		}
	}

	// Step 2: first records.
	for i, a := range seqs {
		if used[a] || a.Empty() {
			continue
		}
		g := &Group{}
		g.add(a, a.First.Defline)
		for _, b := range seqs[i+1:] {
			if used[b] || b.Empty() {
				continue
			}
			if e.accepts(g, &b.First.Defline) {
				g.add(b, b.First.Defline)
				used[b] = true
			}
		}
		if len(g.Files) > 1 {
			used[a] = true
			g.order()
			groups = append(groups, g)
		}
	}

	// Step 3: name scan of the files still unmated.
	if !e.opts.IgnoreNames {
		for i, a := range seqs {
			if used[a] || a.Empty() {
				continue
			}
			g, err := e.scanMates(a, seqs[i+1:], used)
			if err != nil {
				return nil, err
			}
			if g != nil {
				groups = append(groups, g)
			}
		}

		// Step 4: nanopore consensus reads kept in a file of their own.
		for _, fd := range seqs {
			if used[fd] || fd.Empty() || !is2D(fd) {
				continue
			}
			if err := e.attach2D(fd, groups, used); err != nil {
				return nil, err
			}
		}
	}

	for _, fd := range seqs {
		if !used[fd] {
			g := &Group{}
			var key defline.Defline
			if fd.First != nil {
				key = fd.First.Defline
			}
			g.add(fd, key)
			groups = append(groups, g)
		}
	}
	return groups, nil
}

// scanMates pairs a with later unmated files sharing enough names.
func (e *Engine) scanMates(a *FileDescriptor, rest []*FileDescriptor, used map[*FileDescriptor]bool) (*Group, error) {
	sa, err := e.deepScan(a)
	if err != nil {
		return nil, err
	}
	var g *Group
	for _, b := range rest {
		if used[b] || b.Empty() {
			continue
		}
		sb, err := e.deepScan(b)
		if err != nil {
			return nil, err
		}
		name, n := shared(sa, sb)
		if n == 0 || n < max(1, min(len(sa.raw), len(sb.raw))/10) {
			continue
		}
		ka, kb := sa.key(name, e.opts.Reader.Defline), sb.key(name, e.opts.Reader.Defline)
		if g == nil {
			if !e.compatible(&ka, &kb) {
				continue
			}
			g = &Group{Orphans: true}
			g.add(a, ka)
		}
		if e.accepts(g, &kb) {
			g.add(b, kb)
			used[b] = true
		}
	}
	if g == nil {
		return nil, nil
	}
	used[a] = true
	g.order()
	e.log.WithField("files", g.names()).Debug("paired by name scan")
	return g, nil
}

func has2D(g *Group) bool {
	for _, k := range g.keys {
		if k.PoreRead == defline.Pore2D {
			return true
		}
	}
	return false
}

func is2D(fd *FileDescriptor) bool {
	d := fd.First.Defline
	return d.Platform() == defline.PlatformNanopore && d.PoreRead == defline.Pore2D
}

// attach2D adds a consensus-only file to the nanopore group sharing names
// with its primary file.
func (e *Engine) attach2D(fd *FileDescriptor, groups []*Group, used map[*FileDescriptor]bool) error {
	s, err := e.deepScan(fd)
	if err != nil {
		return err
	}
	for _, g := range groups {
		p := g.Primary()
		if p.Empty() || p.First.Defline.Platform() != defline.PlatformNanopore || len(g.Files) >= MaxMates || has2D(g) {
			continue
		}
		sp, err := e.deepScan(p)
		if err != nil {
			return err
		}
		name, n := shared(sp, s)
		if n == 0 {
			continue
		}
		g.add(fd, s.key(name, e.opts.Reader.Defline))
		g.Orphans = true
		g.order()
		used[fd] = true
		return nil
	}
	return nil
}

// attachQuality gives each .qual file to the sequence file whose first
// record has the same name and read number.
func (e *Engine) attachQuality(seqs, quals []*FileDescriptor) error {
	for _, q := range quals {
		if q.Empty() {
			continue
		}
		var match *FileDescriptor
		for _, fd := range seqs {
			if fd.Quality != nil || fd.Empty() || !fd.Layout.Has(parser.LayoutFasta) {
				continue
			}
			if fd.First.Name() == q.First.Name() && fd.First.Defline.ReadNum == q.First.Defline.ReadNum {
				match = fd
				break
			}
		}
		if match == nil {
			return fmt.Errorf("%s: %w", q.Name, ErrOrphanQuality)
		}
		match.Quality = q
	}
	return nil
}

// check applies the layout and duplicate-name consistency rules.
func (e *Engine) check(g *Group) error {
	p := g.Primary()
	if !e.opts.AllowMixed {
		for _, fd := range g.Files[1:] {
			if fd.Layout.Base() != p.Layout.Base() {
				return diag.Fatalf(fd.Name, 0, diag.ErrMixedLayouts, "%s is %s, %s is %s",
					p.Name, p.Layout.Base(), fd.Name, fd.Layout.Base())
			}
		}
	}
	if e.opts.IgnoreNames {
		return nil
	}
	for _, fd := range g.Files {
		if fd.Duplicates <= e.opts.DuplicateLimit {
			continue
		}
		if len(g.Files) == 1 && !g.Interleaved() && !g.Concatenated() {
			g.IgnoreNames = true
			e.log.WithFields(logrus.Fields{"file": fd.Name, "duplicates": fd.Duplicates}).
				Warn("duplicate spot names, names will not be used")
			continue
		}
		return diag.Fatalf(fd.Name, 0, diag.ErrDuplicateNames,
			"%d repeated names in the first %d records; rerun ignoring names", fd.Duplicates, fd.Records)
	}
	return nil
}
