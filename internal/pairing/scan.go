package pairing

import (
	"errors"
	"fmt"
	"io"

	"github.com/vertti/fastqload/internal/defline"
	"github.com/vertti/fastqload/internal/diag"
	"github.com/vertti/fastqload/internal/parser"
)

// scan is the name cache built from the leading records of a file.
type scan struct {
	names    []string
	readNums []int
	raw      map[string]string // first identifier line seen for each name
	first    *parser.Record
	hint     defline.Hint
	complete bool
}

// scan reads up to limit records of fd from its start.
func (e *Engine) scan(fd *FileDescriptor, limit int) (*scan, error) {
	rc, err := e.open(fd.Name)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", fd.Name, err)
	}
	defer func() { _ = rc.Close() }()

	o := e.opts.Reader
	o.File = fd.Name
	o.Layout = fd.Layout
	o.Tracker = diag.NewTracker(nil, 0, 0)
	src := parser.NewSource(rc, o)

	s := &scan{raw: make(map[string]string)}
	for len(s.names) < limit {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			s.complete = true
			break
		}
		if err != nil {
			return nil, err
		}
		if s.first == nil {
			s.first = rec
		}
		name := rec.Name()
		s.names = append(s.names, name)
		s.readNums = append(s.readNums, rec.Defline.ReadNum)
		if _, ok := s.raw[name]; !ok {
			s.raw[name] = rec.Defline.Raw
		}
	}
	if h, ok := src.(interface{ Hint() defline.Hint }); ok {
		s.hint = h.Hint()
	}
	return s, nil
}

// deepScan returns the name cache of fd bounded by DeepScan records,
// reusing the sample when it already covered the whole file.
func (e *Engine) deepScan(fd *FileDescriptor) (*scan, error) {
	if s, ok := e.deep[fd]; ok {
		return s, nil
	}
	s := fd.sample
	if s == nil || !s.complete && len(s.names) < e.opts.DeepScan {
		var err error
		if s, err = e.scan(fd, e.opts.DeepScan); err != nil {
			return nil, err
		}
	}
	e.deep[fd] = s
	return s, nil
}

// shared returns the first name of b's cache also present in a's, and how
// many distinct names the two share.
func shared(a, b *scan) (string, int) {
	var (
		first string
		n     int
	)
	seen := make(map[string]bool, len(b.names))
	for _, name := range b.names {
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := a.raw[name]; ok {
			if n == 0 {
				first = name
			}
			n++
		}
	}
	return first, n
}

// key classifies the cached identifier of name.
func (s *scan) key(name string, opts defline.Options) defline.Defline {
	return defline.Classify(s.raw[name], s.hint, opts)
}

// interleaving groups consecutive records of the same spot. A file is
// interleaved when at least half of its sampled records sit in such runs.
func interleaving(n int, same func(i, j int) bool) (int, bool) {
	inRuns, longest := 0, 1
	for i := 0; i < n; {
		j := i + 1
		for j < n && j-i < MaxMates && same(i, j) {
			j++
		}
		if run := j - i; run > 1 {
			inRuns += run
			longest = max(longest, run)
		}
		i = j
	}
	return longest, inRuns > 0 && inRuns*2 >= n
}

// concatBoundary finds where a file holding all first reads followed by all
// second reads starts repeating its names. The repeat must carry a different
// read number and continue for the next few records.
func concatBoundary(s *scan) int {
	const confirm = 3
	names := s.names
	for k := 2; k < len(names); k++ {
		if names[k] != names[0] {
			continue
		}
		if s.readNums[0] == s.readNums[k] {
			return 0
		}
		n := min(len(names)-k, k, confirm)
		for i := 1; i < n; i++ {
			if names[k+i] != names[i] {
				return 0
			}
		}
		return k
	}
	return 0
}

// duplicates counts names repeated within the sample, ignoring adjacent
// mates of an interleaved file and the second half of a concatenated one.
func duplicates(names []string, interleaved bool, boundary int) int {
	if boundary > 0 {
		names = names[:boundary]
	}
	seen := make(map[string]bool, len(names))
	n := 0
	for i, name := range names {
		if interleaved && i > 0 && names[i-1] == name {
			continue
		}
		if seen[name] {
			n++
		}
		seen[name] = true
	}
	return n
}
