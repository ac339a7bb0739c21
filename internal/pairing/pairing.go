// Package pairing decides which input files, or which positions within one
// file, hold the mates of each spot.
package pairing

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/vertti/fastqload/internal/defline"
	"github.com/vertti/fastqload/internal/parser"
)

// Defaults for the sampling bounds.
const (
	DefaultInterleaveSample = 10000
	DefaultDeepScan         = 250000
	DefaultDuplicateLimit   = 10
	MaxMates                = 6
)

var (
	// ErrUnknownLayout is returned for files whose layout cannot be sniffed.
	ErrUnknownLayout = errors.New("unrecognized file layout")
	// ErrDuplicateFile is returned when a file is added to a FileSet twice.
	ErrDuplicateFile = errors.New("file listed more than once")
	// ErrOrphanQuality is returned for a quality file without a sequence file.
	ErrOrphanQuality = errors.New("quality file has no matching sequence file")
	// ErrUnknownRole is returned by ParseRole.
	ErrUnknownRole = errors.New("file role must be 1-6 or q")
)

// Opener opens a file from its start. Reopening is how a file is re-read
// after sampling; every call yields fresh per-file state.
type Opener func(name string) (io.ReadCloser, error)

// Role is the configured part a file plays in a spot. Mate roles are 1-6.
type Role int8

// Non-mate roles.
const (
	RoleDetect  Role = 0  // decided from content
	RoleQuality Role = -1 // quality half of a split sequence/quality pair
)

// ParseRole parses "1".."6", "q" or "" (detect).
func ParseRole(s string) (Role, error) {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "", "auto":
		return RoleDetect, nil
	case "q", "qual", "quality":
		return RoleQuality, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > MaxMates {
		return RoleDetect, fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return Role(n), nil
}

// FileDescriptor is what the engine knows about one input file.
type FileDescriptor struct {
	Name   string
	Size   int64
	Layout parser.Layout
	Role   Role
	Index  int // position in the FileSet

	First       *parser.Record // nil for an empty file
	Hint        defline.Hint
	Names       []string // names of the first sampled records
	Records     int      // records sampled
	Complete    bool     // the sample reached end of file
	Interleaved bool
	GroupSize   int // largest run of consecutive records sharing a spot
	// ConcatBoundary is the record index where a file holding all first
	// reads followed by all second reads starts over; 0 if it does not.
	ConcatBoundary int
	Duplicates     int

	// Quality is the .qual partner of a sequence-only file.
	Quality *FileDescriptor

	sample *scan
}

// Empty reports a file without records.
func (fd *FileDescriptor) Empty() bool {
	return fd.First == nil
}

// FileSet owns the descriptors of one run, in input order.
type FileSet struct {
	Files  []*FileDescriptor
	byName map[string]*FileDescriptor
}

// NewFileSet creates an empty set.
func NewFileSet() *FileSet {
	return &FileSet{byName: make(map[string]*FileDescriptor)}
}

// Add appends fd.
func (fs *FileSet) Add(fd *FileDescriptor) error {
	if _, ok := fs.byName[fd.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFile, fd.Name)
	}
	fd.Index = len(fs.Files)
	fs.Files = append(fs.Files, fd)
	fs.byName[fd.Name] = fd
	return nil
}

// Get returns the descriptor for name.
func (fs *FileSet) Get(name string) (*FileDescriptor, bool) {
	fd, ok := fs.byName[name]
	return fd, ok
}

// Configured reports whether every file has an explicit role.
func (fs *FileSet) Configured() bool {
	if len(fs.Files) == 0 {
		return false
	}
	for _, fd := range fs.Files {
		if fd.Role == RoleDetect {
			return false
		}
	}
	return true
}

// Options configure the engine.
type Options struct {
	InterleaveSample int // records sampled per file for layout and interleave detection
	DeepScan         int // records scanned per unmated file
	DuplicateLimit   int // duplicate names tolerated in a sample
	IgnoreSpotGroup  bool
	IgnoreNames      bool // pair without comparing names
	AllowMixed       bool // mates may have different layouts

	// Reader is the template for sampling readers; File, Layout and Tracker
	// are set per file.
	Reader parser.Options
}

// DefaultOptions returns the default sampling bounds.
func DefaultOptions() Options {
	return Options{
		InterleaveSample: DefaultInterleaveSample,
		DeepScan:         DefaultDeepScan,
		DuplicateLimit:   DefaultDuplicateLimit,
		Reader:           parser.DefaultOptions(),
	}
}

// Engine samples files and builds a Plan. An Engine is used for one run.
type Engine struct {
	opts Options
	open Opener
	log  logrus.FieldLogger
	deep map[*FileDescriptor]*scan
}

// NewEngine creates an engine reading files through open.
func NewEngine(open Opener, opts Options, log logrus.FieldLogger) *Engine {
	d := DefaultOptions()
	if opts.InterleaveSample <= 0 {
		opts.InterleaveSample = d.InterleaveSample
	}
	if opts.DeepScan <= 0 {
		opts.DeepScan = d.DeepScan
	}
	if opts.DuplicateLimit <= 0 {
		opts.DuplicateLimit = d.DuplicateLimit
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Engine{
		opts: opts,
		open: open,
		log:  log,
		deep: make(map[*FileDescriptor]*scan),
	}
}

// Describe sniffs the layout of name and samples its leading records.
func (e *Engine) Describe(name string, size int64, role Role) (*FileDescriptor, error) {
	rc, err := e.open(name)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	lines, err := parser.Sniff(rc, parser.DefaultSniffLines)
	_ = rc.Close()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	fd := &FileDescriptor{Name: name, Size: size, Role: role}
	fd.Layout = parser.DetectLayout(lines)
	if fd.Layout == 0 {
		if blank(lines) {
			fd.Layout = parser.LayoutFastq
			return fd, nil
		}
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownLayout)
	}
	if role == RoleQuality {
		fd.Layout = parser.LayoutQuality
	}

	s, err := e.scan(fd, e.opts.InterleaveSample)
	if err != nil {
		return nil, err
	}
	fd.sample = s
	fd.First = s.first
	fd.Hint = s.hint
	fd.Names = s.names
	fd.Records = len(s.names)
	fd.Complete = s.complete

	if !fd.Layout.Has(parser.LayoutQuality) {
		fd.GroupSize, fd.Interleaved = interleaving(len(s.names), e.sameSpot(s))
		if fd.Interleaved {
			fd.Layout |= parser.LayoutInterleaved
		} else {
			fd.ConcatBoundary = concatBoundary(s)
		}
	}
	fd.Duplicates = duplicates(s.names, fd.Interleaved, fd.ConcatBoundary)

	e.log.WithFields(logrus.Fields{
		"file":        name,
		"layout":      fd.Layout.String(),
		"records":     fd.Records,
		"interleaved": fd.Interleaved,
		"concat":      fd.ConcatBoundary,
	}).Debug("described file")
	return fd, nil
}

// sameSpot reports whether sampled record j belongs to the spot starting
// at record i.
func (e *Engine) sameSpot(s *scan) func(i, j int) bool {
	if e.opts.IgnoreNames {
		return func(i, j int) bool {
			return s.readNums[i] >= 1 && s.readNums[j] == s.readNums[i]+(j-i)
		}
	}
	return func(i, j int) bool {
		return s.names[j] == s.names[i]
	}
}

func blank(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return false
		}
	}
	return true
}
