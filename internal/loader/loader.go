// Package loader runs a complete load. It pairs the input files, surveys
// them for sticky identifier formats and the quality encoding, then reads
// them again to assemble spots for a Sink.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/vertti/fastqload/internal/defline"
	"github.com/vertti/fastqload/internal/diag"
	"github.com/vertti/fastqload/internal/encoder"
	"github.com/vertti/fastqload/internal/pairing"
	"github.com/vertti/fastqload/internal/parser"
	"github.com/vertti/fastqload/internal/spot"
)

// ErrNoInput is returned by Run without input files.
var ErrNoInput = errors.New("no input files")

// checkEvery is how many records pass between cancellation checks.
const checkEvery = 4096

// Input is one file to load.
type Input struct {
	Name string
	Size int64
	Role pairing.Role
}

// Header describes the spots that follow.
type Header struct {
	Encoding       encoder.QualityEncoding
	Files          []string
	NamesDiscarded bool
}

// Sink receives spots in output order.
type Sink interface {
	Start(Header) error
	Write(*spot.Spot) error
}

// Stats summarizes a run.
type Stats struct {
	Groups     int
	Spots      int
	Reads      int
	Orphans    int
	Duplicates int
	Discards   int
	Adjusted   int
	Encoding   encoder.QualityEncoding
}

// Loader runs loads with one configuration.
type Loader struct {
	cfg  Config
	open pairing.Opener
	log  logrus.FieldLogger

	// per run
	tracker *diag.Tracker
	hints   map[string]defline.Hint
	enc     encoder.QualityEncoding
	sink    Sink
	stats   Stats
}

// New validates cfg and creates a loader reading files through open.
func New(cfg Config, open pairing.Opener, log logrus.FieldLogger) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Loader{cfg: cfg, open: open, log: log}, nil
}

// Run loads inputs into sink.
func (l *Loader) Run(ctx context.Context, inputs []Input, sink Sink) (*Stats, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInput
	}
	l.sink = sink
	l.stats = Stats{}
	l.hints = make(map[string]defline.Hint)
	l.tracker = diag.NewTracker(l.log, l.cfg.WarnLimit, l.cfg.RepeatLimit)

	plan, err := l.plan(inputs)
	if err != nil {
		return nil, err
	}
	if l.enc, err = l.survey(ctx, plan); err != nil {
		return nil, err
	}
	l.stats.Encoding = l.enc
	l.stats.Groups = len(plan.Groups)

	files := make([]string, len(inputs))
	for i, in := range inputs {
		files[i] = in.Name
	}
	if err := sink.Start(Header{Encoding: l.enc, Files: files, NamesDiscarded: l.cfg.Names == NamesDiscard}); err != nil {
		return nil, fmt.Errorf("starting output: %w", err)
	}

	for _, g := range plan.Groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := l.load(ctx, g); err != nil {
			return nil, err
		}
	}

	l.tracker.Summary()
	l.stats.Discards = l.tracker.Count(diag.KindDiscard)
	l.stats.Adjusted = l.tracker.Count(diag.KindQualityLength)
	l.log.WithFields(logrus.Fields{
		"spots":    l.stats.Spots,
		"reads":    l.stats.Reads,
		"orphans":  l.stats.Orphans,
		"discards": l.stats.Discards,
		"encoding": l.enc.String(),
	}).Info("load complete")
	stats := l.stats
	return &stats, nil
}

func (l *Loader) plan(inputs []Input) (*pairing.Plan, error) {
	e := pairing.NewEngine(l.open, l.cfg.pairingOptions(), l.log)
	fs := pairing.NewFileSet()
	for _, in := range inputs {
		fd, err := e.Describe(in.Name, in.Size, in.Role)
		if err != nil {
			return nil, err
		}
		if err := fs.Add(fd); err != nil {
			return nil, err
		}
	}
	return e.Plan(fs)
}

// survey reads every file once, fixing its sticky identifier format and
// collecting the quality range that resolves an automatic encoding.
func (l *Loader) survey(ctx context.Context, plan *pairing.Plan) (encoder.QualityEncoding, error) {
	var stats encoder.OffsetStats
	for _, g := range plan.Groups {
		for _, fd := range g.Files {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			s, err := l.surveyFile(fd)
			if err != nil {
				return 0, err
			}
			stats.Merge(s)
		}
	}
	enc := l.cfg.Encoding
	if enc == encoder.EncodingAuto {
		enc = stats.Encoding()
	}
	lo, hi, _ := stats.Range()
	l.log.WithFields(logrus.Fields{"encoding": enc.String(), "min": lo, "max": hi}).Debug("survey complete")
	return enc, nil
}

func (l *Loader) surveyFile(fd *pairing.FileDescriptor) (encoder.OffsetStats, error) {
	var stats encoder.OffsetStats
	o := l.cfg.readerOptions()
	o.Encoding = encoder.EncodingAuto
	o.Hint = fd.Hint
	o.Tracker = diag.NewTracker(nil, 0, l.cfg.RepeatLimit)
	src, closeFn, err := l.source(fd, o)
	if err != nil {
		return stats, err
	}
	defer closeFn()

	for n := 0; l.cfg.SurveyLimit == 0 || n < l.cfg.SurveyLimit; n++ {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, err
		}
		if rec.HasQuality && rec.Adjusted.Padded == 0 {
			stats.Add(rec.Quality)
		}
	}
	if h, ok := src.(interface{ Hint() defline.Hint }); ok {
		l.hints[fd.Name] = h.Hint()
	}
	if h, ok := src.(interface{ QualityHint() defline.Hint }); ok && fd.Quality != nil {
		l.hints[fd.Quality.Name] = h.QualityHint()
	}
	return stats, nil
}

// source opens fd from its start, joining a split quality file when it has
// one.
func (l *Loader) source(fd *pairing.FileDescriptor, o parser.Options) (parser.Source, func(), error) {
	rc, err := l.open(fd.Name)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", fd.Name, err)
	}
	o.File = fd.Name
	o.Layout = fd.Layout
	if fd.Quality == nil {
		return parser.NewSource(rc, o), func() { _ = rc.Close() }, nil
	}

	qrc, err := l.open(fd.Quality.Name)
	if err != nil {
		_ = rc.Close()
		return nil, nil, fmt.Errorf("opening %s: %w", fd.Quality.Name, err)
	}
	qo := o
	qo.File = fd.Quality.Name
	qo.Layout = parser.LayoutQuality
	qo.Hint = fd.Quality.Hint
	if h, ok := l.hints[fd.Quality.Name]; ok {
		qo.Hint = h
	}
	src := parser.NewSplitReader(parser.New(rc, o), parser.New(qrc, qo), l.cfg.Pending)
	return src, func() {
		_ = rc.Close()
		_ = qrc.Close()
	}, nil
}

// outputOptions are the reader options of the output pass.
func (l *Loader) outputOptions(fd *pairing.FileDescriptor) parser.Options {
	o := l.cfg.readerOptions()
	o.Encoding = l.enc
	o.Tracker = l.tracker
	o.Hint = fd.Hint
	if h, ok := l.hints[fd.Name]; ok {
		o.Hint = h
	}
	return o
}

// emit assembles reads, placed at the given spot positions, and writes the
// spot.
func (l *Loader) emit(reads []*parser.Record, positions []int) error {
	s, err := spot.Assemble(reads, l.cfg.spotOptions(positions...))
	if err != nil {
		return diag.Fatalf(reads[0].File, reads[0].Line, err, "")
	}
	if l.cfg.Names == NamesDiscard {
		s.Name = ""
	}
	if err := l.sink.Write(s); err != nil {
		return fmt.Errorf("writing spot %d: %w", l.stats.Spots+1, err)
	}
	l.stats.Spots++
	l.stats.Reads += len(reads)
	return nil
}

// orphan emits a read whose mates are missing.
func (l *Loader) orphan(rec *parser.Record, position int) error {
	l.stats.Orphans++
	l.tracker.Warn(diag.KindOrphan, rec.File, rec.Line, "no mate for %s", rec.Name())
	return l.emit([]*parser.Record{rec}, []int{position})
}
