// Package archive stores loaded spots in an FQL archive and reads them back.
// Spots are buffered into blocks whose streams are compressed with zstd by a
// pool of workers and written in order.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/vertti/fastqload/internal/encoder"
	"github.com/vertti/fastqload/internal/format"
	"github.com/vertti/fastqload/internal/loader"
	"github.com/vertti/fastqload/internal/spot"
)

// DefaultBlockSize is the default number of spots per block.
const DefaultBlockSize = 100000

var (
	// ErrNotStarted is returned by Write before Start.
	ErrNotStarted = errors.New("archive not started")
	// ErrClosed is returned by Write after Close.
	ErrClosed = errors.New("archive closed")
)

// Options configures the writer.
type Options struct {
	BlockSize uint32 // Spots per block (default: 100000)
	Workers   int    // Number of parallel compression workers (default: NumCPU)
	Level     zstd.EncoderLevel
}

// encodeJob represents a block to be compressed.
type encodeJob struct {
	seqNum int
	spots  []*spot.Spot
}

// encodeResult represents a compressed block.
type encodeResult struct {
	seqNum int
	data   []byte
	err    error
}

// Writer is a loader.Sink that writes an FQL archive.
type Writer struct {
	w    io.Writer
	opts Options

	enc    encoder.QualityEncoding
	block  []*spot.Spot
	seqNum int
	spots  int

	ctx           context.Context
	g             *errgroup.Group
	jobs          chan encodeJob
	results       chan encodeResult
	collectorErr  error
	collectorDone chan struct{}
	started       bool
	closed        bool
}

var _ loader.Sink = (*Writer)(nil)

// NewWriter creates a writer on w. Nothing is written before Start.
func NewWriter(w io.Writer, opts *Options) *Writer {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	if o.BlockSize == 0 {
		o.BlockSize = DefaultBlockSize
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.Level == 0 {
		o.Level = zstd.SpeedDefault
	}
	return &Writer{w: w, opts: o}
}

// Start writes the file header and starts the compression workers.
func (w *Writer) Start(h loader.Header) error {
	if w.started {
		return errors.New("archive already started")
	}
	header := format.FileHeader{
		Version:   format.CurrentVersion,
		BlockSize: w.opts.BlockSize,
		Encoding:  uint8(h.Encoding),
	}
	if h.NamesDiscarded {
		header.Flags |= format.FlagNoNames
	}
	if err := header.Write(w.w); err != nil {
		return fmt.Errorf("writing file header: %w", err)
	}
	w.enc = h.Encoding
	w.started = true

	w.jobs = make(chan encodeJob, w.opts.Workers*2)
	w.results = make(chan encodeResult, w.opts.Workers*2)
	parent, cancel := context.WithCancel(context.Background())
	w.g, w.ctx = errgroup.WithContext(parent)
	for i := 0; i < w.opts.Workers; i++ {
		w.g.Go(func() error {
			return runEncodeWorker(w.ctx, w.jobs, w.results, w.enc, w.opts.Level)
		})
	}

	w.collectorDone = make(chan struct{})
	go func() {
		defer close(w.collectorDone)
		defer cancel()
		w.collectorErr = collectAndWriteResults(w.results, w.w, cancel)
	}()
	return nil
}

// Write buffers s, handing a full block to the workers.
func (w *Writer) Write(s *spot.Spot) error {
	switch {
	case w.closed:
		return ErrClosed
	case !w.started:
		return ErrNotStarted
	}
	w.block = append(w.block, s)
	w.spots++
	if len(w.block) < int(w.opts.BlockSize) {
		return nil
	}
	return w.dispatch()
}

func (w *Writer) dispatch() error {
	if len(w.block) == 0 {
		return nil
	}
	select {
	case w.jobs <- encodeJob{seqNum: w.seqNum, spots: w.block}:
		w.seqNum++
		w.block = make([]*spot.Spot, 0, w.opts.BlockSize)
		return nil
	case <-w.ctx.Done():
		return w.finish()
	}
}

// Spots returns the number of spots written so far.
func (w *Writer) Spots() int {
	return w.spots
}

// Close flushes the last block and waits for every block to be written.
// It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed || !w.started {
		w.closed = true
		return nil
	}
	if err := w.dispatch(); err != nil {
		return err
	}
	return w.finish()
}

// finish stops the pipeline and returns its first error.
func (w *Writer) finish() error {
	if w.closed {
		return nil
	}
	w.closed = true
	close(w.jobs)
	workerErr := w.g.Wait()
	close(w.results)
	<-w.collectorDone

	if w.collectorErr != nil {
		return w.collectorErr
	}
	return workerErr
}

func runEncodeWorker(ctx context.Context, jobs <-chan encodeJob, results chan<- encodeResult, enc encoder.QualityEncoding, level zstd.EncoderLevel) error {
	zstdEnc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return fmt.Errorf("creating zstd encoder: %w", err)
	}
	defer zstdEnc.Close() //nolint:errcheck // encoder close during cleanup

	for job := range jobs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		data, err := encodeBlock(job.spots, zstdEnc, enc)
		results <- encodeResult{seqNum: job.seqNum, data: data, err: err}
	}
	return nil
}

// collectAndWriteResults writes blocks in sequence order. After an error it
// calls stop and keeps draining so the workers never block.
func collectAndWriteResults(results <-chan encodeResult, w io.Writer, stop func()) error {
	pending := make(map[int][]byte)
	nextSeqNum := 0
	var firstErr error

	for result := range results {
		if firstErr != nil {
			continue
		}
		if result.err != nil {
			firstErr = fmt.Errorf("compressing block %d: %w", result.seqNum, result.err)
			stop()
			continue
		}

		pending[result.seqNum] = result.data

		// Write all sequential results available
		for {
			data, ok := pending[nextSeqNum]
			if !ok {
				break
			}
			if _, err := w.Write(data); err != nil {
				firstErr = fmt.Errorf("writing block %d: %w", nextSeqNum, err)
				stop()
				break
			}
			delete(pending, nextSeqNum)
			nextSeqNum++
		}
	}

	return firstErr
}
