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
	"github.com/vertti/fastqload/internal/spot"
)

// decodeJob represents a block to be decompressed.
type decodeJob struct {
	seqNum     int
	header     *format.BlockHeader
	compressed [format.NumStreams][]byte
}

// decodeResult represents a decompressed block.
type decodeResult struct {
	seqNum int
	spots  []*spot.Spot
	err    error
}

// Reader reads spots back from an archive.
type Reader struct {
	r       io.Reader
	header  *format.FileHeader
	workers int
}

// NewReader reads the file header of r. Blocks are decompressed by workers
// goroutines, NumCPU when workers is 0.
func NewReader(r io.Reader, workers int) (*Reader, error) {
	h, err := format.ReadFileHeader(r)
	if err != nil {
		return nil, fmt.Errorf("reading file header: %w", err)
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Reader{r: r, header: h, workers: workers}, nil
}

// Header returns the file header.
func (r *Reader) Header() format.FileHeader {
	return *r.header
}

// Encoding returns the quality encoding the spots were loaded with.
func (r *Reader) Encoding() encoder.QualityEncoding {
	return encoder.QualityEncoding(r.header.Encoding)
}

// Each calls fn for every spot in archive order. It stops at the first
// error from fn or from decoding.
func (r *Reader) Each(ctx context.Context, fn func(*spot.Spot) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan decodeJob, r.workers*2)
	results := make(chan decodeResult, r.workers*2)

	g, gctx := errgroup.WithContext(ctx)
	enc := r.Encoding()
	for i := 0; i < r.workers; i++ {
		g.Go(func() error {
			return runDecodeWorker(gctx, jobs, results, enc)
		})
	}

	g.Go(func() error {
		defer close(jobs)
		return produceDecodeJobs(gctx, r.r, jobs)
	})

	// Collector: hand spots over in order
	var collectorErr error
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		collectorErr = collectResults(results, fn, cancel)
	}()

	workerErr := g.Wait()
	close(results)
	<-collectorDone

	if collectorErr != nil {
		return collectorErr
	}
	return workerErr
}

func runDecodeWorker(ctx context.Context, jobs <-chan decodeJob, results chan<- decodeResult, enc encoder.QualityEncoding) error {
	zstdDec, err := zstd.NewReader(nil)
	if err != nil {
		return fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer zstdDec.Close()

	for job := range jobs {
		spots, err := decodeBlock(job.header, job.compressed, zstdDec, enc)
		if err != nil {
			err = fmt.Errorf("block %d: %w", job.seqNum, err)
		}
		select {
		case results <- decodeResult{seqNum: job.seqNum, spots: spots, err: err}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func produceDecodeJobs(ctx context.Context, r io.Reader, jobs chan<- decodeJob) error {
	for seqNum := 0; ; seqNum++ {
		h, err := format.ReadBlockHeader(r)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading block %d header: %w", seqNum, err)
		}

		job := decodeJob{seqNum: seqNum, header: h}
		for i := range job.compressed {
			job.compressed[i] = make([]byte, h.Compressed[i])
			if _, err := io.ReadFull(r, job.compressed[i]); err != nil {
				return fmt.Errorf("reading block %d %s: %w", seqNum, format.StreamName(i), err)
			}
		}

		select {
		case jobs <- job:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// collectResults passes spots to fn in block order. After an error it calls
// stop and keeps draining so the workers never block.
func collectResults(results <-chan decodeResult, fn func(*spot.Spot) error, stop func()) error {
	pending := make(map[int][]*spot.Spot)
	nextSeqNum := 0
	var firstErr error

	for result := range results {
		if firstErr != nil {
			continue
		}
		if result.err != nil {
			firstErr = fmt.Errorf("decompressing %w", result.err)
			stop()
			continue
		}

		pending[result.seqNum] = result.spots

		// Hand over all sequential results available
		for {
			spots, ok := pending[nextSeqNum]
			if !ok {
				break
			}
			delete(pending, nextSeqNum)
			nextSeqNum++
			if firstErr = each(spots, fn); firstErr != nil {
				stop()
				break
			}
		}
	}

	return firstErr
}

func each(spots []*spot.Spot, fn func(*spot.Spot) error) error {
	for _, s := range spots {
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}
