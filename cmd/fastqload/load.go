package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shenwei356/xopen"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vertti/fastqload/internal/archive"
	"github.com/vertti/fastqload/internal/encoder"
	"github.com/vertti/fastqload/internal/loader"
	"github.com/vertti/fastqload/internal/pairing"
	"github.com/vertti/fastqload/internal/spot"
)

var errStdin = errors.New("inputs are read more than once; stdin is not supported")

// loadFlags holds the raw load flags until they are turned into a
// loader.Config.
type loadFlags struct {
	cfg loader.Config

	output      string
	offset      string
	names       string
	readTypes   []string
	readLengths []int
	readLabels  []string
	roles       []string
	prefix      string
	blockSize   uint32
	workers     int
}

func newLoadCommand(g *globals) *cobra.Command {
	f := &loadFlags{cfg: loader.DefaultConfig()}
	cmd := &cobra.Command{
		Use:   "load [flags] FILE...",
		Short: "Pair FASTQ files and write their spots to an archive",
		Long: `Pair the given FASTQ files, assemble mates into spots and write them to an
FQL archive. Compressed inputs (gzip, bzip2, xz, zstd) are read directly.
Every input is read more than once, so inputs must be regular files.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.config()
			if err != nil {
				return err
			}
			inputs, err := f.inputs(args)
			if err != nil {
				return err
			}
			return runLoad(cmd, g.log, cfg, inputs, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.output, "out", "o", "", "output archive (required)")
	flags.StringVar(&f.offset, "offset", "auto", "quality offset: auto, 0 (numeric), 33 or 64")
	flags.StringVar(&f.names, "names", "keep", "spot names: keep, ignore (pair by position) or discard")
	flags.StringSliceVar(&f.readTypes, "read-types", nil, "read type per position: B, T or G")
	flags.IntSliceVar(&f.readLengths, "read-lengths", nil, "split single-file records into reads of these lengths; 0 last takes the rest")
	flags.StringSliceVar(&f.readLabels, "read-labels", nil, "read label per position")
	flags.StringSliceVar(&f.roles, "roles", nil, "role per input: auto, a read number 1-6 or quality")
	flags.BoolVar(&f.cfg.IgnoreSpotGroup, "ignore-spot-group", false, "ignore barcodes when comparing names")

	flags.BoolVar(&f.cfg.Defline.Sticky, "sticky", f.cfg.Defline.Sticky, "try the first defline format of a file first")
	flags.StringVar(&f.prefix, "prefix", "", "extra record marker accepted like @ and >")
	flags.IntVar(&f.cfg.Defline.IgnoreLeading, "ignore-leading", 0, "characters dropped after the record marker")
	flags.IntVar(&f.cfg.Defline.IgnoreTrailing, "ignore-trailing", 0, "characters dropped from the end of deflines")
	flags.BoolVar(&f.cfg.Defline.StripAfterPlus, "strip-after-plus", false, "drop defline text from the first +")

	flags.BoolVar(&f.cfg.Sequence.RemoveSpaces, "remove-spaces", f.cfg.Sequence.RemoveSpaces, "drop blanks inside sequences")
	flags.BoolVar(&f.cfg.Sequence.StripBadChars, "strip-bad-chars", false, "drop characters outside the sequence alphabets")
	flags.BoolVar(&f.cfg.Sequence.Clip, "clip", false, "set clips from lowercase runs")

	flags.BoolVar(&f.cfg.DetectDuplicates, "detect-duplicates", f.cfg.DetectDuplicates, "drop repeated reads of a spot")
	flags.BoolVar(&f.cfg.AllowEarlyEOF, "allow-early-eof", false, "keep going when one mate file ends first")
	flags.BoolVar(&f.cfg.AllowMixed, "allow-mixed", false, "allow mates with different layouts")

	flags.IntVar(&f.cfg.MaxDiscards, "max-discards", f.cfg.MaxDiscards, "discarded lines allowed per file")
	flags.IntVar(&f.cfg.MaxSearch, "max-search", f.cfg.MaxSearch, "lines searched for the next defline")
	flags.IntVar(&f.cfg.MaxLines, "max-lines", f.cfg.MaxLines, "lines allowed in one record")
	flags.IntVar(&f.cfg.MaxDeflineLen, "max-defline-length", f.cfg.MaxDeflineLen, "longest accepted defline")
	flags.IntVar(&f.cfg.MaxMismatches, "max-mismatches", f.cfg.MaxMismatches, "sequence/quality length mismatches allowed")
	flags.IntVar(&f.cfg.WarnLimit, "warn-limit", f.cfg.WarnLimit, "warnings logged per kind, negative for all")
	flags.IntVar(&f.cfg.RepeatLimit, "repeat-limit", f.cfg.RepeatLimit, "repeated discarded lines that mark a corrupt file")
	flags.IntVar(&f.cfg.Pending, "pending", f.cfg.Pending, "unmatched records held per mate file")
	flags.IntVar(&f.cfg.InterleaveSample, "interleave-sample", f.cfg.InterleaveSample, "records sampled to detect interleaved files")
	flags.IntVar(&f.cfg.DeepScan, "deep-scan", f.cfg.DeepScan, "names read to pair files by content")
	flags.IntVar(&f.cfg.DuplicateLimit, "duplicate-limit", f.cfg.DuplicateLimit, "duplicate names tolerated before names are ignored")
	flags.IntVar(&f.cfg.SurveyLimit, "survey-limit", 0, "records per file read to detect the quality offset, 0 for all")

	flags.Uint32Var(&f.blockSize, "block-size", archive.DefaultBlockSize, "spots per archive block")
	flags.IntVarP(&f.workers, "workers", "w", 0, "compression workers (default: NumCPU)")

	_ = cmd.MarkFlagRequired("out")
	return cmd
}

// config turns the flags into a validated loader configuration.
func (f *loadFlags) config() (loader.Config, error) {
	cfg := f.cfg
	var err error
	if cfg.Encoding, err = encoder.ParseEncoding(f.offset); err != nil {
		return cfg, err
	}
	if cfg.Names, err = loader.ParseNameMode(f.names); err != nil {
		return cfg, err
	}
	if cfg.Names == loader.NamesDiscard {
		cfg.DetectDuplicates = false
	}
	for _, s := range f.readTypes {
		t, err := spot.ParseReadType(s)
		if err != nil {
			return cfg, err
		}
		cfg.ReadTypes = append(cfg.ReadTypes, t)
	}
	cfg.ReadLengths = f.readLengths
	cfg.ReadLabels = f.readLabels
	switch len(f.prefix) {
	case 0:
	case 1:
		cfg.Defline.PrefixByte = f.prefix[0]
	default:
		return cfg, fmt.Errorf("prefix must be a single character, got %q", f.prefix)
	}
	return cfg, cfg.Validate()
}

// inputs stats every file and assigns the configured roles.
func (f *loadFlags) inputs(args []string) ([]loader.Input, error) {
	if len(f.roles) > 0 && len(f.roles) != len(args) {
		return nil, fmt.Errorf("%d roles for %d inputs", len(f.roles), len(args))
	}
	inputs := make([]loader.Input, len(args))
	for i, name := range args {
		if name == "-" {
			return nil, errStdin
		}
		fi, err := os.Stat(name)
		if err != nil {
			return nil, fmt.Errorf("cannot open input: %w", err)
		}
		in := loader.Input{Name: name, Size: fi.Size(), Role: pairing.RoleDetect}
		if len(f.roles) > 0 {
			if in.Role, err = pairing.ParseRole(f.roles[i]); err != nil {
				return nil, err
			}
		}
		inputs[i] = in
	}
	return inputs, nil
}

// openFile opens an input from its start, decompressing it when needed.
// Empty files read as empty.
func openFile(name string) (io.ReadCloser, error) {
	r, err := xopen.Ropen(name)
	if errors.Is(err, xopen.ErrNoContent) {
		return io.NopCloser(strings.NewReader("")), nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func runLoad(cmd *cobra.Command, log *logrus.Logger, cfg loader.Config, inputs []loader.Input, f *loadFlags) error {
	l, err := loader.New(cfg, openFile, log)
	if err != nil {
		return err
	}

	out, err := os.Create(f.output) //nolint:gosec // CLI tool needs to create user-specified files
	if err != nil {
		return fmt.Errorf("cannot create output: %w", err)
	}
	bw := bufio.NewWriterSize(out, 1<<20)
	w := archive.NewWriter(bw, &archive.Options{BlockSize: f.blockSize, Workers: f.workers})

	stats, err := l.Run(cmd.Context(), inputs, w)
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	if flushErr := bw.Flush(); err == nil {
		err = flushErr
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(f.output)
		return err
	}

	log.WithFields(logrus.Fields{
		"output":     f.output,
		"groups":     stats.Groups,
		"spots":      stats.Spots,
		"orphans":    stats.Orphans,
		"duplicates": stats.Duplicates,
		"adjusted":   stats.Adjusted,
	}).Info("archive written")
	return nil
}
