package main

import (
	"fmt"

	"github.com/shenwei356/xopen"
	"github.com/spf13/cobra"

	"github.com/vertti/fastqload/internal/archive"
)

func newDumpCommand(g *globals) *cobra.Command {
	var (
		output string
		opts   archive.DumpOptions
	)
	cmd := &cobra.Command{
		Use:   "dump [flags] ARCHIVE",
		Short: "Write the spots of an archive as FASTQ",
		Long: `Write every spot of an FQL archive as FASTQ with Phred+33 quality. Use - to
read the archive from stdin. Output ending in .gz, .bz2, .xz or .zst is
compressed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := xopen.Ropen(args[0])
			if err != nil {
				return fmt.Errorf("cannot open input: %w", err)
			}
			defer func() { _ = in.Close() }()

			out, err := xopen.Wopen(output)
			if err != nil {
				return fmt.Errorf("cannot create output: %w", err)
			}
			n, err := archive.Dump(cmd.Context(), in, out, opts)
			if closeErr := out.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}
			g.log.WithField("spots", n).Debug("dump complete")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&output, "out", "o", "-", "output FASTQ file (default: stdout)")
	flags.BoolVar(&opts.Split, "split", false, "write one record per read")
	flags.BoolVar(&opts.SkipTechnical, "skip-technical", false, "leave technical reads out")
	flags.IntVarP(&opts.Workers, "workers", "w", 0, "decompression workers (default: NumCPU)")
	return cmd
}
