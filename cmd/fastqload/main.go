// fastqload pairs FASTQ files, assembles their reads into spots and stores
// them in an FQL archive.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "dev"

const (
	exitSuccess = 0
	exitError   = 1
)

var (
	bold = color.New(color.Bold).SprintFunc()
	red  = color.New(color.FgRed).SprintFunc()
)

// globals are the flags shared by every subcommand.
type globals struct {
	verbose bool
	quiet   bool
	log     *logrus.Logger
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := newRootCommand(stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, red("error: "+err.Error()))
		return exitError
	}
	return exitSuccess
}

func newRootCommand(stderr io.Writer) *cobra.Command {
	g := &globals{}
	cmd := &cobra.Command{
		Use:           "fastqload",
		Short:         bold("Load FASTQ files into spot archives"),
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(*cobra.Command, []string) {
			g.log = newLogger(stderr, g.verbose, g.quiet)
		},
	}
	cmd.SetErr(stderr)

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "log debug messages")
	flags.BoolVarP(&g.quiet, "quiet", "q", false, "log errors only")

	cmd.AddCommand(newLoadCommand(g), newDumpCommand(g))
	return cmd
}

func newLogger(w io.Writer, verbose, quiet bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	switch {
	case quiet:
		log.SetLevel(logrus.ErrorLevel)
	case verbose:
		log.SetLevel(logrus.DebugLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}
