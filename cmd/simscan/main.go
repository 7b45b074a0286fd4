package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dskmr/simscan/internal/engine"
	"github.com/dskmr/simscan/internal/export"
	"github.com/dskmr/simscan/internal/fuzzy"
)

const exitCancelled = 130

// scanOptions holds CLI flags for the scan command.
type scanOptions struct {
	workers     int
	threshold   float64
	method      string
	hash        string
	output      string
	format      string
	noRecursive bool
	foldCase    bool
	quiet       bool
}

func newRootCmd() *cobra.Command {
	opts := &scanOptions{
		threshold: 70.0,
		method:    "ratio",
		hash:      "xxh64",
		format:    "txt",
	}

	cmd := &cobra.Command{
		Use:   "simscan [directory]",
		Short: "Find duplicate and similarly named files",
		Long: `Scans a directory for files with identical content, files sharing a name
but holding different content, and files whose names are similar under a
configurable fuzzy matching method.

Results are written as a report to stdout or to --output. Press Ctrl-C to
cancel a running scan; partial work is discarded.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			return runScan(args[0], opts)
		},
	}

	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Number of hash workers (default: CPU count)")
	cmd.Flags().Float64VarP(&opts.threshold, "threshold", "t", opts.threshold, "Similarity threshold for name matching (0-100)")
	cmd.Flags().StringVarP(&opts.method, "method", "m", opts.method, "Fuzzy matching method (ratio, partial_ratio, token_sort_ratio, token_set_ratio, sequence_matcher)")
	cmd.Flags().StringVar(&opts.hash, "hash", opts.hash, "Content hash algorithm (xxh64, sha256)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the report to this file instead of stdout")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "Report format (txt, json, csv, html)")
	cmd.Flags().BoolVar(&opts.noRecursive, "no-recursive", false, "Scan only the top directory level")
	cmd.Flags().BoolVar(&opts.foldCase, "fold-case", false, "Treat names differing only in case as conflicting")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress progress output")

	return cmd
}

func runScan(root string, opts *scanOptions) error {
	method, err := fuzzy.ParseMethod(opts.method)
	if err != nil {
		return fmt.Errorf("invalid --method: %w", err)
	}
	format, err := export.ParseFormat(opts.format)
	if err != nil {
		return fmt.Errorf("invalid --format: %w", err)
	}
	algo, err := engine.ParseDigestAlgo(opts.hash)
	if err != nil {
		return fmt.Errorf("invalid --hash: %w", err)
	}
	if opts.threshold < 0 || opts.threshold > 100 {
		return fmt.Errorf("invalid --threshold: %v is outside [0, 100]", opts.threshold)
	}

	session := engine.NewSession(root, !opts.noRecursive)

	// Ctrl-C cancels the session; workers stop at file granularity.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nCancelling scan...")
		session.Cancel()
	}()

	progress := progressPrinter(opts.quiet)

	err = engine.Run(context.Background(), session, engine.Options{
		Recursive: !opts.noRecursive,
		Workers:   opts.workers,
		Algorithm: algo,
		Progress:  progress,
	})
	if err != nil {
		if errors.Is(err, engine.ErrCancelled) {
			fmt.Fprintln(os.Stderr, "Scan cancelled.")
			os.Exit(exitCancelled)
		}
		return err
	}

	report, err := export.Build(context.Background(), session, export.BuildOptions{
		Threshold: opts.threshold,
		Method:    method,
		Workers:   opts.workers,
		FoldCase:  opts.foldCase,
		Progress:  progress,
	})
	if err != nil {
		if errors.Is(err, engine.ErrCancelled) {
			fmt.Fprintln(os.Stderr, "Scan cancelled.")
			os.Exit(exitCancelled)
		}
		return err
	}

	out := os.Stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := export.Write(out, format, report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if !opts.quiet {
		fmt.Fprintf(os.Stderr, "\r\033[KScan complete: %d files (%s), %d duplicate groups, %d name conflicts, %d similar pairs.\n",
			report.Meta.TotalFiles,
			humanize.Bytes(uint64(report.Meta.TotalSize)),
			len(report.Duplicates),
			len(report.NameConflicts),
			len(report.SimilarNames))
		for _, warn := range session.Warnings() {
			fmt.Fprintf(os.Stderr, "warning: %v\n", warn)
		}
	}
	return nil
}

// progressPrinter returns a progress observer that rewrites a single status
// line on stderr, or nil when quiet.
func progressPrinter(quiet bool) engine.ProgressFunc {
	if quiet {
		return nil
	}
	return func(ev engine.ProgressEvent) {
		if ev.HasPercent {
			fmt.Fprintf(os.Stderr, "\r\033[K%s (%.1f%%)", ev.Message, ev.Percentage)
		} else {
			fmt.Fprintf(os.Stderr, "\r\033[K%s", ev.Message)
		}
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
