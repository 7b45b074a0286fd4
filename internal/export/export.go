// Package export renders the engine's result collections as text, JSON, CSV
// or HTML reports. The writers are lossless over the four result sets and the
// raw file list; they add no analysis of their own.
package export

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/dskmr/simscan/internal/engine"
	"github.com/dskmr/simscan/internal/fuzzy"
)

// Format names an output encoding.
type Format string

const (
	FormatText Format = "txt"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
)

// ParseFormat maps a configuration name to its Format.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case FormatText, FormatJSON, FormatCSV, FormatHTML:
		return Format(name), nil
	}
	return "", fmt.Errorf("unknown output format %q (want txt, json, csv or html)", name)
}

// Report bundles everything a writer needs: the scan parameters, summary
// metadata, the raw file list and the three result collections.
type Report struct {
	GeneratedAt time.Time
	Root        string
	Recursive   bool
	Method      fuzzy.Method
	Threshold   float64

	Meta          engine.Meta
	Files         []*engine.FileRecord
	Duplicates    []engine.DuplicateGroup
	NameConflicts []engine.NameConflictGroup
	SimilarNames  []engine.SimilarPair
}

// BuildOptions configures report assembly.
type BuildOptions struct {
	Threshold float64
	Method    fuzzy.Method
	Workers   int
	FoldCase  bool
	Progress  engine.ProgressFunc
}

// Build runs all queries against a completed session and assembles a Report.
func Build(ctx context.Context, s *engine.Session, opts BuildOptions) (*Report, error) {
	meta, err := engine.Metadata(s)
	if err != nil {
		return nil, err
	}
	dups, err := engine.Duplicates(s)
	if err != nil {
		return nil, err
	}
	conflicts, err := engine.NameConflicts(s, engine.ConflictOptions{FoldCase: opts.FoldCase})
	if err != nil {
		return nil, err
	}
	similar, err := engine.SimilarNames(ctx, s, engine.MatchOptions{
		Threshold: opts.Threshold,
		Method:    opts.Method,
		Workers:   opts.Workers,
		Progress:  opts.Progress,
	})
	if err != nil {
		return nil, err
	}

	return &Report{
		GeneratedAt:   time.Now(),
		Root:          s.Root,
		Recursive:     s.Recursive,
		Method:        opts.Method,
		Threshold:     opts.Threshold,
		Meta:          meta,
		Files:         s.Files(),
		Duplicates:    dups,
		NameConflicts: conflicts,
		SimilarNames:  similar,
	}, nil
}

// Write renders the report to w in the given format.
func Write(w io.Writer, format Format, r *Report) error {
	switch format {
	case FormatText:
		return writeText(w, r)
	case FormatJSON:
		return writeJSON(w, r)
	case FormatCSV:
		return writeCSV(w, r)
	case FormatHTML:
		return writeHTML(w, r)
	}
	return fmt.Errorf("unknown output format %q", format)
}

func digestHex(d []byte) string {
	if len(d) == 0 {
		return ""
	}
	return hex.EncodeToString(d)
}
