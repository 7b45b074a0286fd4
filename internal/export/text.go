package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/dskmr/simscan/internal/engine"
)

func writeText(w io.Writer, r *Report) error {
	var b strings.Builder
	rule := strings.Repeat("=", 60)
	sep := strings.Repeat("-", 40)

	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "FILE SIMILARITY ANALYSIS REPORT")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Scanned:    %s (recursive: %v)\n", r.Root, r.Recursive)
	fmt.Fprintf(&b, "Generated:  %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Files:      %d (%s)\n", r.Meta.TotalFiles, humanize.Bytes(uint64(r.Meta.TotalSize)))
	fmt.Fprintf(&b, "Reclaimable: %s across %d duplicate groups\n",
		humanize.Bytes(uint64(r.Meta.PotentialSavings)), r.Meta.DuplicateGroups)
	if r.Meta.Warnings > 0 {
		fmt.Fprintf(&b, "Warnings:   %d unreadable entries skipped\n", r.Meta.Warnings)
	}
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "DUPLICATE FILES (identical content): %d groups\n", len(r.Duplicates))
	fmt.Fprintln(&b, sep)
	for i, g := range r.Duplicates {
		fmt.Fprintf(&b, "Group %d (%d files, hash %s):\n", i+1, len(g.Files), digestHex(g.Digest))
		writeTextFiles(&b, g.Files)
		fmt.Fprintln(&b)
	}

	fmt.Fprintf(&b, "NAME CONFLICTS (same name, different content): %d groups\n", len(r.NameConflicts))
	fmt.Fprintln(&b, sep)
	for i, g := range r.NameConflicts {
		fmt.Fprintf(&b, "Group %d: %s (%d variants)\n", i+1, g.BaseName, len(g.Subgroups))
		for _, sub := range g.Subgroups {
			fmt.Fprintf(&b, "  content %s:\n", digestHex(sub.Digest))
			writeTextFiles(&b, sub.Files)
		}
		fmt.Fprintln(&b)
	}

	fmt.Fprintf(&b, "SIMILAR NAMES (threshold %.1f, method %s): %d pairs\n",
		r.Threshold, r.Method, len(r.SimilarNames))
	fmt.Fprintln(&b, sep)
	for _, p := range r.SimilarNames {
		fmt.Fprintf(&b, "%5.1f%%  %s <-> %s\n", p.Score, p.A.Path, p.B.Path)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeTextFiles(b *strings.Builder, files []*engine.FileRecord) {
	for _, f := range files {
		fmt.Fprintf(b, "  - %s (%s) - %s\n", f.BaseName, humanize.Bytes(uint64(f.Size)), f.Path)
	}
}
