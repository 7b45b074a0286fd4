package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/dskmr/simscan/internal/engine"
)

// The CSV document is a single stream with one section per result collection,
// each introduced by a "# section" comment row and its own header row.

func writeCSV(w io.Writer, r *Report) error {
	cw := csv.NewWriter(w)

	section := func(name string, header []string) error {
		if err := cw.Write([]string{"# " + name}); err != nil {
			return err
		}
		return cw.Write(header)
	}

	if err := section("summary", []string{"metric", "value"}); err != nil {
		return err
	}
	summary := [][2]string{
		{"scan_date", r.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"root", r.Root},
		{"recursive", strconv.FormatBool(r.Recursive)},
		{"method", r.Method.String()},
		{"threshold", fmt.Sprintf("%.1f", r.Threshold)},
		{"total_files", strconv.Itoa(r.Meta.TotalFiles)},
		{"total_size_bytes", strconv.FormatInt(r.Meta.TotalSize, 10)},
		{"duplicate_groups", strconv.Itoa(r.Meta.DuplicateGroups)},
		{"name_conflict_groups", strconv.Itoa(r.Meta.NameConflictGroups)},
		{"similar_name_pairs", strconv.Itoa(len(r.SimilarNames))},
		{"potential_savings_bytes", strconv.FormatInt(r.Meta.PotentialSavings, 10)},
	}
	for _, row := range summary {
		if err := cw.Write(row[:]); err != nil {
			return err
		}
	}

	fileHeader := []string{"group_id", "name", "path", "extension", "size_bytes", "modified", "hash"}
	if err := section("content_duplicates", fileHeader); err != nil {
		return err
	}
	for i, g := range r.Duplicates {
		if err := writeCSVGroup(cw, i+1, g); err != nil {
			return err
		}
	}

	if err := section("name_conflicts", fileHeader); err != nil {
		return err
	}
	for i, c := range r.NameConflicts {
		for _, sub := range c.Subgroups {
			if err := writeCSVGroup(cw, i+1, sub); err != nil {
				return err
			}
		}
	}

	if err := section("similar_names", []string{
		"file1_name", "file1_path", "file2_name", "file2_path", "similarity_percent", "method"}); err != nil {
		return err
	}
	for _, p := range r.SimilarNames {
		err := cw.Write([]string{
			p.A.BaseName, p.A.Path, p.B.BaseName, p.B.Path,
			fmt.Sprintf("%.1f", p.Score), r.Method.String(),
		})
		if err != nil {
			return err
		}
	}

	if err := section("file_extensions", []string{"extension", "file_count", "total_size_bytes"}); err != nil {
		return err
	}
	exts := make([]string, 0, len(r.Meta.ExtensionCounts))
	for ext := range r.Meta.ExtensionCounts {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		label := ext
		if label == "" {
			label = "(no extension)"
		}
		err := cw.Write([]string{
			label,
			strconv.Itoa(r.Meta.ExtensionCounts[ext]),
			strconv.FormatInt(r.Meta.ExtensionSizes[ext], 10),
		})
		if err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func writeCSVGroup(cw *csv.Writer, groupID int, g engine.DuplicateGroup) error {
	for _, f := range g.Files {
		err := cw.Write([]string{
			strconv.Itoa(groupID), f.BaseName, f.Path, f.Ext,
			strconv.FormatInt(f.Size, 10),
			f.ModTime.Format("2006-01-02 15:04:05"),
			digestHex(f.Digest),
		})
		if err != nil {
			return err
		}
	}
	return nil
}
