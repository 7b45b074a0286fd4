package export

import (
	"encoding/json"
	"io"
	"time"

	"github.com/dskmr/simscan/internal/engine"
)

// The JSON document mirrors the Report losslessly but flattens records into a
// stable wire shape: digests as hex strings, times as RFC 3339.

type jsonReport struct {
	GeneratedAt time.Time `json:"generated_at"`
	Root        string    `json:"root"`
	Recursive   bool      `json:"recursive"`
	Method      string    `json:"method"`
	Threshold   float64   `json:"threshold"`

	Summary       jsonSummary    `json:"summary"`
	Files         []jsonFile     `json:"files"`
	Duplicates    []jsonGroup    `json:"duplicates"`
	NameConflicts []jsonConflict `json:"name_conflicts"`
	SimilarNames  []jsonPair     `json:"similar_names"`
}

type jsonSummary struct {
	TotalFiles         int              `json:"total_files"`
	TotalSize          int64            `json:"total_size_bytes"`
	DuplicateGroups    int              `json:"duplicate_groups"`
	DuplicateFiles     int              `json:"duplicate_files"`
	NameConflictGroups int              `json:"name_conflict_groups"`
	SimilarNamePairs   int              `json:"similar_name_pairs"`
	PotentialSavings   int64            `json:"potential_savings_bytes"`
	Warnings           int              `json:"warnings"`
	ExtensionCounts    map[string]int   `json:"extension_counts"`
	ExtensionSizes     map[string]int64 `json:"extension_size_bytes"`
}

type jsonFile struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Ext      string    `json:"extension"`
	Size     int64     `json:"size_bytes"`
	Modified time.Time `json:"modified"`
	Hash     string    `json:"hash,omitempty"`
	HashErr  string    `json:"hash_error,omitempty"`
}

type jsonGroup struct {
	Hash  string     `json:"hash"`
	Files []jsonFile `json:"files"`
}

type jsonConflict struct {
	BaseName  string      `json:"base_name"`
	Subgroups []jsonGroup `json:"subgroups"`
}

type jsonPair struct {
	A     jsonFile `json:"file1"`
	B     jsonFile `json:"file2"`
	Score float64  `json:"similarity_percent"`
}

func writeJSON(w io.Writer, r *Report) error {
	doc := jsonReport{
		GeneratedAt: r.GeneratedAt,
		Root:        r.Root,
		Recursive:   r.Recursive,
		Method:      r.Method.String(),
		Threshold:   r.Threshold,
		Summary: jsonSummary{
			TotalFiles:         r.Meta.TotalFiles,
			TotalSize:          r.Meta.TotalSize,
			DuplicateGroups:    r.Meta.DuplicateGroups,
			DuplicateFiles:     r.Meta.DuplicateFiles,
			NameConflictGroups: r.Meta.NameConflictGroups,
			SimilarNamePairs:   len(r.SimilarNames),
			PotentialSavings:   r.Meta.PotentialSavings,
			Warnings:           r.Meta.Warnings,
			ExtensionCounts:    r.Meta.ExtensionCounts,
			ExtensionSizes:     r.Meta.ExtensionSizes,
		},
		Files:         make([]jsonFile, 0, len(r.Files)),
		Duplicates:    make([]jsonGroup, 0, len(r.Duplicates)),
		NameConflicts: make([]jsonConflict, 0, len(r.NameConflicts)),
		SimilarNames:  make([]jsonPair, 0, len(r.SimilarNames)),
	}

	for _, f := range r.Files {
		doc.Files = append(doc.Files, toJSONFile(f))
	}
	for _, g := range r.Duplicates {
		doc.Duplicates = append(doc.Duplicates, toJSONGroup(g))
	}
	for _, c := range r.NameConflicts {
		jc := jsonConflict{BaseName: c.BaseName}
		for _, sub := range c.Subgroups {
			jc.Subgroups = append(jc.Subgroups, toJSONGroup(sub))
		}
		doc.NameConflicts = append(doc.NameConflicts, jc)
	}
	for _, p := range r.SimilarNames {
		doc.SimilarNames = append(doc.SimilarNames, jsonPair{
			A:     toJSONFile(p.A),
			B:     toJSONFile(p.B),
			Score: p.Score,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func toJSONFile(f *engine.FileRecord) jsonFile {
	jf := jsonFile{
		Path:     f.Path,
		Name:     f.BaseName,
		Ext:      f.Ext,
		Size:     f.Size,
		Modified: f.ModTime,
		Hash:     digestHex(f.Digest),
	}
	if f.HashErr != nil {
		jf.HashErr = f.HashErr.Error()
	}
	return jf
}

func toJSONGroup(g engine.DuplicateGroup) jsonGroup {
	jg := jsonGroup{Hash: digestHex(g.Digest)}
	for _, f := range g.Files {
		jg.Files = append(jg.Files, toJSONFile(f))
	}
	return jg
}
