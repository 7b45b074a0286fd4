package engine

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dskmr/simscan/internal/fuzzy"
)

// DuplicateGroup is a set of files sharing an identical content digest.
type DuplicateGroup struct {
	Digest []byte
	Files  []*FileRecord
}

// NameConflictGroup collects files sharing a basename but not content: the
// subgroups partition the files by digest, and a group is only emitted when at
// least two distinct digests exist under the name.
type NameConflictGroup struct {
	BaseName  string
	Subgroups []DuplicateGroup
}

// SimilarPair is an unordered pair of records whose names scored at or above
// the configured threshold. A.Path sorts before B.Path, and each pair is
// emitted once.
type SimilarPair struct {
	A, B   *FileRecord
	Score  float64
	Method fuzzy.Method
}

// ConflictOptions configures name-conflict detection.
type ConflictOptions struct {
	// FoldCase treats basenames case-insensitively, matching filesystems with
	// case-insensitive semantics. Default is case-sensitive.
	FoldCase bool
}

// MatchOptions configures fuzzy name matching.
type MatchOptions struct {
	// Threshold is the minimum score in [0, 100] for a pair to qualify.
	Threshold float64

	// Method selects the similarity algorithm.
	Method fuzzy.Method

	// CompareExtension includes the file extension in the compared names.
	// Default compares the basename stem only.
	CompareExtension bool

	// Workers sizes the comparison pool; zero derives from CPU parallelism.
	Workers int

	// Progress receives serialized progress events. May be nil.
	Progress ProgressFunc
}

func requireCompleted(s *Session) error {
	if !s.Completed() {
		return ErrIncompleteSession
	}
	return nil
}

// Duplicates partitions the session's hashed records into groups of identical
// content. Groups of one are not emitted. Output order is deterministic:
// descending group size, ties broken by digest bytes ascending. Records
// without a digest (hash failures) cannot be grouped and are skipped.
func Duplicates(s *Session) ([]DuplicateGroup, error) {
	if err := requireCompleted(s); err != nil {
		return nil, err
	}

	byDigest := make(map[string][]*FileRecord)
	for _, rec := range s.Files() {
		if !rec.Hashed() {
			continue
		}
		key := string(rec.Digest)
		byDigest[key] = append(byDigest[key], rec)
	}

	var groups []DuplicateGroup
	for _, recs := range byDigest {
		if len(recs) < 2 {
			continue
		}
		groups = append(groups, DuplicateGroup{Digest: recs[0].Digest, Files: recs})
	}
	sortGroups(groups)
	return groups, nil
}

// DuplicatesDifferentNames returns only duplicate groups spanning at least two
// distinct basenames: identical content hiding under different names.
func DuplicatesDifferentNames(s *Session) ([]DuplicateGroup, error) {
	return filterDuplicates(s, func(names map[string]bool) bool { return len(names) > 1 })
}

// DuplicatesSameName returns only duplicate groups whose members all share one
// basename: the same file copied under its own name.
func DuplicatesSameName(s *Session) ([]DuplicateGroup, error) {
	return filterDuplicates(s, func(names map[string]bool) bool { return len(names) == 1 })
}

func filterDuplicates(s *Session, keep func(names map[string]bool) bool) ([]DuplicateGroup, error) {
	groups, err := Duplicates(s)
	if err != nil {
		return nil, err
	}
	var out []DuplicateGroup
	for _, g := range groups {
		names := make(map[string]bool)
		for _, rec := range g.Files {
			names[rec.BaseName] = true
		}
		if keep(names) {
			out = append(out, g)
		}
	}
	return out, nil
}

func sortGroups(groups []DuplicateGroup) {
	for _, g := range groups {
		sort.Slice(g.Files, func(i, j int) bool { return g.Files[i].Path < g.Files[j].Path })
	}
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i].Files) != len(groups[j].Files) {
			return len(groups[i].Files) > len(groups[j].Files)
		}
		return bytes.Compare(groups[i].Digest, groups[j].Digest) < 0
	})
}

// NameConflicts surfaces naming collisions with differing content: basename
// groups containing at least two distinct digests, sub-partitioned by digest.
// This is the inverse signal of Duplicates. Output is ordered by basename
// ascending, subgroups by digest ascending.
func NameConflicts(s *Session, opts ConflictOptions) ([]NameConflictGroup, error) {
	if err := requireCompleted(s); err != nil {
		return nil, err
	}

	byName := make(map[string][]*FileRecord)
	for _, rec := range s.Files() {
		if !rec.Hashed() {
			continue
		}
		name := rec.BaseName
		if opts.FoldCase {
			name = strings.ToLower(name)
		}
		byName[name] = append(byName[name], rec)
	}

	var groups []NameConflictGroup
	for name, recs := range byName {
		byDigest := make(map[string][]*FileRecord)
		for _, rec := range recs {
			byDigest[string(rec.Digest)] = append(byDigest[string(rec.Digest)], rec)
		}
		if len(byDigest) < 2 {
			continue
		}

		sub := make([]DuplicateGroup, 0, len(byDigest))
		for _, sr := range byDigest {
			sub = append(sub, DuplicateGroup{Digest: sr[0].Digest, Files: sr})
		}
		for _, g := range sub {
			sort.Slice(g.Files, func(i, j int) bool { return g.Files[i].Path < g.Files[j].Path })
		}
		sort.Slice(sub, func(i, j int) bool {
			return bytes.Compare(sub[i].Digest, sub[j].Digest) < 0
		})
		groups = append(groups, NameConflictGroup{BaseName: name, Subgroups: sub})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].BaseName < groups[j].BaseName })
	return groups, nil
}

// matchProgressEvery controls how often comparison workers report progress,
// counted in compared pairs.
const matchProgressEvery = 100

// SimilarNames compares every unordered pair of distinct records' names with
// the selected method and returns pairs scoring at or above the threshold.
// Names are lowercased and compared without extension unless
// opts.CompareExtension is set; pairs with equal full basenames are skipped
// (those belong to Duplicates or NameConflicts). The comparison is O(n²) in
// file count, the dominant scaling cost of the engine, so rows are handed
// out dynamically to a worker pool.
func SimilarNames(ctx context.Context, s *Session, opts MatchOptions) ([]SimilarPair, error) {
	if err := requireCompleted(s); err != nil {
		return nil, err
	}

	workers, err := resolveWorkers(opts.Workers)
	if err != nil {
		return nil, err
	}

	files := s.Files()
	n := len(files)
	if n < 2 {
		return nil, nil
	}

	names := make([]string, n)
	for i, rec := range files {
		name := rec.stem()
		if opts.CompareExtension {
			name = rec.BaseName
		}
		names[i] = strings.ToLower(name)
	}

	sink := newProgressSink(opts.Progress)
	defer sink.close()
	totalPairs := int64(n) * int64(n-1) / 2
	sink.send(messageEvent(fmt.Sprintf("Comparing %d file pairs...", totalPairs)))

	var (
		nextRow   atomic.Int64
		compared  atomic.Int64
		cancelled atomic.Bool
		mu        sync.Mutex
		pairs     []SimilarPair
		wg        sync.WaitGroup
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var local []SimilarPair
			for {
				i := int(nextRow.Add(1) - 1)
				if i >= n-1 {
					break
				}
				if s.Cancelled() || ctx.Err() != nil {
					cancelled.Store(true)
					break
				}
				for j := i + 1; j < n; j++ {
					if files[i].BaseName == files[j].BaseName {
						continue
					}
					score := fuzzy.Score(opts.Method, names[i], names[j])
					if score >= opts.Threshold {
						local = append(local, newPair(files[i], files[j], score, opts.Method))
					}
				}
				done := compared.Add(int64(n - 1 - i))
				if done/matchProgressEvery != (done-int64(n-1-i))/matchProgressEvery || done == totalPairs {
					sink.send(percentEvent(
						fmt.Sprintf("Comparing names: %d/%d pairs", done, totalPairs),
						done, totalPairs))
				}
			}
			mu.Lock()
			pairs = append(pairs, local...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if cancelled.Load() {
		return nil, ErrCancelled
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Score != pairs[j].Score {
			return pairs[i].Score > pairs[j].Score
		}
		if pairs[i].A.Path != pairs[j].A.Path {
			return pairs[i].A.Path < pairs[j].A.Path
		}
		return pairs[i].B.Path < pairs[j].B.Path
	})
	return pairs, nil
}

func newPair(a, b *FileRecord, score float64, method fuzzy.Method) SimilarPair {
	if b.Path < a.Path {
		a, b = b, a
	}
	return SimilarPair{A: a, B: b, Score: score, Method: method}
}
