// Package engine finds duplicate and near-duplicate files under a directory
// tree. A scan produces a Session: the traversal enumerates regular files into
// it, a pool of hash workers fills in content digests, and the query functions
// (Duplicates, NameConflicts, SimilarNames) read the completed session on
// demand without mutating it.
//
// Progress is delivered through a ProgressFunc passed in per invocation, and
// cancellation is cooperative: callers cancel the context or call
// Session.Cancel, and in-flight work stops at file granularity, leaving a
// well-defined partial session behind.
package engine

import (
	"context"
	"errors"
	"fmt"
)

// Options configures one scan invocation.
type Options struct {
	// Recursive walks subdirectories; otherwise only the immediate directory
	// level is scanned.
	Recursive bool

	// Workers sizes the hash pool. Zero derives the count from available CPU
	// parallelism; explicit values must be within [1, MaxWorkers].
	Workers int

	// Algorithm selects the content digest. The zero value is xxHash64.
	Algorithm DigestAlgo

	// Progress receives serialized progress events. May be nil.
	Progress ProgressFunc
}

// NewSession allocates the session for a scan up front, so the caller holds a
// cancellation handle before the blocking Run starts.
func NewSession(root string, recursive bool) *Session {
	return newSession(root, recursive)
}

// Run performs the scan into s: traversal first, then parallel hashing. It
// blocks until the session is complete or cancelled. On cancellation it
// returns ErrCancelled and leaves the partial session queryable through
// Session.Files; grouping queries keep failing with ErrIncompleteSession.
func Run(ctx context.Context, s *Session, opts Options) error {
	if s.Completed() {
		return errors.New("session already completed: start a new scan instead")
	}

	workers, err := resolveWorkers(opts.Workers)
	if err != nil {
		return err
	}

	sink := newProgressSink(opts.Progress)
	defer sink.close()

	if err := traverse(ctx, s, sink); err != nil {
		return err
	}

	files := s.snapshot()
	sink.send(messageEvent(fmt.Sprintf("Found %d files. Calculating hashes...", len(files))))

	if err := hashAll(ctx, s, opts.Algorithm, workers, sink); err != nil {
		return err
	}

	s.completed.Store(true)
	return nil
}

// Scan is the one-shot form of NewSession + Run. The session is returned even
// on error so partial results remain reachable.
func Scan(ctx context.Context, root string, opts Options) (*Session, error) {
	s := NewSession(root, opts.Recursive)
	return s, Run(ctx, s, opts)
}
