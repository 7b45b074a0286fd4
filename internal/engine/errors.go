package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompleteSession is returned by query operations invoked before a
	// session finished hashing. The caller can retry once the scan completes.
	ErrIncompleteSession = errors.New("scan session is incomplete")

	// ErrCancelled marks an operation that was stopped by a cancellation
	// request. It is a terminal state distinct from both success and failure;
	// partial results gathered before the cancel remain valid.
	ErrCancelled = errors.New("operation cancelled")
)

// Warning records a non-fatal per-file problem encountered during traversal or
// hashing. Warnings never abort a scan.
type Warning struct {
	Path string
	Err  error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %v", w.Path, w.Err)
}
