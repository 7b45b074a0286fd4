package engine

import (
	"sync"
	"sync/atomic"
)

// Session holds everything gathered by one directory scan: the discovered file
// records, traversal warnings, and the cancelled/completed state flags. A new
// scan always produces a new session; sessions are never merged or reused.
//
// The files slice is append-only while the traversal runs (single writer) and
// its elements are written to disjointly by the hash workers, so no lock
// guards individual records. The mutex only protects the slice header and the
// warnings list.
type Session struct {
	Root      string
	Recursive bool

	mu       sync.Mutex
	files    []*FileRecord
	warnings []Warning

	cancelled atomic.Bool
	completed atomic.Bool
	hashed    atomic.Int64
}

func newSession(root string, recursive bool) *Session {
	return &Session{Root: root, Recursive: recursive}
}

// Cancel requests cooperative cancellation. In-flight workers finish their
// current file and stop taking new work; already-gathered records and digests
// are kept.
func (s *Session) Cancel() { s.cancelled.Store(true) }

// Cancelled reports whether cancellation has been requested.
func (s *Session) Cancelled() bool { return s.cancelled.Load() }

// Completed reports whether scanning and hashing both finished. Query
// operations require a completed session.
func (s *Session) Completed() bool { return s.completed.Load() }

// HashedCount returns the number of files hashed so far. After a cancelled
// scan this is the size of the partial result.
func (s *Session) HashedCount() int64 { return s.hashed.Load() }

// Files returns the discovered records. The returned slice is a copy; the
// records themselves are shared and must not be mutated by callers.
func (s *Session) Files() []*FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*FileRecord, len(s.files))
	copy(out, s.files)
	return out
}

// Warnings returns the non-fatal per-file problems recorded during the scan.
func (s *Session) Warnings() []Warning {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Warning, len(s.warnings))
	copy(out, s.warnings)
	return out
}

func (s *Session) append(rec *FileRecord) {
	s.mu.Lock()
	s.files = append(s.files, rec)
	s.mu.Unlock()
}

func (s *Session) warn(path string, err error) {
	s.mu.Lock()
	s.warnings = append(s.warnings, Warning{Path: path, Err: err})
	s.mu.Unlock()
}

// snapshot returns the underlying slice without copying. Only the hash pool
// uses it, after traversal has finished appending.
func (s *Session) snapshot() []*FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files
}
