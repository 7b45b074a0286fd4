package engine

import (
	"context"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// MaxWorkers bounds the hash pool size. Beyond this the pool is I/O bound and
// extra goroutines only add scheduling overhead.
const MaxWorkers = 64

const hashBufferSize = 64 * 1024

// DigestAlgo selects the content digest algorithm for a scan.
type DigestAlgo int

const (
	// DigestXXHash64 is the default: a fast non-cryptographic 64-bit digest.
	DigestXXHash64 DigestAlgo = iota
	// DigestSHA256 is the cryptographic fallback. Slower, but collision
	// resistance is irrelevant for duplicate detection; both algorithms are
	// deterministic over file bytes.
	DigestSHA256
)

func (a DigestAlgo) String() string {
	switch a {
	case DigestSHA256:
		return "sha256"
	default:
		return "xxh64"
	}
}

// ParseDigestAlgo maps a configuration name to its DigestAlgo. The empty
// string selects the default.
func ParseDigestAlgo(name string) (DigestAlgo, error) {
	switch name {
	case "", "xxh64":
		return DigestXXHash64, nil
	case "sha256":
		return DigestSHA256, nil
	}
	return 0, fmt.Errorf("unknown hash algorithm %q (want xxh64 or sha256)", name)
}

func (a DigestAlgo) newHash() hash.Hash {
	switch a {
	case DigestSHA256:
		return sha256.New()
	default:
		return xxhash.New()
	}
}

// resolveWorkers validates and defaults the worker count. Zero means "derive
// from available parallelism".
func resolveWorkers(n int) (int, error) {
	if n == 0 {
		n = runtime.NumCPU()
		if n > MaxWorkers {
			n = MaxWorkers
		}
		return n, nil
	}
	if n < 1 || n > MaxWorkers {
		return 0, fmt.Errorf("worker count %d out of range [1, %d]; lower --workers and retry", n, MaxWorkers)
	}
	return n, nil
}

// hashAll computes content digests for every record in the session using
// workers goroutines. Files are split into contiguous partition-disjoint
// chunks, so no two workers ever touch the same record and digest writes need
// no locking. After each file a worker bumps a shared counter and reports
// pool-wide percentage progress through the sink.
//
// Cancellation is cooperative: a worker finishes the file it is on, then stops
// taking new work. A partially hashed session is never rolled back.
func hashAll(ctx context.Context, s *Session, algo DigestAlgo, workers int, sink *progressSink) error {
	files := s.snapshot()
	total := int64(len(files))
	if total == 0 {
		return nil
	}

	if int64(workers) > total {
		workers = int(total)
	}

	var completed atomic.Int64
	var wg sync.WaitGroup

	chunk := (len(files) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > len(files) {
			hi = len(files)
		}
		if lo >= hi {
			break
		}

		wg.Add(1)
		go func(recs []*FileRecord) {
			defer wg.Done()
			buf := make([]byte, hashBufferSize)
			for _, rec := range recs {
				if s.Cancelled() || ctx.Err() != nil {
					s.Cancel()
					return
				}
				if err := hashFile(rec, algo, buf); err != nil {
					rec.HashErr = err
					s.warn(rec.Path, err)
				} else {
					s.hashed.Add(1)
				}
				done := completed.Add(1)
				sink.send(percentEvent(
					fmt.Sprintf("Calculating %s hashes: %d/%d files", algo, done, total),
					done, total))
			}
		}(files[lo:hi])
	}
	wg.Wait()

	if s.Cancelled() {
		return ErrCancelled
	}
	return nil
}

// hashFile streams the file through the digest without buffering the whole
// content. The digest depends only on file bytes, never on path or name.
func hashFile(rec *FileRecord, algo DigestAlgo, buf []byte) error {
	f, err := os.Open(rec.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	h := algo.newHash()
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return err
	}
	rec.Digest = h.Sum(nil)
	return nil
}
