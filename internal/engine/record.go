package engine

import (
	"path/filepath"
	"time"
)

// FileRecord describes one regular file discovered during a scan. A record is
// created by the traversal and its Digest is filled in exactly once by the hash
// pool; after that it is never mutated. Records belong to the session that
// created them and are never shared across sessions.
type FileRecord struct {
	Path     string
	Size     int64
	ModTime  time.Time
	BaseName string
	Ext      string

	// Digest is nil until hashing completes. It stays nil when the file
	// vanished or became unreadable between enumeration and hashing; such
	// records are kept in the raw file list but excluded from grouping.
	Digest []byte

	// HashErr holds the error that prevented hashing, if any.
	HashErr error
}

func newFileRecord(path string, size int64, modTime time.Time) *FileRecord {
	base := filepath.Base(path)
	return &FileRecord{
		Path:     path,
		Size:     size,
		ModTime:  modTime,
		BaseName: base,
		Ext:      filepath.Ext(base),
	}
}

// Hashed reports whether a content digest was successfully computed.
func (r *FileRecord) Hashed() bool { return len(r.Digest) > 0 }

// stem returns the basename without its extension.
func (r *FileRecord) stem() string {
	return r.BaseName[:len(r.BaseName)-len(r.Ext)]
}
