package engine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// traversalProgressEvery controls how often the traversal emits a message-only
// progress event, counted in discovered files.
const traversalProgressEvery = 100

type traversal struct {
	ctx     context.Context
	session *Session
	sink    *progressSink

	// visited holds resolved real paths of directories already entered, so
	// symlink loops are walked at most once.
	visited map[string]bool
	found   int64
}

// traverse enumerates all regular files under root into the session.
// Unreadable entries are recorded as warnings and skipped; only a missing or
// unreadable root is fatal. Returns ErrCancelled if cancellation was requested
// mid-walk.
func traverse(ctx context.Context, s *Session, sink *progressSink) error {
	info, err := os.Stat(s.Root)
	if err != nil {
		return fmt.Errorf("scan root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("scan root %s is not a directory", s.Root)
	}

	sink.send(messageEvent("Scanning directories..."))

	t := &traversal{ctx: ctx, session: s, sink: sink, visited: make(map[string]bool)}
	if real, err := filepath.EvalSymlinks(s.Root); err == nil {
		t.visited[real] = true
	}

	if err := t.walkDir(s.Root, s.Recursive); err != nil {
		return err
	}
	if t.cancelled() {
		return ErrCancelled
	}
	return nil
}

func (t *traversal) cancelled() bool {
	if t.session.Cancelled() {
		return true
	}
	if t.ctx.Err() != nil {
		t.session.Cancel()
		return true
	}
	return false
}

func (t *traversal) walkDir(dir string, recurse bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		// Permission errors below the root are non-fatal.
		t.session.warn(dir, err)
		return nil
	}

	for _, entry := range entries {
		if t.cancelled() {
			return ErrCancelled
		}

		path := filepath.Join(dir, entry.Name())
		switch {
		case entry.IsDir():
			if !recurse {
				continue
			}
			if err := t.enterDir(path); err != nil {
				return err
			}
		case entry.Type()&fs.ModeSymlink != 0:
			if err := t.followSymlink(path, recurse); err != nil {
				return err
			}
		case entry.Type().IsRegular():
			t.addFile(path, entry)
		}
	}
	return nil
}

// enterDir recurses into a directory unless its resolved real path has been
// visited before.
func (t *traversal) enterDir(path string) error {
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		t.session.warn(path, err)
		return nil
	}
	if t.visited[real] {
		return nil
	}
	t.visited[real] = true
	return t.walkDir(path, true)
}

// followSymlink includes link targets that resolve to regular files and walks
// targets that resolve to directories, subject to the visited set.
func (t *traversal) followSymlink(path string, recurse bool) error {
	info, err := os.Stat(path)
	if err != nil {
		// Broken link.
		t.session.warn(path, err)
		return nil
	}
	if info.IsDir() {
		if !recurse {
			return nil
		}
		return t.enterDir(path)
	}
	if info.Mode().IsRegular() {
		rec := newFileRecord(path, info.Size(), info.ModTime())
		t.record(rec)
	}
	return nil
}

func (t *traversal) addFile(path string, entry fs.DirEntry) {
	info, err := entry.Info()
	if err != nil {
		t.session.warn(path, err)
		return
	}
	t.record(newFileRecord(path, info.Size(), info.ModTime()))
}

func (t *traversal) record(rec *FileRecord) {
	t.session.append(rec)
	t.found++
	if t.found%traversalProgressEvery == 0 {
		t.sink.send(messageEvent(fmt.Sprintf("Scanning: %d files found", t.found)))
	}
}
