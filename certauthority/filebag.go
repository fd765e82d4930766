////////////////////////////////////////////////////////////////////////////////
// Copyright © 2026 sslcaudit contributors                                     /
// Use of this source code is governed by a license that can be found in the  /
// LICENSE file.                                                              /
////////////////////////////////////////////////////////////////////////////////

// Package certauthority implements the in-process mini certificate authority
// that sslcaudit uses to materialize the bogus server certificates it audits
// clients against.
package certauthority

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// FileBag is a sandboxed temporary-file store for PEM material generated
// during a run. Implementations must make written files readable only by
// the running user and must remove everything on Close.
type FileBag interface {
	WriteTemp(nameHint string, data []byte) (path string, err error)
	Close() error
}

// fsFileBag is the filesystem-backed FileBag. It keeps every file it writes
// under one private temp directory and watches that directory with fsnotify
// so an external deletion (another process cleaning /tmp, an operator
// mistake) is logged instead of surfacing later as a baffling TLS load
// error.
type fsFileBag struct {
	dir     string
	watcher *fsnotify.Watcher
	mu      sync.Mutex
	files   []string
	closed  bool
}

// NewFileBag creates a private 0700 temp directory under baseDir (the
// system temp dir if baseDir is empty) and starts watching it.
func NewFileBag(baseDir string) (FileBag, error) {
	dir, err := os.MkdirTemp(baseDir, "sslcaudit-")
	if err != nil {
		return nil, errors.Wrap(err, "create file bag directory")
	}
	if err := os.Chmod(dir, 0700); err != nil {
		return nil, errors.Wrap(err, "chmod file bag directory")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// A watcher is a nicety, not a correctness requirement; fall back to
		// an unwatched bag rather than failing the run.
		jww.WARN.Printf("file bag: fsnotify unavailable, continuing unwatched: %v", err)
		return &fsFileBag{dir: dir}, nil
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		jww.WARN.Printf("file bag: could not watch %s: %v", dir, err)
		return &fsFileBag{dir: dir}, nil
	}

	bag := &fsFileBag{dir: dir, watcher: watcher}
	go bag.watch()
	return bag, nil
}

func (b *fsFileBag) watch() {
	for event := range b.watcher.Events {
		if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
			jww.WARN.Printf("file bag: %s was removed externally during the run", event.Name)
		}
	}
}

// WriteTemp writes data to a new file named nameHint-<n>.pem under the bag
// directory, with 0600 permissions, and returns its path.
func (b *fsFileBag) WriteTemp(nameHint string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", errors.New("file bag: write after close")
	}

	name := fmt.Sprintf("%s-%d.pem", nameHint, len(b.files))
	path := filepath.Join(b.dir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", errors.Wrapf(err, "write temp file %s", path)
	}
	b.files = append(b.files, path)
	return path, nil
}

// Close stops the watcher and deletes the bag directory and everything in
// it. A removal failure is logged and also returned to the caller.
func (b *fsFileBag) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	if b.watcher != nil {
		b.watcher.Close()
	}
	if err := os.RemoveAll(b.dir); err != nil {
		jww.WARN.Printf("file bag: could not remove %s: %v", b.dir, err)
		return errors.Wrapf(err, "remove file bag directory %s", b.dir)
	}
	return nil
}
