// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package atomicfile writes a file next to its final location and renames it
// into place, so readers of the final path only ever see a complete file.
package atomicfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// ErrNotDurable is returned by Commit when the file was renamed into place
// but the directory entry couldn't be flushed to stable storage.  The new
// file is visible at Path(), but may not survive a crash.
var ErrNotDurable = errors.New("published, but directory sync failed")

// swapped out in tests to simulate failures
var (
	syncFile      = (*os.File).Sync
	rename        = os.Rename
	syncDirectory = syncDir
)

// File is a temporary file that replaces Path() when committed.
type File struct {
	*os.File
	path     string
	tempPath string
	done     bool
}

// Create opens a temporary file that will replace path.  If tempPath is
// empty, a uniquely named file is created in path's directory, which keeps
// the final rename on a single filesystem.  An explicit tempPath is
// truncated if it already exists.
func Create(path, tempPath string) (*File, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("filepath.Abs: %w", err)
	}

	var f *os.File
	if tempPath == "" {
		dir := filepath.Dir(path)
		f, err = os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
		if err != nil {
			return nil, fmt.Errorf("CreateTemp failed (may need permissions for dir %q): %w", dir, err)
		}
	} else {
		f, err = os.OpenFile(tempPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return nil, fmt.Errorf("os.OpenFile: %w", err)
		}
	}

	return &File{
		File:     f,
		path:     path,
		tempPath: f.Name(),
	}, nil
}

// Path returns the absolute path the file is published to.
func (f *File) Path() string {
	return f.path
}

// TempPath returns the path of the file being written.
func (f *File) TempPath() string {
	return f.tempPath
}

// Commit flushes the file to stable storage, sets its permissions, and
// renames it over Path().  If anything fails before the rename the
// temporary file is removed and Path() is untouched.
func (f *File) Commit(mode os.FileMode) (err error) {
	if f.done {
		return errors.New("atomicfile: already committed or aborted")
	}

	defer func() {
		if err != nil {
			_ = f.Abort()
		}
	}()

	if err := syncFile(f.File); err != nil {
		return fmt.Errorf("f.Sync: %w", err)
	}
	if err := f.File.Chmod(mode); err != nil {
		return fmt.Errorf("f.Chmod(%o): %w", mode, err)
	}
	if err := f.File.Close(); err != nil {
		return fmt.Errorf("f.Close: %w", err)
	}
	if err := rename(f.tempPath, f.path); err != nil {
		return fmt.Errorf("os.Rename: %w", err)
	}
	f.done = true

	// make the rename itself durable
	if err := syncDirectory(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("%w: %w", ErrNotDurable, err)
	}

	return nil
}

// Abort closes and removes the temporary file.  It is safe to call more than
// once, and after a successful Commit it does nothing.
func (f *File) Abort() error {
	if f.done {
		return nil
	}
	f.done = true

	_ = f.File.Close()
	if err := os.Remove(f.tempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("os.Remove: %w", err)
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer func() {
		_ = d.Close()
	}()

	// some filesystems don't support fsync on directories
	if err := d.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) {
		return err
	}
	return nil
}
