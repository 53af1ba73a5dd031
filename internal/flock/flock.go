// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package flock provides advisory, whole-file locks used to serialize
// writers of the same database path, across processes.
package flock

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ErrLocked is returned by TryAcquire when another holder has the lock.
var ErrLocked = errors.New("cdb: writer lock held by another builder")

// Lock is a held lock on a lock file.
type Lock struct {
	f *os.File
}

func open(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("os.OpenFile: %w", err)
	}
	return f, nil
}

// Acquire blocks until it holds an exclusive lock on path, creating the lock
// file if necessary.
func Acquire(path string) (*Lock, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	for {
		err = unix.Flock(int(f.Fd()), unix.LOCK_EX)
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("flock(%s): %w", path, err)
	}
	return &Lock{f: f}, nil
}

// TryAcquire is like Acquire, but returns ErrLocked instead of waiting.
func TryAcquire(path string) (*Lock, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("flock(%s): %w", path, err)
	}
	return &Lock{f: f}, nil
}

// Release unlocks and closes the lock file.  The file itself is left in
// place: removing it would race with a writer that just opened it.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	f := l.f
	l.f = nil
	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		_ = f.Close()
		return fmt.Errorf("flock(LOCK_UN): %w", err)
	}
	return f.Close()
}
