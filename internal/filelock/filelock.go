// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package filelock guards a directory against concurrent provisioning with an
// advisory flock(2) lock.
package filelock

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"syscall"
)

// ErrLocked is returned, wrapped, when another process holds the lock.
var ErrLocked = errors.New("locked by another process")

// Lock is a held lock. The lock file records the PID of its holder.
type Lock struct {
	path string
	file *os.File
}

// Acquire takes the lock at path without blocking, creating the file if
// needed.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("filelock: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if wouldBlock(err) {
			if pid := holder(path); pid != "" {
				return nil, fmt.Errorf("%w: %s (pid %s)", ErrLocked, path, pid)
			}
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("filelock: %w", err)
	}

	l := &Lock{path: path, file: f}
	if err := l.writePID(); err != nil {
		l.Release()
		return nil, fmt.Errorf("filelock: %w", err)
	}
	return l, nil
}

func (l *Lock) writePID() error {
	if err := l.file.Truncate(0); err != nil {
		return err
	}
	_, err := l.file.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	return err
}

// Held reports whether some process holds the lock at path. A missing lock
// file is not held. A lock file the caller may not open, such as one left
// with mode 0600 by a root run, can't be checked and is reported as not
// held.
func Held(path string) (bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("filelock: %w", err)
	}
	defer f.Close()

	// A shared lock is enough to see an exclusive holder and works on a
	// read-only descriptor.
	err = syscall.Flock(int(f.Fd()), syscall.LOCK_SH|syscall.LOCK_NB)
	if err == nil {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		return false, nil
	}
	if wouldBlock(err) {
		return true, nil
	}
	return false, fmt.Errorf("filelock: %w", err)
}

// Release drops the lock. The file stays in place for the next holder.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	f.Truncate(0)
	err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	return errors.Join(err, f.Close())
}

func holder(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(bytes.TrimSpace(b))
}

func wouldBlock(err error) bool {
	return errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN)
}
