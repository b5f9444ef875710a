// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build unix

package lockfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// LockFile is a lock file held with flock.
type LockFile struct {
	f *os.File
}

func open(fname string) (*LockFile, error) {
	f, err := os.OpenFile(fname, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	return &LockFile{f: f}, nil
}

func (l *LockFile) close() error {
	return l.f.Close()
}

func (l *LockFile) lock() error {
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			_, _ = l.f.Seek(0, io.SeekStart)
			buf, rerr := io.ReadAll(l.f)
			if rerr != nil {
				return fmt.Errorf("%s is locked, and failed to read: %w", l.f.Name(), rerr)
			}
			return &AlreadyLockedError{
				Path:  l.f.Name(),
				Owner: strings.TrimSpace(string(buf)),
				Err:   err,
			}
		}
		return err
	}
	if err = l.f.Truncate(0); err != nil {
		return err
	}
	if _, err = l.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err = fmt.Fprintf(l.f, "pid=%d", os.Getpid())
	return err
}

func (l *LockFile) unlock() error {
	if err := l.f.Truncate(0); err != nil {
		return err
	}
	return unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
}
