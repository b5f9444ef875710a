// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package lockfile provides the process lock of an ngcc run.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/angular-go/ngcc/o11y/clog"
)

// FileName is the name of the lock file in the base path.
const FileName = ".ngcc_lock_file"

// RetryDelay is the delay between attempts to lock.
var RetryDelay = 500 * time.Millisecond

// Path returns the lock file path of basePath.
func Path(basePath string) string {
	return filepath.Join(basePath, FileName)
}

// AlreadyLockedError is returned when another process holds the lock.
type AlreadyLockedError struct {
	Path  string
	Owner string
	Err   error
}

func (e *AlreadyLockedError) Error() string {
	return fmt.Sprintf("ngcc is already running (%s holds %s). If you are sure no ngcc process is running, remove %s", e.Owner, e.Path, e.Path)
}

func (e *AlreadyLockedError) Unwrap() error {
	return e.Err
}

// Acquire locks fname. It waits up to timeout for another process to
// release the lock, and fails immediately if timeout is zero.
// It returns an error matching errors.ErrUnsupported on platforms
// without lock support.
func Acquire(ctx context.Context, fname string, timeout time.Duration) (*LockFile, error) {
	l, err := open(fname)
	if err != nil {
		return nil, err
	}
	var owner string
	deadline := time.Now().Add(timeout)
	for {
		err = l.lock()
		alreadyLocked := &AlreadyLockedError{}
		if !errors.As(err, &alreadyLocked) {
			break
		}
		if owner != alreadyLocked.Owner {
			owner = alreadyLocked.Owner
			clog.Infof(ctx, "waiting for another ngcc process (%s) to complete", owner)
		}
		if !time.Now().Before(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			_ = l.close()
			return nil, context.Cause(ctx)
		case <-time.After(RetryDelay):
		}
	}
	if err != nil {
		_ = l.close()
		return nil, err
	}
	clog.Debugf(ctx, "locked %s", fname)
	return l, nil
}

// Release unlocks and closes the lock file.
func (l *LockFile) Release() error {
	err := l.unlock()
	cerr := l.close()
	if err != nil {
		return err
	}
	return cerr
}
