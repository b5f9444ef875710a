// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build windows

package lockfile

import (
	"errors"
)

// TODO: lock with LockFileEx from golang.org/x/sys/windows.

// LockFile is not supported on windows.
type LockFile struct{}

func open(fname string) (*LockFile, error) {
	return nil, errors.ErrUnsupported
}

func (l *LockFile) close() error  { return errors.ErrUnsupported }
func (l *LockFile) lock() error   { return errors.ErrUnsupported }
func (l *LockFile) unlock() error { return errors.ErrUnsupported }
