// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package osfs provides OS Filesystem access.
package osfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/angular-go/ngcc/runtimex"
	"github.com/angular-go/ngcc/sync/semaphore"
)

// StatSemaphore is a semaphore to control concurrent stat,
// to protect from thread exhaustion while walking large node_modules trees.
var StatSemaphore = semaphore.New("osfs-stat", runtimex.NumCPU()*2)

// FS is the filesystem used by ngcc components.
type FS interface {
	Stat(ctx context.Context, fname string) (fs.FileInfo, error)
	Exists(ctx context.Context, fname string) bool
	IsFile(ctx context.Context, fname string) bool
	IsDir(ctx context.Context, fname string) bool
	ReadFile(fname string) ([]byte, error)
	ReadDir(dir string) ([]fs.DirEntry, error)
	MkdirAll(dirname string, perm fs.FileMode) error
	Remove(name string) error
	Rename(oldpath, newpath string) error
	WriteFile(name string, data []byte, perm fs.FileMode) error
	CopyFile(src, dst string) error
}

var _ FS = (*OSFS)(nil)

// OSFS provides OS Filesystem access.
// All paths are absolute OS paths.
type OSFS struct{}

// New creates new OSFS.
func New() *OSFS {
	return &OSFS{}
}

// Stat returns a FileInfo describing the named file, following symlinks.
func (ofs *OSFS) Stat(ctx context.Context, fname string) (fs.FileInfo, error) {
	var fi fs.FileInfo
	err := StatSemaphore.Do(ctx, func(ctx context.Context) error {
		var err error
		fi, err = os.Stat(fname)
		return err
	})
	return fi, err
}

// Exists reports whether fname exists.
func (ofs *OSFS) Exists(ctx context.Context, fname string) bool {
	_, err := ofs.Stat(ctx, fname)
	return err == nil
}

// IsFile reports whether fname is a regular file.
func (ofs *OSFS) IsFile(ctx context.Context, fname string) bool {
	fi, err := ofs.Stat(ctx, fname)
	return err == nil && fi.Mode().IsRegular()
}

// IsDir reports whether fname is a directory.
func (ofs *OSFS) IsDir(ctx context.Context, fname string) bool {
	fi, err := ofs.Stat(ctx, fname)
	return err == nil && fi.IsDir()
}

// ReadFile reads the named file.
func (ofs *OSFS) ReadFile(fname string) ([]byte, error) {
	return os.ReadFile(fname)
}

// ReadDir returns sorted names of entries in dir.
func (ofs *OSFS) ReadDir(dir string) ([]fs.DirEntry, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(ents, func(i, j int) bool {
		return ents[i].Name() < ents[j].Name()
	})
	return ents, nil
}

// MkdirAll creates a directory named path, along with any necessary parents.
func (ofs *OSFS) MkdirAll(dirname string, perm fs.FileMode) error {
	return os.MkdirAll(dirname, perm)
}

// Remove removes the named file or directory.
func (ofs *OSFS) Remove(name string) error {
	return os.Remove(name)
}

// Rename renames oldpath to newpath.
func (ofs *OSFS) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

// WriteFile writes data to the named file, creating parent directories
// if necessary. It writes into a temporary file in the same directory
// and renames it, so readers never observe a partially written file.
func (ofs *OSFS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(name)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(name)+".*.tmp")
	if err != nil {
		return err
	}
	tmpname := f.Name()
	_, err = f.Write(data)
	cerr := f.Close()
	if err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmpname, perm)
	}
	if err == nil {
		err = os.Rename(tmpname, name)
	}
	if err != nil {
		_ = os.Remove(tmpname)
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// CopyFile copies src to dst, creating parent directories of dst.
func (ofs *OSFS) CopyFile(src, dst string) error {
	r, err := os.Open(src)
	if err != nil {
		return err
	}
	defer r.Close()
	fi, err := r.Stat()
	if err != nil {
		return err
	}
	err = os.MkdirAll(filepath.Dir(dst), 0755)
	if err != nil {
		return err
	}
	w, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return err
	}
	_, err = io.Copy(w, r)
	cerr := w.Close()
	return errors.Join(err, cerr)
}
