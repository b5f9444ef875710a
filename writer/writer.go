// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package writer writes rendered files of a bundle.
package writer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/angular-go/ngcc/buildmarker"
	"github.com/angular-go/ngcc/bundle"
	"github.com/angular-go/ngcc/entrypoint"
	"github.com/angular-go/ngcc/o11y/clog"
	"github.com/angular-go/ngcc/osfs"
	"github.com/angular-go/ngcc/render"
)

// NgccDirectory is the directory in a package where new entry-point
// bundles are written.
const NgccDirectory = "__ivy_ngcc__"

// FileWriter writes rendered files of a bundle.
type FileWriter interface {
	// WriteBundle writes files of b. formatProperties are the
	// package.json properties pointing to the bundle.
	WriteBundle(ctx context.Context, b *bundle.EntryPointBundle, files []render.FileInfo, formatProperties []string) error
}

// InPlaceFileWriter overwrites the original files, keeping the
// originals as backups.
type InPlaceFileWriter struct {
	FS osfs.FS
}

var _ FileWriter = (*InPlaceFileWriter)(nil)

// WriteBundle writes files in place.
func (w *InPlaceFileWriter) WriteBundle(ctx context.Context, b *bundle.EntryPointBundle, files []render.FileInfo, formatProperties []string) error {
	for _, f := range files {
		if err := w.writeFile(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

// writeFile backs up the original of f unless a backup already exists,
// i.e. the file is written again while reprocessing a stale
// entry-point, then overwrites it.
func (w *InPlaceFileWriter) writeFile(ctx context.Context, f render.FileInfo) error {
	backup := f.Path + bundle.BackupExtension
	switch {
	case w.FS.Exists(ctx, backup):
		clog.Debugf(ctx, "keep existing backup %s", backup)
	case w.FS.Exists(ctx, f.Path):
		if err := w.FS.CopyFile(f.Path, backup); err != nil {
			return fmt.Errorf("failed to back up %s: %w", f.Path, err)
		}
	}
	if err := w.FS.WriteFile(f.Path, []byte(f.Contents), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.Path, err)
	}
	return nil
}

// EntryPointFileWriter writes source files into a new entry-point
// bundle under <package>/__ivy_ngcc__, leaving the original bundle
// untouched. Typings are written in place.
type EntryPointFileWriter struct {
	FS      osfs.FS
	Updater buildmarker.Updater
}

var _ FileWriter = (*EntryPointFileWriter)(nil)

// NewEntryPointFileWriter returns a writer of new entry-point bundles
// that records them in package.json through updater.
func NewEntryPointFileWriter(fsys osfs.FS, updater buildmarker.Updater) *EntryPointFileWriter {
	return &EntryPointFileWriter{FS: fsys, Updater: updater}
}

// NewPath returns the path of fname in the new entry-point bundle of
// the package at packagePath.
func NewPath(packagePath, fname string) (string, error) {
	rel, err := filepath.Rel(packagePath, fname)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is not in package %s", fname, packagePath)
	}
	return filepath.Join(packagePath, NgccDirectory, rel), nil
}

// WriteBundle copies the source files of b to the new entry-point
// bundle, writes rendered source files there and rendered typings in
// place, and points `<prop>_ivy_ngcc` of formatProperties to the new
// bundle.
func (w *EntryPointFileWriter) WriteBundle(ctx context.Context, b *bundle.EntryPointBundle, files []render.FileInfo, formatProperties []string) error {
	ep := b.EntryPoint
	rendered := make(map[string]bool)
	inPlace := &InPlaceFileWriter{FS: w.FS}
	for _, f := range files {
		rendered[f.Path] = true
		if strings.HasSuffix(f.Path, ".d.ts") {
			if err := inPlace.writeFile(ctx, f); err != nil {
				return err
			}
			continue
		}
		p, err := NewPath(ep.Package, f.Path)
		if err != nil {
			return err
		}
		if err := w.FS.WriteFile(p, []byte(f.Contents), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", p, err)
		}
	}
	for _, f := range b.Src.Files {
		if rendered[f.Path] {
			continue
		}
		p, err := NewPath(ep.Package, f.Path)
		if err != nil {
			return err
		}
		if err := w.FS.WriteFile(p, []byte(f.Text()), 0644); err != nil {
			return fmt.Errorf("failed to copy %s: %w", f.Path, err)
		}
	}
	newEntry, err := NewPath(ep.Package, b.Src.Entry)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(ep.Path, newEntry)
	if err != nil {
		return err
	}
	var changes []buildmarker.Change
	for _, prop := range formatProperties {
		changes = append(changes, buildmarker.Change{
			PropertyPath: []string{prop + buildmarker.IvySuffix},
			Value:        filepath.ToSlash(rel),
		})
	}
	clog.Debugf(ctx, "new entry-point bundle %s for %q", newEntry, formatProperties)
	return w.Updater.WriteChanges(ctx, ep.PackageJSONPath(), ep.PackageJSON, changes)
}

// CleanPackage reverts the outputs of a previous ngcc run in the
// package at packagePath: it restores files from their backups, removes
// new entry-point bundles and cleans build markers of package.json
// files. Nested node_modules are not visited.
// It returns the number of cleaned files.
func CleanPackage(ctx context.Context, fsys osfs.FS, updater buildmarker.Updater, packagePath string) (int, error) {
	n, err := cleanDir(ctx, fsys, updater, packagePath)
	if err != nil {
		return n, fmt.Errorf("failed to clean %s: %w", packagePath, err)
	}
	return n, nil
}

func cleanDir(ctx context.Context, fsys osfs.FS, updater buildmarker.Updater, dir string) (int, error) {
	ents, err := fsys.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n := 0
	for _, ent := range ents {
		name := ent.Name()
		fname := filepath.Join(dir, name)
		if ent.IsDir() {
			switch name {
			case "node_modules":
				continue
			case NgccDirectory:
				clog.Infof(ctx, "remove %s", fname)
				if err := removeAll(fsys, fname); err != nil {
					return n, err
				}
				n++
				continue
			}
			m, err := cleanDir(ctx, fsys, updater, fname)
			n += m
			if err != nil {
				return n, err
			}
			continue
		}
		if name == "package.json" {
			pkg, err := entrypoint.ReadPackageJSON(fsys, fname)
			if err != nil {
				clog.Warningf(ctx, "skip cleaning %s: %v", fname, err)
				continue
			}
			cleaned, err := buildmarker.CleanPackageJSON(ctx, updater, pkg, fname)
			if err != nil {
				return n, err
			}
			if cleaned {
				n++
			}
			continue
		}
		orig, ok := strings.CutSuffix(name, bundle.BackupExtension)
		if !ok {
			continue
		}
		clog.Debugf(ctx, "restore %s", filepath.Join(dir, orig))
		if err := fsys.Rename(fname, filepath.Join(dir, orig)); err != nil {
			return n, fmt.Errorf("failed to restore %s: %w", fname, err)
		}
		n++
	}
	return n, nil
}

func removeAll(fsys osfs.FS, dir string) error {
	ents, err := fsys.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, ent := range ents {
		fname := filepath.Join(dir, ent.Name())
		if ent.IsDir() {
			if err := removeAll(fsys, fname); err != nil {
				return err
			}
			continue
		}
		if err := fsys.Remove(fname); err != nil {
			return err
		}
	}
	return fsys.Remove(dir)
}
