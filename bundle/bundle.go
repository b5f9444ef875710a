// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package bundle loads the source and typings programs of an
// entry-point format.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/angular-go/ngcc/deps"
	"github.com/angular-go/ngcc/entrypoint"
	"github.com/angular-go/ngcc/jsscan"
	"github.com/angular-go/ngcc/modresolve"
	"github.com/angular-go/ngcc/o11y/clog"
	"github.com/angular-go/ngcc/osfs"
)

// BackupExtension is appended to the original file of a file
// overwritten by ngcc.
const BackupExtension = ".__ivy_ngcc_bak"

// SourceFile is a parsed file of a program.
type SourceFile struct {
	Path string
	AST  *jsscan.File
}

// Text returns the contents of the file.
func (f *SourceFile) Text() string {
	return f.AST.Src
}

// IsDts reports whether the file is a typings file.
func (f *SourceFile) IsDts() bool {
	return strings.HasSuffix(f.Path, ".d.ts")
}

// Program is a set of files reachable from an entry file.
type Program struct {
	Entry  string
	Files  []*SourceFile
	byPath map[string]*SourceFile
}

// File returns the file at path in the program, or nil.
func (p *Program) File(path string) *SourceFile {
	if p == nil {
		return nil
	}
	return p.byPath[path]
}

// EntryFile returns the entry file of the program.
func (p *Program) EntryFile() *SourceFile {
	return p.File(p.Entry)
}

// NewProgram returns a program of files with the entry file entry.
func NewProgram(entry string, files ...*SourceFile) *Program {
	p := &Program{Entry: entry}
	for _, f := range files {
		p.add(f)
	}
	return p
}

func (p *Program) add(f *SourceFile) {
	if p.byPath == nil {
		p.byPath = make(map[string]*SourceFile)
	}
	p.Files = append(p.Files, f)
	p.byPath[f.Path] = f
}

// EntryPointBundle is the files of an entry-point format to process.
type EntryPointBundle struct {
	EntryPoint     *entrypoint.EntryPoint
	FormatProperty string
	Format         entrypoint.Format
	// IsCore is true when processing @angular/core itself.
	IsCore bool
	Src    *Program
	// Dts is nil when typings are not processed.
	Dts *Program
}

// backupFS reads backups of files overwritten by ngcc in preference
// to the files, so that a stale entry-point is reprocessed from the
// original sources.
type backupFS struct {
	osfs.FS
}

func (b backupFS) ReadFile(fname string) ([]byte, error) {
	buf, err := b.FS.ReadFile(fname + BackupExtension)
	if err == nil {
		return buf, nil
	}
	return b.FS.ReadFile(fname)
}

// New loads the bundle of formatProperty of ep.
func New(ctx context.Context, fsys osfs.FS, pm *modresolve.PathMappings, ep *entrypoint.EntryPoint, formatProperty string, format entrypoint.Format, processDts bool) (*EntryPointBundle, error) {
	entryFile, ok := entrypoint.ResolveBundlePath(ctx, fsys, ep, formatProperty)
	if !ok {
		return nil, fmt.Errorf("missing bundle file of %q for entry-point %s", formatProperty, ep.Path)
	}
	bfs := backupFS{FS: fsys}
	resolver := modresolve.New(bfs, pm)
	var host deps.Host
	switch format {
	case entrypoint.FormatESM2015, entrypoint.FormatESM5:
		host = deps.NewEsmHost(bfs, resolver)
	case entrypoint.FormatUMD:
		host = deps.NewUmdHost(bfs, resolver)
	case entrypoint.FormatCommonJS:
		host = deps.NewCommonJSHost(bfs, resolver)
	default:
		return nil, fmt.Errorf("unsupported format %q for %s", format, ep.Path)
	}
	info, err := host.FindDependencies(ctx, entryFile)
	if err != nil {
		return nil, err
	}
	b := &EntryPointBundle{
		EntryPoint:     ep,
		FormatProperty: formatProperty,
		Format:         format,
		IsCore:         ep.Name == "@angular/core",
		Src:            &Program{Entry: entryFile},
	}
	for _, fname := range info.Files {
		sf, err := parseFile(bfs, fname)
		if err != nil {
			return nil, err
		}
		b.Src.add(sf)
	}
	clog.Debugf(ctx, "loaded %d source files of %s %s", len(b.Src.Files), ep.Path, formatProperty)
	if processDts {
		b.Dts, err = loadDts(ctx, bfs, ep.Typings)
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

func parseFile(fsys osfs.FS, fname string) (*SourceFile, error) {
	buf, err := fsys.ReadFile(fname)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fname, err)
	}
	f, err := jsscan.Parse(fname, string(buf))
	if err != nil {
		return nil, err
	}
	return &SourceFile{Path: fname, AST: f}, nil
}

// loadDts loads typings files reachable from the typings entry by
// relative imports and re-exports.
func loadDts(ctx context.Context, fsys osfs.FS, typings string) (*Program, error) {
	p := &Program{Entry: typings}
	queue := []string{typings}
	seen := map[string]bool{typings: true}
	for len(queue) > 0 {
		fname := queue[0]
		queue = queue[1:]
		sf, err := parseFile(fsys, fname)
		if errors.Is(err, fs.ErrNotExist) && fname != typings {
			clog.Warningf(ctx, "missing typings file %s", fname)
			continue
		}
		if err != nil {
			return nil, err
		}
		p.add(sf)
		for _, spec := range ModuleSpecifiers(sf.AST) {
			if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
				continue
			}
			dts := resolveDts(ctx, fsys, filepath.Join(filepath.Dir(fname), filepath.FromSlash(spec)))
			if dts == "" || seen[dts] {
				continue
			}
			seen[dts] = true
			queue = append(queue, dts)
		}
	}
	return p, nil
}

func resolveDts(ctx context.Context, fsys osfs.FS, p string) string {
	p = strings.TrimSuffix(p, ".js")
	for _, postfix := range []string{".d.ts", "/index.d.ts"} {
		if fsys.IsFile(ctx, p+filepath.FromSlash(postfix)) {
			return p + filepath.FromSlash(postfix)
		}
	}
	return ""
}

// ModuleSpecifiers returns module specifiers of top-level import and
// export-from declarations, and `import("x")` types.
func ModuleSpecifiers(f *jsscan.File) []string {
	var specs []string
	for i, tok := range f.Tokens {
		if tok.Kind != jsscan.String {
			continue
		}
		switch {
		case f.Is(i-1, "from"), f.Is(i-1, "import"):
		case f.Is(i-1, "(") && f.Is(i-2, "import"):
		default:
			continue
		}
		specs = append(specs, jsscan.StringValue(tok))
	}
	return specs
}
