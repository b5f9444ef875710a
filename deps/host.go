// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package deps computes dependencies of entry-points and sorts them.
package deps

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/angular-go/ngcc/jsscan"
	"github.com/angular-go/ngcc/modresolve"
	"github.com/angular-go/ngcc/o11y/clog"
	"github.com/angular-go/ngcc/osfs"
)

// DependencyInfo is the dependencies of an entry file and the relative
// files it reaches.
type DependencyInfo struct {
	// Dependencies are entry-point paths imported.
	Dependencies []string
	// Missing are module names that can't be resolved.
	Missing []string
	// DeepImports are paths of files imported from inside another
	// package, bypassing its entry-point.
	DeepImports []string
	// Files are the entry file followed by relative files reached.
	Files []string
}

// Host finds dependencies of an entry file.
type Host interface {
	FindDependencies(ctx context.Context, entryFile string) (*DependencyInfo, error)
}

// specifierFunc extracts module specifiers imported by src.
type specifierFunc func(ctx context.Context, fname string, src []byte) ([]string, error)

// host is a Host that resolves specifiers and recurses into relative
// modules. Each file is scanned once.
type host struct {
	fs       osfs.FS
	resolver *modresolve.Resolver
	extract  specifierFunc
}

type collector struct {
	seen         map[string]bool
	dependencies map[string]bool
	missing      map[string]bool
	deepImports  map[string]bool
	files        []string
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (h *host) FindDependencies(ctx context.Context, entryFile string) (*DependencyInfo, error) {
	c := &collector{
		seen:         make(map[string]bool),
		dependencies: make(map[string]bool),
		missing:      make(map[string]bool),
		deepImports:  make(map[string]bool),
	}
	err := h.collect(ctx, entryFile, c)
	if err != nil {
		return nil, err
	}
	return &DependencyInfo{
		Dependencies: sortedKeys(c.dependencies),
		Missing:      sortedKeys(c.missing),
		DeepImports:  sortedKeys(c.deepImports),
		Files:        c.files,
	}, nil
}

func (h *host) collect(ctx context.Context, fname string, c *collector) error {
	if c.seen[fname] {
		return nil
	}
	c.seen[fname] = true
	if err := ctx.Err(); err != nil {
		return err
	}
	buf, err := h.fs.ReadFile(fname)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", fname, err)
	}
	c.files = append(c.files, fname)
	if !hasImportOrRequire(buf) {
		return nil
	}
	specifiers, err := h.extract(ctx, fname, buf)
	if err != nil {
		return err
	}
	for _, s := range specifiers {
		m := h.resolver.ResolveModuleImport(ctx, s, fname)
		switch m := m.(type) {
		case nil:
			c.missing[s] = true
		case *modresolve.RelativeModule:
			err := h.collect(ctx, m.ModulePath, c)
			if err != nil {
				return err
			}
		case *modresolve.ExternalModule:
			c.dependencies[m.EntryPointPath] = true
		case *modresolve.DeepImport:
			c.deepImports[m.ImportPath] = true
		}
	}
	return nil
}

// hasImportOrRequire reports whether src may import anything.
// It is a quick check to avoid parsing files that don't.
func hasImportOrRequire(src []byte) bool {
	return bytes.Contains(src, []byte("import")) ||
		bytes.Contains(src, []byte("export")) ||
		bytes.Contains(src, []byte("require"))
}

// NewEsmHost creates a host for ESM2015 and ESM5 bundles.
func NewEsmHost(fsys osfs.FS, resolver *modresolve.Resolver) Host {
	return &host{
		fs:       fsys,
		resolver: resolver,
		extract:  esbuildSpecifiers(api.ResolveJSImportStatement),
	}
}

// NewCommonJSHost creates a host for CommonJS bundles.
func NewCommonJSHost(fsys osfs.FS, resolver *modresolve.Resolver) Host {
	return &host{
		fs:       fsys,
		resolver: resolver,
		extract:  esbuildSpecifiers(api.ResolveJSRequireCall),
	}
}

// NewUmdHost creates a host for UMD bundles.
func NewUmdHost(fsys osfs.FS, resolver *modresolve.Resolver) Host {
	return &host{
		fs:       fsys,
		resolver: resolver,
		extract:  umdSpecifiers,
	}
}

// esbuildSpecifiers returns specifierFunc that parses the file with
// esbuild and records module specifiers of import records of kinds.
// Every import is marked external, so esbuild doesn't load other files.
func esbuildSpecifiers(kinds ...api.ResolveKind) specifierFunc {
	accept := make(map[api.ResolveKind]bool)
	for _, k := range kinds {
		accept[k] = true
	}
	return func(ctx context.Context, fname string, src []byte) ([]string, error) {
		var mu sync.Mutex
		seen := make(map[string]bool)
		var specifiers []string
		plugin := api.Plugin{
			Name: "ngcc-dependencies",
			Setup: func(build api.PluginBuild) {
				build.OnResolve(api.OnResolveOptions{Filter: ".*"}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					if accept[args.Kind] {
						mu.Lock()
						if !seen[args.Path] {
							seen[args.Path] = true
							specifiers = append(specifiers, args.Path)
						}
						mu.Unlock()
					}
					return api.OnResolveResult{Path: args.Path, External: true}, nil
				})
			},
		}
		result := api.Build(api.BuildOptions{
			Stdin: &api.StdinOptions{
				Contents:   string(src),
				ResolveDir: filepath.Dir(fname),
				Sourcefile: fname,
				Loader:     api.LoaderJS,
			},
			Bundle:   true,
			Write:    false,
			LogLevel: api.LogLevelSilent,
			Platform: api.PlatformNeutral,
			Plugins:  []api.Plugin{plugin},
		})
		if len(result.Errors) > 0 {
			var msgs []string
			for _, m := range result.Errors {
				msg := m.Text
				if m.Location != nil {
					msg = fmt.Sprintf("%d:%d: %s", m.Location.Line, m.Location.Column, m.Text)
				}
				msgs = append(msgs, msg)
			}
			return nil, fmt.Errorf("failed to parse %s: %s", fname, strings.Join(msgs, "; "))
		}
		clog.Debugf(ctx, "%s imports %q", fname, specifiers)
		return specifiers, nil
	}
}

// umdSpecifiers returns require args of the CommonJS factory call of
// the UMD wrapper. Files without UMD wrapper have no dependencies.
func umdSpecifiers(ctx context.Context, fname string, src []byte) ([]string, error) {
	f, err := jsscan.Parse(fname, string(src))
	if err != nil {
		return nil, err
	}
	w, ok := f.UMD()
	if !ok {
		clog.Debugf(ctx, "%s has no UMD wrapper", fname)
		return nil, nil
	}
	return w.Requires(f), nil
}
