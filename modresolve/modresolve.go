// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package modresolve resolves JavaScript module specifiers to files or
// entry-points on disk.
//
// It supports
//
//	import './relative';          // relative to the importing file
//	import 'mapped/name';         // tsconfig style baseUrl + paths mappings
//	import '@scope/package/sub';  // node_modules lookup
//
// Bare specifiers are resolved the way Node.js does, walking up the
// ancestor node_modules directories of the importing file.
package modresolve

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/angular-go/ngcc/osfs"
)

// ResolvedModule is a result of module resolution.
// It is one of *RelativeModule, *ExternalModule or *DeepImport.
type ResolvedModule interface {
	isResolvedModule()
}

// RelativeModule is a file that is part of the importing entry-point.
type RelativeModule struct {
	ModulePath string
}

// ExternalModule is another entry-point (a directory with package.json).
type ExternalModule struct {
	EntryPointPath string
}

// DeepImport is a file inside another package that is not an entry-point.
type DeepImport struct {
	ImportPath string
}

func (*RelativeModule) isResolvedModule() {}
func (*ExternalModule) isResolvedModule() {}
func (*DeepImport) isResolvedModule()     {}

// PathMappings is tsconfig's baseUrl and paths.
type PathMappings struct {
	BaseURL string              `json:"baseUrl"`
	Paths   map[string][]string `json:"paths"`
}

type splitPattern struct {
	prefix      string
	postfix     string
	hasWildcard bool
}

func splitOnStar(s string) splitPattern {
	prefix, postfix, found := strings.Cut(s, "*")
	return splitPattern{prefix: prefix, postfix: postfix, hasWildcard: found}
}

type pathMapping struct {
	matcher   splitPattern
	templates []splitPattern
	baseURL   string
}

// relativeExtensions are tried in order for relative imports.
var relativeExtensions = []string{"", ".js", "/index.js"}

// Resolver resolves module specifiers.
type Resolver struct {
	fs       osfs.FS
	mappings []pathMapping
}

// New creates a resolver. pm may be nil.
func New(fs osfs.FS, pm *PathMappings) *Resolver {
	r := &Resolver{fs: fs}
	if pm == nil {
		return r
	}
	baseURL := filepath.Clean(pm.BaseURL)
	// object key order is lost in Go maps; keep pattern order
	// deterministic so that ties on prefix length are stable.
	patterns := make([]string, 0, len(pm.Paths))
	for p := range pm.Paths {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)
	for _, p := range patterns {
		m := pathMapping{
			matcher: splitOnStar(p),
			baseURL: baseURL,
		}
		for _, t := range pm.Paths[p] {
			m.templates = append(m.templates, splitOnStar(t))
		}
		r.mappings = append(r.mappings, m)
	}
	return r
}

// ResolveModuleImport resolves moduleName imported from fromPath.
// It returns nil if the module can't be resolved.
func (r *Resolver) ResolveModuleImport(ctx context.Context, moduleName, fromPath string) ResolvedModule {
	if isRelativePath(moduleName) {
		return r.resolveAsRelativePath(ctx, moduleName, fromPath)
	}
	if len(r.mappings) > 0 {
		if m := r.resolveByPathMappings(ctx, moduleName, fromPath); m != nil {
			return m
		}
	}
	return r.resolveAsEntryPoint(ctx, moduleName, fromPath)
}

func isRelativePath(p string) bool {
	return strings.HasPrefix(p, "./") || strings.HasPrefix(p, "../") || p == "." || p == ".." || filepath.IsAbs(p)
}

func (r *Resolver) resolveAsRelativePath(ctx context.Context, moduleName, fromPath string) ResolvedModule {
	p := moduleName
	if !filepath.IsAbs(p) {
		p = filepath.Join(filepath.Dir(fromPath), filepath.FromSlash(moduleName))
	}
	resolved := r.resolvePath(ctx, p, relativeExtensions)
	if resolved == "" {
		return nil
	}
	return &RelativeModule{ModulePath: resolved}
}

func (r *Resolver) resolvePath(ctx context.Context, p string, postfixes []string) string {
	for _, postfix := range postfixes {
		testPath := p + filepath.FromSlash(postfix)
		if r.fs.IsFile(ctx, testPath) {
			return testPath
		}
	}
	return ""
}

// resolveByPathMappings tries the templates of the best matching mapping
// in declared order. A template directory with package.json is an
// entry-point; otherwise a file resolved through the mapping is relative
// when it is inside the importing file's package, and a deep import
// otherwise.
func (r *Resolver) resolveByPathMappings(ctx context.Context, moduleName, fromPath string) ResolvedModule {
	mappedPaths := r.findMappedPaths(moduleName)
	if len(mappedPaths) == 0 {
		return nil
	}
	packagePath := r.findPackagePath(ctx, fromPath)
	if packagePath == "" {
		return nil
	}
	for _, mappedPath := range mappedPaths {
		if r.isEntryPoint(ctx, mappedPath) {
			return &ExternalModule{EntryPointPath: mappedPath}
		}
		m := r.resolveAsRelativePath(ctx, mappedPath, fromPath)
		if m == nil {
			continue
		}
		if isWithin(packagePath, mappedPath) {
			return m
		}
		return &DeepImport{ImportPath: mappedPath}
	}
	return nil
}

// resolveAsEntryPoint walks up ancestor node_modules directories.
func (r *Resolver) resolveAsEntryPoint(ctx context.Context, moduleName, fromPath string) ResolvedModule {
	folder := fromPath
	for !isRoot(folder) {
		folder = filepath.Dir(folder)
		if filepath.Base(folder) == "node_modules" {
			// skip up if the folder already ends in node_modules
			folder = filepath.Dir(folder)
		}
		modulePath := filepath.Join(folder, "node_modules", filepath.FromSlash(moduleName))
		if r.isEntryPoint(ctx, modulePath) {
			return &ExternalModule{EntryPointPath: modulePath}
		}
		if r.resolveAsRelativePath(ctx, modulePath, fromPath) != nil {
			return &DeepImport{ImportPath: modulePath}
		}
	}
	return nil
}

func (r *Resolver) isEntryPoint(ctx context.Context, modulePath string) bool {
	return r.fs.IsFile(ctx, filepath.Join(modulePath, "package.json"))
}

// findMappedPaths returns candidate paths of the best matching mapping.
// An exact (non-wildcard) match wins immediately, otherwise the match
// with the longest literal prefix wins.
func (r *Resolver) findMappedPaths(moduleName string) []string {
	var best *pathMapping
	var bestMatch string
	for i := range r.mappings {
		m := &r.mappings[i]
		match, ok := matchMapping(moduleName, m.matcher)
		if !ok {
			continue
		}
		if !m.matcher.hasWildcard {
			best, bestMatch = m, match
			break
		}
		if best == nil || len(m.matcher.prefix) > len(best.matcher.prefix) {
			best, bestMatch = m, match
		}
	}
	if best == nil {
		return nil
	}
	paths := make([]string, 0, len(best.templates))
	for _, t := range best.templates {
		paths = append(paths, filepath.Join(best.baseURL, filepath.FromSlash(t.prefix+bestMatch+t.postfix)))
	}
	return paths
}

func matchMapping(p string, m splitPattern) (string, bool) {
	if !m.hasWildcard {
		if p == m.prefix {
			return "", true
		}
		return "", false
	}
	if len(p) >= len(m.prefix)+len(m.postfix) && strings.HasPrefix(p, m.prefix) && strings.HasSuffix(p, m.postfix) {
		return p[len(m.prefix) : len(p)-len(m.postfix)], true
	}
	return "", false
}

// findPackagePath returns the closest ancestor directory of p that has
// package.json.
func (r *Resolver) findPackagePath(ctx context.Context, p string) string {
	folder := p
	for !isRoot(folder) {
		folder = filepath.Dir(folder)
		if r.fs.IsFile(ctx, filepath.Join(folder, "package.json")) {
			return folder
		}
	}
	return ""
}

func isRoot(p string) bool {
	return filepath.Dir(p) == p
}

func isWithin(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
