// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package entrypoint

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/angular-go/ngcc/modresolve"
	"github.com/angular-go/ngcc/ngccconfig"
	"github.com/angular-go/ngcc/o11y/clog"
	"github.com/angular-go/ngcc/osfs"
	"github.com/angular-go/ngcc/runtimex"
)

// InvalidEntryPoint is an entry-point that can't be processed.
type InvalidEntryPoint struct {
	EntryPoint *EntryPoint
	// MissingDependencies are unresolvable imports, of the entry-point
	// itself or of one of its (transitive) dependencies.
	MissingDependencies []string
	// Cycle is the dependency cycle the entry-point is part of or
	// depends on.
	Cycle []string
}

// IgnoredDependency is a dependency that is not a candidate
// entry-point, e.g. not compiled by Angular.
type IgnoredDependency struct {
	EntryPoint     *EntryPoint
	DependencyPath string
}

// SortedEntryPointsInfo is a result of dependency sort.
type SortedEntryPointsInfo struct {
	// EntryPoints are valid entry-points, dependencies first.
	EntryPoints         []*EntryPoint
	InvalidEntryPoints  []InvalidEntryPoint
	IgnoredDependencies []IgnoredDependency
	// Graph maps entry-point path to its dependency entry-point paths
	// in EntryPoints.
	Graph map[string][]string
}

// DependencyResolver computes dependencies between entry-points.
type DependencyResolver interface {
	// SortEntryPointsByDependency sorts entryPoints dependency first.
	// If target is not nil, only target and its transitive dependencies
	// are returned.
	SortEntryPointsByDependency(ctx context.Context, entryPoints []*EntryPoint, target *EntryPoint) (*SortedEntryPointsInfo, error)
	// EntryPointDependencies returns paths of the entry-points ep
	// depends on.
	EntryPointDependencies(ctx context.Context, ep *EntryPoint) ([]string, error)
}

// Finder finds entry-points to process.
type Finder interface {
	FindEntryPoints(ctx context.Context) (*SortedEntryPointsInfo, error)
}

// DirectoryWalkerFinder finds all entry-points under base paths.
type DirectoryWalkerFinder struct {
	FS       osfs.FS
	Config   *ngccconfig.Configuration
	Resolver DependencyResolver
	BasePath string
	// PathMappings adds base paths to walk.
	PathMappings *modresolve.PathMappings
}

// FindEntryPoints walks base paths and sorts all entry-points found.
func (f *DirectoryWalkerFinder) FindEntryPoints(ctx context.Context) (*SortedEntryPointsInfo, error) {
	var eps []*EntryPoint
	for _, basePath := range BasePaths(f.BasePath, f.PathMappings) {
		found, err := f.walkDirectory(ctx, basePath)
		if err != nil {
			return nil, err
		}
		clog.Debugf(ctx, "found %d entry-points in %s", len(found), basePath)
		eps = append(eps, found...)
	}
	return f.Resolver.SortEntryPointsByDependency(ctx, eps, nil)
}

// BasePaths returns directories to walk for entry-points: basePath and
// the parent directories of path mapping templates. Paths contained in
// other base paths are removed.
func BasePaths(basePath string, pm *modresolve.PathMappings) []string {
	paths := []string{basePath}
	if pm != nil {
		var keys []string
		for k := range pm.Paths {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			for _, tmpl := range pm.Paths[k] {
				prefix, _, _ := strings.Cut(tmpl, "*")
				paths = append(paths, filepath.Dir(filepath.Join(pm.BaseURL, filepath.FromSlash(prefix+"x"))))
			}
		}
	}
	sort.SliceStable(paths, func(i, j int) bool {
		return len(paths[i]) < len(paths[j])
	})
	var result []string
	for _, p := range paths {
		contained := false
		for _, r := range result {
			if isWithin(r, p) {
				contained = true
				break
			}
		}
		if !contained {
			result = append(result, p)
		}
	}
	return result
}

func isWithin(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// skipDir reports whether directory name should not be walked.
func skipDir(name string) bool {
	return name == ".bin" || name == "__ivy_ngcc__" || strings.HasPrefix(name, ".")
}

func (f *DirectoryWalkerFinder) subdirs(ctx context.Context, dir string) []string {
	ents, err := f.FS.ReadDir(dir)
	if err != nil {
		return nil
	}
	var dirs []string
	for _, ent := range ents {
		name := ent.Name()
		if skipDir(name) {
			continue
		}
		p := filepath.Join(dir, name)
		if !ent.IsDir() && !f.FS.IsDir(ctx, p) {
			continue
		}
		dirs = append(dirs, name)
	}
	return dirs
}

// walkDirectory returns entry-points of packages in dir.
func (f *DirectoryWalkerFinder) walkDirectory(ctx context.Context, dir string) ([]*EntryPoint, error) {
	var packages []string
	for _, name := range f.subdirs(ctx, dir) {
		p := filepath.Join(dir, name)
		if name == "node_modules" {
			packages = append(packages, p)
			continue
		}
		if strings.HasPrefix(name, "@") {
			for _, sub := range f.subdirs(ctx, p) {
				packages = append(packages, filepath.Join(p, sub))
			}
			continue
		}
		packages = append(packages, p)
	}
	results := make([][]*EntryPoint, len(packages))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtimex.NumCPU())
	for i, p := range packages {
		eg.Go(func() error {
			var err error
			if filepath.Base(p) == "node_modules" {
				results[i], err = f.walkDirectory(gctx, p)
				return err
			}
			results[i], err = f.packageEntryPoints(gctx, p)
			return err
		})
	}
	err := eg.Wait()
	if err != nil {
		return nil, err
	}
	var eps []*EntryPoint
	for _, r := range results {
		eps = append(eps, r...)
	}
	return eps, nil
}

// packageEntryPoints returns the primary and secondary entry-points of
// the package, followed by entry-points of its nested node_modules.
func (f *DirectoryWalkerFinder) packageEntryPoints(ctx context.Context, packagePath string) ([]*EntryPoint, error) {
	var eps []*EntryPoint
	primary, err := findEntryPoint(ctx, f.FS, f.Config, packagePath, packagePath)
	if err != nil {
		return nil, err
	}
	if primary != nil {
		eps = append(eps, primary)
	}
	var nested []string
	var walk func(dir string) error
	walk = func(dir string) error {
		for _, name := range f.subdirs(ctx, dir) {
			p := filepath.Join(dir, name)
			if name == "node_modules" {
				nested = append(nested, p)
				continue
			}
			ep, err := findEntryPoint(ctx, f.FS, f.Config, packagePath, p)
			if err != nil {
				return err
			}
			if ep != nil {
				eps = append(eps, ep)
			}
			err = walk(p)
			if err != nil {
				return err
			}
		}
		return nil
	}
	err = walk(packagePath)
	if err != nil {
		return nil, err
	}
	for _, dir := range nested {
		found, err := f.walkDirectory(ctx, dir)
		if err != nil {
			return nil, err
		}
		eps = append(eps, found...)
	}
	return eps, nil
}

// findEntryPoint returns the entry-point at entryPointPath, or nil if
// none of its format properties points to a bundle.
func findEntryPoint(ctx context.Context, fsys osfs.FS, config *ngccconfig.Configuration, packagePath, entryPointPath string) (*EntryPoint, error) {
	ep, err := GetEntryPointInfo(ctx, fsys, config, packagePath, entryPointPath)
	if err != nil || ep == nil {
		return nil, err
	}
	if !HasBundle(ctx, fsys, ep) {
		clog.Debugf(ctx, "skip %s: no bundle for supported format properties", entryPointPath)
		return nil, nil
	}
	return ep, nil
}

// TargetedFinder finds the target entry-point and the entry-points it
// depends on.
type TargetedFinder struct {
	FS       osfs.FS
	Config   *ngccconfig.Configuration
	Resolver DependencyResolver
	BasePath string
	// Target is the absolute path of the target entry-point.
	Target string
}

// FindEntryPoints follows dependencies from the target and sorts them.
func (f *TargetedFinder) FindEntryPoints(ctx context.Context) (*SortedEntryPointsInfo, error) {
	target, err := f.TargetEntryPoint(ctx)
	if err != nil {
		return nil, err
	}
	if target == nil {
		clog.Warningf(ctx, "target entry-point %s is not an entry-point", f.Target)
		return &SortedEntryPointsInfo{Graph: map[string][]string{}}, nil
	}
	eps := []*EntryPoint{target}
	seen := map[string]bool{target.Path: true}
	for i := 0; i < len(eps); i++ {
		ep := eps[i]
		if !ep.CompiledByAngular {
			continue
		}
		deps, err := f.Resolver.EntryPointDependencies(ctx, ep)
		if err != nil {
			return nil, err
		}
		for _, dep := range deps {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			depEP, err := findEntryPoint(ctx, f.FS, f.Config, PackagePath(ctx, f.FS, f.BasePath, dep), dep)
			if err != nil {
				return nil, err
			}
			if depEP == nil {
				continue
			}
			eps = append(eps, depEP)
		}
	}
	return f.Resolver.SortEntryPointsByDependency(ctx, eps, target)
}

// TargetEntryPoint returns the target entry-point, or nil if the target
// is not an entry-point.
func (f *TargetedFinder) TargetEntryPoint(ctx context.Context) (*EntryPoint, error) {
	return findEntryPoint(ctx, f.FS, f.Config, PackagePath(ctx, f.FS, f.BasePath, f.Target), f.Target)
}

// PackagePath computes the package directory containing the
// entry-point at entryPointPath.
//
// Under node_modules, the package is the directory (or scoped
// directory) right below the closest node_modules. Otherwise it is the
// outermost ancestor with package.json in an unbroken chain.
func PackagePath(ctx context.Context, fsys osfs.FS, basePath, entryPointPath string) string {
	parts := strings.Split(filepath.ToSlash(entryPointPath), "/")
	for i := len(parts) - 2; i >= 0; i-- {
		if parts[i] != "node_modules" {
			continue
		}
		n := i + 2
		if strings.HasPrefix(parts[i+1], "@") && n < len(parts) {
			n++
		}
		return filepath.FromSlash(strings.Join(parts[:n], "/"))
	}
	packagePath := entryPointPath
	for dir := filepath.Dir(entryPointPath); dir != filepath.Dir(dir) && dir != basePath; dir = filepath.Dir(dir) {
		if !fsys.IsFile(ctx, filepath.Join(dir, "package.json")) {
			break
		}
		packagePath = dir
	}
	return packagePath
}
