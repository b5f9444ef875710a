// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package ngccconfig loads ngcc configuration.
//
// Configuration comes from three levels, highest precedence first:
//
//   - project: `ngcc.config.js` in the project directory (parent of
//     the base path), keyed by package name under `packages`.
//   - package: `ngcc.config.js` in the package directory.
//   - default: configuration baked into ngcc.
//
// A higher level replaces lower levels for a package; they are not merged.
package ngccconfig

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dlclark/regexp2"
	"github.com/dop251/goja"
	"golang.org/x/sync/singleflight"

	"github.com/angular-go/ngcc/o11y/clog"
	"github.com/angular-go/ngcc/osfs"
)

// ConfigFileName is the name of ngcc configuration file.
const ConfigFileName = "ngcc.config.js"

// ConfigError is an error in a configuration file.
type ConfigError struct {
	Path string
	Err  error
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("invalid ngcc configuration file %q: %v", e.Path, e.Err)
}

func (e ConfigError) Unwrap() error {
	return e.Err
}

// EntryPointConfig is configuration of an entry-point.
type EntryPointConfig struct {
	// Ignore excludes the entry-point from processing.
	Ignore bool
	// Override is merged into package.json of the entry-point.
	// A nil value removes the property.
	Override map[string]any
	// IgnoreMissingDependencies doesn't invalidate the entry-point
	// for unresolvable imports.
	IgnoreMissingDependencies bool
	// GenerateDeepReexports exports private declarations from the
	// entry-point.
	GenerateDeepReexports bool
}

// PackageConfig is configuration of a package.
type PackageConfig struct {
	// Source is the configuration file, or "default".
	Source string
	// EntryPoints is keyed by absolute entry-point path.
	EntryPoints map[string]*EntryPointConfig
	// IgnorableDeepImportMatchers are deep imports not to warn.
	// They are JavaScript regular expressions.
	IgnorableDeepImportMatchers []*regexp2.Regexp
}

// EntryPoint returns configuration for entryPointPath, or nil.
func (pc *PackageConfig) EntryPoint(entryPointPath string) *EntryPointConfig {
	if pc == nil {
		return nil
	}
	return pc.EntryPoints[entryPointPath]
}

// IsIgnorableDeepImport reports whether deep import of importPath
// should not be warned.
func (pc *PackageConfig) IsIgnorableDeepImport(importPath string) bool {
	if pc == nil {
		return false
	}
	for _, re := range pc.IgnorableDeepImportMatchers {
		ok, err := re.MatchString(importPath)
		if err == nil && ok {
			return true
		}
	}
	return false
}

// EntryPointPaths returns configured entry-point paths in sorted order.
func (pc *PackageConfig) EntryPointPaths() []string {
	if pc == nil {
		return nil
	}
	paths := make([]string, 0, len(pc.EntryPoints))
	for p := range pc.EntryPoints {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// rawPackageConfig is package config with entry-point keys relative
// to the package.
type rawPackageConfig struct {
	entryPoints map[string]*EntryPointConfig
	matchers    []*regexp2.Regexp
}

func (r *rawPackageConfig) resolve(source, packagePath string) *PackageConfig {
	pc := &PackageConfig{
		Source:                      source,
		EntryPoints:                 make(map[string]*EntryPointConfig),
		IgnorableDeepImportMatchers: r.matchers,
	}
	for rel, epc := range r.entryPoints {
		pc.EntryPoints[filepath.Join(packagePath, filepath.FromSlash(rel))] = epc
	}
	return pc
}

// Configuration is ngcc configuration for a run.
type Configuration struct {
	fs       osfs.FS
	basePath string

	projectPath   string
	projectConfig map[string]*rawPackageConfig

	group singleflight.Group
	mu    sync.Mutex
	cache map[string]*PackageConfig
}

// New loads the project configuration for basePath (node_modules dir).
func New(ctx context.Context, fsys osfs.FS, basePath string) (*Configuration, error) {
	c := &Configuration{
		fs:          fsys,
		basePath:    basePath,
		projectPath: filepath.Dir(basePath),
		cache:       make(map[string]*PackageConfig),
	}
	fname := filepath.Join(c.projectPath, ConfigFileName)
	exports, err := loadConfigFile(ctx, fsys, fname)
	if err != nil {
		return nil, err
	}
	c.projectConfig = make(map[string]*rawPackageConfig)
	if exports == nil {
		return c, nil
	}
	packages := exports.Get("packages")
	if isUnset(packages) {
		return c, nil
	}
	pkgs, ok := packages.(*goja.Object)
	if !ok {
		return nil, ConfigError{Path: fname, Err: errors.New("`packages` must be an object")}
	}
	for _, name := range pkgs.Keys() {
		obj, ok := pkgs.Get(name).(*goja.Object)
		if !ok {
			return nil, ConfigError{Path: fname, Err: fmt.Errorf("package %q must be an object", name)}
		}
		raw, err := parsePackageConfig(obj)
		if err != nil {
			return nil, ConfigError{Path: fname, Err: fmt.Errorf("package %q: %w", name, err)}
		}
		c.projectConfig[name] = raw
	}
	clog.Debugf(ctx, "loaded project configuration %s: %d packages", fname, len(c.projectConfig))
	return c, nil
}

// BasePath returns the base path of the configuration.
func (c *Configuration) BasePath() string {
	return c.basePath
}

// GetPackageConfig returns configuration of the package at packagePath.
// It returns an empty config if the package has no configuration.
func (c *Configuration) GetPackageConfig(ctx context.Context, packagePath string) (*PackageConfig, error) {
	c.mu.Lock()
	pc, ok := c.cache[packagePath]
	c.mu.Unlock()
	if ok {
		return pc, nil
	}
	v, err, _ := c.group.Do(packagePath, func() (any, error) {
		pc, err := c.computePackageConfig(ctx, packagePath)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cache[packagePath] = pc
		c.mu.Unlock()
		return pc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*PackageConfig), nil
}

func (c *Configuration) computePackageConfig(ctx context.Context, packagePath string) (*PackageConfig, error) {
	if raw, ok := c.projectConfig[c.packageName(packagePath)]; ok {
		return raw.resolve(filepath.Join(c.projectPath, ConfigFileName), packagePath), nil
	}
	fname := filepath.Join(packagePath, ConfigFileName)
	exports, err := loadConfigFile(ctx, c.fs, fname)
	if err != nil {
		return nil, err
	}
	if exports != nil {
		raw, err := parsePackageConfig(exports)
		if err != nil {
			return nil, ConfigError{Path: fname, Err: err}
		}
		return raw.resolve(fname, packagePath), nil
	}
	if raw, ok := defaultConfig[c.packageName(packagePath)]; ok {
		return raw.resolve("default", packagePath), nil
	}
	return &PackageConfig{EntryPoints: map[string]*EntryPointConfig{}}, nil
}

// packageName returns package name of packagePath relative to the
// closest node_modules directory, or relative to the base path.
func (c *Configuration) packageName(packagePath string) string {
	dir := packagePath
	for !isRoot(dir) {
		parent := filepath.Dir(dir)
		if filepath.Base(parent) == "node_modules" {
			rel, err := filepath.Rel(parent, packagePath)
			if err == nil {
				return filepath.ToSlash(rel)
			}
		}
		dir = parent
	}
	rel, err := filepath.Rel(c.basePath, packagePath)
	if err != nil {
		return packagePath
	}
	return filepath.ToSlash(rel)
}

func isRoot(p string) bool {
	return filepath.Dir(p) == p
}

// loadConfigFile evaluates fname and returns its `module.exports`.
// It returns nil, nil if fname doesn't exist.
func loadConfigFile(ctx context.Context, fsys osfs.FS, fname string) (*goja.Object, error) {
	buf, err := fsys.ReadFile(fname)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, ConfigError{Path: fname, Err: err}
	}
	clog.Debugf(ctx, "evaluate %s", fname)
	exports, err := evalModule(fname, string(buf))
	if err != nil {
		return nil, ConfigError{Path: fname, Err: err}
	}
	return exports, nil
}

// evalModule runs src as a CommonJS module and returns `module.exports`.
func evalModule(fname, src string) (*goja.Object, error) {
	vm := goja.New()
	module := vm.NewObject()
	exports := vm.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return nil, err
	}
	for name, v := range map[string]any{
		"module":     module,
		"exports":    exports,
		"__filename": fname,
		"__dirname":  filepath.Dir(fname),
		"require": func(call goja.FunctionCall) goja.Value {
			panic(vm.NewGoError(fmt.Errorf("require(%s) is not supported", call.Argument(0))))
		},
	} {
		if err := vm.Set(name, v); err != nil {
			return nil, err
		}
	}
	_, err := vm.RunScript(fname, src)
	if err != nil {
		return nil, err
	}
	v := module.Get("exports")
	obj, ok := v.(*goja.Object)
	if !ok || isUnset(v) {
		return nil, errors.New("module.exports must be an object")
	}
	return obj, nil
}

func isUnset(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

func parsePackageConfig(obj *goja.Object) (*rawPackageConfig, error) {
	raw := &rawPackageConfig{
		entryPoints: make(map[string]*EntryPointConfig),
	}
	if v := obj.Get("entryPoints"); !isUnset(v) {
		eps, ok := v.(*goja.Object)
		if !ok {
			return nil, errors.New("`entryPoints` must be an object")
		}
		for _, rel := range eps.Keys() {
			epObj, ok := eps.Get(rel).(*goja.Object)
			if !ok {
				return nil, fmt.Errorf("entry-point %q must be an object", rel)
			}
			epc, err := parseEntryPointConfig(epObj)
			if err != nil {
				return nil, fmt.Errorf("entry-point %q: %w", rel, err)
			}
			raw.entryPoints[rel] = epc
		}
	}
	if v := obj.Get("ignorableDeepImportMatchers"); !isUnset(v) {
		arr, ok := v.(*goja.Object)
		if !ok {
			return nil, errors.New("`ignorableDeepImportMatchers` must be an array")
		}
		for _, k := range arr.Keys() {
			m := arr.Get(k)
			pattern := m.String()
			var opts regexp2.RegexOptions = regexp2.ECMAScript
			if mo, ok := m.(*goja.Object); ok {
				if src := mo.Get("source"); !isUnset(src) {
					pattern = src.String()
				}
				if flags := mo.Get("flags"); !isUnset(flags) {
					for _, f := range flags.String() {
						switch f {
						case 'i':
							opts |= regexp2.IgnoreCase
						case 'm':
							opts |= regexp2.Multiline
						}
					}
				}
			}
			re, err := regexp2.Compile(pattern, opts)
			if err != nil {
				return nil, fmt.Errorf("ignorableDeepImportMatchers[%s]: %w", k, err)
			}
			raw.matchers = append(raw.matchers, re)
		}
	}
	return raw, nil
}

func parseEntryPointConfig(obj *goja.Object) (*EntryPointConfig, error) {
	epc := &EntryPointConfig{
		Ignore:                    boolProp(obj, "ignore"),
		IgnoreMissingDependencies: boolProp(obj, "ignoreMissingDependencies"),
		GenerateDeepReexports:     boolProp(obj, "generateDeepReexports"),
	}
	if v := obj.Get("override"); !isUnset(v) {
		m, ok := v.Export().(map[string]any)
		if !ok {
			return nil, errors.New("`override` must be an object")
		}
		epc.Override = m
	} else if v != nil && goja.IsNull(v) {
		return nil, errors.New("`override` must be an object")
	}
	return epc, nil
}

func boolProp(obj *goja.Object, name string) bool {
	v := obj.Get(name)
	if v == nil {
		return false
	}
	return v.ToBoolean()
}
