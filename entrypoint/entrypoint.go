// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package entrypoint provides entry-point model and finders.
//
// An entry-point is a directory with package.json that describes the
// bundle formats of a package (or a secondary entry-point of it) and
// its typings.
package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/angular-go/ngcc/jsscan"
	"github.com/angular-go/ngcc/ngccconfig"
	"github.com/angular-go/ngcc/o11y/clog"
	"github.com/angular-go/ngcc/osfs"
)

// Format is a format of a bundle.
type Format string

// Bundle formats.
const (
	FormatESM2015  Format = "esm2015"
	FormatESM5     Format = "esm5"
	FormatUMD      Format = "umd"
	FormatCommonJS Format = "commonjs"
)

// SupportedFormatProperties are package.json properties that point to
// bundles ngcc can process, in default processing order.
var SupportedFormatProperties = []string{
	"fesm2015",
	"fesm5",
	"es2015",
	"esm2015",
	"esm5",
	"main",
	"module",
}

// IsSupportedFormatProperty reports whether prop is a supported
// format property.
func IsSupportedFormatProperty(prop string) bool {
	for _, p := range SupportedFormatProperties {
		if p == prop {
			return true
		}
	}
	return false
}

// PackageJSON is a parsed package.json.
type PackageJSON map[string]any

// String returns string value of key.
func (p PackageJSON) String(key string) (string, bool) {
	v, ok := p[key].(string)
	return v, ok
}

// Object returns object value of key.
func (p PackageJSON) Object(key string) (map[string]any, bool) {
	v, ok := p[key].(map[string]any)
	return v, ok
}

// Clone returns a deep copy of p.
func (p PackageJSON) Clone() PackageJSON {
	if p == nil {
		return nil
	}
	return cloneValue(map[string]any(p)).(map[string]any)
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(v))
		for k, e := range v {
			m[k] = cloneValue(e)
		}
		return m
	case PackageJSON:
		return cloneValue(map[string]any(v))
	case []any:
		s := make([]any, len(v))
		for i, e := range v {
			s[i] = cloneValue(e)
		}
		return s
	}
	return v
}

// EntryPoint is an entry-point of a package.
type EntryPoint struct {
	// Name is the module name of the entry-point, e.g. "@angular/common/http".
	Name string `json:"name"`
	// Path is the absolute path of the entry-point directory.
	Path string `json:"path"`
	// Package is the absolute path of the package containing the entry-point.
	Package string `json:"package"`
	// PackageJSON is the entry-point's package.json with config overrides applied.
	PackageJSON PackageJSON `json:"packageJson"`
	// Typings is the absolute path of the typings entry file.
	Typings string `json:"typings"`
	// CompiledByAngular is true if the entry-point was compiled by the
	// Angular compiler, i.e. it has metadata.json or ngcc configuration.
	CompiledByAngular bool `json:"compiledByAngular"`
	// IgnoreMissingDependencies doesn't invalidate for missing dependencies.
	IgnoreMissingDependencies bool `json:"ignoreMissingDependencies"`
	// GenerateDeepReexports exports private declarations.
	GenerateDeepReexports bool `json:"generateDeepReexports"`
}

func (ep *EntryPoint) String() string {
	return ep.Path
}

// PackageJSONPath returns path of package.json of the entry-point.
func (ep *EntryPoint) PackageJSONPath() string {
	return filepath.Join(ep.Path, "package.json")
}

// FormatPath returns absolute path of the bundle of prop.
func (ep *EntryPoint) FormatPath(prop string) (string, bool) {
	rel, ok := ep.PackageJSON.String(prop)
	if !ok || rel == "" {
		return "", false
	}
	return filepath.Join(ep.Path, filepath.FromSlash(rel)), true
}

// ResolveBundlePath returns the bundle file of prop, adding ".js" when
// the declared path has no extension.
func ResolveBundlePath(ctx context.Context, fsys osfs.FS, ep *EntryPoint, prop string) (string, bool) {
	p, ok := ep.FormatPath(prop)
	if !ok {
		return "", false
	}
	if fsys.IsFile(ctx, p) {
		return p, true
	}
	for _, postfix := range []string{".js", "/index.js"} {
		if fsys.IsFile(ctx, p+filepath.FromSlash(postfix)) {
			return p + filepath.FromSlash(postfix), true
		}
	}
	return p, false
}

// HasBundle reports whether some supported format property of ep
// points to an existing file.
func HasBundle(ctx context.Context, fsys osfs.FS, ep *EntryPoint) bool {
	for _, prop := range SupportedFormatProperties {
		if _, ok := ResolveBundlePath(ctx, fsys, ep, prop); ok {
			return true
		}
	}
	return false
}

// GetEntryPointFormat returns the format of the bundle pointed by prop.
// It returns false if prop is not set or not a known format property.
func GetEntryPointFormat(ctx context.Context, fsys osfs.FS, ep *EntryPoint, prop string) (Format, bool) {
	switch prop {
	case "fesm2015", "es2015", "esm2015":
		return FormatESM2015, true
	case "fesm5", "esm5", "module":
		return FormatESM5, true
	case "main":
		p, ok := ResolveBundlePath(ctx, fsys, ep, prop)
		if !ok {
			return "", false
		}
		buf, err := fsys.ReadFile(p)
		if err != nil {
			return "", false
		}
		if IsUMD(p, buf) {
			return FormatUMD, true
		}
		return FormatCommonJS, true
	}
	return "", false
}

// IsUMD reports whether src has a UMD wrapper.
func IsUMD(fname string, src []byte) bool {
	f, err := jsscan.Parse(fname, string(src))
	if err != nil {
		return false
	}
	_, ok := f.UMD()
	return ok
}

// ErrMalformedPackageJSON is returned when package.json can't be parsed.
var ErrMalformedPackageJSON = errors.New("malformed package.json")

// ReadPackageJSON reads and parses package.json at fname.
func ReadPackageJSON(fsys osfs.FS, fname string) (PackageJSON, error) {
	buf, err := fsys.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	var pkg PackageJSON
	err = json.Unmarshal(buf, &pkg)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrMalformedPackageJSON, fname, err)
	}
	if pkg == nil {
		return nil, fmt.Errorf("%w %s: not an object", ErrMalformedPackageJSON, fname)
	}
	return pkg, nil
}

// GetEntryPointInfo returns the entry-point at entryPointPath in the
// package at packagePath.
// It returns nil, nil when the directory is not an entry-point: no
// package.json (and no configuration), no typings, or ignored by
// configuration.
func GetEntryPointInfo(ctx context.Context, fsys osfs.FS, config *ngccconfig.Configuration, packagePath, entryPointPath string) (*EntryPoint, error) {
	pc, err := config.GetPackageConfig(ctx, packagePath)
	if err != nil {
		return nil, err
	}
	epc := pc.EntryPoint(entryPointPath)
	if epc != nil && epc.Ignore {
		clog.Debugf(ctx, "entry-point %s is ignored by %s", entryPointPath, pc.Source)
		return nil, nil
	}
	pkgJSONPath := filepath.Join(entryPointPath, "package.json")
	pkg, err := ReadPackageJSON(fsys, pkgJSONPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if epc == nil {
			return nil, nil
		}
		// entry-point declared only in configuration.
		pkg = PackageJSON{}
	case err != nil:
		return nil, err
	}
	if epc != nil {
		for k, v := range epc.Override {
			if v == nil {
				delete(pkg, k)
				continue
			}
			pkg[k] = cloneValue(v)
		}
	}
	typings, ok := pkg.String("typings")
	if !ok {
		typings, ok = pkg.String("types")
	}
	if !ok || typings == "" {
		return nil, nil
	}
	typingsPath := filepath.Join(entryPointPath, filepath.FromSlash(typings))
	metadataPath := strings.TrimSuffix(typingsPath, ".d.ts") + ".metadata.json"
	name, ok := pkg.String("name")
	if !ok || name == "" {
		name = guessName(packagePath, entryPointPath)
	}
	ep := &EntryPoint{
		Name:              name,
		Path:              entryPointPath,
		Package:           packagePath,
		PackageJSON:       pkg,
		Typings:           typingsPath,
		CompiledByAngular: epc != nil || fsys.IsFile(ctx, metadataPath),
	}
	if epc != nil {
		ep.IgnoreMissingDependencies = epc.IgnoreMissingDependencies
		ep.GenerateDeepReexports = epc.GenerateDeepReexports
	}
	return ep, nil
}

// guessName computes module name from the package name and the
// entry-point's relative path.
func guessName(packagePath, entryPointPath string) string {
	pkgName := filepath.Base(packagePath)
	if scope := filepath.Base(filepath.Dir(packagePath)); strings.HasPrefix(scope, "@") {
		pkgName = scope + "/" + pkgName
	}
	rel, err := filepath.Rel(packagePath, entryPointPath)
	if err != nil || rel == "." {
		return pkgName
	}
	return pkgName + "/" + filepath.ToSlash(rel)
}
