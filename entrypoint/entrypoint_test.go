// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package entrypoint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/angular-go/ngcc/modresolve"
	"github.com/angular-go/ngcc/ngccconfig"
	"github.com/angular-go/ngcc/osfs"
)

func setupFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for fname, content := range files {
		fname := filepath.Join(dir, filepath.FromSlash(fname))
		err := os.MkdirAll(filepath.Dir(fname), 0755)
		if err != nil {
			t.Fatal(err)
		}
		err = os.WriteFile(fname, []byte(content), 0644)
		if err != nil {
			t.Fatal(err)
		}
	}
}

func newConfig(t *testing.T, basePath string) *ngccconfig.Configuration {
	t.Helper()
	c, err := ngccconfig.New(context.Background(), osfs.New(), basePath)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestGetEntryPointInfo(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	setupFiles(t, dir, map[string]string{
		"ngcc.config.js": `
module.exports = {
  packages: {
    'overridden': {
      entryPoints: {
        '.': { override: { typings: './over.d.ts', main: undefined } },
        './config-only': { override: { typings: './index.d.ts' } },
        './ignored': { ignore: true },
      },
    },
  },
};`,
		"node_modules/some_package/package.json":                     `{"name":"some_package","typings":"./index.d.ts","fesm2015":"./fesm2015/index.js"}`,
		"node_modules/some_package/index.metadata.json":              `{}`,
		"node_modules/some_package/plain/package.json":               `{"types":"./plain.d.ts"}`,
		"node_modules/some_package/no-typings/package.json":          `{"name":"no-typings"}`,
		"node_modules/some_package/bad/package.json":                 `{"name":`,
		"node_modules/overridden/package.json":                       `{"name":"overridden","typings":"./index.d.ts","main":"./index.js"}`,
		"node_modules/overridden/ignored/package.json":               `{"typings":"./index.d.ts"}`,
		"node_modules/@scope/pkg/sub/package.json":                   `{"typings":"./sub.d.ts"}`,
	})
	basePath := filepath.Join(dir, "node_modules")
	fsys := osfs.New()
	config := newConfig(t, basePath)
	pkg := filepath.Join(basePath, "some_package")
	overridden := filepath.Join(basePath, "overridden")
	scoped := filepath.Join(basePath, "@scope/pkg")

	for _, tc := range []struct {
		name      string
		pkg, ep   string
		want      *EntryPoint
		wantNil   bool
		wantErrIs error
	}{
		{
			name: "angular",
			pkg:  pkg,
			ep:   pkg,
			want: &EntryPoint{
				Name:              "some_package",
				Path:              pkg,
				Package:           pkg,
				PackageJSON:       PackageJSON{"name": "some_package", "typings": "./index.d.ts", "fesm2015": "./fesm2015/index.js"},
				Typings:           filepath.Join(pkg, "index.d.ts"),
				CompiledByAngular: true,
			},
		},
		{
			name: "not angular",
			pkg:  pkg,
			ep:   filepath.Join(pkg, "plain"),
			want: &EntryPoint{
				Name:        "some_package/plain",
				Path:        filepath.Join(pkg, "plain"),
				Package:     pkg,
				PackageJSON: PackageJSON{"types": "./plain.d.ts"},
				Typings:     filepath.Join(pkg, "plain/plain.d.ts"),
			},
		},
		{
			name:    "no package.json",
			pkg:     pkg,
			ep:      filepath.Join(pkg, "missing"),
			wantNil: true,
		},
		{
			name:    "no typings",
			pkg:     pkg,
			ep:      filepath.Join(pkg, "no-typings"),
			wantNil: true,
		},
		{
			name:      "malformed",
			pkg:       pkg,
			ep:        filepath.Join(pkg, "bad"),
			wantErrIs: ErrMalformedPackageJSON,
		},
		{
			name: "override",
			pkg:  overridden,
			ep:   overridden,
			want: &EntryPoint{
				Name:              "overridden",
				Path:              overridden,
				Package:           overridden,
				PackageJSON:       PackageJSON{"name": "overridden", "typings": "./over.d.ts"},
				Typings:           filepath.Join(overridden, "over.d.ts"),
				CompiledByAngular: true,
			},
		},
		{
			name: "config only",
			pkg:  overridden,
			ep:   filepath.Join(overridden, "config-only"),
			want: &EntryPoint{
				Name:              "overridden/config-only",
				Path:              filepath.Join(overridden, "config-only"),
				Package:           overridden,
				PackageJSON:       PackageJSON{"typings": "./index.d.ts"},
				Typings:           filepath.Join(overridden, "config-only/index.d.ts"),
				CompiledByAngular: true,
			},
		},
		{
			name:    "ignored",
			pkg:     overridden,
			ep:      filepath.Join(overridden, "ignored"),
			wantNil: true,
		},
		{
			name: "scoped name",
			pkg:  scoped,
			ep:   filepath.Join(scoped, "sub"),
			want: &EntryPoint{
				Name:        "@scope/pkg/sub",
				Path:        filepath.Join(scoped, "sub"),
				Package:     scoped,
				PackageJSON: PackageJSON{"typings": "./sub.d.ts"},
				Typings:     filepath.Join(scoped, "sub/sub.d.ts"),
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := GetEntryPointInfo(ctx, fsys, config, tc.pkg, tc.ep)
			if tc.wantErrIs != nil {
				if !errors.Is(err, tc.wantErrIs) {
					t.Fatalf("GetEntryPointInfo(ctx, fs, config, %q, %q)=_, %v; want %v", tc.pkg, tc.ep, err, tc.wantErrIs)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetEntryPointInfo(ctx, fs, config, %q, %q)=_, %v; want nil err", tc.pkg, tc.ep, err)
			}
			if tc.wantNil {
				if got != nil {
					t.Errorf("GetEntryPointInfo(ctx, fs, config, %q, %q)=%v; want nil", tc.pkg, tc.ep, got)
				}
				return
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("GetEntryPointInfo(ctx, fs, config, %q, %q) diff -want +got:\n%s", tc.pkg, tc.ep, diff)
			}
		})
	}
}

func TestGetEntryPointFormat(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	setupFiles(t, dir, map[string]string{
		"umd.js": `(function (global, factory) {
  typeof exports === 'object' && typeof module !== 'undefined' ? factory(exports) :
  typeof define === 'function' && define.amd ? define(['exports'], factory) :
  (factory((global.x = {})));
}(this, (function (exports) { 'use strict'; })));`,
		"cjs.js": `var core = require('@angular/core');
exports.A = 1;`,
	})
	fsys := osfs.New()
	for _, tc := range []struct {
		prop string
		pkg  PackageJSON
		want Format
		ok   bool
	}{
		{prop: "fesm2015", pkg: PackageJSON{"fesm2015": "x.js"}, want: FormatESM2015, ok: true},
		{prop: "es2015", pkg: PackageJSON{"es2015": "x.js"}, want: FormatESM2015, ok: true},
		{prop: "esm2015", pkg: PackageJSON{"esm2015": "x.js"}, want: FormatESM2015, ok: true},
		{prop: "fesm5", pkg: PackageJSON{"fesm5": "x.js"}, want: FormatESM5, ok: true},
		{prop: "esm5", pkg: PackageJSON{"esm5": "x.js"}, want: FormatESM5, ok: true},
		{prop: "module", pkg: PackageJSON{"module": "x.js"}, want: FormatESM5, ok: true},
		{prop: "main", pkg: PackageJSON{"main": "./umd.js"}, want: FormatUMD, ok: true},
		{prop: "main", pkg: PackageJSON{"main": "./umd"}, want: FormatUMD, ok: true},
		{prop: "main", pkg: PackageJSON{"main": "./cjs.js"}, want: FormatCommonJS, ok: true},
		{prop: "main", pkg: PackageJSON{"main": "./missing.js"}},
		{prop: "browser", pkg: PackageJSON{"browser": "x.js"}},
	} {
		ep := &EntryPoint{Path: dir, PackageJSON: tc.pkg}
		got, ok := GetEntryPointFormat(ctx, fsys, ep, tc.prop)
		if got != tc.want || ok != tc.ok {
			t.Errorf("GetEntryPointFormat(%v, %q)=%q, %t; want %q, %t", tc.pkg, tc.prop, got, ok, tc.want, tc.ok)
		}
	}
}

type fakeResolver struct {
	deps map[string][]string
}

func (r fakeResolver) SortEntryPointsByDependency(ctx context.Context, eps []*EntryPoint, target *EntryPoint) (*SortedEntryPointsInfo, error) {
	return &SortedEntryPointsInfo{EntryPoints: eps}, nil
}

func (r fakeResolver) EntryPointDependencies(ctx context.Context, ep *EntryPoint) ([]string, error) {
	return r.deps[ep.Path], nil
}

func entryPointPaths(dir string, eps []*EntryPoint) []string {
	var paths []string
	for _, ep := range eps {
		rel, err := filepath.Rel(dir, ep.Path)
		if err != nil {
			rel = ep.Path
		}
		paths = append(paths, filepath.ToSlash(rel))
	}
	return paths
}

func TestDirectoryWalkerFinder(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ngPkg := func(name string) string {
		return `{"name":"` + name + `","typings":"./index.d.ts","main":"./index.js"}`
	}
	typesOnly := func(name string) string {
		return `{"name":"` + name + `","typings":"./index.d.ts"}`
	}
	setupFiles(t, dir, map[string]string{
		"node_modules/.bin/package.json":                             ngPkg("bin"),
		"node_modules/.bin/index.js":                                 ``,
		"node_modules/.cache/x/package.json":                         ngPkg("cache"),
		"node_modules/.cache/x/index.js":                             ``,
		"node_modules/@angular/common/package.json":                  ngPkg("@angular/common"),
		"node_modules/@angular/common/index.js":                      ``,
		"node_modules/@angular/common/index.metadata.json":           `{}`,
		"node_modules/@angular/common/http/package.json":             ngPkg("@angular/common/http"),
		"node_modules/@angular/common/http/index.js":                 ``,
		"node_modules/@angular/common/http/index.metadata.json":      `{}`,
		"node_modules/@angular/common/http/testing/package.json":     ngPkg("@angular/common/http/testing"),
		"node_modules/@angular/common/http/testing/index.js":         ``,
		"node_modules/@angular/common/__ivy_ngcc__/package.json":     ngPkg("ivy"),
		"node_modules/@angular/common/__ivy_ngcc__/index.js":         ``,
		"node_modules/@angular/core/package.json":                    ngPkg("@angular/core"),
		"node_modules/@angular/core/index.js":                        ``,
		"node_modules/@angular/core/node_modules/tslib/package.json": typesOnly("tslib"),
		"node_modules/broken/package.json":                           `{"name":"broken","typings":"./index.d.ts","esm2015":"./esm2015/index.js"}`,
		"node_modules/broken/index.metadata.json":                    `{}`,
		"node_modules/rxjs/package.json":                             typesOnly("rxjs"),
		"node_modules/rxjs/operators/package.json":                   ngPkg("rxjs/operators"),
		"node_modules/rxjs/operators/index.js":                       ``,
		"node_modules/rxjs/src/no-entry.js":                          ``,
		"dist/lib/package.json":                                      ngPkg("lib"),
		"dist/lib/index.js":                                          ``,
	})
	basePath := filepath.Join(dir, "node_modules")
	f := &DirectoryWalkerFinder{
		FS:       osfs.New(),
		Config:   newConfig(t, basePath),
		Resolver: fakeResolver{},
		BasePath: basePath,
		PathMappings: &modresolve.PathMappings{
			BaseURL: dir,
			Paths: map[string][]string{
				"*": {"dist/*"},
			},
		},
	}
	info, err := f.FindEntryPoints(ctx)
	if err != nil {
		t.Fatalf("FindEntryPoints=_, %v; want nil err", err)
	}
	want := []string{
		"dist/lib",
		"node_modules/@angular/common",
		"node_modules/@angular/common/http",
		"node_modules/@angular/common/http/testing",
		"node_modules/@angular/core",
		"node_modules/rxjs/operators",
	}
	if diff := cmp.Diff(want, entryPointPaths(dir, info.EntryPoints)); diff != "" {
		t.Errorf("FindEntryPoints diff -want +got:\n%s", diff)
	}
}

func TestHasBundle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	setupFiles(t, dir, map[string]string{
		"esm2015/index.js": ``,
		"umd/index.js":     ``,
	})
	fsys := osfs.New()
	for _, tc := range []struct {
		pkg  PackageJSON
		want bool
	}{
		{pkg: PackageJSON{"esm2015": "./esm2015/index.js"}, want: true},
		{pkg: PackageJSON{"main": "./umd"}, want: true},
		{pkg: PackageJSON{"esm2015": "./esm2015/missing.js"}},
		{pkg: PackageJSON{"browser": "./esm2015/index.js"}},
		{pkg: PackageJSON{}},
	} {
		ep := &EntryPoint{Path: dir, PackageJSON: tc.pkg}
		if got := HasBundle(ctx, fsys, ep); got != tc.want {
			t.Errorf("HasBundle(%v)=%t; want %t", tc.pkg, got, tc.want)
		}
	}
}

func TestTargetedFinder(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	setupFiles(t, dir, map[string]string{
		"node_modules/a/package.json":        `{"typings":"./index.d.ts","main":"./index.js"}`,
		"node_modules/a/index.js":            ``,
		"node_modules/a/index.metadata.json": `{}`,
		"node_modules/b/package.json":        `{"typings":"./index.d.ts","main":"./index.js"}`,
		"node_modules/b/index.js":            ``,
		"node_modules/b/index.metadata.json": `{}`,
		"node_modules/c/package.json":        `{"typings":"./index.d.ts","main":"./index.js"}`,
		"node_modules/c/index.js":            ``,
		"node_modules/d/package.json":        `{"typings":"./index.d.ts","main":"./index.js"}`,
		"node_modules/d/index.js":            ``,
		"node_modules/d/index.metadata.json": `{}`,
		"node_modules/e/package.json":        `{"typings":"./index.d.ts","main":"./missing.js"}`,
		"node_modules/e/index.metadata.json": `{}`,
	})
	basePath := filepath.Join(dir, "node_modules")
	p := func(name string) string { return filepath.Join(basePath, name) }
	f := &TargetedFinder{
		FS:     osfs.New(),
		Config: newConfig(t, basePath),
		Resolver: fakeResolver{deps: map[string][]string{
			p("a"): {p("b"), p("c"), p("e")},
			p("b"): {p("c")},
			// c is not compiled by angular, so its deps are not followed.
			p("c"): {p("d")},
		}},
		BasePath: basePath,
		Target:   p("a"),
	}
	info, err := f.FindEntryPoints(ctx)
	if err != nil {
		t.Fatalf("FindEntryPoints=_, %v; want nil err", err)
	}
	want := []string{"node_modules/a", "node_modules/b", "node_modules/c"}
	if diff := cmp.Diff(want, entryPointPaths(dir, info.EntryPoints)); diff != "" {
		t.Errorf("FindEntryPoints diff -want +got:\n%s", diff)
	}

	// e has no bundle to compile.
	f.Target = p("e")
	info, err = f.FindEntryPoints(ctx)
	if err != nil || len(info.EntryPoints) != 0 {
		t.Errorf("FindEntryPoints(target without bundle)=%v, %v; want empty, nil", info, err)
	}

	f.Target = p("missing")
	info, err = f.FindEntryPoints(ctx)
	if err != nil || len(info.EntryPoints) != 0 {
		t.Errorf("FindEntryPoints(missing target)=%v, %v; want empty, nil", info, err)
	}
}

func TestPackagePath(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	setupFiles(t, dir, map[string]string{
		"dist/pkg/package.json":     `{}`,
		"dist/pkg/sub/package.json": `{}`,
	})
	basePath := filepath.Join(dir, "node_modules")
	fsys := osfs.New()
	for _, tc := range []struct {
		ep   string
		want string
	}{
		{ep: "node_modules/a", want: "node_modules/a"},
		{ep: "node_modules/a/b/c", want: "node_modules/a"},
		{ep: "node_modules/@s/a/b", want: "node_modules/@s/a"},
		{ep: "node_modules/a/node_modules/b/c", want: "node_modules/a/node_modules/b"},
		{ep: "dist/pkg/sub", want: "dist/pkg"},
		{ep: "dist/pkg", want: "dist/pkg"},
	} {
		ep := filepath.Join(dir, filepath.FromSlash(tc.ep))
		got := PackagePath(ctx, fsys, basePath, ep)
		if want := filepath.Join(dir, filepath.FromSlash(tc.want)); got != want {
			t.Errorf("PackagePath(%q)=%q; want %q", ep, got, want)
		}
	}
}

func TestBasePaths(t *testing.T) {
	got := BasePaths("/p/node_modules", &modresolve.PathMappings{
		BaseURL: "/p",
		Paths: map[string][]string{
			"@lib/*": {"dist/libs/*", "dist/*"},
			"x":      {"node_modules/x"},
		},
	})
	want := []string{"/p/dist", "/p/node_modules"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BasePaths diff -want +got:\n%s", diff)
	}
}

func TestPackageJSONClone(t *testing.T) {
	p := PackageJSON{"scripts": map[string]any{"a": "b"}, "files": []any{"x"}}
	c := p.Clone()
	c["scripts"].(map[string]any)["a"] = "c"
	c["files"].([]any)[0] = "y"
	if diff := cmp.Diff(PackageJSON{"scripts": map[string]any{"a": "b"}, "files": []any{"x"}}, p); diff != "" {
		t.Errorf("Clone modified original: diff -want +got:\n%s", diff)
	}
}
