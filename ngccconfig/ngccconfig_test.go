// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ngccconfig

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/angular-go/ngcc/modresolve"
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

func TestGetPackageConfig_precedence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	setupFiles(t, dir, map[string]string{
		"ngcc.config.js": `
module.exports = {
  packages: {
    'package-1': {
      entryPoints: {
        './entry-point-1': { ignore: true },
      },
    },
  },
};`,
		"node_modules/package-1/ngcc.config.js": `
module.exports = {
  entryPoints: { './package-level': {} },
};`,
		"node_modules/package-2/ngcc.config.js": `
module.exports = {
  entryPoints: {
    '.': { override: { typings: './index.d.ts', main: undefined } },
    './sub': { ignoreMissingDependencies: true, generateDeepReexports: true },
  },
  ignorableDeepImportMatchers: [/rxjs\/internal/, /lodash\/(fp|es)/i],
};`,
	})
	basePath := filepath.Join(dir, "node_modules")
	c, err := New(ctx, osfs.New(), basePath)
	if err != nil {
		t.Fatalf("New(ctx, fs, %q)=_, %v; want nil err", basePath, err)
	}

	pkg1 := filepath.Join(basePath, "package-1")
	pc, err := c.GetPackageConfig(ctx, pkg1)
	if err != nil {
		t.Fatalf("GetPackageConfig(ctx, %q)=_, %v; want nil err", pkg1, err)
	}
	if diff := cmp.Diff([]string{filepath.Join(pkg1, "entry-point-1")}, pc.EntryPointPaths()); diff != "" {
		t.Errorf("project level config: entry points diff -want +got:\n%s", diff)
	}
	if epc := pc.EntryPoint(filepath.Join(pkg1, "entry-point-1")); epc == nil || !epc.Ignore {
		t.Errorf("EntryPoint(entry-point-1)=%#v; want ignore", epc)
	}

	pkg2 := filepath.Join(basePath, "package-2")
	pc, err = c.GetPackageConfig(ctx, pkg2)
	if err != nil {
		t.Fatalf("GetPackageConfig(ctx, %q)=_, %v; want nil err", pkg2, err)
	}
	if got, want := pc.Source, filepath.Join(pkg2, ConfigFileName); got != want {
		t.Errorf("Source=%q; want %q", got, want)
	}
	root := pc.EntryPoint(pkg2)
	if root == nil {
		t.Fatalf("EntryPoint(%q)=nil; want config", pkg2)
	}
	if diff := cmp.Diff(map[string]any{"typings": "./index.d.ts", "main": nil}, root.Override); diff != "" {
		t.Errorf("override diff -want +got:\n%s", diff)
	}
	sub := pc.EntryPoint(filepath.Join(pkg2, "sub"))
	if sub == nil || !sub.IgnoreMissingDependencies || !sub.GenerateDeepReexports || sub.Ignore {
		t.Errorf("EntryPoint(sub)=%#v; want ignoreMissingDependencies and generateDeepReexports", sub)
	}
	for _, tc := range []struct {
		path string
		want bool
	}{
		{path: "rxjs/internal/operators", want: true},
		{path: "LODASH/FP/map", want: true},
		{path: "rxjs/operators", want: false},
	} {
		if got := pc.IsIgnorableDeepImport(tc.path); got != tc.want {
			t.Errorf("IsIgnorableDeepImport(%q)=%t; want %t", tc.path, got, tc.want)
		}
	}

	pkg3 := filepath.Join(basePath, "package-3")
	pc, err = c.GetPackageConfig(ctx, pkg3)
	if err != nil {
		t.Fatalf("GetPackageConfig(ctx, %q)=_, %v; want nil err", pkg3, err)
	}
	if len(pc.EntryPoints) != 0 {
		t.Errorf("GetPackageConfig(ctx, %q).EntryPoints=%v; want empty", pkg3, pc.EntryPoints)
	}

	again, err := c.GetPackageConfig(ctx, pkg3)
	if err != nil || again != pc {
		t.Errorf("GetPackageConfig(ctx, %q) second call=%p, %v; want cached %p", pkg3, again, err, pc)
	}
}

func TestGetPackageConfig_default(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	basePath := filepath.Join(dir, "node_modules")
	c, err := New(ctx, osfs.New(), basePath)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range DefaultPackages() {
		pkg := filepath.Join(basePath, filepath.FromSlash(name))
		pc, err := c.GetPackageConfig(ctx, pkg)
		if err != nil {
			t.Fatalf("GetPackageConfig(ctx, %q)=_, %v; want nil err", pkg, err)
		}
		if pc.Source != "default" || len(pc.EntryPoints) == 0 {
			t.Errorf("GetPackageConfig(ctx, %q)=%#v; want default config", pkg, pc)
		}
	}

	// package level config replaces default config.
	setupFiles(t, dir, map[string]string{
		"node_modules/ng2-dragula/ngcc.config.js": `module.exports = { entryPoints: {} };`,
	})
	c, err = New(ctx, osfs.New(), basePath)
	if err != nil {
		t.Fatal(err)
	}
	pc, err := c.GetPackageConfig(ctx, filepath.Join(basePath, "ng2-dragula"))
	if err != nil {
		t.Fatal(err)
	}
	if len(pc.EntryPoints) != 0 {
		t.Errorf("package level config EntryPoints=%v; want empty (no merge with default)", pc.EntryPoints)
	}
}

func TestNew_error(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name string
		src  string
	}{
		{name: "syntax", src: `module.exports = {`},
		{name: "throw", src: `throw new Error("boom");`},
		{name: "require", src: `module.exports = require('./other');`},
		{name: "not object", src: `module.exports = 1;`},
		{name: "bad packages", src: `module.exports = { packages: 'x' };`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			setupFiles(t, dir, map[string]string{
				"ngcc.config.js": tc.src,
			})
			_, err := New(ctx, osfs.New(), filepath.Join(dir, "node_modules"))
			var cerr ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("New=_, %v; want ConfigError", err)
			}
			if got, want := cerr.Path, filepath.Join(dir, ConfigFileName); got != want {
				t.Errorf("ConfigError.Path=%q; want %q", got, want)
			}
		})
	}
}

func TestReadPathMappings(t *testing.T) {
	dir := t.TempDir()
	setupFiles(t, dir, map[string]string{
		"tsconfig.base.json": `{
  // comments are allowed
  "compilerOptions": {
    "baseUrl": "./src",
    "paths": {
      "@lib/*": ["libs/*", "fallback/*"],
    },
  },
}`,
		"app/tsconfig.json": `{
  "extends": "../tsconfig.base",
  "compilerOptions": { "strict": true },
}`,
		"plain/tsconfig.json": `{ "compilerOptions": {} }`,
	})
	fsys := osfs.New()
	got, err := ReadPathMappings(fsys, filepath.Join(dir, "app/tsconfig.json"))
	if err != nil {
		t.Fatalf("ReadPathMappings=_, %v; want nil err", err)
	}
	want := &modresolve.PathMappings{
		BaseURL: filepath.Join(dir, "src"),
		Paths: map[string][]string{
			"@lib/*": {"libs/*", "fallback/*"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadPathMappings diff -want +got:\n%s", diff)
	}

	got, err = ReadPathMappings(fsys, filepath.Join(dir, "plain/tsconfig.json"))
	if err != nil || got != nil {
		t.Errorf("ReadPathMappings(no baseUrl)=%v, %v; want nil, nil", got, err)
	}

	_, err = ReadPathMappings(fsys, filepath.Join(dir, "missing.json"))
	if err == nil {
		t.Errorf("ReadPathMappings(missing)=_, nil; want err")
	}
}
