// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deps

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/angular-go/ngcc/modresolve"
	"github.com/angular-go/ngcc/osfs"
)

func depsTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	common := map[string]string{
		"node_modules/lib-2/package.json":      `{}`,
		"node_modules/lib-2/index.js":          ``,
		"node_modules/lib-3/package.json":      `{}`,
		"node_modules/lib-3/deep/file.js":      ``,
		"node_modules/lib-4/package.json":      `{}`,
		"node_modules/lib-4/index.js":          ``,
	}
	for k, v := range files {
		common[k] = v
	}
	setupFiles(t, dir, common)
	return dir
}

type hostFactory func(osfs.FS, *modresolve.Resolver) Host

func TestFindDependencies(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name  string
		host  hostFactory
		files map[string]string
	}{
		{
			name: "esm",
			host: NewEsmHost,
			files: map[string]string{
				"node_modules/lib-1/index.js": `import { X } from 'lib-2';
import { Y } from './sub';
export * from './other';
import 'missing-pkg';
import { Z } from 'lib-3/deep/file';
export const A = [X, Y, Z];
`,
				"node_modules/lib-1/sub.js":   "import { W } from 'lib-4';\nexport const Y = W;\n",
				"node_modules/lib-1/other.js": "export const O = 1;\n",
			},
		},
		{
			name: "commonjs",
			host: NewCommonJSHost,
			files: map[string]string{
				"node_modules/lib-1/index.js": `var x = require('lib-2');
var y = require('./sub');
var o = require('./other');
require('missing-pkg');
var z = require('lib-3/deep/file');
exports.A = [x, y, z, o];
`,
				"node_modules/lib-1/sub.js":   "exports.Y = require('lib-4');\n",
				"node_modules/lib-1/other.js": "exports.O = 1;\n",
			},
		},
		{
			name: "umd",
			host: NewUmdHost,
			files: map[string]string{
				"node_modules/lib-1/index.js": `(function (global, factory) {
  typeof exports === 'object' && typeof module !== 'undefined' ? factory(exports, require('lib-2'), require('./sub'), require('./other'), require('missing-pkg'), require('lib-3/deep/file')) :
  typeof define === 'function' && define.amd ? define('lib-1', ['exports', 'lib-2', './sub', './other', 'missing-pkg', 'lib-3/deep/file'], factory) :
  (global = global || self, factory(global.lib1 = {}, global.lib2, global.sub, global.other, global.missing, global.deep));
}(this, (function (exports, lib2, sub, other, missing, deep) { 'use strict';
  exports.A = 1;
})));
`,
				"node_modules/lib-1/sub.js": `(function (global, factory) {
  typeof exports === 'object' && typeof module !== 'undefined' ? factory(exports, require('lib-4')) :
  typeof define === 'function' && define.amd ? define(['exports', 'lib-4'], factory) :
  (global = global || self, factory(global.sub = {}, global.lib4));
}(this, (function (exports, lib4) { 'use strict'; })));
`,
				"node_modules/lib-1/other.js": "exports.O = 1;\n",
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dir := depsTree(t, tc.files)
			fsys := osfs.New()
			h := tc.host(fsys, modresolve.New(fsys, nil))
			p := func(name string) string {
				return filepath.Join(dir, "node_modules", filepath.FromSlash(name))
			}
			entry := p("lib-1/index.js")
			got, err := h.FindDependencies(ctx, entry)
			if err != nil {
				t.Fatalf("FindDependencies(ctx, %q)=_, %v; want nil err", entry, err)
			}
			sort.Strings(got.Files[1:])
			want := &DependencyInfo{
				Dependencies: []string{p("lib-2"), p("lib-4")},
				Missing:      []string{"missing-pkg"},
				DeepImports:  []string{p("lib-3/deep/file")},
				Files:        []string{entry, p("lib-1/other.js"), p("lib-1/sub.js")},
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("FindDependencies(ctx, %q) diff -want +got:\n%s", entry, diff)
			}
		})
	}
}

func TestFindDependencies_noImports(t *testing.T) {
	ctx := context.Background()
	dir := depsTree(t, map[string]string{
		"node_modules/lib-1/index.js": "var a = 1;\n",
	})
	fsys := osfs.New()
	h := NewEsmHost(fsys, modresolve.New(fsys, nil))
	entry := filepath.Join(dir, "node_modules/lib-1/index.js")
	got, err := h.FindDependencies(ctx, entry)
	if err != nil {
		t.Fatal(err)
	}
	want := &DependencyInfo{
		Dependencies: []string{},
		Missing:      []string{},
		DeepImports:  []string{},
		Files:        []string{entry},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FindDependencies(ctx, %q) diff -want +got:\n%s", entry, diff)
	}
}

func TestFindDependencies_missingFile(t *testing.T) {
	ctx := context.Background()
	fsys := osfs.New()
	h := NewEsmHost(fsys, modresolve.New(fsys, nil))
	_, err := h.FindDependencies(ctx, filepath.Join(t.TempDir(), "missing.js"))
	if err == nil {
		t.Errorf("FindDependencies(missing)=_, nil; want err")
	}
}
