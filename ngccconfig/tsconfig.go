// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ngccconfig

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dop251/goja"

	"github.com/angular-go/ngcc/modresolve"
	"github.com/angular-go/ngcc/osfs"
)

// maxExtendsDepth limits `extends` chains of tsconfig files.
const maxExtendsDepth = 8

// ReadPathMappings reads `compilerOptions.baseUrl` and
// `compilerOptions.paths` from tsconfig file at fname, following
// relative `extends`.
// It returns nil if the tsconfig has no baseUrl.
// baseUrl is resolved relative to the tsconfig that declares it.
func ReadPathMappings(fsys osfs.FS, fname string) (*modresolve.PathMappings, error) {
	var pm modresolve.PathMappings
	hasBaseURL := false
	hasPaths := false
	for depth := 0; fname != ""; depth++ {
		if depth >= maxExtendsDepth {
			return nil, ConfigError{Path: fname, Err: fmt.Errorf("too deep extends chain")}
		}
		obj, err := evalJSON(fsys, fname)
		if err != nil {
			return nil, err
		}
		dir := filepath.Dir(fname)
		if co, ok := obj.Get("compilerOptions").(*goja.Object); ok {
			if v := co.Get("baseUrl"); !hasBaseURL && !isUnset(v) {
				pm.BaseURL = filepath.Join(dir, filepath.FromSlash(v.String()))
				hasBaseURL = true
			}
			if v := co.Get("paths"); !hasPaths && !isUnset(v) {
				paths, err := exportPaths(v)
				if err != nil {
					return nil, ConfigError{Path: fname, Err: err}
				}
				pm.Paths = paths
				hasPaths = true
			}
		}
		fname = ""
		if v := obj.Get("extends"); !isUnset(v) {
			ext := v.String()
			if !strings.HasPrefix(ext, ".") && !filepath.IsAbs(ext) {
				// package based extends is not followed.
				break
			}
			if !strings.HasSuffix(ext, ".json") {
				ext += ".json"
			}
			if !filepath.IsAbs(ext) {
				ext = filepath.Join(dir, filepath.FromSlash(ext))
			}
			fname = ext
		}
	}
	if !hasBaseURL {
		return nil, nil
	}
	return &pm, nil
}

// evalJSON evaluates JSON with comments and trailing commas, as
// tsconfig files allow.
func evalJSON(fsys osfs.FS, fname string) (*goja.Object, error) {
	buf, err := fsys.ReadFile(fname)
	if err != nil {
		return nil, ConfigError{Path: fname, Err: err}
	}
	vm := goja.New()
	v, err := vm.RunScript(fname, "(\n"+string(buf)+"\n)")
	if err != nil {
		return nil, ConfigError{Path: fname, Err: err}
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, ConfigError{Path: fname, Err: fmt.Errorf("not an object")}
	}
	return obj, nil
}

func exportPaths(v goja.Value) (map[string][]string, error) {
	m, ok := v.Export().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("compilerOptions.paths must be an object")
	}
	paths := make(map[string][]string, len(m))
	for k, tv := range m {
		templates, ok := tv.([]any)
		if !ok {
			return nil, fmt.Errorf("compilerOptions.paths[%q] must be an array", k)
		}
		for _, t := range templates {
			s, ok := t.(string)
			if !ok {
				return nil, fmt.Errorf("compilerOptions.paths[%q] must be an array of strings", k)
			}
			paths[k] = append(paths[k], s)
		}
	}
	return paths, nil
}
