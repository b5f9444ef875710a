// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package analysis analyzes bundles for rendering.
package analysis

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/angular-go/ngcc/bundle"
	"github.com/angular-go/ngcc/compile"
	"github.com/angular-go/ngcc/host"
	"github.com/angular-go/ngcc/o11y/clog"
	"github.com/angular-go/ngcc/osfs"
)

// CompiledClass is a class compiled by the decoration analyzer.
type CompiledClass struct {
	*compile.Result
	// Dts is the typings declaration of the class, or nil.
	Dts *host.DtsClass
}

// CompiledFile is a source file with compiled classes.
type CompiledFile struct {
	File    *bundle.SourceFile
	Classes []*CompiledClass
}

// DecorationAnalyses are compiled files keyed by path.
type DecorationAnalyses map[string]*CompiledFile

// DecorationAnalyzer compiles decorated classes of a bundle.
type DecorationAnalyzer struct {
	FS      osfs.FS
	Bundle  *bundle.EntryPointBundle
	Host    host.ReflectionHost
	Version string
}

// Analyze compiles classes with Angular decorators in every source
// file. Classes that already have Ivy definitions are skipped.
func (a *DecorationAnalyzer) Analyze(ctx context.Context) (DecorationAnalyses, error) {
	dts := newDtsIndex(a.Bundle.Dts)
	analyses := make(DecorationAnalyses)
	for _, f := range a.Bundle.Src.Files {
		classes, err := a.Host.Classes(f)
		if err != nil {
			return nil, err
		}
		var compiled []*CompiledClass
		for _, c := range classes {
			if len(c.Decorators) == 0 {
				continue
			}
			if compile.IsCompiled(c) {
				clog.Debugf(ctx, "skip compiled class %s in %s", c.Name, f.Path)
				continue
			}
			dtsClass := dts.class(c.Name)
			opts := compile.Options{
				Version:      a.Version,
				IsCore:       a.Bundle.IsCore,
				ReadResource: a.resourceReader(f.Path),
			}
			if dtsClass != nil {
				opts.DtsInScope = dts.inScope(dtsClass.File)
			}
			res, err := compile.Compile(c, opts)
			if err != nil {
				return nil, err
			}
			if res == nil {
				continue
			}
			compiled = append(compiled, &CompiledClass{Result: res, Dts: dtsClass})
		}
		if len(compiled) > 0 {
			analyses[f.Path] = &CompiledFile{File: f, Classes: compiled}
		}
	}
	return analyses, nil
}

func (a *DecorationAnalyzer) resourceReader(fname string) func(string) (string, error) {
	return func(url string) (string, error) {
		p := filepath.Join(filepath.Dir(fname), filepath.FromSlash(url))
		buf, err := a.FS.ReadFile(p)
		if err != nil {
			return "", err
		}
		return string(buf), nil
	}
}

// dtsIndex indexes class declarations of a typings program.
type dtsIndex struct {
	classes map[string]*host.DtsClass
	scopes  map[*bundle.SourceFile]map[string]bool
}

func newDtsIndex(p *bundle.Program) *dtsIndex {
	idx := &dtsIndex{
		classes: make(map[string]*host.DtsClass),
		scopes:  make(map[*bundle.SourceFile]map[string]bool),
	}
	if p == nil {
		return idx
	}
	for _, f := range p.Files {
		scope := make(map[string]bool)
		for _, c := range host.DtsClasses(f) {
			scope[c.Name] = true
			if _, ok := idx.classes[c.Name]; !ok {
				idx.classes[c.Name] = c
			}
		}
		for name := range host.ESMImports(f.AST) {
			scope[name] = true
		}
		idx.scopes[f] = scope
	}
	return idx
}

func (idx *dtsIndex) class(name string) *host.DtsClass {
	return idx.classes[name]
}

func (idx *dtsIndex) inScope(f *bundle.SourceFile) func(string) bool {
	scope := idx.scopes[f]
	return func(name string) bool {
		return scope[name]
	}
}

// relativeSpecifier returns a module specifier of target relative to
// the directory of from, without extension.
func relativeSpecifier(from, target string) string {
	rel, err := filepath.Rel(filepath.Dir(from), target)
	if err != nil {
		return target
	}
	rel = filepath.ToSlash(rel)
	for _, ext := range []string{".d.ts", ".js"} {
		if strings.HasSuffix(rel, ext) {
			rel = strings.TrimSuffix(rel, ext)
			break
		}
	}
	if !strings.HasPrefix(rel, "../") {
		rel = "./" + rel
	}
	return rel
}
