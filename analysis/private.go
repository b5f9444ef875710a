// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package analysis

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/angular-go/ngcc/bundle"
	"github.com/angular-go/ngcc/host"
	"github.com/angular-go/ngcc/o11y/clog"
)

// ExportInfo is a declaration to export from the entry file.
type ExportInfo struct {
	Identifier string
	// From is the source file declaring the identifier.
	From string
	// DtsFrom is the typings file declaring the identifier, or "".
	DtsFrom string
	// Alias is the name of the declaration in typings, if it differs.
	Alias string
}

// PrivateDeclarationsAnalyzer finds classes declared by NgModules that
// are not exported from the entry file.
type PrivateDeclarationsAnalyzer struct {
	Bundle *bundle.EntryPointBundle
	Host   host.ReflectionHost
}

// Analyze returns private declarations sorted by identifier.
func (a *PrivateDeclarationsAnalyzer) Analyze(ctx context.Context, decorations DecorationAnalyses) []ExportInfo {
	entry := a.Bundle.Src.EntryFile()
	if entry == nil {
		return nil
	}
	exported := make(map[string]bool)
	a.collectExports(entry, exported, make(map[string]bool))

	declared := make(map[string]bool)
	classes := make(map[string]*CompiledClass)
	for _, cf := range decorations {
		for _, c := range cf.Classes {
			if _, ok := classes[c.Class.Name]; !ok {
				classes[c.Class.Name] = c
			}
			for _, d := range c.Declarations {
				declared[d] = true
			}
		}
	}
	var exports []ExportInfo
	for name := range declared {
		if exported[name] {
			continue
		}
		c, ok := classes[name]
		if !ok {
			clog.Debugf(ctx, "declaration %s is not a compiled class of %s", name, a.Bundle.EntryPoint.Path)
			continue
		}
		info := ExportInfo{
			Identifier: name,
			From:       c.Class.File.Path,
		}
		if c.Dts != nil {
			info.DtsFrom = c.Dts.File.Path
			if c.Dts.Name != name {
				info.Alias = c.Dts.Name
			}
		}
		exports = append(exports, info)
	}
	sort.Slice(exports, func(i, j int) bool {
		return exports[i].Identifier < exports[j].Identifier
	})
	return exports
}

// collectExports adds names exported from f, following relative
// re-exports within the program.
func (a *PrivateDeclarationsAnalyzer) collectExports(f *bundle.SourceFile, exported, seen map[string]bool) {
	if seen[f.Path] {
		return
	}
	seen[f.Path] = true
	names, reexports := a.Host.Exports(f)
	for _, name := range names {
		exported[name] = true
	}
	for _, spec := range reexports {
		if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
			continue
		}
		target := resolveInProgram(a.Bundle.Src, filepath.Join(filepath.Dir(f.Path), filepath.FromSlash(spec)))
		if target == nil {
			continue
		}
		a.collectExports(target, exported, seen)
	}
}

func resolveInProgram(p *bundle.Program, base string) *bundle.SourceFile {
	for _, postfix := range []string{"", ".js", string(filepath.Separator) + "index.js"} {
		if f := p.File(base + postfix); f != nil {
			return f
		}
	}
	return nil
}

// Specifier returns the module specifier of e.From relative to entry.
func (e ExportInfo) Specifier(entry string) string {
	if e.From == entry {
		return ""
	}
	return relativeSpecifier(entry, e.From)
}

// DtsSpecifier returns the module specifier of e.DtsFrom relative to
// the typings entry.
func (e ExportInfo) DtsSpecifier(entry string) string {
	if e.DtsFrom == entry {
		return ""
	}
	return relativeSpecifier(entry, e.DtsFrom)
}
