// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package render renders analyses of a bundle into edited source and
// typings files.
package render

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/angular-go/ngcc/analysis"
	"github.com/angular-go/ngcc/bundle"
	"github.com/angular-go/ngcc/compile"
	"github.com/angular-go/ngcc/host"
	"github.com/angular-go/ngcc/o11y/clog"
)

// Error is a rendering error of a class.
type Error struct {
	Msg   string
	Class string
	File  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s in %s", e.Msg, e.Class, e.File)
}

// FileInfo is a rendered file.
type FileInfo struct {
	Path     string
	Contents string
}

// Renderer renders source files of a bundle.
type Renderer struct {
	bundle    *bundle.EntryPointBundle
	host      host.ReflectionHost
	formatter formatter
}

// New returns a renderer of b.
func New(b *bundle.EntryPointBundle, h host.ReflectionHost) (*Renderer, error) {
	f, err := newFormatter(h)
	if err != nil {
		return nil, err
	}
	return &Renderer{bundle: b, host: h, formatter: f}, nil
}

// RenderProgram renders the source files changed by analyses.
// Files are returned in program order.
func (r *Renderer) RenderProgram(ctx context.Context, decorations analysis.DecorationAnalyses, switchMarkers analysis.SwitchMarkerAnalyses, privates []analysis.ExportInfo) ([]FileInfo, error) {
	var files []FileInfo
	entry := r.bundle.Src.Entry
	for _, f := range r.bundle.Src.Files {
		compiled := decorations[f.Path]
		markers := switchMarkers[f.Path]
		var exports []analysis.ExportInfo
		if f.Path == entry {
			exports = privates
		}
		if compiled == nil && len(markers) == 0 && len(exports) == 0 {
			continue
		}
		contents, err := r.renderFile(f, compiled, markers, exports)
		if err != nil {
			return nil, err
		}
		clog.Debugf(ctx, "rendered %s", f.Path)
		files = append(files, FileInfo{Path: f.Path, Contents: contents})
	}
	return files, nil
}

func (r *Renderer) renderFile(f *bundle.SourceFile, compiled *analysis.CompiledFile, markers []host.SwitchMarker, exports []analysis.ExportInfo) (string, error) {
	b := NewBuffer(f.Text())
	if compiled != nil {
		if !r.bundle.IsCore {
			err := r.formatter.addImports(b, f, []Import{{Specifier: host.CoreModule, Qualifier: compile.CoreAlias}})
			if err != nil {
				return "", err
			}
		}
		for _, c := range compiled.Classes {
			if err := r.formatter.addDefinitions(b, c.Class, c.Definitions); err != nil {
				return "", err
			}
			removeDecorators(b, c.Class, c.Decorators)
		}
	}
	rewriteSwitchMarkers(b, f, markers)
	if len(exports) > 0 {
		if err := r.formatter.addExports(b, f, r.bundle.Src.Entry, exports); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// removeDecorators removes decorators from the decorators array of c.
// The whole statement is removed when no decorator remains.
func removeDecorators(b *Buffer, c *host.Class, decorators []*host.Decorator) {
	node := c.DecoratorsNode
	if node == nil || len(decorators) == 0 {
		return
	}
	ast := c.File.AST
	removed := make(map[int]bool)
	for _, d := range decorators {
		removed[d.Index] = true
	}
	if len(removed) == len(node.Elems) {
		b.Remove(ast.FullStart(node.Stmt.First), ast.Tokens[node.Stmt.Last].End)
		return
	}
	indices := make([]int, 0, len(removed))
	for i := range removed {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	for _, i := range indices {
		elem := node.Elems[i]
		next := -1
		for j := i + 1; j < len(node.Elems); j++ {
			if !removed[j] {
				next = j
				break
			}
		}
		if next >= 0 {
			// element, comma and spaces up to the next element.
			b.Remove(ast.Tokens[elem.First].Start, ast.Tokens[node.Elems[i+1].First].Start)
			continue
		}
		prev := -1
		for j := i - 1; j >= 0; j-- {
			if !removed[j] {
				prev = j
				break
			}
		}
		// comma before the element.
		b.Remove(ast.Tokens[node.Elems[prev].Last].End, ast.Tokens[elem.Last].End)
	}
}

// rewriteSwitchMarkers switches `X__PRE_R3__` initializers to
// `X__POST_R3__`.
func rewriteSwitchMarkers(b *Buffer, f *bundle.SourceFile, markers []host.SwitchMarker) {
	for _, m := range markers {
		tok := f.AST.Tokens[m.Token]
		b.Replace(tok.Start, tok.End, strings.TrimSuffix(tok.Text, host.SwitchMarkerSuffix)+host.SwitchMarkerPostSuffix)
	}
}
