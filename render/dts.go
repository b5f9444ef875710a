// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/angular-go/ngcc/analysis"
	"github.com/angular-go/ngcc/bundle"
	"github.com/angular-go/ngcc/compile"
	"github.com/angular-go/ngcc/host"
	"github.com/angular-go/ngcc/o11y/clog"
)

// DtsRenderer adds definition fields to typings files.
type DtsRenderer struct {
	bundle *bundle.EntryPointBundle
}

// NewDtsRenderer returns a typings renderer of b.
func NewDtsRenderer(b *bundle.EntryPointBundle) *DtsRenderer {
	return &DtsRenderer{bundle: b}
}

type dtsEdits struct {
	classes []*analysis.CompiledClass
	exports []analysis.ExportInfo
}

// RenderProgram renders typings files changed by analyses.
func (r *DtsRenderer) RenderProgram(ctx context.Context, decorations analysis.DecorationAnalyses, privates []analysis.ExportInfo) ([]FileInfo, error) {
	dts := r.bundle.Dts
	if dts == nil {
		return nil, nil
	}
	edits := make(map[string]*dtsEdits)
	get := func(path string) *dtsEdits {
		e := edits[path]
		if e == nil {
			e = &dtsEdits{}
			edits[path] = e
		}
		return e
	}
	for _, f := range r.bundle.Src.Files {
		cf := decorations[f.Path]
		if cf == nil {
			continue
		}
		for _, c := range cf.Classes {
			if c.Dts == nil {
				clog.Debugf(ctx, "no typings for %s in %s", c.Class.Name, f.Path)
				continue
			}
			e := get(c.Dts.File.Path)
			e.classes = append(e.classes, c)
		}
	}
	for _, p := range privates {
		if p.DtsFrom == "" {
			continue
		}
		e := get(dts.Entry)
		e.exports = append(e.exports, p)
	}
	var files []FileInfo
	for _, f := range dts.Files {
		e := edits[f.Path]
		if e == nil {
			continue
		}
		files = append(files, FileInfo{Path: f.Path, Contents: r.renderFile(f, e)})
	}
	return files, nil
}

func (r *DtsRenderer) renderFile(f *bundle.SourceFile, e *dtsEdits) string {
	ast := f.AST
	b := NewBuffer(f.Text())
	if len(e.classes) > 0 && !r.bundle.IsCore {
		_ = esm2015Formatter{}.addImports(b, f, []Import{{Specifier: host.CoreModule, Qualifier: compile.CoreAlias}})
	}
	for _, c := range e.classes {
		closeBody := ast.Match(c.Dts.Body)
		pos := ast.Tokens[closeBody].Start
		var sb strings.Builder
		if !strings.HasSuffix(ast.Src[:pos], "\n") {
			sb.WriteString("\n")
		}
		for _, d := range c.Definitions {
			fmt.Fprintf(&sb, "    static %s: %s;\n", d.Name, d.Type)
		}
		b.Insert(pos, sb.String())
	}
	var sb strings.Builder
	for _, x := range e.exports {
		name := x.Identifier
		if x.Alias != "" {
			name = x.Identifier + " as " + x.Alias
		}
		if spec := x.DtsSpecifier(r.bundle.Dts.Entry); spec != "" {
			fmt.Fprintf(&sb, "\nexport {%s} from '%s';", name, spec)
			continue
		}
		fmt.Fprintf(&sb, "\nexport {%s};", name)
	}
	b.Insert(len(ast.Src), sb.String())
	return b.String()
}
