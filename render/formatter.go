// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/angular-go/ngcc/analysis"
	"github.com/angular-go/ngcc/bundle"
	"github.com/angular-go/ngcc/compile"
	"github.com/angular-go/ngcc/entrypoint"
	"github.com/angular-go/ngcc/host"
	"github.com/angular-go/ngcc/jsscan"
)

// Import is a namespace import added to a file.
type Import struct {
	Specifier string
	Qualifier string
}

// formatter renders format specific edits.
type formatter interface {
	addImports(b *Buffer, f *bundle.SourceFile, imports []Import) error
	addExports(b *Buffer, f *bundle.SourceFile, entry string, exports []analysis.ExportInfo) error
	addDefinitions(b *Buffer, c *host.Class, defs []compile.Definition) error
}

func newFormatter(h host.ReflectionHost) (formatter, error) {
	switch h.Format() {
	case entrypoint.FormatESM2015:
		return esm2015Formatter{}, nil
	case entrypoint.FormatESM5:
		return esm5Formatter{}, nil
	case entrypoint.FormatCommonJS:
		return commonJSFormatter{}, nil
	case entrypoint.FormatUMD:
		return umdFormatter{h: h}, nil
	}
	return nil, fmt.Errorf("no formatter for format %q", h.Format())
}

// indentOf returns the indentation of the line of token i.
func indentOf(ast *jsscan.File, i int) string {
	start := ast.Tokens[i].Start
	lineStart := strings.LastIndexByte(ast.Src[:start], '\n') + 1
	indent := ast.Src[lineStart:start]
	if strings.TrimSpace(indent) != "" {
		return ""
	}
	return indent
}

func definitionText(name, indent string, defs []compile.Definition) string {
	var sb strings.Builder
	for _, d := range defs {
		fmt.Fprintf(&sb, "\n%s%s.%s = %s;", indent, name, d.Name, d.Initializer)
	}
	return sb.String()
}

// prologueEnd returns the offset after the directive prologue of
// statements.
func prologueEnd(ast *jsscan.File, stmts []jsscan.Range) int {
	pos := 0
	for _, s := range stmts {
		if ast.Tokens[s.First].Kind != jsscan.String || s.Last-s.First > 1 {
			break
		}
		pos = ast.Tokens[s.Last].End
	}
	return pos
}

type esm2015Formatter struct{}

func (esm2015Formatter) addImports(b *Buffer, f *bundle.SourceFile, imports []Import) error {
	ast := f.AST
	stmts := ast.TopLevelStatements()
	pos := -1
	for _, s := range stmts {
		if ast.Is(s.First, "import") && !ast.Is(s.First+1, "(") && !ast.Is(s.First+1, ".") {
			pos = ast.Tokens[s.Last].End
		}
	}
	var sb strings.Builder
	for _, imp := range imports {
		if pos < 0 {
			fmt.Fprintf(&sb, "import * as %s from '%s';\n", imp.Qualifier, imp.Specifier)
			continue
		}
		fmt.Fprintf(&sb, "\nimport * as %s from '%s';", imp.Qualifier, imp.Specifier)
	}
	if pos < 0 {
		pos = 0
	}
	b.Insert(pos, sb.String())
	return nil
}

func (esm2015Formatter) addExports(b *Buffer, f *bundle.SourceFile, entry string, exports []analysis.ExportInfo) error {
	var sb strings.Builder
	for _, e := range exports {
		if spec := e.Specifier(entry); spec != "" {
			fmt.Fprintf(&sb, "\nexport {%s} from '%s';", e.Identifier, spec)
			continue
		}
		fmt.Fprintf(&sb, "\nexport {%s};", e.Identifier)
	}
	b.Insert(len(f.AST.Src), sb.String())
	return nil
}

func (esm2015Formatter) addDefinitions(b *Buffer, c *host.Class, defs []compile.Definition) error {
	ast := c.File.AST
	b.Insert(ast.Tokens[c.Decl.Last].End, definitionText(c.Name, indentOf(ast, c.Decl.First), defs))
	return nil
}

// esm5Formatter adds definitions inside the IIFE of ES5 classes.
type esm5Formatter struct {
	esm2015Formatter
}

func (esm5Formatter) addDefinitions(b *Buffer, c *host.Class, defs []compile.Definition) error {
	if !c.InIIFE() {
		return &Error{Msg: "compiled class declaration is not inside an IIFE", Class: c.Name, File: c.File.Path}
	}
	ast := c.File.AST
	b.Insert(ast.Tokens[c.Inner.Last].End, definitionText(c.InnerName, indentOf(ast, c.Inner.First), defs))
	return nil
}

type commonJSFormatter struct {
	esm5Formatter
}

func (commonJSFormatter) addImports(b *Buffer, f *bundle.SourceFile, imports []Import) error {
	ast := f.AST
	stmts := ast.TopLevelStatements()
	pos := prologueEnd(ast, stmts)
	for _, s := range stmts {
		if req := ast.Find(s, "require"); req >= 0 && ast.Is(req+1, "(") && (ast.Is(s.First, "var") || ast.Is(s.First, "const") || ast.Is(s.First, "let")) {
			pos = ast.Tokens[s.Last].End
		}
	}
	var sb strings.Builder
	for _, imp := range imports {
		fmt.Fprintf(&sb, "\nvar %s = require('%s');", imp.Qualifier, imp.Specifier)
	}
	text := sb.String()
	if pos == 0 {
		text = strings.TrimPrefix(text, "\n") + "\n"
	}
	b.Insert(pos, text)
	return nil
}

func (commonJSFormatter) addExports(b *Buffer, f *bundle.SourceFile, entry string, exports []analysis.ExportInfo) error {
	var sb strings.Builder
	for _, e := range exports {
		if spec := e.Specifier(entry); spec != "" {
			fmt.Fprintf(&sb, "\nexports.%s = require('%s').%s;", e.Identifier, spec, e.Identifier)
			continue
		}
		fmt.Fprintf(&sb, "\nexports.%s = %s;", e.Identifier, e.Identifier)
	}
	b.Insert(len(f.AST.Src), sb.String())
	return nil
}

type umdFormatter struct {
	esm5Formatter
	h host.ReflectionHost
}

// addImports adds imports to the CommonJS factory call, the AMD
// dependency array, the global factory call and the factory
// parameters.
func (u umdFormatter) addImports(b *Buffer, f *bundle.SourceFile, imports []Import) error {
	ast := f.AST
	w, ok := u.h.UMD(f)
	if !ok {
		return fmt.Errorf("%s: no UMD wrapper", f.Path)
	}
	if len(imports) == 0 {
		return nil
	}
	var requires, amdDeps, globals, params []string
	for _, imp := range imports {
		requires = append(requires, fmt.Sprintf("require('%s')", imp.Specifier))
		amdDeps = append(amdDeps, fmt.Sprintf("'%s'", imp.Specifier))
		globals = append(globals, globalIdentifier(u.globalName(ast, w), imp.Specifier))
		params = append(params, imp.Qualifier)
	}
	if w.CommonJSCall >= 0 {
		appendArgs(b, ast, w.CommonJSCall, requires)
	}
	if w.AMDCall >= 0 {
		args, err := ast.Elements(w.AMDCall)
		if err != nil {
			return err
		}
		deps := -1
		for _, a := range args {
			if ast.Is(a.First, "[") && ast.Match(a.First) == a.Last {
				deps = a.First
			}
		}
		if deps >= 0 {
			appendArgs(b, ast, deps, amdDeps)
		} else if len(args) > 0 {
			// define(factory) or define('name', factory).
			factory := args[len(args)-1]
			b.Insert(ast.Tokens[factory.First].Start, "["+strings.Join(amdDeps, ",")+"], ")
		}
	}
	if w.GlobalCall >= 0 {
		appendArgs(b, ast, w.GlobalCall, globals)
	}
	appendArgs(b, ast, w.FactoryParams, params)
	return nil
}

// appendArgs appends elements to the bracketed list at open.
func appendArgs(b *Buffer, ast *jsscan.File, open int, elems []string) {
	args, err := ast.Elements(open)
	text := strings.Join(elems, ",")
	if err != nil || len(args) == 0 {
		b.Insert(ast.Tokens[open].End, text)
		return
	}
	b.Insert(ast.Tokens[args[len(args)-1].Last].End, ","+text)
}

// globalName returns the first parameter name of the wrapper function.
func (u umdFormatter) globalName(ast *jsscan.File, w *jsscan.UMDWrapper) string {
	closeParams := w.WrapperBody.First - 2
	open := ast.Match(closeParams)
	if open < 0 {
		return "global"
	}
	if params := ast.Params(open); len(params) > 0 {
		return params[0]
	}
	return "global"
}

var dashCaseRe = regexp.MustCompile(`[-_]+(.?)`)

// globalIdentifier returns the global variable of module specifier,
// e.g. `global.ng.common.http` for `@angular/common/http`.
func globalIdentifier(global, specifier string) string {
	if rest, ok := strings.CutPrefix(specifier, "@angular/"); ok {
		return global + ".ng." + strings.ReplaceAll(rest, "/", ".")
	}
	name := strings.TrimPrefix(specifier, "@")
	name = strings.ReplaceAll(name, "/", ".")
	name = dashCaseRe.ReplaceAllStringFunc(name, func(s string) string {
		return strings.ToUpper(strings.TrimLeft(s, "-_"))
	})
	return global + "." + name
}

func (u umdFormatter) addExports(b *Buffer, f *bundle.SourceFile, entry string, exports []analysis.ExportInfo) error {
	ast := f.AST
	w, ok := u.h.UMD(f)
	if !ok {
		return fmt.Errorf("%s: no UMD wrapper", f.Path)
	}
	var sb strings.Builder
	for _, e := range exports {
		if e.Specifier(entry) != "" {
			return fmt.Errorf("%s: cannot export %s from %s in UMD bundle", f.Path, e.Identifier, e.From)
		}
		fmt.Fprintf(&sb, "\nexports.%s = %s;", e.Identifier, e.Identifier)
	}
	closeBody := ast.Match(w.FactoryBody)
	b.Insert(ast.FullStart(closeBody), sb.String())
	return nil
}
