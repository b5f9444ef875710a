// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package host

import (
	"strings"

	"github.com/angular-go/ngcc/bundle"
	"github.com/angular-go/ngcc/entrypoint"
	"github.com/angular-go/ngcc/jsscan"
)

// Imports returns symbols imported by f keyed by local name.
func (h *host) Imports(f *bundle.SourceFile) map[string]Import {
	switch h.format {
	case entrypoint.FormatCommonJS:
		return requireImports(f.AST)
	case entrypoint.FormatUMD:
		if w, ok := f.AST.UMD(); ok {
			return umdImports(f.AST, w)
		}
		return requireImports(f.AST)
	}
	return ESMImports(f.AST)
}

// ESMImports returns symbols imported by import declarations of f.
// It is also used for typings files.
func ESMImports(ast *jsscan.File) map[string]Import {
	imports := make(map[string]Import)
	for _, s := range ast.TopLevelStatements() {
		if !ast.Is(s.First, "import") || ast.Is(s.First+1, "(") || ast.Is(s.First+1, ".") {
			continue
		}
		from := fromClause(ast, s)
		if from < 0 {
			continue
		}
		module := jsscan.StringValue(ast.Tokens[from+1])
		j := s.First + 1
		if ast.Is(j, "type") && (ast.Is(j+1, "{") || ast.Is(j+1, "*")) {
			j++
		}
		if ast.IsIdent(j) && !ast.Is(j, "from") {
			imports[ast.Tokens[j].Text] = Import{Module: module, Name: "default"}
			j++
			if ast.Is(j, ",") {
				j++
			}
		}
		switch {
		case ast.Is(j, "*") && ast.Is(j+1, "as") && ast.IsIdent(j+2):
			imports[ast.Tokens[j+2].Text] = Import{Module: module}
		case ast.Is(j, "{"):
			elems, err := ast.Elements(j)
			if err != nil {
				continue
			}
			for _, e := range elems {
				name := ast.Tokens[e.First].Text
				local := name
				if e.Last-e.First == 2 && ast.Is(e.First+1, "as") {
					local = ast.Tokens[e.Last].Text
				}
				imports[local] = Import{Module: module, Name: name}
			}
		}
	}
	return imports
}

// fromClause returns index of `from` followed by the module specifier
// ending statement s, or -1.
func fromClause(ast *jsscan.File, s jsscan.Range) int {
	last := s.Last
	if ast.Is(last, ";") {
		last--
	}
	if last <= s.First || ast.Tokens[last].Kind != jsscan.String || !ast.Is(last-1, "from") {
		return -1
	}
	return last - 1
}

// requireImports returns top-level `var x = require('m')` namespace
// imports.
func requireImports(ast *jsscan.File) map[string]Import {
	imports := make(map[string]Import)
	for _, s := range ast.TopLevelStatements() {
		i := s.First
		if !(ast.Is(i, "var") || ast.Is(i, "let") || ast.Is(i, "const")) || !ast.IsIdent(i+1) || !ast.Is(i+2, "=") {
			continue
		}
		init := jsscan.Range{First: i + 3, Last: s.Last}
		if ast.Is(init.Last, ";") {
			init.Last--
		}
		module, ok := ast.RequireCall(init)
		if !ok {
			// `__importStar(require('m'))` and `tslib_1.__importDefault(require('m'))`.
			req := ast.Find(init, "require")
			if req < 0 || !ast.Is(req+1, "(") {
				continue
			}
			if req-2 < init.First || !strings.HasPrefix(ast.Tokens[req-2].Text, "__import") {
				continue
			}
			module, ok = ast.RequireCall(jsscan.Range{First: req, Last: ast.Match(req + 1)})
			if !ok {
				continue
			}
		}
		imports[ast.Tokens[i+1].Text] = Import{Module: module}
	}
	return imports
}

// umdImports maps factory parameters to modules required by the
// CommonJS factory call.
func umdImports(ast *jsscan.File, w *jsscan.UMDWrapper) map[string]Import {
	imports := make(map[string]Import)
	if w.CommonJSCall < 0 {
		return imports
	}
	params := ast.Params(w.FactoryParams)
	args, err := ast.Elements(w.CommonJSCall)
	if err != nil {
		return imports
	}
	for i, a := range args {
		if i >= len(params) {
			break
		}
		if module, ok := ast.RequireCall(a); ok {
			imports[params[i]] = Import{Module: module}
		}
	}
	return imports
}

// Exports returns exported names and re-exported modules of f.
func (h *host) Exports(f *bundle.SourceFile) ([]string, []string) {
	switch h.format {
	case entrypoint.FormatCommonJS, entrypoint.FormatUMD:
		return h.commonJSExports(f)
	}
	return ESMExports(f.AST)
}

// ESMExports returns names exported by export declarations of f, and
// modules of `export * from` declarations.
func ESMExports(ast *jsscan.File) (names []string, reexports []string) {
	for _, s := range ast.TopLevelStatements() {
		if !ast.Is(s.First, "export") {
			continue
		}
		j := s.First + 1
		switch {
		case ast.Is(j, "*"):
			if from := fromClause(ast, s); from >= 0 {
				reexports = append(reexports, jsscan.StringValue(ast.Tokens[from+1]))
			}
			continue
		case ast.Is(j, "default"):
			names = append(names, "default")
			continue
		case ast.Is(j, "{"):
			elems, err := ast.Elements(j)
			if err != nil {
				continue
			}
			for _, e := range elems {
				names = append(names, ast.Tokens[e.Last].Text)
			}
			continue
		}
		for ast.Is(j, "declare") || ast.Is(j, "abstract") || ast.Is(j, "async") {
			j++
		}
		switch {
		case ast.Is(j, "class"), ast.Is(j, "function"), ast.Is(j, "var"), ast.Is(j, "let"), ast.Is(j, "const"),
			ast.Is(j, "interface"), ast.Is(j, "type"), ast.Is(j, "enum"), ast.Is(j, "namespace"):
			j++
			if ast.Is(j, "*") {
				j++
			}
			if ast.IsIdent(j) {
				names = append(names, ast.Tokens[j].Text)
			}
		}
	}
	return names, reexports
}

func (h *host) commonJSExports(f *bundle.SourceFile) (names []string, reexports []string) {
	ast := f.AST
	scope, err := h.Scope(f)
	if err != nil {
		return nil, nil
	}
	imports := h.Imports(f)
	seen := make(map[string]bool)
	add := func(name string) {
		if name == "__esModule" || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	}
	for _, s := range ast.Statements(scope) {
		// exports.a = exports.b = void 0;
		for j := s.First; ast.Is(j, "exports") && ast.Is(j+1, ".") && ast.IsIdent(j+2) && ast.Is(j+3, "="); j += 4 {
			add(ast.Tokens[j+2].Text)
		}
		j := s.First
		if ast.Is(j, "Object") && ast.Is(j+1, ".") && ast.Is(j+2, "defineProperty") && ast.Is(j+3, "(") {
			args, err := ast.Elements(j + 3)
			if err != nil || len(args) < 2 || !ast.Is(args[0].First, "exports") {
				continue
			}
			if tok := ast.Tokens[args[1].First]; tok.Kind == jsscan.String {
				add(jsscan.StringValue(tok))
			}
			continue
		}
		if ast.IsIdent(j) && ast.Is(j+1, ".") {
			// tslib_1.__exportStar(...)
			j += 2
		}
		if !(ast.Is(j, "__exportStar") || ast.Is(j, "__export")) || !ast.Is(j+1, "(") {
			continue
		}
		args, err := ast.Elements(j + 1)
		if err != nil || len(args) == 0 {
			continue
		}
		if module, ok := ast.RequireCall(args[0]); ok {
			reexports = append(reexports, module)
			continue
		}
		if args[0].First == args[0].Last {
			if imp, ok := imports[ast.Tokens[args[0].First].Text]; ok && imp.Name == "" {
				reexports = append(reexports, imp.Module)
			}
		}
	}
	return names, reexports
}

// SwitchMarkers returns identifiers ending with `__PRE_R3__` that
// initialize variable declarations.
func (h *host) SwitchMarkers(f *bundle.SourceFile) []SwitchMarker {
	ast := f.AST
	if !strings.Contains(ast.Src, SwitchMarkerSuffix) {
		return nil
	}
	var markers []SwitchMarker
	for i, tok := range ast.Tokens {
		if tok.Kind != jsscan.Ident || !strings.HasSuffix(tok.Text, SwitchMarkerSuffix) {
			continue
		}
		if !ast.Is(i-1, "=") || !ast.IsIdent(i-2) {
			continue
		}
		if ast.Is(i-3, "var") || ast.Is(i-3, "let") || ast.Is(i-3, "const") || ast.Is(i-3, ",") {
			markers = append(markers, SwitchMarker{Token: i})
		}
	}
	return markers
}
