// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package compile

import (
	"fmt"
	"strings"

	"github.com/angular-go/ngcc/jsscan"
)

func (cc *classCompiler) ngModule(meta *metadata) error {
	mod := &DefinitionMap{}
	cc.opts.header(mod, cc.typeRef())
	types := make(map[string][]string)
	for _, key := range []string{"bootstrap", "declarations", "imports", "exports"} {
		elems, ok := meta.array(key)
		if !ok {
			mod.Set(key, meta.raw(key))
			continue
		}
		var refs []string
		for _, e := range elems {
			ref := cc.typeReference(e)
			refs = append(refs, ref)
			if cc.isReference(ref) {
				types[key] = append(types[key], ref)
			}
		}
		if len(refs) > 0 {
			mod.Set(key, arrayLiteral(refs))
		}
	}
	mod.Set("schemas", meta.raw("schemas"))
	mod.Set("id", meta.raw("id"))
	for _, name := range types["declarations"] {
		if !strings.Contains(name, ".") {
			cc.res.Declarations = append(cc.res.Declarations, name)
		}
	}

	inj := &DefinitionMap{}
	cc.opts.header(inj, cc.typeRef())
	inj.Set("providers", meta.raw("providers"))
	var imports []string
	for _, key := range []string{"imports", "exports"} {
		elems, ok := meta.array(key)
		if !ok {
			if raw := meta.raw(key); raw != "" {
				imports = append(imports, raw)
			}
			continue
		}
		for _, e := range elems {
			imports = append(imports, cc.ast.Text(e.First, e.Last))
		}
	}
	if len(imports) > 0 {
		inj.Set("imports", arrayLiteral(imports))
	}

	cc.add("ɵmod",
		cc.opts.core("ɵɵngDeclareNgModule")+"("+mod.String()+")",
		fmt.Sprintf("%s<%s, %s, %s, %s>", cc.opts.core("ɵɵNgModuleDeclaration"), cc.c.Name,
			cc.typeofList(types["declarations"]), cc.typeofList(types["imports"]), cc.typeofList(types["exports"])))
	cc.add("ɵinj",
		cc.opts.core("ɵɵngDeclareInjector")+"("+inj.String()+")",
		fmt.Sprintf("%s<%s>", cc.opts.core("ɵɵInjectorDeclaration"), cc.c.Name))
	return nil
}

// typeReference returns the type of an NgModule reference, unwrapping
// ModuleWithProviders calls such as `RouterModule.forRoot(routes)`.
func (cc *classCompiler) typeReference(e jsscan.Range) string {
	ast := cc.ast
	if ast.Is(e.Last, ")") {
		open := -1
		for j := e.First; j < e.Last; j++ {
			if ast.Is(j, "(") && ast.Match(j) == e.Last {
				open = j
				break
			}
		}
		if open-2 > e.First && ast.IsIdent(open-1) && ast.Is(open-2, ".") {
			return ast.Text(e.First, open-3)
		}
	}
	return ast.Text(e.First, e.Last)
}

// isReference reports whether s is an identifier or a namespaced
// identifier.
func (cc *classCompiler) isReference(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return false
	}
	for _, p := range parts {
		if !identRe.MatchString(p) {
			return false
		}
	}
	return true
}

// typeofList returns a tuple type of references in scope of the
// typings file, or never.
func (cc *classCompiler) typeofList(refs []string) string {
	var elems []string
	for _, ref := range refs {
		if strings.Contains(ref, ".") {
			// namespace imports of bundles are not visible in typings.
			continue
		}
		if cc.opts.DtsInScope != nil && !cc.opts.DtsInScope(ref) {
			continue
		}
		elems = append(elems, "typeof "+ref)
	}
	if len(elems) == 0 {
		return "never"
	}
	return arrayLiteral(elems)
}
