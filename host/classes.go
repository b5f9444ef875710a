// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package host

import (
	"fmt"

	"github.com/angular-go/ngcc/bundle"
	"github.com/angular-go/ngcc/jsscan"
)

// Classes returns classes declared in the scope of f.
// ES5 function declarations are reported only when decorated.
func (h *host) Classes(f *bundle.SourceFile) ([]*Class, error) {
	scope, err := h.Scope(f)
	if err != nil {
		return nil, err
	}
	ast := f.AST
	stmts := ast.Statements(scope)
	var classes []*Class
	byName := make(map[string]*Class)
	for _, s := range stmts {
		c := classAt(ast, s)
		if c == nil {
			continue
		}
		c.File = f
		classes = append(classes, c)
		if _, dup := byName[c.Name]; !dup {
			byName[c.Name] = c
		}
	}
	imports := h.Imports(f)
	r := metadataReader{ast: ast, imports: imports}
	for _, s := range stmts {
		name, member, value, ok := staticAssignment(ast, s)
		if !ok {
			continue
		}
		c := byName[name]
		if c == nil {
			continue
		}
		if err := r.read(c, member, s, value); err != nil {
			return nil, err
		}
	}
	for _, c := range classes {
		switch {
		case c.InIIFE():
			for _, s := range ast.Statements(c.IIFE) {
				name, member, value, ok := staticAssignment(ast, s)
				if !ok || (name != c.InnerName && name != c.Name) {
					continue
				}
				if err := r.read(c, member, s, value); err != nil {
					return nil, err
				}
			}
		case c.fn:
			// ES5 constructor function.
		default:
			if err := r.readClassBody(c); err != nil {
				return nil, err
			}
		}
	}
	var ret []*Class
	for _, c := range classes {
		if c.fn && c.DecoratorsNode == nil {
			continue
		}
		ret = append(ret, c)
	}
	return ret, nil
}

// classAt returns a class declared by statement s, or nil.
func classAt(ast *jsscan.File, s jsscan.Range) *Class {
	i := s.First
	if ast.Is(i, "export") {
		i++
	}
	c := &Class{
		Decl:          s,
		Inner:         s,
		IIFE:          jsscan.Range{First: 0, Last: -1},
		Return:        -1,
		StaticMembers: make(map[string]bool),
	}
	switch {
	case ast.Is(i, "class") && ast.IsIdent(i+1):
		c.Name = ast.Tokens[i+1].Text
		c.Body = ast.TopLevel(jsscan.Range{First: i + 2, Last: s.Last}, "{")
		if c.Body < 0 {
			return nil
		}
		c.Extends = ast.Is(i+2, "extends")
	case ast.Is(i, "function") && ast.IsIdent(i+1) && ast.Is(i+2, "("):
		c.Name = ast.Tokens[i+1].Text
		c.Body = ast.Match(i+2) + 1
		if !ast.Is(c.Body, "{") {
			return nil
		}
		c.fn = true
	case (ast.Is(i, "var") || ast.Is(i, "let") || ast.Is(i, "const")) && ast.IsIdent(i+1) && ast.Is(i+2, "="):
		c.Name = ast.Tokens[i+1].Text
		j := i + 3
		// TypeScript aliases self-referencing classes: `var X = X_1 = ...`.
		for ast.IsIdent(j) && ast.Is(j+1, "=") {
			j += 2
		}
		for ast.Is(j, "(") {
			j++
		}
		switch {
		case ast.Is(j, "class"):
			k := j + 1
			if ast.IsIdent(k) && !ast.Is(k, "extends") {
				k++
			}
			c.Extends = ast.Is(k, "extends")
			c.Body = ast.TopLevel(jsscan.Range{First: k, Last: s.Last}, "{")
			if c.Body < 0 {
				return nil
			}
		case ast.Is(j, "function"):
			if !es5Class(ast, c, j) {
				return nil
			}
		default:
			return nil
		}
	default:
		return nil
	}
	if c.InnerName == "" {
		c.InnerName = c.Name
	}
	return c
}

// es5Class fills c from the IIFE whose function token is at fn.
func es5Class(ast *jsscan.File, c *Class, fn int) bool {
	p := fn + 1
	if ast.IsIdent(p) {
		p++
	}
	if !ast.Is(p, "(") {
		return false
	}
	body := ast.Match(p) + 1
	if !ast.Is(body, "{") {
		return false
	}
	end := ast.Match(body)
	if !ast.Is(end+1, "(") && !(ast.Is(end+1, ")") && ast.Is(end+2, "(")) {
		// not invoked.
		return false
	}
	c.IIFE = ast.Body(body)
	for _, s := range ast.Statements(c.IIFE) {
		switch {
		case c.InnerName == "" && ast.Is(s.First, "function") && ast.IsIdent(s.First+1) && ast.Is(s.First+2, "("):
			c.InnerName = ast.Tokens[s.First+1].Text
			c.Inner = s
			c.Body = ast.Match(s.First+2) + 1
		case ast.Is(s.First, "return") && c.InnerName != "" && ast.Is(s.First+1, c.InnerName):
			c.Return = s.First
		}
	}
	if c.InnerName == "" {
		return false
	}
	c.Extends = ast.Find(c.IIFE, "__extends") >= 0
	return true
}

// staticAssignment matches `X.member = value;`.
func staticAssignment(ast *jsscan.File, s jsscan.Range) (name, member string, value jsscan.Range, ok bool) {
	i := s.First
	if !ast.IsIdent(i) || !ast.Is(i+1, ".") || !ast.IsIdent(i+2) || !ast.Is(i+3, "=") {
		return "", "", jsscan.Range{}, false
	}
	last := s.Last
	if ast.Is(last, ";") {
		last--
	}
	return ast.Tokens[i].Text, ast.Tokens[i+2].Text, jsscan.Range{First: i + 4, Last: last}, true
}

type metadataReader struct {
	ast     *jsscan.File
	imports map[string]Import
}

func (r metadataReader) read(c *Class, member string, stmt, value jsscan.Range) error {
	c.StaticMembers[member] = true
	var err error
	switch member {
	case "decorators":
		err = r.readDecorators(c, stmt, value)
	case "ctorParameters":
		err = r.readCtorParameters(c, value)
	case "propDecorators":
		err = r.readPropDecorators(c, value)
	}
	if err != nil {
		return fmt.Errorf("%s: malformed %s of class %s: %w", c.File.Path, member, c.Name, err)
	}
	return nil
}

// readClassBody reads static members declared in an ES2015 class body.
func (r metadataReader) readClassBody(c *Class) error {
	ast := r.ast
	body := ast.Body(c.Body)
	for j := body.First; j <= body.Last; j++ {
		if ast.Is(j, "(") || ast.Is(j, "[") || ast.Is(j, "{") {
			if m := ast.Match(j); m > j {
				j = m
			}
			continue
		}
		if !ast.Is(j, "static") || !ast.IsIdent(j+1) {
			continue
		}
		member := ast.Tokens[j+1].Text
		if !ast.Is(j+2, "=") {
			c.StaticMembers[member] = true
			continue
		}
		end := ast.StatementEnd(j + 3)
		if end > body.Last {
			end = body.Last
		}
		stmt := jsscan.Range{First: j, Last: end}
		value := jsscan.Range{First: j + 3, Last: end}
		if ast.Is(end, ";") {
			value.Last--
		}
		if err := r.read(c, member, stmt, value); err != nil {
			return err
		}
		j = stmt.Last
	}
	return nil
}

func (r metadataReader) readDecorators(c *Class, stmt, value jsscan.Range) error {
	if !r.ast.Is(value.First, "[") {
		return fmt.Errorf("decorators is not an array literal")
	}
	decs, elems, err := r.decoratorArray(value.First)
	if err != nil {
		return err
	}
	c.Decorators = decs
	c.DecoratorsNode = &DecoratorsNode{
		Stmt:  stmt,
		Array: value.First,
		Elems: elems,
	}
	return nil
}

func (r metadataReader) decoratorArray(open int) ([]*Decorator, []jsscan.Range, error) {
	ast := r.ast
	all, err := ast.Elements(open)
	if err != nil {
		return nil, nil, err
	}
	// array holes are not decorators.
	var elems []jsscan.Range
	for _, e := range all {
		if !e.Empty() {
			elems = append(elems, e)
		}
	}
	var decs []*Decorator
	for i, e := range elems {
		if !ast.Is(e.First, "{") {
			return nil, nil, fmt.Errorf("decorator %q is not an object literal", ast.Text(e.First, e.Last))
		}
		typ, ok := ast.Property(e.First, "type")
		if !ok {
			return nil, nil, fmt.Errorf("decorator %q has no type", ast.Text(e.First, e.Last))
		}
		d := &Decorator{
			Type:  typ,
			Elem:  e,
			Index: i,
		}
		d.Name, d.Import = r.reference(typ)
		if args, ok := ast.Property(e.First, "args"); ok {
			if !ast.Is(args.First, "[") {
				return nil, nil, fmt.Errorf("args of decorator %s is not an array literal", d.Name)
			}
			d.Args, err = ast.Elements(args.First)
			if err != nil {
				return nil, nil, err
			}
		}
		decs = append(decs, d)
	}
	return decs, elems, nil
}

// reference resolves an identifier or `ns.name` expression.
func (r metadataReader) reference(expr jsscan.Range) (string, *Import) {
	ast := r.ast
	switch expr.Last - expr.First {
	case 0:
		name := ast.Tokens[expr.First].Text
		if imp, ok := r.imports[name]; ok {
			if imp.Name == "" {
				return name, nil
			}
			return imp.Name, &Import{Module: imp.Module, Name: imp.Name}
		}
		return name, nil
	case 2:
		if !ast.Is(expr.First+1, ".") {
			break
		}
		ns := ast.Tokens[expr.First].Text
		name := ast.Tokens[expr.Last].Text
		if imp, ok := r.imports[ns]; ok && imp.Name == "" {
			return name, &Import{Module: imp.Module, Name: name}
		}
		return name, nil
	}
	return ast.Text(expr.First, expr.Last), nil
}

func (r metadataReader) readCtorParameters(c *Class, value jsscan.Range) error {
	ast := r.ast
	open := ast.Find(value, "[")
	if open < 0 {
		return fmt.Errorf("no parameter array")
	}
	elems, err := ast.Elements(open)
	if err != nil {
		return err
	}
	c.HasCtorParams = true
	c.CtorParams = make([]*CtorParam, 0, len(elems))
	for _, e := range elems {
		p := &CtorParam{Type: jsscan.Range{First: e.First, Last: e.First - 1}}
		if ast.Is(e.First, "{") {
			if typ, ok := ast.Property(e.First, "type"); ok && !isNullish(ast, typ) {
				p.Type = typ
			}
			if decs, ok := ast.Property(e.First, "decorators"); ok && ast.Is(decs.First, "[") {
				p.Decorators, _, err = r.decoratorArray(decs.First)
				if err != nil {
					return err
				}
			}
		}
		c.CtorParams = append(c.CtorParams, p)
	}
	return nil
}

func isNullish(ast *jsscan.File, r jsscan.Range) bool {
	return r.First == r.Last && (ast.Is(r.First, "undefined") || ast.Is(r.First, "null"))
}

func (r metadataReader) readPropDecorators(c *Class, value jsscan.Range) error {
	ast := r.ast
	if !ast.Is(value.First, "{") {
		return fmt.Errorf("propDecorators is not an object literal")
	}
	props, err := ast.Properties(value.First)
	if err != nil {
		return err
	}
	for _, p := range props {
		if p.Key == "" || !ast.Is(p.Value.First, "[") {
			continue
		}
		decs, _, err := r.decoratorArray(p.Value.First)
		if err != nil {
			return err
		}
		c.PropDecorators = append(c.PropDecorators, Member{Name: p.Key, Decorators: decs})
	}
	return nil
}
