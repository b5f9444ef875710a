// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package compile compiles Angular decorator metadata of a class into
// Ivy partial declarations and their typings.
package compile

import (
	"fmt"
	"strings"

	"github.com/angular-go/ngcc/host"
	"github.com/angular-go/ngcc/jsscan"
)

// MinVersion is the minimum linker version of emitted declarations.
const MinVersion = "12.0.0"

// CoreAlias is the namespace alias of @angular/core in rendered files.
const CoreAlias = "ɵngcc0"

// Options are compilation options.
type Options struct {
	// Version is written as `version` of declarations.
	Version string
	// IsCore is true when compiling @angular/core itself.
	IsCore bool
	// ReadResource reads an external template or stylesheet by url
	// relative to the source file.
	ReadResource func(url string) (string, error)
	// DtsInScope reports whether name can be referenced from the
	// typings file of the class. nil allows all names.
	DtsInScope func(name string) bool
}

// core returns reference to core symbol sym.
func (o Options) core(sym string) string {
	if o.IsCore {
		return sym
	}
	return CoreAlias + "." + sym
}

func (o Options) header(m *DefinitionMap, typ string) {
	m.Set("minVersion", quote(MinVersion))
	m.Set("version", quote(o.Version))
	if !o.IsCore {
		m.Set("ngImport", CoreAlias)
	}
	m.Set("type", typ)
}

// Definition is a static field added to a compiled class.
type Definition struct {
	// Name is the field name, e.g. "ɵfac".
	Name string
	// Initializer is the JavaScript expression of the field.
	Initializer string
	// Type is the TypeScript type of the field in typings.
	Type string
}

// Result is a compiled class.
type Result struct {
	Class *host.Class
	// Decorators are the compiled Angular decorators to remove.
	Decorators  []*host.Decorator
	Definitions []Definition
	// Declarations are names of classes declared by an NgModule.
	Declarations []string
}

// Kind of Angular decorators.
const (
	Component  = "Component"
	Directive  = "Directive"
	Pipe       = "Pipe"
	Injectable = "Injectable"
	NgModule   = "NgModule"
)

var primaryKinds = map[string]bool{
	Component: true,
	Directive: true,
	Pipe:      true,
	NgModule:  true,
}

// Error is a compilation error of a class.
type Error struct {
	Class string
	File  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to compile %s in %s: %v", e.Class, e.File, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsCompiled reports whether c already has Ivy definitions.
func IsCompiled(c *host.Class) bool {
	for name := range c.StaticMembers {
		switch name {
		case "ɵfac", "ɵprov", "ɵdir", "ɵcmp", "ɵpipe", "ɵmod", "ɵinj":
			return true
		}
	}
	return false
}

// Compile compiles Angular decorators of c.
// It returns nil if c has no Angular decorator to compile.
func Compile(c *host.Class, opts Options) (*Result, error) {
	var primary, injectable *host.Decorator
	res := &Result{Class: c}
	for _, d := range c.Decorators {
		if !d.IsAngular(opts.IsCore) {
			continue
		}
		switch {
		case primaryKinds[d.Name]:
			if primary != nil {
				return nil, &Error{Class: c.Name, File: c.File.Path, Err: fmt.Errorf("multiple Angular decorators @%s and @%s", primary.Name, d.Name)}
			}
			primary = d
		case d.Name == Injectable:
			injectable = d
		default:
			continue
		}
		res.Decorators = append(res.Decorators, d)
	}
	if primary == nil && injectable == nil {
		return nil, nil
	}
	cc := &classCompiler{
		ast:  c.File.AST,
		c:    c,
		opts: opts,
		res:  res,
	}
	if err := cc.compile(primary, injectable); err != nil {
		return nil, &Error{Class: c.Name, File: c.File.Path, Err: err}
	}
	return res, nil
}

type classCompiler struct {
	ast  *jsscan.File
	c    *host.Class
	opts Options
	res  *Result
}

func (cc *classCompiler) add(name, init, typ string) {
	cc.res.Definitions = append(cc.res.Definitions, Definition{Name: name, Initializer: init, Type: typ})
}

// typeRef is the class reference in the scope definitions are added to.
func (cc *classCompiler) typeRef() string {
	return cc.c.InnerName
}

func (cc *classCompiler) compile(primary, injectable *host.Decorator) error {
	kind := Injectable
	if primary != nil {
		kind = primary.Name
	}
	if err := cc.factory(kind); err != nil {
		return err
	}
	if injectable != nil {
		if err := cc.injectable(injectable); err != nil {
			return err
		}
	}
	if primary == nil {
		return nil
	}
	meta, err := cc.metadata(primary)
	if err != nil {
		return err
	}
	switch primary.Name {
	case Component:
		return cc.directive(meta, true)
	case Directive:
		return cc.directive(meta, false)
	case Pipe:
		return cc.pipe(meta)
	case NgModule:
		return cc.ngModule(meta)
	}
	return nil
}

// metadata is the object literal argument of a decorator.
type metadata struct {
	ast   *jsscan.File
	props map[string]jsscan.Range
	name  string
}

func (cc *classCompiler) metadata(d *host.Decorator) (*metadata, error) {
	m := &metadata{ast: cc.ast, props: make(map[string]jsscan.Range), name: d.Name}
	if len(d.Args) == 0 {
		return m, nil
	}
	if len(d.Args) > 1 {
		return nil, fmt.Errorf("@%s must have exactly one argument", d.Name)
	}
	arg := d.Args[0]
	if !cc.ast.Is(arg.First, "{") || cc.ast.Match(arg.First) != arg.Last {
		return nil, fmt.Errorf("@%s argument must be an object literal", d.Name)
	}
	props, err := cc.ast.Properties(arg.First)
	if err != nil {
		return nil, err
	}
	for _, p := range props {
		if p.Key == "" {
			return nil, fmt.Errorf("@%s argument has a computed or spread property", d.Name)
		}
		m.props[p.Key] = p.Value
	}
	return m, nil
}

// raw returns the expression text of property key, or "".
func (m *metadata) raw(key string) string {
	r, ok := m.props[key]
	if !ok || r.Empty() {
		return ""
	}
	return m.ast.Text(r.First, r.Last)
}

// str returns the value of string literal property key.
func (m *metadata) str(key string) (string, bool, error) {
	r, ok := m.props[key]
	if !ok {
		return "", false, nil
	}
	if r.First != r.Last || m.ast.Tokens[r.First].Kind != jsscan.String {
		return "", false, fmt.Errorf("@%s.%s must be a string literal", m.name, key)
	}
	return jsscan.StringValue(m.ast.Tokens[r.First]), true, nil
}

// array returns elements of array literal property key. ok is false
// if the property is missing or not an array literal.
func (m *metadata) array(key string) ([]jsscan.Range, bool) {
	r, ok := m.props[key]
	if !ok || !m.ast.Is(r.First, "[") || m.ast.Match(r.First) != r.Last {
		return nil, false
	}
	all, err := m.ast.Elements(r.First)
	if err != nil {
		return nil, false
	}
	var elems []jsscan.Range
	for _, e := range all {
		if !e.Empty() {
			elems = append(elems, e)
		}
	}
	return elems, true
}

// stringArray returns values of an array of string literals.
func (m *metadata) stringArray(key string) ([]string, error) {
	elems, ok := m.array(key)
	if !ok {
		if _, exists := m.props[key]; exists {
			return nil, fmt.Errorf("@%s.%s must be an array literal", m.name, key)
		}
		return nil, nil
	}
	var ret []string
	for _, e := range elems {
		if e.First != e.Last || m.ast.Tokens[e.First].Kind != jsscan.String {
			return nil, fmt.Errorf("@%s.%s must contain string literals", m.name, key)
		}
		ret = append(ret, jsscan.StringValue(m.ast.Tokens[e.First]))
	}
	return ret, nil
}

// stringArg returns the string literal value of argument i of d.
func stringArg(ast *jsscan.File, d *host.Decorator, i int) (string, bool) {
	if i >= len(d.Args) {
		return "", false
	}
	a := d.Args[i]
	if a.First != a.Last || ast.Tokens[a.First].Kind != jsscan.String {
		return "", false
	}
	return jsscan.StringValue(ast.Tokens[a.First]), true
}

func splitTrim(s, sep string) []string {
	var ret []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			ret = append(ret, p)
		}
	}
	return ret
}
