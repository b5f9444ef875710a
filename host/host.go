// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package host provides reflection over classes in bundles of
// ESM2015, ESM5, UMD and CommonJS formats.
//
// Decorator metadata is read from the static properties emitted by the
// Angular compiler for libraries:
//
//	Foo.decorators = [{ type: Component, args: [{ selector: 'foo' }] }];
//	Foo.ctorParameters = () => [{ type: Bar }];
//	Foo.propDecorators = { input: [{ type: Input }] };
package host

import (
	"fmt"

	"github.com/angular-go/ngcc/bundle"
	"github.com/angular-go/ngcc/entrypoint"
	"github.com/angular-go/ngcc/jsscan"
)

// CoreModule is the module that provides Angular decorators.
const CoreModule = "@angular/core"

// Import is a symbol imported from a module.
type Import struct {
	Module string
	// Name is the imported name. Empty for namespace imports.
	Name string
}

// Decorator is a decorator of a class, a constructor parameter or a
// property.
type Decorator struct {
	// Name is the decorator name, e.g. "Component".
	Name string
	// Import is where the decorator comes from. nil if declared locally.
	Import *Import
	// Type is the decorator type expression.
	Type jsscan.Range
	// Args are argument expressions.
	Args []jsscan.Range
	// Elem is the decorator element in the decorators array.
	Elem jsscan.Range
	// Index is the index of Elem in the decorators array.
	Index int
}

// IsAngular reports whether the decorator is an Angular core
// decorator. isCore is true when compiling @angular/core itself, where
// decorators are local.
func (d *Decorator) IsAngular(isCore bool) bool {
	if d.Import == nil {
		return isCore
	}
	return d.Import.Module == CoreModule
}

// DecoratorsNode is the `X.decorators = [...]` statement.
type DecoratorsNode struct {
	Stmt jsscan.Range
	// Array is '[' of the decorators array.
	Array int
	Elems []jsscan.Range
}

// CtorParam is a constructor parameter from `ctorParameters`.
type CtorParam struct {
	// Type is the parameter type expression. Empty if unknown.
	Type       jsscan.Range
	Decorators []*Decorator
}

// Member is a decorated member from `propDecorators`.
type Member struct {
	Name       string
	Decorators []*Decorator
}

// Class is a class declaration.
type Class struct {
	Name string
	File *bundle.SourceFile
	// Decl is the statement declaring the class.
	Decl jsscan.Range
	// Inner is the `function X() {}` statement in the IIFE for ES5
	// classes, or Decl.
	Inner jsscan.Range
	// InnerName is the class name inside the IIFE.
	InnerName string
	// IIFE is the body of the IIFE wrapping an ES5 class.
	// Empty for ES2015 classes and ES5 classes without IIFE.
	IIFE jsscan.Range
	// Return is the first token of `return X;` in the IIFE, or -1.
	Return int
	// Body is '{' of the class body (ES2015) or constructor function body.
	Body int
	// Extends is true if the class has a base class.
	Extends bool

	Decorators     []*Decorator
	DecoratorsNode *DecoratorsNode
	// CtorParams is nil if there is no `ctorParameters`.
	CtorParams     []*CtorParam
	HasCtorParams  bool
	PropDecorators []Member
	// StaticMembers are names of static properties.
	StaticMembers map[string]bool

	// fn is true for a top-level ES5 constructor function.
	fn bool
}

// IsFunction reports whether the class is an ES5 constructor function
// declared outside an IIFE.
func (c *Class) IsFunction() bool {
	return c.fn
}

// InIIFE reports whether the class is wrapped in an IIFE.
func (c *Class) InIIFE() bool {
	return !c.IIFE.Empty()
}

// SwitchMarker is a `__PRE_R3__` identifier in a switchable variable
// declaration, e.g. `var x = x__PRE_R3__;`.
type SwitchMarker struct {
	// Token is the index of the identifier token.
	Token int
}

// SwitchMarkerSuffix marks the pre-Ivy side of a switchable declaration.
const SwitchMarkerSuffix = "__PRE_R3__"

// SwitchMarkerPostSuffix is the Ivy side of a switchable declaration.
const SwitchMarkerPostSuffix = "__POST_R3__"

// ReflectionHost reflects classes, imports and exports of files.
type ReflectionHost interface {
	// Format returns the format of files handled by the host.
	Format() entrypoint.Format
	// Classes returns classes declared in f in source order.
	Classes(f *bundle.SourceFile) ([]*Class, error)
	// Imports returns imported symbols keyed by local name.
	Imports(f *bundle.SourceFile) map[string]Import
	// Exports returns names exported from f, and relative modules
	// re-exported by `export * from`.
	Exports(f *bundle.SourceFile) (names []string, reexports []string)
	// SwitchMarkers returns switchable declaration markers in f.
	SwitchMarkers(f *bundle.SourceFile) []SwitchMarker
	// Scope returns statements of the scope classes are declared in:
	// the file for ESM and CommonJS, the factory body for UMD.
	Scope(f *bundle.SourceFile) (jsscan.Range, error)
	// UMD returns the UMD wrapper of f. Only UMD host returns true.
	UMD(f *bundle.SourceFile) (*jsscan.UMDWrapper, bool)
}

// New returns a reflection host for format.
func New(format entrypoint.Format) (ReflectionHost, error) {
	switch format {
	case entrypoint.FormatESM2015, entrypoint.FormatESM5, entrypoint.FormatUMD, entrypoint.FormatCommonJS:
		return &host{format: format}, nil
	}
	return nil, fmt.Errorf("no reflection host for format %q", format)
}

type host struct {
	format entrypoint.Format
}

func (h *host) Format() entrypoint.Format {
	return h.format
}

func (h *host) UMD(f *bundle.SourceFile) (*jsscan.UMDWrapper, bool) {
	if h.format != entrypoint.FormatUMD {
		return nil, false
	}
	return f.AST.UMD()
}

func (h *host) Scope(f *bundle.SourceFile) (jsscan.Range, error) {
	ast := f.AST
	if h.format != entrypoint.FormatUMD {
		return jsscan.Range{First: 0, Last: len(ast.Tokens) - 1}, nil
	}
	w, ok := ast.UMD()
	if !ok {
		// relative files of UMD bundle may have no wrapper.
		return jsscan.Range{First: 0, Last: len(ast.Tokens) - 1}, nil
	}
	return ast.Body(w.FactoryBody), nil
}

func (h *host) isES5() bool {
	return h.format != entrypoint.FormatESM2015
}
