// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package jsscan

// UMDWrapper is a parsed UMD wrapper statement such as
//
//	(function (global, factory) {
//	  typeof exports === 'object' && typeof module !== 'undefined' ? factory(exports, require('a')) :
//	  typeof define === 'function' && define.amd ? define('x', ['exports', 'a'], factory) :
//	  (global = global || self, factory(global.x = {}, global.a));
//	}(this, (function (exports, a) { 'use strict';
//	  ...
//	})));
//
// Fields are token indices.
type UMDWrapper struct {
	Statement Range

	// WrapperBody is the body of the wrapper function.
	WrapperBody Range
	// FactoryParamName is the name of wrapper's factory parameter.
	FactoryParamName string

	// CommonJSCall is '(' of the factory call with require args, or -1.
	CommonJSCall int
	// AMDCall is '(' of define call, or -1.
	AMDCall int
	// GlobalCall is '(' of the factory call with global args, or -1.
	GlobalCall int

	// FactoryFunction is the `function` token of the factory.
	FactoryFunction int
	// FactoryParams is '(' of the factory parameters.
	FactoryParams int
	// FactoryBody is '{' of the factory body.
	FactoryBody int
}

// functionAt returns indices of '(' of parameters and '{' of body
// for `function` token at i.
func (f *File) functionAt(i int) (params, body int, ok bool) {
	if !f.Is(i, "function") {
		return 0, 0, false
	}
	params = i + 1
	if f.IsIdent(params) {
		// named function expression.
		params++
	}
	if !f.Is(params, "(") {
		return 0, 0, false
	}
	closeParams := f.Match(params)
	if closeParams < 0 || !f.Is(closeParams+1, "{") {
		return 0, 0, false
	}
	return params, closeParams + 1, true
}

// Params returns parameter names of the parameter list at open.
func (f *File) Params(open int) []string {
	elems, err := f.Elements(open)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range elems {
		names = append(names, f.Tokens[e.First].Text)
	}
	return names
}

// UMD parses a UMD wrapper of the first statement of the file.
// It returns nil, false if the file is not a UMD module.
func (f *File) UMD() (*UMDWrapper, bool) {
	stmts := f.TopLevelStatements()
	// skip directive prologue.
	for len(stmts) > 0 && f.Tokens[stmts[0].First].Kind == String && stmts[0].Last-stmts[0].First <= 1 {
		stmts = stmts[1:]
	}
	if len(stmts) == 0 {
		return nil, false
	}
	stmt := stmts[0]
	fn := -1
	for j := stmt.First; j <= stmt.Last && j < stmt.First+3; j++ {
		if f.Is(j, "function") {
			fn = j
			break
		}
		if !f.Is(j, "(") && !f.Is(j, "!") {
			return nil, false
		}
	}
	if fn < 0 {
		return nil, false
	}
	params, body, ok := f.functionAt(fn)
	if !ok {
		return nil, false
	}
	paramNames := f.Params(params)
	if len(paramNames) != 2 {
		return nil, false
	}
	w := &UMDWrapper{
		Statement:        stmt,
		WrapperBody:      f.Body(body),
		FactoryParamName: paramNames[1],
		CommonJSCall:     -1,
		AMDCall:          -1,
		GlobalCall:       -1,
	}
	// wrapper call arguments follow the wrapper function,
	// possibly after ')'.
	call := f.Match(body) + 1
	if f.Is(call, ")") {
		call++
	}
	if !f.Is(call, "(") {
		return nil, false
	}
	args, err := f.Elements(call)
	if err != nil || len(args) != 2 {
		return nil, false
	}
	factoryFn := -1
	for j := args[1].First; j <= args[1].Last; j++ {
		if f.Is(j, "function") {
			factoryFn = j
			break
		}
		if !f.Is(j, "(") {
			break
		}
	}
	w.FactoryFunction = factoryFn
	w.FactoryParams, w.FactoryBody, ok = f.functionAt(factoryFn)
	if !ok {
		return nil, false
	}

	var factoryCalls []int
	for j := w.WrapperBody.First; j <= w.WrapperBody.Last; j++ {
		switch {
		case f.Is(j, "define") && f.Is(j+1, "(") && !f.Is(j-1, "."):
			w.AMDCall = j + 1
		case f.Is(j, w.FactoryParamName) && f.Is(j+1, "(") && !f.Is(j-1, "."):
			factoryCalls = append(factoryCalls, j+1)
		}
	}
	for _, c := range factoryCalls {
		switch {
		case f.hasRequire(c):
			if w.CommonJSCall < 0 {
				w.CommonJSCall = c
			}
		case w.AMDCall >= 0 && c < w.AMDCall:
			if w.CommonJSCall < 0 {
				w.CommonJSCall = c
			}
		case w.AMDCall < 0 && w.CommonJSCall < 0:
			w.CommonJSCall = c
		default:
			w.GlobalCall = c
		}
	}
	return w, true
}

func (f *File) hasRequire(open int) bool {
	m := f.Match(open)
	for j := open + 1; j < m; j++ {
		if f.Is(j, "require") && f.Is(j+1, "(") {
			return true
		}
	}
	return false
}

// RequireCall returns module name of `require('name')` at r, if r is
// exactly a require call with a string literal.
func (f *File) RequireCall(r Range) (string, bool) {
	if r.Last-r.First != 3 || !f.Is(r.First, "require") || !f.Is(r.First+1, "(") || !f.Is(r.Last, ")") {
		return "", false
	}
	tok := f.Tokens[r.First+2]
	if tok.Kind != String {
		return "", false
	}
	return StringValue(tok), true
}

// Requires returns module names of require args of the CommonJS factory
// call in order.
func (w *UMDWrapper) Requires(f *File) []string {
	if w.CommonJSCall < 0 {
		return nil
	}
	args, err := f.Elements(w.CommonJSCall)
	if err != nil {
		return nil
	}
	var names []string
	for _, a := range args {
		if name, ok := f.RequireCall(a); ok {
			names = append(names, name)
		}
	}
	return names
}
