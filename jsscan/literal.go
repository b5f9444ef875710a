// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package jsscan

import (
	"fmt"
)

// Range is an inclusive range of token indices.
// Empty range has Last < First.
type Range struct {
	First int
	Last  int
}

// Empty reports whether r has no tokens.
func (r Range) Empty() bool { return r.Last < r.First }

// Property is a property of an object literal.
type Property struct {
	// Key is the property name. Empty for computed keys and spreads.
	Key string
	// Elem is the whole property, including key.
	Elem Range
	// Value is the property value. For shorthand properties, it is the key.
	Value Range
}

// Elements returns comma separated elements enclosed by the bracket at
// open. Trailing comma is ignored.
func (f *File) Elements(open int) ([]Range, error) {
	closeIdx := f.Match(open)
	if closeIdx < 0 {
		return nil, fmt.Errorf("%s: unmatched %q at %d", f.Name, f.Tokens[open].Text, f.Tokens[open].Start)
	}
	var elems []Range
	first := open + 1
	for j := open + 1; j < closeIdx; j++ {
		if f.Tokens[j].Kind == Punct {
			switch f.Tokens[j].Text {
			case "(", "[", "{":
				m := f.Match(j)
				if m < 0 || m > closeIdx {
					return nil, fmt.Errorf("%s: unmatched %q at %d", f.Name, f.Tokens[j].Text, f.Tokens[j].Start)
				}
				j = m
				continue
			case ",":
				elems = append(elems, Range{First: first, Last: j - 1})
				first = j + 1
				continue
			}
		}
	}
	if first < closeIdx {
		elems = append(elems, Range{First: first, Last: closeIdx - 1})
	}
	return elems, nil
}

// Properties returns properties of the object literal at open.
func (f *File) Properties(open int) ([]Property, error) {
	if !f.Is(open, "{") {
		return nil, fmt.Errorf("%s: not an object literal at %d", f.Name, f.Tokens[open].Start)
	}
	elems, err := f.Elements(open)
	if err != nil {
		return nil, err
	}
	props := make([]Property, 0, len(elems))
	for _, e := range elems {
		p := Property{Elem: e, Value: e}
		colon := f.topLevel(e, ":")
		switch {
		case f.Is(e.First, "..."):
		case colon > 0:
			if colon == e.First+1 {
				p.Key = propertyKey(f.Tokens[e.First])
			}
			p.Value = Range{First: colon + 1, Last: e.Last}
		default:
			// shorthand or method.
			p.Key = propertyKey(f.Tokens[e.First])
		}
		props = append(props, p)
	}
	return props, nil
}

// Property returns the value range of the property named key in the
// object literal at open.
func (f *File) Property(open int, key string) (Range, bool) {
	props, err := f.Properties(open)
	if err != nil {
		return Range{}, false
	}
	for _, p := range props {
		if p.Key == key {
			return p.Value, true
		}
	}
	return Range{}, false
}

func propertyKey(tok Token) string {
	switch tok.Kind {
	case Ident, Number:
		return tok.Text
	case String:
		return StringValue(tok)
	}
	return ""
}

// topLevel returns index of the first token with text s in r, not
// nested in brackets, or -1.
func (f *File) topLevel(r Range, s string) int {
	for j := r.First; j <= r.Last; j++ {
		tok := f.Tokens[j]
		if tok.Kind != Punct {
			continue
		}
		if tok.Text == s {
			return j
		}
		switch tok.Text {
		case "(", "[", "{":
			if m := f.Match(j); m > j {
				j = m
			}
		}
	}
	return -1
}

// TopLevel returns index of the first token with text s in r, not
// nested in brackets, or -1.
func (f *File) TopLevel(r Range, s string) int {
	return f.topLevel(r, s)
}

func endsExpr(tok Token) bool {
	switch tok.Kind {
	case Ident, String, Number, Template, Regex:
		return true
	}
	switch tok.Text {
	case ")", "]", "}", "++", "--":
		return true
	}
	return false
}

func continuesExpr(tok Token) bool {
	if tok.Kind != Punct {
		return false
	}
	switch tok.Text {
	case "{", "++", "--", "!", "~":
		return false
	}
	return true
}

// StatementEnd returns index of the last token of the statement starting
// at token i. The terminating ';' is included if present.
func (f *File) StatementEnd(i int) int {
	n := len(f.Tokens)
	for j := i; j < n; j++ {
		tok := f.Tokens[j]
		if tok.Kind == Punct {
			switch tok.Text {
			case ";":
				return j
			case "(", "[", "{":
				m := f.Match(j)
				if m < 0 {
					return n - 1
				}
				j = m
				tok = f.Tokens[j]
			case ")", "]", "}":
				// end of enclosing block.
				return j - 1
			}
		}
		if j+1 < n && f.Tokens[j+1].NewlineBefore && endsExpr(tok) && !continuesExpr(f.Tokens[j+1]) {
			if !f.Is(j+1, "else") && !f.Is(j+1, "catch") && !f.Is(j+1, "finally") {
				return j
			}
		}
	}
	return n - 1
}

// Statements splits tokens in r into statements.
func (f *File) Statements(r Range) []Range {
	var stmts []Range
	for j := r.First; j <= r.Last; {
		if f.Is(j, ";") {
			j++
			continue
		}
		end := f.StatementEnd(j)
		if end > r.Last {
			end = r.Last
		}
		if end < j {
			break
		}
		stmts = append(stmts, Range{First: j, Last: end})
		j = end + 1
	}
	return stmts
}

// TopLevelStatements returns the statements of the whole file.
func (f *File) TopLevelStatements() []Range {
	return f.Statements(Range{First: 0, Last: len(f.Tokens) - 1})
}

// Body returns the token range inside the block at open.
func (f *File) Body(open int) Range {
	m := f.Match(open)
	if m < 0 {
		return Range{First: open + 1, Last: open}
	}
	return Range{First: open + 1, Last: m - 1}
}

// Find returns index of the first token at or after i in r with text s,
// or -1. Nested brackets are not skipped.
func (f *File) Find(r Range, s string) int {
	for j := r.First; j <= r.Last && j < len(f.Tokens); j++ {
		if f.Is(j, s) {
			return j
		}
	}
	return -1
}
