// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package host

import (
	"github.com/angular-go/ngcc/bundle"
	"github.com/angular-go/ngcc/jsscan"
)

// DtsClass is a class declaration in a typings file.
type DtsClass struct {
	Name string
	File *bundle.SourceFile
	// Body is '{' of the class body.
	Body int
	// StaticMembers are names of static members.
	StaticMembers map[string]bool
}

// DtsClasses returns class declarations of a typings file.
func DtsClasses(f *bundle.SourceFile) []*DtsClass {
	ast := f.AST
	var classes []*DtsClass
	for _, s := range ast.TopLevelStatements() {
		j := s.First
		for ast.Is(j, "export") || ast.Is(j, "declare") || ast.Is(j, "abstract") || ast.Is(j, "default") {
			j++
		}
		if !ast.Is(j, "class") || !ast.IsIdent(j+1) {
			continue
		}
		body := ast.TopLevel(jsscan.Range{First: j + 2, Last: s.Last}, "{")
		if body < 0 {
			continue
		}
		c := &DtsClass{
			Name:          ast.Tokens[j+1].Text,
			File:          f,
			Body:          body,
			StaticMembers: make(map[string]bool),
		}
		r := ast.Body(body)
		for k := r.First; k <= r.Last; k++ {
			if ast.Is(k, "(") || ast.Is(k, "[") || ast.Is(k, "{") {
				if m := ast.Match(k); m > k {
					k = m
				}
				continue
			}
			if !ast.Is(k, "static") {
				continue
			}
			n := k + 1
			if ast.Is(n, "readonly") && ast.IsIdent(n+1) {
				n++
			}
			if ast.IsIdent(n) {
				c.StaticMembers[ast.Tokens[n].Text] = true
			}
		}
		classes = append(classes, c)
	}
	return classes
}
