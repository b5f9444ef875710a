// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package compile

import (
	"fmt"
)

// factory adds ɵfac.
func (cc *classCompiler) factory(kind string) error {
	deps, err := cc.deps()
	if err != nil {
		return err
	}
	m := &DefinitionMap{}
	cc.opts.header(m, cc.typeRef())
	m.Set("deps", deps)
	m.Set("target", cc.opts.core("ɵɵFactoryTarget")+"."+kind)
	cc.add("ɵfac",
		cc.opts.core("ɵɵngDeclareFactory")+"("+m.String()+")",
		fmt.Sprintf("%s<%s, never>", cc.opts.core("ɵɵFactoryDeclaration"), cc.c.Name))
	return nil
}

// deps returns constructor dependencies. A derived class without its
// own constructor parameters inherits the factory of its base class.
func (cc *classCompiler) deps() (string, error) {
	c := cc.c
	if !c.HasCtorParams {
		if c.Extends {
			return "null", nil
		}
		return "[]", nil
	}
	var deps []string
	for i, p := range c.CtorParams {
		m := &DefinitionMap{}
		token := ""
		if !p.Type.Empty() {
			token = cc.ast.Text(p.Type.First, p.Type.Last)
		}
		var attribute, host, optional, self, skipSelf bool
		for _, d := range p.Decorators {
			if !d.IsAngular(cc.opts.IsCore) {
				continue
			}
			switch d.Name {
			case "Inject":
				if len(d.Args) != 1 {
					return "", fmt.Errorf("@Inject of parameter %d must have one argument", i)
				}
				token = cc.ast.Text(d.Args[0].First, d.Args[0].Last)
			case "Attribute":
				if len(d.Args) != 1 {
					return "", fmt.Errorf("@Attribute of parameter %d must have one argument", i)
				}
				token = cc.ast.Text(d.Args[0].First, d.Args[0].Last)
				attribute = true
			case "Host":
				host = true
			case "Optional":
				optional = true
			case "Self":
				self = true
			case "SkipSelf":
				skipSelf = true
			}
		}
		if token == "" {
			// the linker reports an invalid factory.
			return quote("invalid"), nil
		}
		m.Set("token", token)
		if attribute {
			m.Set("attribute", "true")
		}
		if host {
			m.Set("host", "true")
		}
		if optional {
			m.Set("optional", "true")
		}
		if self {
			m.Set("self", "true")
		}
		if skipSelf {
			m.Set("skipSelf", "true")
		}
		deps = append(deps, m.String())
	}
	return arrayLiteral(deps), nil
}
