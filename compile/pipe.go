// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package compile

import (
	"fmt"
)

func (cc *classCompiler) pipe(meta *metadata) error {
	name, ok, err := meta.str("name")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("@Pipe must have a name")
	}
	m := &DefinitionMap{}
	cc.opts.header(m, cc.typeRef())
	m.Set("name", quote(name))
	if pure := meta.raw("pure"); pure == "false" {
		m.Set("pure", pure)
	}
	cc.add("ɵpipe",
		cc.opts.core("ɵɵngDeclarePipe")+"("+m.String()+")",
		fmt.Sprintf("%s<%s, %s>", cc.opts.core("ɵɵPipeDeclaration"), cc.c.Name, quote(name)))
	return nil
}
