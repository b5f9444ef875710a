// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package compile

import (
	"fmt"

	"github.com/angular-go/ngcc/host"
)

func (cc *classCompiler) injectable(d *host.Decorator) error {
	meta, err := cc.metadata(d)
	if err != nil {
		return err
	}
	m := &DefinitionMap{}
	cc.opts.header(m, cc.typeRef())
	if providedIn := meta.raw("providedIn"); providedIn != "null" {
		m.Set("providedIn", providedIn)
	}
	for _, key := range []string{"useClass", "useExisting", "useValue", "useFactory", "deps"} {
		m.Set(key, meta.raw(key))
	}
	cc.add("ɵprov",
		cc.opts.core("ɵɵngDeclareInjectable")+"("+m.String()+")",
		fmt.Sprintf("%s<%s>", cc.opts.core("ɵɵInjectableDeclaration"), cc.c.Name))
	return nil
}
