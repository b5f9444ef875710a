// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package digraph

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func setupFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for fname, content := range files {
		fname := filepath.Join(dir, filepath.FromSlash(fname))
		err := os.MkdirAll(filepath.Dir(fname), 0755)
		if err != nil {
			t.Fatal(err)
		}
		err = os.WriteFile(fname, []byte(content), 0644)
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestDigraph(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	setupFiles(t, dir, map[string]string{
		"node_modules/a/package.json":    `{"name":"a","typings":"./a.d.ts","esm2015":"./a.js"}`,
		"node_modules/a/a.d.ts":          "export declare const a: number;\n",
		"node_modules/a/a.metadata.json": "{}",
		"node_modules/a/a.js":            "import { b } from 'b';\nimport { c } from 'c';\nexport const a = b + c;\n",
		"node_modules/b/package.json":    `{"name":"b","typings":"./b.d.ts","esm2015":"./b.js"}`,
		"node_modules/b/b.d.ts":          "export declare const b: number;\n",
		"node_modules/b/b.metadata.json": "{}",
		"node_modules/b/b.js":            "import { c } from 'c';\nexport const b = c;\n",
		"node_modules/c/package.json":    `{"name":"c","typings":"./c.d.ts","esm2015":"./c.js"}`,
		"node_modules/c/c.d.ts":          "export declare const c: number;\n",
		"node_modules/c/c.metadata.json": "{}",
		"node_modules/c/c.js":            "export const c = 1;\n",
	})
	for _, tc := range []struct {
		name string
		args []string
		want string
	}{
		{
			name: "all",
			want: "c\nb c\na b c\n",
		},
		{
			name: "target",
			args: []string{"b"},
			want: "c\nb c\n",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := &run{}
			c.init()
			c.basePath = filepath.Join(dir, "node_modules")
			var buf bytes.Buffer
			err := c.run(ctx, &buf, tc.args)
			if err != nil {
				t.Fatalf("run(%q)=%v; want nil err", tc.args, err)
			}
			if diff := cmp.Diff(tc.want, buf.String()); diff != "" {
				t.Errorf("run(%q) diff -want +got:\n%s", tc.args, diff)
			}
		})
	}
}
