// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package osfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ofs := New()

	fname := filepath.Join(dir, "a", "b", "c.js")
	err := ofs.WriteFile(fname, []byte("export {};"), 0644)
	if err != nil {
		t.Fatalf("WriteFile(%q)=%v; want nil err", fname, err)
	}
	if !ofs.IsFile(ctx, fname) {
		t.Errorf("IsFile(%q)=false; want true", fname)
	}
	if !ofs.IsDir(ctx, filepath.Dir(fname)) {
		t.Errorf("IsDir(%q)=false; want true", filepath.Dir(fname))
	}
	buf, err := ofs.ReadFile(fname)
	if err != nil || string(buf) != "export {};" {
		t.Errorf("ReadFile(%q)=%q, %v; want %q, nil", fname, buf, err, "export {};")
	}
	ents, err := os.ReadDir(filepath.Dir(fname))
	if err != nil {
		t.Fatal(err)
	}
	if len(ents) != 1 {
		t.Errorf("dir has %d entries; want 1 (no leftover temp file)", len(ents))
	}
}

func TestCopyFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ofs := New()
	src := filepath.Join(dir, "src.js")
	err := os.WriteFile(src, []byte("var a = 1;"), 0644)
	if err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "__ivy_ngcc__", "src.js")
	err = ofs.CopyFile(src, dst)
	if err != nil {
		t.Fatalf("CopyFile=%v; want nil", err)
	}
	if !ofs.Exists(ctx, dst) {
		t.Errorf("Exists(%q)=false; want true", dst)
	}
	if ofs.Exists(ctx, filepath.Join(dir, "missing")) {
		t.Errorf("Exists(missing)=true; want false")
	}
}
