// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deps

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/angular-go/ngcc/entrypoint"
	"github.com/angular-go/ngcc/osfs"
)

func setupFiles(t testing.TB, dir string, files map[string]string) {
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

// fakeHost returns dependency info keyed by entry file.
type fakeHost map[string]*DependencyInfo

func (h fakeHost) FindDependencies(ctx context.Context, entryFile string) (*DependencyInfo, error) {
	info, ok := h[entryFile]
	if !ok {
		return &DependencyInfo{Files: []string{entryFile}}, nil
	}
	return info, nil
}

type testGraph struct {
	t    testing.TB
	dir  string
	host fakeHost
}

func newTestGraph(t testing.TB) *testGraph {
	return &testGraph{t: t, dir: t.TempDir(), host: fakeHost{}}
}

func (g *testGraph) path(name string) string {
	return filepath.Join(g.dir, name)
}

// entryPoint creates an esm2015 entry-point named name that depends on
// deps. Names in missing are reported unresolvable.
func (g *testGraph) entryPoint(name string, angular bool, deps []string, missing ...string) *entrypoint.EntryPoint {
	setupFiles(g.t, g.dir, map[string]string{
		name + "/index.js": "",
	})
	var depPaths []string
	for _, d := range deps {
		depPaths = append(depPaths, g.path(d))
	}
	g.host[filepath.Join(g.path(name), "index.js")] = &DependencyInfo{
		Dependencies: depPaths,
		Missing:      missing,
	}
	return &entrypoint.EntryPoint{
		Name:              name,
		Path:              g.path(name),
		Package:           g.path(name),
		PackageJSON:       entrypoint.PackageJSON{"esm2015": "./index.js", "typings": "./index.d.ts"},
		Typings:           filepath.Join(g.path(name), "index.d.ts"),
		CompiledByAngular: angular,
	}
}

func (g *testGraph) resolver() *Resolver {
	return NewResolver(osfs.New(), map[entrypoint.Format]Host{
		entrypoint.FormatESM2015: g.host,
	}, nil)
}

func names(eps []*entrypoint.EntryPoint) []string {
	var ns []string
	for _, ep := range eps {
		ns = append(ns, ep.Name)
	}
	return ns
}

func TestSortEntryPointsByDependency(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)
	first := g.entryPoint("first", true, []string{"second", "third"})
	second := g.entryPoint("second", true, []string{"third", "fifth"})
	third := g.entryPoint("third", true, []string{"fourth"})
	fourth := g.entryPoint("fourth", true, []string{"fifth"})
	fifth := g.entryPoint("fifth", true, nil)
	candidates := []*entrypoint.EntryPoint{fifth, first, fourth, second, third}

	r := g.resolver()
	info, err := r.SortEntryPointsByDependency(ctx, candidates, nil)
	if err != nil {
		t.Fatalf("SortEntryPointsByDependency=_, %v; want nil err", err)
	}
	if diff := cmp.Diff([]string{"fifth", "fourth", "third", "second", "first"}, names(info.EntryPoints)); diff != "" {
		t.Errorf("SortEntryPointsByDependency diff -want +got:\n%s", diff)
	}
	if diff := cmp.Diff([]string{g.path("third"), g.path("fifth")}, info.Graph[g.path("second")]); diff != "" {
		t.Errorf("Graph[second] diff -want +got:\n%s", diff)
	}

	info, err = r.SortEntryPointsByDependency(ctx, candidates, third)
	if err != nil {
		t.Fatalf("SortEntryPointsByDependency(target=third)=_, %v; want nil err", err)
	}
	if diff := cmp.Diff([]string{"fifth", "fourth", "third"}, names(info.EntryPoints)); diff != "" {
		t.Errorf("SortEntryPointsByDependency(target=third) diff -want +got:\n%s", diff)
	}

	// idempotent.
	again, err := r.SortEntryPointsByDependency(ctx, candidates, third)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(names(info.EntryPoints), names(again.EntryPoints)); diff != "" {
		t.Errorf("second sort differs: diff -first +second:\n%s", diff)
	}
}

func TestSortEntryPointsByDependency_missing(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)
	first := g.entryPoint("first", true, []string{"second"})
	second := g.entryPoint("second", true, nil, "missing")
	for _, tc := range []struct {
		name       string
		candidates []*entrypoint.EntryPoint
	}{
		{name: "dependent first", candidates: []*entrypoint.EntryPoint{first, second}},
		{name: "dependency first", candidates: []*entrypoint.EntryPoint{second, first}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			info, err := g.resolver().SortEntryPointsByDependency(ctx, tc.candidates, nil)
			if err != nil {
				t.Fatalf("SortEntryPointsByDependency=_, %v; want nil err", err)
			}
			if len(info.EntryPoints) != 0 {
				t.Errorf("EntryPoints=%q; want empty", names(info.EntryPoints))
			}
			got := map[string][]string{}
			for _, inv := range info.InvalidEntryPoints {
				got[inv.EntryPoint.Name] = inv.MissingDependencies
			}
			want := map[string][]string{
				"first":  {"missing"},
				"second": {"missing"},
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("InvalidEntryPoints diff -want +got:\n%s", diff)
			}
		})
	}
}

func TestSortEntryPointsByDependency_ignoreMissing(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)
	a := g.entryPoint("a", true, nil, "missing", "fs", "node:path")
	a.IgnoreMissingDependencies = true
	b := g.entryPoint("b", true, []string{"a"}, "util")
	info, err := g.resolver().SortEntryPointsByDependency(ctx, []*entrypoint.EntryPoint{b, a}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, names(info.EntryPoints)); diff != "" {
		t.Errorf("EntryPoints diff -want +got:\n%s", diff)
	}
	if len(info.InvalidEntryPoints) != 0 {
		t.Errorf("InvalidEntryPoints=%v; want empty", info.InvalidEntryPoints)
	}
}

func TestSortEntryPointsByDependency_ignored(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)
	a := g.entryPoint("a", true, []string{"plain", "not-candidate"})
	plain := g.entryPoint("plain", false, nil)
	info, err := g.resolver().SortEntryPointsByDependency(ctx, []*entrypoint.EntryPoint{a, plain}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a"}, names(info.EntryPoints)); diff != "" {
		t.Errorf("EntryPoints diff -want +got:\n%s", diff)
	}
	var got []string
	for _, ig := range info.IgnoredDependencies {
		got = append(got, ig.EntryPoint.Name+" -> "+filepath.Base(ig.DependencyPath))
	}
	if diff := cmp.Diff([]string{"a -> plain", "a -> not-candidate"}, got); diff != "" {
		t.Errorf("IgnoredDependencies diff -want +got:\n%s", diff)
	}

	// non angular target.
	info, err = g.resolver().SortEntryPointsByDependency(ctx, []*entrypoint.EntryPoint{a, plain}, plain)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.EntryPoints) != 0 {
		t.Errorf("SortEntryPointsByDependency(target=plain)=%q; want empty", names(info.EntryPoints))
	}
}

func TestSortEntryPointsByDependency_cycle(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)
	a := g.entryPoint("a", true, []string{"b"})
	b := g.entryPoint("b", true, []string{"a"})
	c := g.entryPoint("c", true, []string{"a"})
	d := g.entryPoint("d", true, nil)
	info, err := g.resolver().SortEntryPointsByDependency(ctx, []*entrypoint.EntryPoint{c, a, b, d}, nil)
	if err != nil {
		t.Fatalf("SortEntryPointsByDependency=_, %v; want nil err", err)
	}
	if diff := cmp.Diff([]string{"d"}, names(info.EntryPoints)); diff != "" {
		t.Errorf("EntryPoints diff -want +got:\n%s", diff)
	}
	got := map[string][]string{}
	for _, inv := range info.InvalidEntryPoints {
		var cycle []string
		for _, p := range inv.Cycle {
			cycle = append(cycle, filepath.Base(p))
		}
		got[inv.EntryPoint.Name] = cycle
	}
	want := map[string][]string{
		"a": {"a", "b", "a"},
		"b": {"a", "b", "a"},
		"c": {"a", "b", "a"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("InvalidEntryPoints cycles diff -want +got:\n%s", diff)
	}
}

func TestSortEntryPointsByDependency_noFormat(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)
	a := g.entryPoint("a", true, nil)
	a.PackageJSON = entrypoint.PackageJSON{"browser": "./index.js"}
	_, err := g.resolver().SortEntryPointsByDependency(ctx, []*entrypoint.EntryPoint{a}, nil)
	want := "could not find a suitable format for computing dependencies of entry-point: '" + a.Path + "'"
	if err == nil || err.Error() != want {
		t.Errorf("SortEntryPointsByDependency=_, %v; want %q", err, want)
	}
}
