// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package execute

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/angular-go/ngcc/buildmarker"
	"github.com/angular-go/ngcc/entrypoint"
)

func newEntryPoint(name string, pkg entrypoint.PackageJSON) *entrypoint.EntryPoint {
	if pkg == nil {
		pkg = entrypoint.PackageJSON{"fesm2015": "./f.js"}
	}
	return &entrypoint.EntryPoint{
		Name:        name,
		Path:        "/node_modules/" + name,
		Package:     "/node_modules/" + name,
		PackageJSON: pkg,
	}
}

type taskSummary struct {
	Prop       string
	Mark       []string
	ProcessDts bool
}

func summarize(tasks []*Task) []taskSummary {
	var s []taskSummary
	for _, t := range tasks {
		s = append(s, taskSummary{Prop: t.FormatProperty, Mark: t.FormatPropertiesToMarkAsProcessed, ProcessDts: t.ProcessDts})
	}
	return s
}

func TestCreateTasks(t *testing.T) {
	ctx := context.Background()
	pkg := func() entrypoint.PackageJSON {
		return entrypoint.PackageJSON{
			"fesm2015":            "./f.js",
			"es2015":              "./f.js",
			"esm5":                "./e5.js",
			"module":              "./e5.js",
			"main":                "./u.js",
			buildmarker.MarkerKey: map[string]any{
				"esm5":   buildmarker.Version,
				"module": buildmarker.Version,
			},
		}
	}
	for _, tc := range []struct {
		name              string
		props             []string
		compileAllFormats bool
		typingsProcessed  bool
		want              []taskSummary
	}{
		{
			name:              "all",
			props:             entrypoint.SupportedFormatProperties,
			compileAllFormats: true,
			want: []taskSummary{
				{Prop: "fesm2015", Mark: []string{"fesm2015", "es2015"}, ProcessDts: true},
				{Prop: "esm5", Mark: []string{"esm5", "module"}},
				{Prop: "main", Mark: []string{"main"}},
			},
		},
		{
			name:  "first-only",
			props: entrypoint.SupportedFormatProperties,
			want: []taskSummary{
				{Prop: "fesm2015", Mark: []string{"fesm2015", "es2015"}, ProcessDts: true},
			},
		},
		{
			name:              "processed-first",
			props:             []string{"module", "main"},
			compileAllFormats: true,
			want: []taskSummary{
				{Prop: "module", Mark: []string{"esm5", "module"}},
				{Prop: "main", Mark: []string{"main"}, ProcessDts: true},
			},
		},
		{
			name:              "typings-processed",
			props:             []string{"es2015"},
			compileAllFormats: true,
			typingsProcessed:  true,
			want: []taskSummary{
				{Prop: "es2015", Mark: []string{"fesm2015", "es2015"}},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := pkg()
			if tc.typingsProcessed {
				p[buildmarker.MarkerKey].(map[string]any)["typings"] = buildmarker.Version
			}
			ep := newEntryPoint("a", p)
			tasks, err := CreateTasks(ctx, []*entrypoint.EntryPoint{ep}, tc.props, tc.compileAllFormats)
			if err != nil {
				t.Fatalf("CreateTasks(...)=_, %v; want nil err", err)
			}
			if diff := cmp.Diff(tc.want, summarize(tasks)); diff != "" {
				t.Errorf("CreateTasks(...) diff -want +got:\n%s", diff)
			}
		})
	}
}

func TestCreateTasks_unprocessable(t *testing.T) {
	ctx := context.Background()
	a := newEntryPoint("a", nil)
	b := newEntryPoint("b", entrypoint.PackageJSON{"typings": "./index.d.ts"})
	tasks, err := CreateTasks(ctx, []*entrypoint.EntryPoint{a, b}, []string{"fesm2015", "main"}, true)
	var uerr *UnprocessableError
	if !errors.As(err, &uerr) {
		t.Fatalf("CreateTasks(...)=_, %v; want UnprocessableError", err)
	}
	if diff := cmp.Diff([]string{b.Path}, uerr.EntryPoints); diff != "" {
		t.Errorf("UnprocessableError.EntryPoints diff -want +got:\n%s", diff)
	}
	if len(tasks) != 1 || tasks[0].EntryPoint != a {
		t.Errorf("CreateTasks(...)=%v; want a task of %s", tasks, a.Name)
	}
}
