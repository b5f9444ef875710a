// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ngcc

import (
	"context"
	"fmt"
	"time"

	"github.com/angular-go/ngcc/analysis"
	"github.com/angular-go/ngcc/buildmarker"
	"github.com/angular-go/ngcc/bundle"
	"github.com/angular-go/ngcc/entrypoint"
	"github.com/angular-go/ngcc/execute"
	"github.com/angular-go/ngcc/host"
	"github.com/angular-go/ngcc/modresolve"
	"github.com/angular-go/ngcc/o11y/clog"
	"github.com/angular-go/ngcc/osfs"
	"github.com/angular-go/ngcc/render"
	"github.com/angular-go/ngcc/ui"
	"github.com/angular-go/ngcc/writer"
)

// ProcessorOptions configures compilation of tasks.
type ProcessorOptions struct {
	FS           osfs.FS
	PathMappings *modresolve.PathMappings
	// CreateNewEntryPointFormats writes new entry-point bundles instead
	// of overwriting the originals.
	CreateNewEntryPointFormats bool
}

// NewProcessor returns a function that compiles a task: it loads the
// bundle, analyzes it, renders the changes and writes them.
func NewProcessor(opts ProcessorOptions) execute.ProcessFunc {
	if opts.FS == nil {
		opts.FS = osfs.New()
	}
	return func(ctx context.Context, task *execute.Task, updater buildmarker.Updater) error {
		return process(ctx, opts, task, updater)
	}
}

func process(ctx context.Context, opts ProcessorOptions, task *execute.Task, updater buildmarker.Updater) error {
	started := time.Now()
	ep := task.EntryPoint
	format, ok := entrypoint.GetEntryPointFormat(ctx, opts.FS, ep, task.FormatProperty)
	if !ok {
		return fmt.Errorf("unknown format of %q in %s", task.FormatProperty, ep.PackageJSONPath())
	}
	clog.Infof(ctx, "Compiling %s : %s as %s", ep.Name, task.FormatProperty, format)

	b, err := bundle.New(ctx, opts.FS, opts.PathMappings, ep, task.FormatProperty, format, task.ProcessDts)
	if err != nil {
		return err
	}
	h, err := host.New(format)
	if err != nil {
		return err
	}

	clog.Debugf(ctx, "analyzing")
	decorations, err := (&analysis.DecorationAnalyzer{
		FS:      opts.FS,
		Bundle:  b,
		Host:    h,
		Version: buildmarker.Version,
	}).Analyze(ctx)
	if err != nil {
		return err
	}
	switchMarkers := (&analysis.SwitchMarkerAnalyzer{Bundle: b, Host: h}).Analyze()
	privates := (&analysis.PrivateDeclarationsAnalyzer{Bundle: b, Host: h}).Analyze(ctx, decorations)

	clog.Debugf(ctx, "rendering")
	r, err := render.New(b, h)
	if err != nil {
		return err
	}
	files, err := r.RenderProgram(ctx, decorations, switchMarkers, privates)
	if err != nil {
		return err
	}
	if task.ProcessDts {
		dtsFiles, err := render.NewDtsRenderer(b).RenderProgram(ctx, decorations, privates)
		if err != nil {
			return err
		}
		files = append(files, dtsFiles...)
	}

	clog.Debugf(ctx, "writing %d files", len(files))
	var w writer.FileWriter = &writer.InPlaceFileWriter{FS: opts.FS}
	if opts.CreateNewEntryPointFormats {
		w = writer.NewEntryPointFileWriter(opts.FS, updater)
	}
	if err := w.WriteBundle(ctx, b, files, task.FormatPropertiesToMarkAsProcessed); err != nil {
		return err
	}
	if d := time.Since(started); d >= ui.DurationThreshold {
		clog.Debugf(ctx, "compiled in %s", ui.FormatDuration(d))
	}
	return nil
}
