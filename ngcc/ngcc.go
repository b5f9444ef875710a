// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package ngcc runs the Angular compatibility compiler on node_modules.
package ngcc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/angular-go/ngcc/buildmarker"
	"github.com/angular-go/ngcc/deps"
	"github.com/angular-go/ngcc/entrypoint"
	"github.com/angular-go/ngcc/execute"
	"github.com/angular-go/ngcc/lockfile"
	"github.com/angular-go/ngcc/modresolve"
	"github.com/angular-go/ngcc/ngccconfig"
	"github.com/angular-go/ngcc/o11y/clog"
	"github.com/angular-go/ngcc/osfs"
	"github.com/angular-go/ngcc/ui"
	"github.com/angular-go/ngcc/writer"
)

// Options are options of an ngcc run.
type Options struct {
	// BasePath is the node_modules directory to process.
	BasePath string
	// TargetEntryPointPath limits processing to this entry-point and
	// its dependencies. Relative paths are relative to BasePath.
	TargetEntryPointPath string
	// PropertiesToConsider are format properties to process, in
	// order of preference. Defaults to all supported properties.
	PropertiesToConsider []string
	// CompileAllFormats processes every property to consider instead
	// of only the first one found.
	CompileAllFormats bool
	// CreateNewEntryPointFormats writes new entry-point bundles
	// instead of overwriting the originals.
	CreateNewEntryPointFormats bool
	// Logger defaults to log.Default().
	Logger *log.Logger
	// PathMappings are used to resolve modules. They are read from
	// TSConfigPath if not set.
	PathMappings *modresolve.PathMappings
	TSConfigPath string
	// ErrorOnFailedEntryPoint aborts the run at the first failed
	// task. It is implied by TargetEntryPointPath.
	ErrorOnFailedEntryPoint bool
	// Workers is the number of workers. Tasks run serially when it is
	// 1 or less.
	Workers int
	// WorkerProcesses runs workers as `ngcc worker` processes instead
	// of goroutines.
	WorkerProcesses bool
	// TaskTimeout fails a task a worker didn't complete in time.
	// Zero means no timeout.
	TaskTimeout time.Duration
	// LockTimeout is how long to wait for another ngcc process.
	LockTimeout time.Duration

	// FS defaults to the OS file system.
	FS osfs.FS
}

// DefaultOptions returns options with defaults for basePath.
func DefaultOptions(basePath string) Options {
	return Options{
		BasePath:             basePath,
		PropertiesToConsider: entrypoint.SupportedFormatProperties,
		CompileAllFormats:    true,
		Workers:              1,
	}
}

// validateProperties returns the supported properties of props.
func validateProperties(ctx context.Context, props []string) ([]string, error) {
	if len(props) == 0 {
		return entrypoint.SupportedFormatProperties, nil
	}
	var supported []string
	for _, p := range props {
		if entrypoint.IsSupportedFormatProperty(p) {
			supported = append(supported, p)
			continue
		}
		if s := suggestProperty(p); s != "" {
			clog.Warningf(ctx, "unsupported format property %q. did you mean %q?", p, s)
			continue
		}
		clog.Warningf(ctx, "unsupported format property %q", p)
	}
	if len(supported) == 0 {
		return nil, fmt.Errorf("no supported format property to consider among [%s]. Supported properties: %s",
			strings.Join(props, ", "),
			strings.Join(entrypoint.SupportedFormatProperties, ", "))
	}
	return supported, nil
}

// suggestProperty returns the supported property closest to p, if any
// is close enough.
func suggestProperty(p string) string {
	best, bestDist := "", 3
	for _, s := range entrypoint.SupportedFormatProperties {
		d := levenshtein.DistanceForStrings([]rune(p), []rune(s), levenshtein.DefaultOptions)
		if d < bestDist {
			best, bestDist = s, d
		}
	}
	return best
}

// run is state of an ngcc run on the master.
type run struct {
	opts     Options
	fs       osfs.FS
	updater  *buildmarker.DirectUpdater
	progress *ui.Progress
}

// setup fills defaults of opts and reads path mappings.
func setup(ctx context.Context, opts *Options) (context.Context, error) {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	ctx = clog.NewContext(ctx, opts.Logger)
	ctx = clog.WithLabels(ctx, clog.LabelRun, uuid.New().String())
	if opts.FS == nil {
		opts.FS = osfs.New()
	}
	if opts.BasePath == "" {
		return ctx, errors.New("no base path")
	}
	var err error
	opts.BasePath, err = filepath.Abs(opts.BasePath)
	if err != nil {
		return ctx, err
	}
	if opts.PathMappings == nil && opts.TSConfigPath != "" {
		opts.PathMappings, err = ngccconfig.ReadPathMappings(opts.FS, opts.TSConfigPath)
		if err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}

func newDependencyResolver(fsys osfs.FS, pm *modresolve.PathMappings, config *ngccconfig.Configuration) *deps.Resolver {
	resolver := modresolve.New(fsys, pm)
	return deps.NewResolver(fsys, map[entrypoint.Format]deps.Host{
		entrypoint.FormatESM2015:  deps.NewEsmHost(fsys, resolver),
		entrypoint.FormatESM5:     deps.NewEsmHost(fsys, resolver),
		entrypoint.FormatUMD:      deps.NewUmdHost(fsys, resolver),
		entrypoint.FormatCommonJS: deps.NewCommonJSHost(fsys, resolver),
	}, config)
}

// FindEntryPoints finds the entry-points under opts.BasePath and sorts
// them by dependency, without processing them.
func FindEntryPoints(ctx context.Context, opts Options) (*entrypoint.SortedEntryPointsInfo, error) {
	ctx, err := setup(ctx, &opts)
	if err != nil {
		return nil, err
	}
	config, err := ngccconfig.New(ctx, opts.FS, opts.BasePath)
	if err != nil {
		return nil, err
	}
	finder := &entrypoint.DirectoryWalkerFinder{
		FS:           opts.FS,
		Config:       config,
		Resolver:     newDependencyResolver(opts.FS, opts.PathMappings, config),
		BasePath:     opts.BasePath,
		PathMappings: opts.PathMappings,
	}
	return finder.FindEntryPoints(ctx)
}

// Main runs ngcc.
func Main(ctx context.Context, opts Options) (err error) {
	ctx, err = setup(ctx, &opts)
	if err != nil {
		return err
	}
	opts.PropertiesToConsider, err = validateProperties(ctx, opts.PropertiesToConsider)
	if err != nil {
		return err
	}
	if opts.TargetEntryPointPath != "" {
		if !filepath.IsAbs(opts.TargetEntryPointPath) {
			opts.TargetEntryPointPath = filepath.Join(opts.BasePath, opts.TargetEntryPointPath)
		}
		opts.ErrorOnFailedEntryPoint = true
	}

	lock, err := lockfile.Acquire(ctx, lockfile.Path(opts.BasePath), opts.LockTimeout)
	switch {
	case errors.Is(err, errors.ErrUnsupported):
		clog.Warningf(ctx, "lock file is not supported")
	case err != nil:
		return err
	default:
		defer func() {
			rerr := lock.Release()
			if err == nil {
				err = rerr
			}
		}()
	}

	config, err := ngccconfig.New(ctx, opts.FS, opts.BasePath)
	if err != nil {
		return err
	}
	r := &run{
		opts:    opts,
		fs:      opts.FS,
		updater: &buildmarker.DirectUpdater{FS: opts.FS},
	}
	return r.main(ctx, config)
}

func (r *run) main(ctx context.Context, config *ngccconfig.Configuration) error {
	opts := r.opts
	newFinder := func() entrypoint.Finder {
		depResolver := newDependencyResolver(r.fs, opts.PathMappings, config)
		if opts.TargetEntryPointPath != "" {
			return &entrypoint.TargetedFinder{
				FS:       r.fs,
				Config:   config,
				Resolver: depResolver,
				BasePath: opts.BasePath,
				Target:   opts.TargetEntryPointPath,
			}
		}
		return &entrypoint.DirectoryWalkerFinder{
			FS:           r.fs,
			Config:       config,
			Resolver:     depResolver,
			BasePath:     opts.BasePath,
			PathMappings: opts.PathMappings,
		}
	}

	finder := newFinder()
	if tf, ok := finder.(*entrypoint.TargetedFinder); ok {
		processed, err := r.targetProcessed(ctx, tf)
		if err != nil {
			return err
		}
		if processed {
			clog.Debugf(ctx, "the target entry-point has already been processed")
			return nil
		}
	}

	started := time.Now()
	info, err := finder.FindEntryPoints(ctx)
	if err != nil {
		return err
	}
	cleaned, err := r.cleanOutdatedPackages(ctx, info.EntryPoints)
	if err != nil {
		return err
	}
	if cleaned {
		// cached dependencies may be those of cleaned bundles.
		info, err = newFinder().FindEntryPoints(ctx)
		if err != nil {
			return err
		}
	}
	clog.Debugf(ctx, "found %d entry-points in %s", len(info.EntryPoints), ui.FormatDuration(time.Since(started)))
	if err := r.checkInvalid(ctx, info); err != nil {
		return err
	}

	tasks, err := execute.CreateTasks(ctx, info.EntryPoints, opts.PropertiesToConsider, opts.CompileAllFormats)
	if err != nil {
		return err
	}
	r.progress = ui.NewProgress(len(tasks))
	executor, err := r.executor(ctx)
	if err != nil {
		return err
	}
	err = executor.Execute(ctx, tasks, info.Graph)
	clog.Infof(ctx, "%s", r.progress.StyledSummary())
	return err
}

// targetProcessed reports whether the target entry-point has every
// property to consider processed, or one of them when not compiling all
// formats.
func (r *run) targetProcessed(ctx context.Context, tf *entrypoint.TargetedFinder) (bool, error) {
	ep, err := tf.TargetEntryPoint(ctx)
	if err != nil || ep == nil || !ep.CompiledByAngular {
		return false, err
	}
	for _, prop := range r.opts.PropertiesToConsider {
		if _, ok := ep.PackageJSON.String(prop); !ok {
			continue
		}
		if !buildmarker.HasBeenProcessed(ep.PackageJSON, prop) {
			return false, nil
		}
		if !r.opts.CompileAllFormats {
			return true, nil
		}
	}
	return true, nil
}

// cleanOutdatedPackages reverts outputs of another version of ngcc in
// packages of entryPoints.
func (r *run) cleanOutdatedPackages(ctx context.Context, entryPoints []*entrypoint.EntryPoint) (bool, error) {
	packages := make(map[string]bool)
	for _, ep := range entryPoints {
		if buildmarker.NeedsCleaning(ep.PackageJSON) {
			packages[ep.Package] = true
		}
	}
	var paths []string
	for p := range packages {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		n, err := writer.CleanPackage(ctx, r.fs, r.updater, p)
		if err != nil {
			return false, err
		}
		clog.Infof(ctx, "cleaned %d outdated files of %s", n, p)
	}
	return len(paths) > 0, nil
}

func (r *run) checkInvalid(ctx context.Context, info *entrypoint.SortedEntryPointsInfo) error {
	for _, inv := range info.InvalidEntryPoints {
		var sb strings.Builder
		for _, m := range inv.MissingDependencies {
			fmt.Fprintf(&sb, "\n - %s", m)
		}
		if len(inv.Cycle) > 0 {
			fmt.Fprintf(&sb, "\n - dependency cycle %s", strings.Join(inv.Cycle, " -> "))
		}
		if inv.EntryPoint.Path == r.opts.TargetEntryPointPath {
			return fmt.Errorf("the target entry-point %q has missing dependencies:%s", inv.EntryPoint.Name, sb.String())
		}
		clog.Debugf(ctx, "invalid entry-point %s. It is missing required dependencies:%s", inv.EntryPoint.Path, sb.String())
	}
	for _, ign := range info.IgnoredDependencies {
		clog.Debugf(ctx, "entry-point %s: ignored dependency %s", ign.EntryPoint.Path, ign.DependencyPath)
	}
	return nil
}

func (r *run) executor(ctx context.Context) (execute.Executor, error) {
	process := NewProcessor(ProcessorOptions{
		FS:                         r.fs,
		PathMappings:               r.opts.PathMappings,
		CreateNewEntryPointFormats: r.opts.CreateNewEntryPointFormats,
	})
	if r.opts.Workers <= 1 {
		return &execute.SingleProcessExecutor{
			Process:         process,
			Updater:         r.updater,
			OnTaskCompleted: r.onTaskCompleted,
		}, nil
	}
	e := &execute.ClusterExecutor{
		Workers:         r.opts.Workers,
		Process:         process,
		Updater:         r.updater,
		OnTaskCompleted: r.onTaskCompleted,
		TaskTimeout:     r.opts.TaskTimeout,
	}
	if r.opts.WorkerProcesses {
		cmd, err := WorkerCommand(r.opts)
		if err != nil {
			return nil, err
		}
		e.Command = cmd
	}
	return e, nil
}

// onTaskCompleted marks processed properties in package.json and
// reports failures.
func (r *run) onTaskCompleted(ctx context.Context, task *execute.Task, outcome execute.Outcome, message string) error {
	ep := task.EntryPoint
	switch outcome {
	case execute.Processed:
		r.progress.Processed()
		props := append([]string{}, task.FormatPropertiesToMarkAsProcessed...)
		if task.ProcessDts {
			props = append(props, "typings")
		}
		return buildmarker.MarkAsProcessed(ctx, r.updater, ep.PackageJSON, ep.PackageJSONPath(), props)
	case execute.Cached:
		r.progress.Cached()
		clog.Debugf(ctx, "skipping %s : %s (already compiled)", ep.Name, task.FormatProperty)
		return nil
	}
	r.progress.Failed()
	format, _ := entrypoint.GetEntryPointFormat(ctx, r.fs, ep, task.FormatProperty)
	err := fmt.Errorf("failed to compile entry-point %s (%s as %s): %s", ep.Name, task.FormatProperty, format, message)
	if r.opts.ErrorOnFailedEntryPoint {
		return err
	}
	clog.Errorf(ctx, "%v", err)
	return nil
}

// WorkerCommand returns the command line of a worker process of opts.
func WorkerCommand(opts Options) ([]string, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	args := []string{exe, "worker", "-s", opts.BasePath, "-l", opts.Logger.GetLevel().String()}
	if opts.CreateNewEntryPointFormats {
		args = append(args, "-create-ivy-entry-points")
	}
	if opts.PathMappings != nil {
		buf, err := json.Marshal(opts.PathMappings)
		if err != nil {
			return nil, err
		}
		args = append(args, "-path-mappings", string(buf))
	}
	return args, nil
}
