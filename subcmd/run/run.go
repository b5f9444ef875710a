// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package run implements the subcommand `run` which compiles
// node_modules for Ivy.
package run

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/system/signals"

	"github.com/angular-go/ngcc/ngcc"
	"github.com/angular-go/ngcc/runtimex"
	"github.com/angular-go/ngcc/ui"
)

const runUsage = `compile Angular packages in node_modules for Ivy.

 $ ngcc run [-s <node_modules>] [-t <entry-point>] [-p <property>]... [options]

`

// Cmd returns the Command for the `run` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "run <args>...",
		ShortDesc: "compile Angular packages in node_modules",
		LongDesc:  runUsage,
		CommandRun: func() subcommands.CommandRun {
			r := &runCmdRun{}
			r.init()
			return r
		},
	}
}

// stringList is a flag value that may be repeated or comma separated.
type stringList []string

var _ flag.Value = (*stringList)(nil)

func (l *stringList) String() string {
	return strings.Join(*l, ",")
}

func (l *stringList) Set(v string) error {
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			*l = append(*l, s)
		}
	}
	return nil
}

type runCmdRun struct {
	subcommands.CommandRunBase

	basePath                string
	target                  string
	properties              stringList
	firstOnly               bool
	createIvyEntryPoints    bool
	tsconfig                string
	logLevel                string
	errorOnFailedEntryPoint bool
	workers                 int
	workerProcesses         bool
	taskTimeout             time.Duration
	lockTimeout             time.Duration
}

func (c *runCmdRun) init() {
	c.Flags.StringVar(&c.basePath, "s", "./node_modules", "path to the node_modules directory to process")
	c.Flags.StringVar(&c.target, "t", "", "entry-point to process with its dependencies (relative to -s)")
	c.Flags.Var(&c.properties, "p", "format property to consider. may be repeated or comma separated. defaults to all supported properties")
	c.Flags.BoolVar(&c.firstOnly, "first-only", false, "only compile the first matching format property of each entry-point")
	c.Flags.BoolVar(&c.createIvyEntryPoints, "create-ivy-entry-points", false, "write compiled bundles to new entry-points instead of overwriting the originals")
	c.Flags.StringVar(&c.tsconfig, "tsconfig", "", "tsconfig.json to read path mappings from")
	c.Flags.StringVar(&c.logLevel, "l", "info", "log level: debug, info, warn or error")
	c.Flags.BoolVar(&c.errorOnFailedEntryPoint, "error-on-failed-entry-point", false, "fail the run on the first entry-point that fails to compile")
	c.Flags.IntVar(&c.workers, "workers", runtimex.NumWorkers(), "number of workers. 1 compiles serially. can be capped by $NGCC_MAX_WORKERS")
	c.Flags.BoolVar(&c.workerProcesses, "worker-processes", false, "run workers as processes instead of goroutines")
	c.Flags.DurationVar(&c.taskTimeout, "task-timeout", 0, "fail a task not completed in time. 0 means no timeout")
	c.Flags.DurationVar(&c.lockTimeout, "lock-timeout", 5*time.Minute, "how long to wait for another ngcc process")
}

type flagError struct {
	err error
}

func (f flagError) Error() string {
	return f.err.Error()
}

type errInterrupted struct{}

func (errInterrupted) Error() string        { return "interrupt by signal" }
func (errInterrupted) Is(target error) bool { return target == context.Canceled }

// Run runs the `run` subcommand.
func (c *runCmdRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	started := time.Now()
	ctx := cli.GetContext(a, c, env)
	err := c.run(ctx, args)
	dur := ui.FormatDuration(time.Since(started))
	if err != nil {
		var errFlag flagError
		switch {
		case errors.As(err, &errFlag):
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 2
		case errors.Is(err, context.Canceled):
			fmt.Fprintf(os.Stderr, "\n%6s %s: %v\n", dur, "Interrupted", err)
		default:
			fmt.Fprintf(os.Stderr, "\n%6s %s: %v\n", dur, "Error", err)
		}
		return 1
	}
	return 0
}

func (c *runCmdRun) run(ctx context.Context, args []string) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer signals.HandleInterrupt(func() {
		cancel(errInterrupted{})
	})()
	if len(args) != 0 {
		return flagError{err: fmt.Errorf("position arguments not expected: %q", args)}
	}
	level, err := log.ParseLevel(c.logLevel)
	if err != nil {
		return flagError{err: fmt.Errorf("invalid -l %q: %w", c.logLevel, err)}
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: true,
	})
	opts := ngcc.DefaultOptions(c.basePath)
	opts.TargetEntryPointPath = c.target
	if len(c.properties) > 0 {
		opts.PropertiesToConsider = c.properties
	}
	opts.CompileAllFormats = !c.firstOnly
	opts.CreateNewEntryPointFormats = c.createIvyEntryPoints
	opts.TSConfigPath = c.tsconfig
	opts.Logger = logger
	opts.ErrorOnFailedEntryPoint = c.errorOnFailedEntryPoint
	opts.Workers = c.workers
	opts.WorkerProcesses = c.workerProcesses
	opts.TaskTimeout = c.taskTimeout
	opts.LockTimeout = c.lockTimeout
	return ngcc.Main(ctx, opts)
}
