// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package worker implements the subcommand `worker` which compiles
// tasks sent by an `ngcc run` master over stdin and stdout.
package worker

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"

	"github.com/angular-go/ngcc/execute"
	"github.com/angular-go/ngcc/modresolve"
	"github.com/angular-go/ngcc/ngcc"
	"github.com/angular-go/ngcc/o11y/clog"
)

// Cmd returns the Command for the `worker` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		Advanced:  true,
		UsageLine: "worker <args>...",
		ShortDesc: "runs a worker of ngcc run",
		LongDesc:  "Compiles tasks received on stdin and reports results on stdout. Started by `ngcc run -worker-processes`.",
		CommandRun: func() subcommands.CommandRun {
			r := &workerCmdRun{}
			r.init()
			return r
		},
	}
}

type workerCmdRun struct {
	subcommands.CommandRunBase

	basePath             string
	logLevel             string
	createIvyEntryPoints bool
	pathMappings         string
}

func (c *workerCmdRun) init() {
	c.Flags.StringVar(&c.basePath, "s", "./node_modules", "path to the node_modules directory being processed")
	c.Flags.StringVar(&c.logLevel, "l", "info", "log level")
	c.Flags.BoolVar(&c.createIvyEntryPoints, "create-ivy-entry-points", false, "write compiled bundles to new entry-points")
	c.Flags.StringVar(&c.pathMappings, "path-mappings", "", "path mappings in JSON")
}

// Run runs the `worker` subcommand.
func (c *workerCmdRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	err := c.run(ctx, os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		return 1
	}
	return 0
}

func (c *workerCmdRun) run(ctx context.Context, r io.Reader, w io.Writer) error {
	level, err := log.ParseLevel(c.logLevel)
	if err != nil {
		return fmt.Errorf("invalid -l %q: %w", c.logLevel, err)
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: true,
	})
	ctx = clog.NewContext(ctx, logger)
	ctx = clog.WithLabels(ctx, clog.LabelWorker, os.Getenv(execute.WorkerIDEnv))

	opts := ngcc.ProcessorOptions{
		CreateNewEntryPointFormats: c.createIvyEntryPoints,
	}
	if c.pathMappings != "" {
		opts.PathMappings = &modresolve.PathMappings{}
		if err := json.Unmarshal([]byte(c.pathMappings), opts.PathMappings); err != nil {
			return fmt.Errorf("invalid -path-mappings: %w", err)
		}
	}
	clog.Debugf(ctx, "worker started for %s", c.basePath)
	return execute.RunWorker(ctx, r, w, ngcc.NewProcessor(opts))
}
