// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package digraph is digraph subcommand to show dependencies between
// entry-points for https://pkg.go.dev/golang.org/x/tools/cmd/digraph
package digraph

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"

	"github.com/angular-go/ngcc/entrypoint"
	"github.com/angular-go/ngcc/ngcc"
)

const usage = `show digraph

 $ ngcc digraph -s <node_modules> [<entry-points>...]

prints directed graph of entry-points found in <node_modules>.
If <entry-points> is not given, it will print all entry-points.
Each line contains one or more entry-point names, and the first
entry-point depends on the rest of the entry-points on the same line.
Dependencies are printed before their dependents.

This output can be passed to digraph command, installed by
 $ go install golang.org/x/tools/cmd/digraph@latest

See https://pkg.go.dev/golang.org/x/tools/cmd/digraph
for digraph command.
`

// Cmd returns the Command for the `digraph` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "digraph [-s <node_modules>] [<entry-points>...]",
		ShortDesc: "show digraph",
		LongDesc:  usage,
		Advanced:  true,
		CommandRun: func() subcommands.CommandRun {
			c := &run{}
			c.init()
			return c
		},
	}
}

type run struct {
	subcommands.CommandRunBase

	basePath string
	tsconfig string
}

func (c *run) init() {
	c.Flags.StringVar(&c.basePath, "s", "./node_modules", "path to the node_modules directory")
	c.Flags.StringVar(&c.tsconfig, "tsconfig", "", "tsconfig.json to read path mappings from")
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	err := c.run(ctx, os.Stdout, args)
	if err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			fmt.Fprintf(os.Stderr, "%v\n%s\n", err, usage)
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func (c *run) run(ctx context.Context, w io.Writer, args []string) error {
	opts := ngcc.DefaultOptions(c.basePath)
	opts.TSConfigPath = c.tsconfig
	opts.Logger = log.NewWithOptions(os.Stderr, log.Options{Level: log.WarnLevel})
	info, err := ngcc.FindEntryPoints(ctx, opts)
	if err != nil {
		return err
	}
	for _, inv := range info.InvalidEntryPoints {
		fmt.Fprintf(os.Stderr, "invalid entry-point %s: missing %q\n", inv.EntryPoint.Name, inv.MissingDependencies)
	}
	d := &digraph{
		byPath: make(map[string]*entrypoint.EntryPoint),
		graph:  info.Graph,
		seen:   make(map[string]bool),
		w:      w,
	}
	byName := make(map[string]*entrypoint.EntryPoint)
	for _, ep := range info.EntryPoints {
		d.byPath[ep.Path] = ep
		byName[ep.Name] = ep
	}
	if len(args) == 0 {
		for _, ep := range info.EntryPoints {
			d.Traverse(ep.Path)
		}
		return nil
	}
	for _, name := range args {
		ep, ok := byName[name]
		if !ok {
			return fmt.Errorf("entry-point not found: %q: %w", name, flag.ErrHelp)
		}
		d.Traverse(ep.Path)
	}
	return nil
}

type digraph struct {
	byPath map[string]*entrypoint.EntryPoint
	graph  map[string][]string
	seen   map[string]bool
	w      io.Writer
}

func (d *digraph) name(p string) string {
	if ep, ok := d.byPath[p]; ok {
		return ep.Name
	}
	return filepath.ToSlash(p)
}

func (d *digraph) Traverse(p string) {
	if d.seen[p] {
		return
	}
	d.seen[p] = true
	var deps []string
	for _, dep := range d.graph[p] {
		d.Traverse(dep)
		deps = append(deps, d.name(dep))
	}
	if len(deps) == 0 {
		fmt.Fprintf(d.w, "%s\n", d.name(p))
		return
	}
	fmt.Fprintf(d.w, "%s %s\n", d.name(p), strings.Join(deps, " "))
}
