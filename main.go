// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// ngcc compiles Angular packages in node_modules for Ivy.
package main

import (
	"context"
	"os"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"

	"github.com/angular-go/ngcc/subcmd/digraph"
	"github.com/angular-go/ngcc/subcmd/help"
	"github.com/angular-go/ngcc/subcmd/run"
	"github.com/angular-go/ngcc/subcmd/version"
	"github.com/angular-go/ngcc/subcmd/worker"
)

const ngccVersion = "ngcc v0.1.0"

func getApplication() *cli.Application {
	return &cli.Application{
		Name:  "ngcc",
		Title: "Angular compatibility compiler",
		Context: func(ctx context.Context) context.Context {
			return ctx
		},
		Commands: []*subcommands.Command{
			run.Cmd(),
			worker.Cmd(),
			digraph.Cmd(),
			version.Cmd(ngccVersion),
			help.Cmd(),
		},
	}
}

func main() {
	os.Exit(ngccMain())
}

func ngccMain() int {
	// Print a stack trace when a panic occurs.
	defer func() {
		if r := recover(); r != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			log.Fatalf("panic: %v\n%s", r, buf)
		}
	}()
	return subcommands.Run(getApplication(), nil)
}
