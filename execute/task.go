// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package execute creates tasks of entry-point formats and executes
// them serially or on a cluster of workers.
package execute

import (
	"context"
	"fmt"
	"strings"

	"github.com/angular-go/ngcc/buildmarker"
	"github.com/angular-go/ngcc/entrypoint"
	"github.com/angular-go/ngcc/o11y/clog"
)

// Task is a unit of work: one format of an entry-point.
type Task struct {
	EntryPoint *entrypoint.EntryPoint `json:"entryPoint"`
	// FormatProperty is the package.json property of the bundle to
	// process.
	FormatProperty string `json:"formatProperty"`
	// FormatPropertiesToMarkAsProcessed are the properties pointing to
	// the same bundle, marked together with FormatProperty.
	FormatPropertiesToMarkAsProcessed []string `json:"formatPropertiesToMarkAsProcessed"`
	// ProcessDts is true for the task that also renders typings.
	ProcessDts bool `json:"processDts"`
}

func (t *Task) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s : %s", t.EntryPoint.Name, t.FormatProperty)
	if t.ProcessDts {
		sb.WriteString(" (typings)")
	}
	return sb.String()
}

// Outcome is an outcome of a task.
type Outcome string

// Task outcomes.
const (
	Processed Outcome = "processed"
	Failed    Outcome = "failed"
	Cached    Outcome = "cached"
)

// TaskCompletedHandler is called on the master for each completed task.
// An error returned from it aborts the run.
type TaskCompletedHandler func(ctx context.Context, task *Task, outcome Outcome, message string) error

// ProcessFunc compiles a task. Changes to package.json must be
// written through updater.
type ProcessFunc func(ctx context.Context, task *Task, updater buildmarker.Updater) error

// UnprocessableError is returned when entry-points have none of the
// format properties to consider.
type UnprocessableError struct {
	Properties  []string
	EntryPoints []string
}

func (e *UnprocessableError) Error() string {
	return fmt.Sprintf("unable to process any formats for the following entry-points (tried %s):\n  - %s",
		strings.Join(e.Properties, ", "),
		strings.Join(e.EntryPoints, "\n  - "))
}

// CreateTasks creates tasks of entryPoints in the given order.
//
// For each entry-point, properties are picked in propertiesToConsider
// order, skipping properties that are not set or that point to the same
// bundle as an already picked property. Only the first one is picked
// unless compileAllFormats. Properties pointing to the same bundle are
// marked as processed together.
// Tasks of properties already processed are included and complete as
// Cached without running.
func CreateTasks(ctx context.Context, entryPoints []*entrypoint.EntryPoint, propertiesToConsider []string, compileAllFormats bool) ([]*Task, error) {
	var tasks []*Task
	var unprocessable []string
	for _, ep := range entryPoints {
		props, equivalents := propertiesToProcess(ep.PackageJSON, propertiesToConsider, compileAllFormats)
		if len(props) == 0 {
			unprocessable = append(unprocessable, ep.Path)
			continue
		}
		processDts := !buildmarker.HasBeenProcessed(ep.PackageJSON, "typings")
		for _, prop := range props {
			t := &Task{
				EntryPoint:                        ep,
				FormatProperty:                    prop,
				FormatPropertiesToMarkAsProcessed: equivalents[prop],
			}
			if !buildmarker.HasBeenProcessed(ep.PackageJSON, prop) {
				t.ProcessDts = processDts
				processDts = false
			}
			tasks = append(tasks, t)
		}
	}
	if len(unprocessable) > 0 {
		return tasks, &UnprocessableError{Properties: propertiesToConsider, EntryPoints: unprocessable}
	}
	clog.Debugf(ctx, "created %d tasks for %d entry-points", len(tasks), len(entryPoints))
	return tasks, nil
}

func propertiesToProcess(pkg entrypoint.PackageJSON, propertiesToConsider []string, compileAllFormats bool) ([]string, map[string][]string) {
	formatPaths := make(map[string]bool)
	var props []string
	for _, prop := range propertiesToConsider {
		p, ok := pkg.String(prop)
		if !ok || formatPaths[p] {
			continue
		}
		formatPaths[p] = true
		props = append(props, prop)
		if !compileAllFormats {
			break
		}
	}
	byPath := make(map[string][]string)
	for _, prop := range entrypoint.SupportedFormatProperties {
		p, ok := pkg.String(prop)
		if !ok || !formatPaths[p] {
			continue
		}
		byPath[p] = append(byPath[p], prop)
	}
	equivalents := make(map[string][]string)
	for _, prop := range props {
		p, _ := pkg.String(prop)
		equivalents[prop] = byPath[p]
	}
	return props, equivalents
}
