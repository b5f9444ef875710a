// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package execute

import (
	"context"
	"fmt"

	"github.com/angular-go/ngcc/buildmarker"
)

// Executor executes tasks.
type Executor interface {
	// Execute executes tasks. graph maps an entry-point path to paths
	// of the entry-points it depends on.
	Execute(ctx context.Context, tasks []*Task, graph map[string][]string) error
}

// complete marks t as completed in q and calls handler for t and the
// tasks failed because of it.
func complete(ctx context.Context, q Queue, t *Task, outcome Outcome, message string, handler TaskCompletedHandler) error {
	failed, err := q.MarkAsCompleted(t, outcome)
	if err != nil {
		return err
	}
	if handler == nil {
		return nil
	}
	if err := handler(taskContext(ctx, t), t, outcome, message); err != nil {
		return err
	}
	for _, ft := range failed {
		err := handler(taskContext(ctx, ft), ft, Failed, fmt.Sprintf("dependency %s failed", t.EntryPoint.Name))
		if err != nil {
			return err
		}
	}
	return nil
}

// SingleProcessExecutor runs tasks one by one on the calling goroutine.
type SingleProcessExecutor struct {
	Process ProcessFunc
	// Updater writes package.json changes of tasks.
	Updater         buildmarker.Updater
	OnTaskCompleted TaskCompletedHandler
}

var _ Executor = (*SingleProcessExecutor)(nil)

// Execute runs tasks in dependency order.
func (e *SingleProcessExecutor) Execute(ctx context.Context, tasks []*Task, graph map[string][]string) error {
	q := NewSerialQueue(tasks, graph)
	for !q.AllTasksCompleted() {
		if err := ctx.Err(); err != nil {
			return err
		}
		t := q.NextTask()
		if t == nil {
			return fmt.Errorf("no task is ready to run")
		}
		outcome, message := Cached, ""
		if !isCached(t) {
			outcome = Processed
			if err := e.Process(taskContext(ctx, t), t, e.Updater); err != nil {
				outcome, message = Failed, err.Error()
			}
		}
		if err := complete(ctx, q, t, outcome, message, e.OnTaskCompleted); err != nil {
			return err
		}
	}
	return nil
}
