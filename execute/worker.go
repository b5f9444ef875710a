// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package execute

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"

	"github.com/angular-go/ngcc/buildmarker"
	"github.com/angular-go/ngcc/o11y/clog"
)

func taskContext(ctx context.Context, t *Task) context.Context {
	return clog.WithLabels(ctx, clog.LabelEntryPoint, t.EntryPoint.Name, clog.LabelFormat, t.FormatProperty)
}

func isCached(t *Task) bool {
	return buildmarker.HasBeenProcessed(t.EntryPoint.PackageJSON, t.FormatProperty)
}

// RunWorker runs the worker loop: it reads process-task messages from r,
// processes tasks with process and writes replies to w.
// package.json changes are sent to the master as update-package-json
// messages. It returns nil when r is closed.
func RunWorker(ctx context.Context, r io.Reader, w io.Writer, process ProcessFunc) error {
	c := newConn(r, w)
	updater := &buildmarker.ClusterUpdater{
		Send: func(ctx context.Context, packageJSONPath string, changes []buildmarker.Change) error {
			return c.send(&Message{
				Type:            MsgUpdatePackageJSON,
				PackageJSONPath: packageJSONPath,
				Changes:         changes,
			})
		},
	}
	for {
		msg, err := c.receive()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			serr := c.send(&Message{Type: MsgError, Error: err.Error()})
			return errors.Join(err, serr)
		}
		if msg.Type != MsgProcessTask {
			err := fmt.Errorf("invalid message for worker: %q", msg.Type)
			serr := c.send(&Message{Type: MsgError, Error: err.Error()})
			return errors.Join(err, serr)
		}
		reply := processTask(taskContext(ctx, msg.Task), msg.Task, updater, process)
		if err := c.send(reply); err != nil {
			return fmt.Errorf("failed to send %s: %w", reply.Type, err)
		}
	}
}

// processTask processes t and returns the reply to the master.
// A panic is reported as an error message.
func processTask(ctx context.Context, t *Task, updater buildmarker.Updater, process ProcessFunc) (reply *Message) {
	defer func() {
		if r := recover(); r != nil {
			clog.Errorf(ctx, "panic in %s: %v\n%s", t, r, debug.Stack())
			reply = &Message{Type: MsgError, Error: fmt.Sprintf("panic in %s: %v", t, r)}
		}
	}()
	err := process(ctx, t, updater)
	if err != nil {
		return &Message{Type: MsgTaskCompleted, Outcome: Failed, Message: err.Error()}
	}
	return &Message{Type: MsgTaskCompleted, Outcome: Processed}
}
