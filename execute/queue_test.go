// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package execute

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/angular-go/ngcc/entrypoint"
)

func newTask(ep *entrypoint.EntryPoint, prop string) *Task {
	return &Task{EntryPoint: ep, FormatProperty: prop, FormatPropertiesToMarkAsProcessed: []string{prop}}
}

func taskName(t *Task) string {
	if t == nil {
		return "<nil>"
	}
	return t.EntryPoint.Name + ":" + t.FormatProperty
}

func TestParallelQueue(t *testing.T) {
	a, b, c, d := newEntryPoint("a", nil), newEntryPoint("b", nil), newEntryPoint("c", nil), newEntryPoint("d", nil)
	a1, a2 := newTask(a, "fesm2015"), newTask(a, "main")
	b1, c1, d1 := newTask(b, "fesm2015"), newTask(c, "fesm2015"), newTask(d, "fesm2015")
	graph := map[string][]string{
		b.Path: {a.Path},
		d.Path: {b.Path},
	}
	q := NewParallelQueue([]*Task{a1, a2, b1, c1, d1}, graph)

	next := func(want *Task) {
		t.Helper()
		if got := q.NextTask(); got != want {
			t.Errorf("NextTask()=%s; want %s", taskName(got), taskName(want))
		}
	}
	next(a1)
	next(a2)
	next(c1)
	next(nil)
	if got, want := q.InProgress(), 3; got != want {
		t.Errorf("InProgress()=%d; want %d", got, want)
	}

	if _, err := q.MarkAsCompleted(a1, Processed); err != nil {
		t.Fatal(err)
	}
	next(nil)
	if _, err := q.MarkAsCompleted(a2, Cached); err != nil {
		t.Fatal(err)
	}
	next(b1)
	failed, err := q.MarkAsCompleted(b1, Failed)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0] != d1 {
		t.Errorf("MarkAsCompleted(b1, Failed)=%v; want [d1]", failed)
	}
	if got, want := q.State(d1), FailedState; got != want {
		t.Errorf("State(d1)=%s; want %s", got, want)
	}
	next(nil)
	if q.AllTasksCompleted() {
		t.Errorf("AllTasksCompleted()=true; want false")
	}
	if _, err := q.MarkAsCompleted(c1, Processed); err != nil {
		t.Fatal(err)
	}
	if !q.AllTasksCompleted() {
		t.Errorf("AllTasksCompleted()=false; want true")
	}
	if _, err := q.MarkAsCompleted(c1, Processed); err == nil {
		t.Errorf("MarkAsCompleted(c1) again=_, nil; want err")
	}
}

func TestSerialQueue(t *testing.T) {
	a, b := newEntryPoint("a", nil), newEntryPoint("b", nil)
	a1, b1 := newTask(a, "fesm2015"), newTask(b, "fesm2015")
	q := NewSerialQueue([]*Task{a1, b1}, nil)
	if got := q.NextTask(); got != a1 {
		t.Errorf("NextTask()=%s; want a:fesm2015", taskName(got))
	}
	if got := q.NextTask(); got != nil {
		t.Errorf("NextTask()=%s while a task is in progress; want <nil>", taskName(got))
	}
	if _, err := q.MarkAsCompleted(a1, Processed); err != nil {
		t.Fatal(err)
	}
	if got := q.NextTask(); got != b1 {
		t.Errorf("NextTask()=%s; want b:fesm2015", taskName(got))
	}
	if _, err := q.MarkAsCompleted(b1, "bogus"); err == nil {
		t.Errorf("MarkAsCompleted(b1, bogus)=_, nil; want err")
	}
}

// TestParallelQueueProperties checks that for any acyclic graph and any
// completion order, a task is handed out only after every task of its
// dependencies is completed, and every task is handed out.
func TestParallelQueueProperties(t *testing.T) {
	const maxNodes = 10
	properties := gopter.NewProperties(nil)
	properties.Property("tasks wait for their dependencies", prop.ForAll(
		func(n int, seed int64) bool {
			rnd := rand.New(rand.NewSource(seed))
			var eps []*entrypoint.EntryPoint
			var tasks []*Task
			byEntryPoint := make(map[string][]*Task)
			graph := make(map[string][]string)
			for i := 0; i < n; i++ {
				ep := newEntryPoint(fmt.Sprintf("ep%02d", i), nil)
				eps = append(eps, ep)
				for j := 0; j < 1+rnd.Intn(2); j++ {
					task := newTask(ep, fmt.Sprintf("p%d", j))
					tasks = append(tasks, task)
					byEntryPoint[ep.Path] = append(byEntryPoint[ep.Path], task)
				}
				for j := 0; j < i; j++ {
					if rnd.Intn(3) == 0 {
						graph[ep.Path] = append(graph[ep.Path], eps[j].Path)
					}
				}
			}
			q := NewParallelQueue(tasks, graph)
			completed := make(map[*Task]bool)
			var running []*Task
			handedOut := 0
			for !q.AllTasksCompleted() {
				for task := q.NextTask(); task != nil; task = q.NextTask() {
					handedOut++
					for _, dep := range graph[task.EntryPoint.Path] {
						for _, dt := range byEntryPoint[dep] {
							if !completed[dt] {
								t.Logf("%s handed out before %s", taskName(task), taskName(dt))
								return false
							}
						}
					}
					running = append(running, task)
				}
				if len(running) == 0 {
					t.Logf("no task is ready")
					return false
				}
				i := rnd.Intn(len(running))
				task := running[i]
				running = append(running[:i], running[i+1:]...)
				if _, err := q.MarkAsCompleted(task, Processed); err != nil {
					t.Logf("MarkAsCompleted(%s)=%v", taskName(task), err)
					return false
				}
				completed[task] = true
			}
			return handedOut == len(tasks)
		},
		gen.IntRange(1, maxNodes),
		gen.Int64(),
	))
	properties.TestingRun(t)
}
