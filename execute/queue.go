// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package execute

import (
	"fmt"
)

// State is a state of a task in a queue.
type State int

// Task states.
const (
	Pending State = iota
	InProgress
	Marked
	FailedState
	CachedState
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case InProgress:
		return "in-progress"
	case Marked:
		return "marked"
	case FailedState:
		return "failed"
	case CachedState:
		return "cached"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Done reports whether s is a final state.
func (s State) Done() bool {
	return s == Marked || s == FailedState || s == CachedState
}

// Queue holds tasks to execute.
type Queue interface {
	// NextTask returns a task ready to run and marks it in progress.
	// It returns nil when no task is ready.
	NextTask() *Task
	// MarkAsCompleted marks an in-progress task as completed.
	// It returns tasks that failed because task failed.
	MarkAsCompleted(task *Task, outcome Outcome) ([]*Task, error)
	// AllTasksCompleted reports whether every task is completed.
	AllTasksCompleted() bool
	// InProgress returns the number of in-progress tasks.
	InProgress() int
	// State returns the state of task.
	State(task *Task) State
}

// queue keeps tasks in dependency order and hands out a task once
// every task of its dependency entry-points is completed.
type queue struct {
	tasks  []*Task
	states map[*Task]State
	// byEntryPoint maps entry-point path to its tasks.
	byEntryPoint map[string][]*Task
	// dependents maps entry-point path to entry-points depending on it
	// directly.
	dependents  map[string][]string
	graph       map[string][]string
	inProgress  int
	maxParallel int
}

func newQueue(tasks []*Task, graph map[string][]string, maxParallel int) *queue {
	q := &queue{
		tasks:        tasks,
		states:       make(map[*Task]State, len(tasks)),
		byEntryPoint: make(map[string][]*Task),
		dependents:   make(map[string][]string),
		graph:        graph,
		maxParallel:  maxParallel,
	}
	for _, t := range tasks {
		q.states[t] = Pending
		q.byEntryPoint[t.EntryPoint.Path] = append(q.byEntryPoint[t.EntryPoint.Path], t)
	}
	for ep, deps := range graph {
		for _, dep := range deps {
			q.dependents[dep] = append(q.dependents[dep], ep)
		}
	}
	return q
}

func (q *queue) ready(t *Task) bool {
	for _, dep := range q.graph[t.EntryPoint.Path] {
		for _, dt := range q.byEntryPoint[dep] {
			s := q.states[dt]
			if s != Marked && s != CachedState {
				return false
			}
		}
	}
	return true
}

func (q *queue) NextTask() *Task {
	if q.maxParallel > 0 && q.inProgress >= q.maxParallel {
		return nil
	}
	for _, t := range q.tasks {
		if q.states[t] != Pending || !q.ready(t) {
			continue
		}
		q.states[t] = InProgress
		q.inProgress++
		return t
	}
	return nil
}

func (q *queue) MarkAsCompleted(task *Task, outcome Outcome) ([]*Task, error) {
	s, ok := q.states[task]
	if !ok {
		return nil, fmt.Errorf("unknown task %s", task)
	}
	if s != InProgress {
		return nil, fmt.Errorf("task %s is %s, not in progress", task, s)
	}
	q.inProgress--
	switch outcome {
	case Processed:
		q.states[task] = Marked
	case Cached:
		q.states[task] = CachedState
	case Failed:
		q.states[task] = FailedState
		return q.failDependents(task.EntryPoint.Path), nil
	default:
		return nil, fmt.Errorf("unknown outcome %q of task %s", outcome, task)
	}
	return nil, nil
}

// failDependents marks pending tasks of entry-points depending on ep,
// directly or transitively, as failed.
func (q *queue) failDependents(ep string) []*Task {
	var failed []*Task
	seen := map[string]bool{ep: true}
	stack := []string{ep}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range q.dependents[p] {
			if seen[d] {
				continue
			}
			seen[d] = true
			stack = append(stack, d)
			for _, t := range q.byEntryPoint[d] {
				if q.states[t] == Pending {
					q.states[t] = FailedState
					failed = append(failed, t)
				}
			}
		}
	}
	return failed
}

func (q *queue) AllTasksCompleted() bool {
	for _, t := range q.tasks {
		if !q.states[t].Done() {
			return false
		}
	}
	return true
}

func (q *queue) InProgress() int {
	return q.inProgress
}

func (q *queue) State(task *Task) State {
	return q.states[task]
}

// SerialQueue hands out one task at a time in dependency order.
type SerialQueue struct {
	*queue
}

// NewSerialQueue returns a serial queue of tasks. graph maps an
// entry-point path to paths of the entry-points it depends on.
func NewSerialQueue(tasks []*Task, graph map[string][]string) *SerialQueue {
	return &SerialQueue{queue: newQueue(tasks, graph, 1)}
}

// ParallelQueue hands out any task whose dependencies are completed.
// It is not safe for concurrent use; the master owns it.
type ParallelQueue struct {
	*queue
}

// NewParallelQueue returns a parallel queue of tasks. graph maps an
// entry-point path to paths of the entry-points it depends on.
func NewParallelQueue(tasks []*Task, graph map[string][]string) *ParallelQueue {
	return &ParallelQueue{queue: newQueue(tasks, graph, 0)}
}
