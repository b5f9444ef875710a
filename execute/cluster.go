// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package execute

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angular-go/ngcc/buildmarker"
	"github.com/angular-go/ngcc/entrypoint"
	"github.com/angular-go/ngcc/o11y/clog"
	"github.com/angular-go/ngcc/runtimex"
	"github.com/angular-go/ngcc/sync/semaphore"
)

// WorkerIDEnv is the environment variable carrying the id of a worker
// process.
const WorkerIDEnv = "NGCC_WORKER_ID"

// spawnSema bounds concurrent starts of worker processes.
var spawnSema = semaphore.New("worker-spawn", runtimex.NumCPU())

// WorkerError is a fatal error of a worker.
type WorkerError struct {
	Worker int
	Err    error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker #%d: %v", e.Worker, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}

// ClusterExecutor runs tasks on a pool of workers coordinated by the
// master, the calling goroutine. The master owns the queue and is the
// only writer of package.json files.
type ClusterExecutor struct {
	// Workers is the number of workers.
	Workers int
	// Command is the command line of a worker process, which runs
	// RunWorker over its stdin and stdout. Workers are goroutines
	// running Process when Command is empty.
	Command []string
	Process ProcessFunc
	// Updater writes package.json changes sent by workers.
	Updater         buildmarker.Updater
	OnTaskCompleted TaskCompletedHandler
	// TaskTimeout fails a task not completed in time and replaces its
	// worker. Zero means no timeout.
	TaskTimeout time.Duration
}

var _ Executor = (*ClusterExecutor)(nil)

type worker struct {
	id   int
	conn *conn

	closeInput func() error
	kill       func()
	wait       func() error

	// fields below are owned by the master loop.
	task      *Task
	seq       int
	timer     *time.Timer
	discarded bool
}

type event struct {
	w       *worker
	seq     int
	msg     *Message
	err     error
	timeout bool
}

type master struct {
	e       *ClusterExecutor
	q       *ParallelQueue
	workers []*worker
	nextID  int
	events  chan event
	quit    chan struct{}
	eg      errgroup.Group
}

// Execute runs tasks on workers. A task is dispatched once every task
// of the entry-points it depends on is completed.
func (e *ClusterExecutor) Execute(ctx context.Context, tasks []*Task, graph map[string][]string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	m := &master{
		e:      e,
		q:      NewParallelQueue(tasks, graph),
		events: make(chan event),
		quit:   make(chan struct{}),
	}
	n := e.Workers
	if n < 1 {
		n = 1
	}
	if n > len(tasks) {
		n = len(tasks)
	}
	clog.Infof(ctx, "running %d tasks on %d workers", len(tasks), n)
	err := m.start(ctx, n)
	if err == nil {
		err = m.loop(ctx)
	}
	m.shutdown(err != nil)
	return err
}

func (m *master) start(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		w, err := m.startWorker(ctx)
		if err != nil {
			return err
		}
		m.workers = append(m.workers, w)
	}
	return nil
}

func (m *master) startWorker(ctx context.Context) (*worker, error) {
	m.nextID++
	id := m.nextID
	var w *worker
	var err error
	if len(m.e.Command) > 0 {
		w, err = startProcessWorker(ctx, id, m.e.Command)
	} else {
		w = startGoroutineWorker(ctx, id, m.e.Process)
	}
	if err != nil {
		return nil, &WorkerError{Worker: id, Err: err}
	}
	clog.Debugf(ctx, "started worker #%d", id)
	m.eg.Go(func() error {
		m.read(w)
		return w.wait()
	})
	return w, nil
}

func startProcessWorker(ctx context.Context, id int, command []string) (*worker, error) {
	c := exec.CommandContext(ctx, command[0], command[1:]...)
	c.Env = append(os.Environ(), WorkerIDEnv+"="+strconv.Itoa(id))
	c.Stderr = os.Stderr
	stdin, err := c.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := c.StdoutPipe()
	if err != nil {
		return nil, err
	}
	err = spawnSema.Do(ctx, func(ctx context.Context) error {
		return c.Start()
	})
	if err != nil {
		return nil, err
	}
	return &worker{
		id:         id,
		conn:       newConn(stdout, stdin),
		closeInput: stdin.Close,
		kill: func() {
			_ = c.Process.Kill()
		},
		wait: func() error {
			_ = c.Wait()
			return nil
		},
	}, nil
}

var errKilled = errors.New("worker killed")

// startGoroutineWorker starts RunWorker on a goroutine connected with
// pipes. A killed worker can't be stopped while process runs; it is
// abandoned.
func startGoroutineWorker(ctx context.Context, id int, process ProcessFunc) *worker {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	wctx, cancel := context.WithCancel(clog.WithLabels(ctx, clog.LabelWorker, id))
	go func() {
		err := RunWorker(wctx, inR, outW, process)
		if err != nil {
			clog.Errorf(wctx, "worker #%d: %v", id, err)
		}
		outW.CloseWithError(err)
		inR.Close()
	}()
	return &worker{
		id:         id,
		conn:       newConn(outR, inW),
		closeInput: inW.Close,
		kill: func() {
			cancel()
			outR.CloseWithError(errKilled)
			inW.CloseWithError(errKilled)
		},
		wait: func() error { return nil },
	}
}

// read forwards messages of w to the master until w is closed.
func (m *master) read(w *worker) {
	for {
		msg, err := w.conn.receive()
		select {
		case m.events <- event{w: w, msg: msg, err: err}:
		case <-m.quit:
			return
		}
		if err != nil {
			return
		}
	}
}

// shutdown stops workers. Workers finish their current task unless
// abort.
func (m *master) shutdown(abort bool) {
	for _, w := range m.workers {
		w.stopTimer()
		if abort {
			w.kill()
			continue
		}
		_ = w.closeInput()
	}
	close(m.quit)
	_ = m.eg.Wait()
}

func (w *worker) stopTimer() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.seq++
}

func (m *master) complete(ctx context.Context, t *Task, outcome Outcome, message string) error {
	return complete(ctx, m.q, t, outcome, message, m.e.OnTaskCompleted)
}

// nextTask returns the next task to dispatch, completing cached tasks
// on the way.
func (m *master) nextTask(ctx context.Context) (*Task, error) {
	for {
		t := m.q.NextTask()
		if t == nil || !isCached(t) {
			return t, nil
		}
		if err := m.complete(ctx, t, Cached, ""); err != nil {
			return nil, err
		}
	}
}

func (m *master) dispatch(ctx context.Context, w *worker, t *Task) error {
	w.task = t
	w.seq++
	if m.e.TaskTimeout > 0 {
		seq := w.seq
		w.timer = time.AfterFunc(m.e.TaskTimeout, func() {
			select {
			case m.events <- event{w: w, seq: seq, timeout: true}:
			case <-m.quit:
			}
		})
	}
	clog.Debugf(ctx, "dispatch %s to worker #%d", t, w.id)
	if err := w.conn.send(&Message{Type: MsgProcessTask, Task: t}); err != nil {
		return &WorkerError{Worker: w.id, Err: fmt.Errorf("failed to send task: %w", err)}
	}
	return nil
}

func (m *master) loop(ctx context.Context) error {
	for {
		for _, w := range m.workers {
			if w.task != nil {
				continue
			}
			t, err := m.nextTask(ctx)
			if err != nil {
				return err
			}
			if t == nil {
				break
			}
			if err := m.dispatch(ctx, w, t); err != nil {
				return err
			}
		}
		if m.q.AllTasksCompleted() {
			return nil
		}
		if m.q.InProgress() == 0 {
			return fmt.Errorf("no task is ready to run")
		}
		select {
		case ev := <-m.events:
			if err := m.handle(ctx, ev); err != nil {
				return err
			}
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	}
}

func (m *master) handle(ctx context.Context, ev event) error {
	w := ev.w
	if w.discarded {
		return nil
	}
	switch {
	case ev.timeout:
		if ev.seq != w.seq || w.task == nil {
			return nil
		}
		t := w.task
		w.task = nil
		w.stopTimer()
		clog.Warningf(ctx, "worker #%d: %s timed out after %s", w.id, t, m.e.TaskTimeout)
		if err := m.replace(ctx, w); err != nil {
			return err
		}
		return m.complete(ctx, t, Failed, fmt.Sprintf("timed out after %s", m.e.TaskTimeout))
	case errors.Is(ev.err, io.EOF):
		return &WorkerError{Worker: w.id, Err: errors.New("exited unexpectedly")}
	case ev.err != nil:
		return &WorkerError{Worker: w.id, Err: ev.err}
	}
	msg := ev.msg
	switch msg.Type {
	case MsgTaskCompleted:
		t := w.task
		if t == nil {
			return &WorkerError{Worker: w.id, Err: errors.New("task-completed without task")}
		}
		w.task = nil
		w.stopTimer()
		return m.complete(ctx, t, msg.Outcome, msg.Message)
	case MsgUpdatePackageJSON:
		var pkg entrypoint.PackageJSON
		if w.task != nil && w.task.EntryPoint.PackageJSONPath() == msg.PackageJSONPath {
			pkg = w.task.EntryPoint.PackageJSON
		}
		return m.e.Updater.WriteChanges(ctx, msg.PackageJSONPath, pkg, msg.Changes)
	case MsgError:
		t := w.task
		if t == nil {
			return &WorkerError{Worker: w.id, Err: errors.New(msg.Error)}
		}
		w.task = nil
		w.stopTimer()
		clog.Errorf(ctx, "worker #%d: %s: %s", w.id, t, msg.Error)
		return m.complete(ctx, t, Failed, msg.Error)
	}
	return &WorkerError{Worker: w.id, Err: &ProtocolError{Type: msg.Type}}
}

// replace discards w and starts a new worker in its place.
func (m *master) replace(ctx context.Context, w *worker) error {
	w.discarded = true
	w.kill()
	nw, err := m.startWorker(ctx)
	if err != nil {
		return err
	}
	for i := range m.workers {
		if m.workers[i] == w {
			m.workers[i] = nw
		}
	}
	return nil
}
