// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package semaphore provides named semaphores to bound concurrent
// filesystem access and worker spawns.
package semaphore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Semaphore is a named counting semaphore.
type Semaphore struct {
	name  string
	ch    chan struct{}
	waits atomic.Int64
}

// New creates a new semaphore with name and capacity.
// A capacity smaller than 1 is treated as 1.
func New(name string, n int) *Semaphore {
	if n < 1 {
		n = 1
	}
	return &Semaphore{
		name: name,
		ch:   make(chan struct{}, n),
	}
}

// Acquire waits for a slot and returns func to release it.
// The release func is safe to call more than once.
func (s *Semaphore) Acquire(ctx context.Context) (func(), error) {
	s.waits.Add(1)
	defer s.waits.Add(-1)
	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() { <-s.ch })
		}, nil
	case <-ctx.Done():
		return func() {}, fmt.Errorf("semaphore %s: %w", s.name, context.Cause(ctx))
	}
}

// Do runs f while holding a slot.
func (s *Semaphore) Do(ctx context.Context, f func(ctx context.Context) error) error {
	release, err := s.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return f(ctx)
}

// Name returns name of the semaphore.
func (s *Semaphore) Name() string {
	return s.name
}

// Capacity returns capacity of the semaphore.
func (s *Semaphore) Capacity() int {
	return cap(s.ch)
}

// NumServs returns number of slots in use.
func (s *Semaphore) NumServs() int {
	return len(s.ch)
}

// NumWaits returns number of waiters.
func (s *Semaphore) NumWaits() int {
	return int(s.waits.Load())
}

func (s *Semaphore) String() string {
	return fmt.Sprintf("%s %d/%d waits:%d", s.name, s.NumServs(), s.Capacity(), s.NumWaits())
}
