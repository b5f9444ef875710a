// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package semaphore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestSemaphore_bound(t *testing.T) {
	ctx := context.Background()
	const n = 3
	s := New("test", n)
	if got := s.Capacity(); got != n {
		t.Errorf("Capacity()=%d; want %d", got, n)
	}
	var cur, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Do(ctx, func(ctx context.Context) error {
				v := cur.Add(1)
				for {
					p := peak.Load()
					if v <= p || peak.CompareAndSwap(p, v) {
						break
					}
				}
				cur.Add(-1)
				return nil
			})
			if err != nil {
				t.Errorf("Do(...)=%v; want nil err", err)
			}
		}()
	}
	wg.Wait()
	if got := peak.Load(); got > n {
		t.Errorf("peak=%d; want <= %d", got, n)
	}
	if got := s.NumServs(); got != 0 {
		t.Errorf("NumServs()=%d; want 0", got)
	}
}

func TestSemaphore_cancel(t *testing.T) {
	ctx := context.Background()
	s := New("test", 0)
	release, err := s.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire()=%v; want nil err", err)
	}
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Acquire(cctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire(canceled)=%v; want %v", err, context.Canceled)
	}
	release()
	release()
	if got := s.NumServs(); got != 0 {
		t.Errorf("NumServs()=%d after release; want 0", got)
	}
	err = s.Do(ctx, func(ctx context.Context) error {
		if got := s.NumServs(); got != 1 {
			t.Errorf("NumServs()=%d in Do; want 1", got)
		}
		return nil
	})
	if err != nil {
		t.Errorf("Do(...)=%v; want nil err", err)
	}
}
