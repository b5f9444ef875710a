// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package runtimex provides process sizing helpers.
// - NumCPU()
// - NumWorkers()
package runtimex

import (
	"os"
	"runtime"
	"strconv"
)

var (
	ncpu int
)

func init() {
	ncpu = runtime.NumCPU()
	if v, err := strconv.Atoi(os.Getenv("NGCC_MAX_WORKERS")); err == nil && v > 0 {
		maxWorkers = v
	}
}

var maxWorkers int

// NumCPU returns the number of logical CPUs usable by the current process.
func NumCPU() int {
	return ncpu
}

// NumWorkers returns the default size of the worker pool.
// One CPU is left for the master, and NGCC_MAX_WORKERS caps the result.
// It returns at least 1.
func NumWorkers() int {
	n := ncpu - 1
	if maxWorkers > 0 && n > maxWorkers {
		n = maxWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}
