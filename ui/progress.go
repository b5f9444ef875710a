// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package ui provides progress reporting of an ngcc run.
package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	failedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
)

// DurationThreshold is the minimum duration worth reporting in a summary.
const DurationThreshold = 100 * time.Millisecond

// FormatDuration formats duration in "X.XXs", "XmXX.XXs" or "XhXmXX.XXs".
func FormatDuration(d time.Duration) string {
	d = d.Round(10 * time.Millisecond)
	var sb strings.Builder
	sb.Grow(32)

	mins := d.Truncate(1 * time.Minute)
	d = d - mins
	if mins > 0 {
		fmt.Fprintf(&sb, "%s", strings.TrimSuffix(mins.String(), "0s"))
		if d < 10*time.Second {
			fmt.Fprint(&sb, "0")
		}
	}
	fmt.Fprintf(&sb, "%02.02fs", d.Seconds())
	return sb.String()
}

// Progress counts task outcomes of a run and reports them.
type Progress struct {
	mu        sync.Mutex
	started   time.Time
	total     int
	processed int
	cached    int
	failed    int
}

// NewProgress starts tracking total tasks.
func NewProgress(total int) *Progress {
	return &Progress{started: time.Now(), total: total}
}

// Processed counts a successfully compiled task.
func (p *Progress) Processed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed++
}

// Cached counts a task skipped because it was already processed.
func (p *Progress) Cached() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cached++
}

// Failed counts a failed task.
func (p *Progress) Failed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed++
}

// Done returns the number of finished tasks.
func (p *Progress) Done() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processed + p.cached + p.failed
}

// Summary returns a one-line summary of the run.
func (p *Progress) Summary() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("%s tasks:%d processed:%d cached:%d failed:%d", FormatDuration(time.Since(p.started)), p.total, p.processed, p.cached, p.failed)
}

// StyledSummary is Summary colored by whether any task failed.
func (p *Progress) StyledSummary() string {
	s := p.Summary()
	p.mu.Lock()
	failed := p.failed
	p.mu.Unlock()
	if failed > 0 {
		return failedStyle.Render(s)
	}
	return okStyle.Render(s)
}
