// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package render

import (
	"sort"
	"strings"
)

type edit struct {
	start, end int
	text       string
}

// Buffer records edits of a source text by offsets of the original text.
// Inserts at the same offset are applied in call order. An edit that
// overlaps an earlier removal is clipped to the text after it.
type Buffer struct {
	src   string
	edits []edit
}

// NewBuffer returns a buffer for src.
func NewBuffer(src string) *Buffer {
	return &Buffer{src: src}
}

// Insert inserts text at offset pos.
func (b *Buffer) Insert(pos int, text string) {
	b.edits = append(b.edits, edit{start: pos, end: pos, text: text})
}

// Remove removes text in [start, end).
func (b *Buffer) Remove(start, end int) {
	b.Replace(start, end, "")
}

// Replace replaces text in [start, end) with text.
func (b *Buffer) Replace(start, end int, text string) {
	b.edits = append(b.edits, edit{start: start, end: end, text: text})
}

// Changed reports whether any edit was recorded.
func (b *Buffer) Changed() bool {
	return len(b.edits) > 0
}

// String returns the edited text.
func (b *Buffer) String() string {
	edits := append([]edit(nil), b.edits...)
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].start != edits[j].start {
			return edits[i].start < edits[j].start
		}
		// inserts go before removals at the same offset.
		return edits[i].end-edits[i].start == 0 && edits[j].end-edits[j].start > 0
	})
	var sb strings.Builder
	pos := 0
	for _, e := range edits {
		if e.start < pos {
			if e.end <= pos {
				continue
			}
			e.start = pos
			e.text = ""
		}
		sb.WriteString(b.src[pos:e.start])
		sb.WriteString(e.text)
		pos = e.end
	}
	sb.WriteString(b.src[pos:])
	return sb.String()
}
