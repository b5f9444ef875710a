// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package render

import "testing"

func TestBuffer(t *testing.T) {
	for _, tc := range []struct {
		name string
		edit func(b *Buffer)
		want string
	}{
		{
			name: "none",
			edit: func(b *Buffer) {},
			want: "0123456789",
		},
		{
			name: "inserts in call order",
			edit: func(b *Buffer) {
				b.Insert(5, "a")
				b.Insert(0, "<")
				b.Insert(5, "b")
				b.Insert(10, ">")
			},
			want: "<01234ab56789>",
		},
		{
			name: "insert before removal at same offset",
			edit: func(b *Buffer) {
				b.Remove(2, 4)
				b.Insert(2, "x")
			},
			want: "01x456789",
		},
		{
			name: "overlapping removals merge",
			edit: func(b *Buffer) {
				b.Remove(2, 5)
				b.Remove(4, 7)
				b.Remove(3, 4)
			},
			want: "01789",
		},
		{
			name: "insert inside removal is dropped",
			edit: func(b *Buffer) {
				b.Remove(2, 6)
				b.Insert(4, "x")
				b.Insert(6, "y")
			},
			want: "01y6789",
		},
		{
			name: "replace",
			edit: func(b *Buffer) {
				b.Replace(0, 3, "abc")
			},
			want: "abc3456789",
		},
	} {
		b := NewBuffer("0123456789")
		tc.edit(b)
		if got := b.String(); got != tc.want {
			t.Errorf("%s: String()=%q; want %q", tc.name, got, tc.want)
		}
	}
}
