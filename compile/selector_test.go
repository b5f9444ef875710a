// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package compile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseSelector(t *testing.T) {
	for _, tc := range []struct {
		selector string
		want     []*CSSSelector
	}{
		{
			selector: "app-foo",
			want:     []*CSSSelector{{Element: "app-foo"}},
		},
		{
			selector: "button.primary[type=submit]",
			want: []*CSSSelector{{
				Element:    "button",
				ClassNames: []string{"primary"},
				Attrs:      [][2]string{{"type", "submit"}},
			}},
		},
		{
			selector: "[ngModel]:not([formControl]), #main",
			want: []*CSSSelector{
				{
					Attrs:        [][2]string{{"ngModel", ""}},
					NotSelectors: []*CSSSelector{{Attrs: [][2]string{{"formControl", ""}}}},
				},
				{Attrs: [][2]string{{"id", "main"}}},
			},
		},
		{
			selector: ":not(.a)",
			want: []*CSSSelector{{
				Element:      "*",
				NotSelectors: []*CSSSelector{{ClassNames: []string{"a"}}},
			}},
		},
	} {
		got, err := ParseSelector(tc.selector)
		if err != nil {
			t.Errorf("ParseSelector(%q)=%v; want nil err", tc.selector, err)
			continue
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("ParseSelector(%q) diff -want +got:\n%s", tc.selector, diff)
		}
	}
}

func TestParseSelector_error(t *testing.T) {
	for _, selector := range []string{
		"",
		":not(:not(a))",
		":not(a, b)",
		"a)",
		":not(a",
		"[$x]",
		"a > b",
	} {
		if _, err := ParseSelector(selector); err == nil {
			t.Errorf("ParseSelector(%q)=nil err; want error", selector)
		}
	}
}
