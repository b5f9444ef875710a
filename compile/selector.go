// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package compile

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// CSSSelector is a parsed directive selector.
type CSSSelector struct {
	Element    string
	ClassNames []string
	// Attrs are name and value pairs.
	Attrs        [][2]string
	NotSelectors []*CSSSelector
}

var selectorRe = regexp.MustCompile(`(:not\()|` + // 1: ":not("
	`(([\.\#]?)[-\w]+)|` + // 2: tag; 3: prefix
	`(?:\[([-.\w*\\$]+)(?:=(?:"([^"]*)"|'([^']*)'|([^\]\s]+)))?\])|` + // 4: attr name; 5,6,7: value
	`(\))|` + // 8: ")"
	`(\s*,\s*)`) // 9: ","

// ParseSelector parses a comma separated list of selectors.
func ParseSelector(selector string) ([]*CSSSelector, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, errors.New("empty selector")
	}
	var results []*CSSSelector
	cur := &CSSSelector{}
	target := cur
	inNot := false
	add := func() {
		if len(cur.NotSelectors) > 0 && cur.Element == "" && len(cur.ClassNames) == 0 && len(cur.Attrs) == 0 {
			cur.Element = "*"
		}
		results = append(results, cur)
	}
	end := 0
	for _, m := range selectorRe.FindAllStringSubmatchIndex(selector, -1) {
		if gap := strings.TrimSpace(selector[end:m[0]]); gap != "" {
			return nil, fmt.Errorf("unexpected %q", gap)
		}
		end = m[1]
		group := func(i int) string {
			if m[2*i] < 0 {
				return ""
			}
			return selector[m[2*i]:m[2*i+1]]
		}
		switch {
		case group(1) != "":
			if inNot {
				return nil, errors.New("nesting :not in a selector is not allowed")
			}
			inNot = true
			target = &CSSSelector{}
			cur.NotSelectors = append(cur.NotSelectors, target)
		case group(2) != "":
			tag := group(2)
			switch group(3) {
			case "#":
				target.Attrs = append(target.Attrs, [2]string{"id", tag[1:]})
			case ".":
				target.ClassNames = append(target.ClassNames, tag[1:])
			default:
				target.Element = tag
			}
		case group(4) != "":
			name := group(4)
			if strings.Contains(strings.ReplaceAll(name, `\$`, ""), "$") {
				return nil, fmt.Errorf("unescaped \"$\" in attribute selector %q", name)
			}
			name = strings.ReplaceAll(name, `\`, "")
			target.Attrs = append(target.Attrs, [2]string{name, group(5) + group(6) + group(7)})
		case group(8) != "":
			if !inNot {
				return nil, errors.New("unbalanced \")\"")
			}
			inNot = false
			target = cur
		case group(9) != "":
			if inNot {
				return nil, errors.New("multiple selectors in :not are not supported")
			}
			add()
			cur = &CSSSelector{}
			target = cur
		}
	}
	if gap := strings.TrimSpace(selector[end:]); gap != "" {
		return nil, fmt.Errorf("unexpected %q", gap)
	}
	if inNot {
		return nil, errors.New("unterminated :not")
	}
	add()
	return results, nil
}
