// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package compile

import (
	"regexp"
	"strings"

	"github.com/goccy/go-json"
)

// DefinitionMap is an ordered object literal of JavaScript expressions.
type DefinitionMap struct {
	keys   []string
	values map[string]string
}

// Set sets key to expr. Empty expr is ignored.
func (m *DefinitionMap) Set(key, expr string) {
	if expr == "" {
		return
	}
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = expr
}

// Len returns the number of entries.
func (m *DefinitionMap) Len() int {
	return len(m.keys)
}

// String returns the object literal.
func (m *DefinitionMap) String() string {
	if len(m.keys) == 0 {
		return "{}"
	}
	var sb strings.Builder
	sb.WriteString("{ ")
	for i, k := range m.keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(objectKey(k))
		sb.WriteString(": ")
		sb.WriteString(m.values[k])
	}
	sb.WriteString(" }")
	return sb.String()
}

// TypeLiteral returns the map as a TypeScript object type of string
// literal types.
func (m *DefinitionMap) TypeLiteral() string {
	if len(m.keys) == 0 {
		return "{}"
	}
	var sb strings.Builder
	sb.WriteString("{ ")
	for _, k := range m.keys {
		sb.WriteString(quote(k))
		sb.WriteString(": ")
		sb.WriteString(m.values[k])
		sb.WriteString("; ")
	}
	sb.WriteString("}")
	return sb.String()
}

var identRe = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)

func objectKey(k string) string {
	if identRe.MatchString(k) {
		return k
	}
	return quote(k)
}

// quote returns s as a JavaScript string literal.
func quote(s string) string {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		// string encoding never fails.
		panic(err)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func arrayLiteral(elems []string) string {
	return "[" + strings.Join(elems, ", ") + "]"
}

func quoteAll(ss []string) []string {
	ret := make([]string, len(ss))
	for i, s := range ss {
		ret[i] = quote(s)
	}
	return ret
}
