// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package jsscan provides a lightweight JavaScript tokenizer for locating
// declarations and statements in published bundles.
//
// It doesn't build a full AST. It tokenizes source (skipping comments
// and whitespace), tracks bracket matching and provides helpers to split
// array literals, object literals and argument lists into spans of
// source text, which is enough for rewriting bundles emitted by
// TypeScript or rollup.
//
// Regular expression literals are recognized by the preceding token,
// and template literals are kept as a single token including nested
// `${...}` expressions.
package jsscan

import (
	"fmt"
	"strings"
)

// Kind is a token kind.
type Kind int

// Token kinds.
const (
	Punct Kind = iota
	Ident
	String
	Template
	Number
	Regex
)

func (k Kind) String() string {
	switch k {
	case Punct:
		return "punct"
	case Ident:
		return "ident"
	case String:
		return "string"
	case Template:
		return "template"
	case Number:
		return "number"
	case Regex:
		return "regex"
	default:
		return fmt.Sprintf("unknown=%d", int(k))
	}
}

// Token is a token in source.
type Token struct {
	Kind  Kind
	Start int
	End   int
	Text  string
	// NewlineBefore is true if there is a line break between the
	// previous token and this token.
	NewlineBefore bool
}

// Span is a byte range [Start, End) of source.
type Span struct {
	Start int
	End   int
}

// Len returns length of the span.
func (s Span) Len() int { return s.End - s.Start }

var punctuators = []string{
	">>>=", "...", "===", "!==", "**=", "<<=", ">>=", ">>>",
	"=>", "==", "!=", "<=", ">=", "&&", "||", "??", "?.", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "**", "<<", ">>",
}

// keywords after which '/' starts a regular expression.
var regexAfterKeyword = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true,
	"of": true, "new": true, "delete": true, "void": true, "throw": true,
	"case": true, "do": true, "else": true, "yield": true, "await": true,
}

// File is a tokenized source file.
type File struct {
	Name   string
	Src    string
	Tokens []Token
	match  []int
}

// SyntaxError is an error in tokenizing.
type SyntaxError struct {
	Name   string
	Offset int
	Msg    string
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Name, e.Offset, e.Msg)
}

// Parse tokenizes src.
func Parse(name, src string) (*File, error) {
	f := &File{Name: name, Src: src}
	err := f.tokenize()
	if err != nil {
		return nil, err
	}
	f.computeMatches()
	return f, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func (f *File) regexAllowed() bool {
	if len(f.Tokens) == 0 {
		return true
	}
	prev := f.Tokens[len(f.Tokens)-1]
	switch prev.Kind {
	case Ident:
		return regexAfterKeyword[prev.Text]
	case Number, String, Template, Regex:
		return false
	}
	switch prev.Text {
	case ")", "]", "}", "++", "--":
		return false
	}
	return true
}

func (f *File) tokenize() error {
	src := f.Src
	i := 0
	newline := false
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n':
			newline = true
			i++
			continue
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			i++
			continue
		case strings.HasPrefix(src[i:], "\u00a0"):
			i += len("\u00a0")
			continue
		case strings.HasPrefix(src[i:], "\ufeff"):
			i += len("\ufeff")
			continue
		case strings.HasPrefix(src[i:], "//"):
			j := strings.IndexByte(src[i:], '\n')
			if j < 0 {
				i = len(src)
			} else {
				i += j
			}
			continue
		case strings.HasPrefix(src[i:], "/*"):
			j := strings.Index(src[i+2:], "*/")
			if j < 0 {
				return SyntaxError{Name: f.Name, Offset: i, Msg: "unterminated comment"}
			}
			if strings.Contains(src[i:i+2+j], "\n") {
				newline = true
			}
			i += 2 + j + 2
			continue
		}
		start := i
		var kind Kind
		switch {
		case isIdentStart(c):
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			kind = Ident
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			for i < len(src) && (isIdentPart(src[i]) || src[i] == '.') {
				i++
			}
			kind = Number
		case c == '"' || c == '\'':
			end, err := scanString(src, i)
			if err != nil {
				return SyntaxError{Name: f.Name, Offset: i, Msg: err.Error()}
			}
			i = end
			kind = String
		case c == '`':
			end, err := scanTemplate(src, i)
			if err != nil {
				return SyntaxError{Name: f.Name, Offset: i, Msg: err.Error()}
			}
			i = end
			kind = Template
		case c == '/' && f.regexAllowed():
			end, err := scanRegex(src, i)
			if err != nil {
				return SyntaxError{Name: f.Name, Offset: i, Msg: err.Error()}
			}
			i = end
			kind = Regex
		default:
			kind = Punct
			i++
			for _, p := range punctuators {
				if strings.HasPrefix(src[start:], p) {
					i = start + len(p)
					break
				}
			}
		}
		f.Tokens = append(f.Tokens, Token{
			Kind:          kind,
			Start:         start,
			End:           i,
			Text:          src[start:i],
			NewlineBefore: newline,
		})
		newline = false
	}
	return nil
}

func scanString(src string, i int) (int, error) {
	q := src[i]
	i++
	for i < len(src) {
		switch src[i] {
		case '\\':
			i += 2
			continue
		case q:
			return i + 1, nil
		case '\n':
			return 0, fmt.Errorf("unterminated string")
		}
		i++
	}
	return 0, fmt.Errorf("unterminated string")
}

func scanTemplate(src string, i int) (int, error) {
	i++ // skip `
	for i < len(src) {
		switch {
		case src[i] == '\\':
			i += 2
			continue
		case src[i] == '`':
			return i + 1, nil
		case strings.HasPrefix(src[i:], "${"):
			end, err := scanTemplateExpr(src, i+2)
			if err != nil {
				return 0, err
			}
			i = end
			continue
		}
		i++
	}
	return 0, fmt.Errorf("unterminated template literal")
}

// scanTemplateExpr scans a `${...}` expression body starting at i and
// returns the offset after the closing brace.
func scanTemplateExpr(src string, i int) (int, error) {
	depth := 1
	for i < len(src) {
		switch c := src[i]; c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		case '"', '\'':
			end, err := scanString(src, i)
			if err != nil {
				return 0, err
			}
			i = end
			continue
		case '`':
			end, err := scanTemplate(src, i)
			if err != nil {
				return 0, err
			}
			i = end
			continue
		}
		i++
	}
	return 0, fmt.Errorf("unterminated template expression")
}

func scanRegex(src string, i int) (int, error) {
	i++ // skip /
	inClass := false
	for i < len(src) {
		switch src[i] {
		case '\\':
			i += 2
			continue
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '/':
			if !inClass {
				i++
				for i < len(src) && isIdentPart(src[i]) {
					i++
				}
				return i, nil
			}
		case '\n':
			return 0, fmt.Errorf("unterminated regular expression")
		}
		i++
	}
	return 0, fmt.Errorf("unterminated regular expression")
}

func (f *File) computeMatches() {
	f.match = make([]int, len(f.Tokens))
	var stack []int
	for i, tok := range f.Tokens {
		f.match[i] = -1
		if tok.Kind != Punct {
			continue
		}
		switch tok.Text {
		case "(", "[", "{":
			stack = append(stack, i)
		case ")", "]", "}":
			if len(stack) == 0 {
				continue
			}
			open := stack[len(stack)-1]
			if closing(f.Tokens[open].Text) != tok.Text {
				continue
			}
			stack = stack[:len(stack)-1]
			f.match[open] = i
			f.match[i] = open
		}
	}
}

func closing(open string) string {
	switch open {
	case "(":
		return ")"
	case "[":
		return "]"
	case "{":
		return "}"
	}
	return ""
}

// Match returns the index of the token matching the bracket at i,
// or -1.
func (f *File) Match(i int) int {
	if i < 0 || i >= len(f.match) {
		return -1
	}
	return f.match[i]
}

// Is reports whether token i is a punctuator or identifier with text s.
func (f *File) Is(i int, s string) bool {
	if i < 0 || i >= len(f.Tokens) {
		return false
	}
	tok := f.Tokens[i]
	return (tok.Kind == Punct || tok.Kind == Ident) && tok.Text == s
}

// IsIdent reports whether token i is an identifier.
func (f *File) IsIdent(i int) bool {
	return i >= 0 && i < len(f.Tokens) && f.Tokens[i].Kind == Ident
}

// Text returns source text from the start of token i to the end of
// token j, or empty if j < i.
func (f *File) Text(i, j int) string {
	if j < i {
		return ""
	}
	return f.Src[f.Tokens[i].Start:f.Tokens[j].End]
}

// SpanOf returns the span from the start of token i to the end of token j.
func (f *File) SpanOf(i, j int) Span {
	return Span{Start: f.Tokens[i].Start, End: f.Tokens[j].End}
}

// FullStart returns the offset just after the token preceding i, so that
// the span from FullStart includes leading whitespace and comments.
func (f *File) FullStart(i int) int {
	if i <= 0 {
		return 0
	}
	return f.Tokens[i-1].End
}

// StringValue returns the unquoted value of a string token.
func StringValue(tok Token) string {
	if tok.Kind != String || len(tok.Text) < 2 {
		return ""
	}
	s := tok.Text[1 : len(tok.Text)-1]
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				sb.WriteByte(s[i])
			}
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
