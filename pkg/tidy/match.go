// Copyright 2024 The Docker Tidy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tidy

import (
	"fmt"
	"regexp"
	"strings"
)

// Glob is a compiled shell pattern. It follows fnmatch(3) semantics as
// operators know them from the shell: "*" matches any run of characters
// (including "/"), "?" matches one character, "[...]" is a character class
// and "[!...]" its negation. Matching is case-sensitive. An unterminated "["
// matches itself.
type Glob struct {
	pattern string
	re      *regexp.Regexp
}

// CompileGlob compiles the given pattern.
func CompileGlob(pattern string) (*Glob, error) {
	re, err := regexp.Compile(translateGlob(pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to compile pattern %q: %w", pattern, err)
	}
	return &Glob{pattern: pattern, re: re}, nil
}

// MustCompileGlob is like CompileGlob but panics on error.
func MustCompileGlob(pattern string) *Glob {
	g, err := CompileGlob(pattern)
	if err != nil {
		panic(err)
	}
	return g
}

// String returns the source pattern.
func (g *Glob) String() string {
	return g.pattern
}

// Match reports whether s matches the whole pattern.
func (g *Glob) Match(s string) bool {
	return g.re.MatchString(s)
}

// Filter returns the candidates that match, in order.
func (g *Glob) Filter(candidates []string) []string {
	var out []string
	for _, c := range candidates {
		if g.Match(c) {
			out = append(out, c)
		}
	}
	return out
}

// Matches reports whether any candidate matches the pattern.
func Matches(candidates []string, pattern *Glob) bool {
	for _, c := range candidates {
		if pattern.Match(c) {
			return true
		}
	}
	return false
}

// MatchesAny reports whether any candidate matches any of the patterns.
func MatchesAny(candidates []string, patterns []*Glob) bool {
	for _, p := range patterns {
		if Matches(candidates, p) {
			return true
		}
	}
	return false
}

// translateGlob converts a shell pattern into an anchored regular expression.
func translateGlob(pattern string) string {
	var b strings.Builder
	b.WriteString(`(?s)\A`)

	p := []rune(pattern)
	n := len(p)
	for i := 0; i < n; {
		c := p[i]
		i++

		switch c {
		case '*':
			for i < n && p[i] == '*' {
				i++
			}
			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		case '[':
			j := i
			if j < n && p[j] == '!' {
				j++
			}
			if j < n && p[j] == ']' {
				j++
			}
			for j < n && p[j] != ']' {
				j++
			}
			if j >= n {
				b.WriteString(`\[`)
				continue
			}

			class := p[i:j]
			i = j + 1

			b.WriteByte('[')
			for k, r := range class {
				switch {
				case k == 0 && r == '!':
					b.WriteByte('^')
				case r == '\\' || r == '[' || r == ']' || r == '^':
					b.WriteByte('\\')
					b.WriteRune(r)
				default:
					b.WriteRune(r)
				}
			}
			b.WriteByte(']')
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}

	b.WriteString(`\z`)
	return b.String()
}
