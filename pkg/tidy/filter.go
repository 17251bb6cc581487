// Copyright 2021 The Docker Tidy Authors
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
	"strings"
)

// TagFilter is an interface which defines whether a given set of tags matches
// the filter.
type TagFilter interface {
	Matches(tags []string) bool
	Name() string
}

// BuildTagFilter builds and compiles a new tag filter for the given shell
// patterns. Blank patterns are ignored.
func BuildTagFilter(patterns []string) (TagFilter, error) {
	globs := make([]*Glob, 0, len(patterns))
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		g, err := CompileGlob(p)
		if err != nil {
			return nil, &PolicyError{Field: "exclude image", Value: p, Err: err}
		}
		globs = append(globs, g)
	}

	// If no patterns were provided, return the null filter which just returns
	// false for all matches.
	if len(globs) == 0 {
		return &TagFilterNull{}, nil
	}
	return &TagFilterGlob{globs: globs}, nil
}

var _ TagFilter = (*TagFilterNull)(nil)

// TagFilterNull always returns false.
type TagFilterNull struct{}

func (f *TagFilterNull) Matches(tags []string) bool {
	return false
}

func (f *TagFilterNull) Name() string {
	return ""
}

var _ TagFilter = (*TagFilterGlob)(nil)

// TagFilterGlob filters based on the entire list. If any tag in the list
// matches any of the patterns, it returns true.
type TagFilterGlob struct {
	globs []*Glob
}

func (f *TagFilterGlob) Matches(tags []string) bool {
	return MatchesAny(tags, f.globs)
}

func (f *TagFilterGlob) Name() string {
	names := make([]string, 0, len(f.globs))
	for _, g := range f.globs {
		names = append(names, g.String())
	}
	return strings.Join(names, ",")
}
