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
	"sort"
	"strings"
)

// ExcludeLabel protects containers carrying a matching label. Key and Value
// are shell patterns. A nil Value matches on the key alone.
type ExcludeLabel struct {
	Key   *Glob
	Value *Glob
}

// String renders the rule the way it is written on the command line.
func (l *ExcludeLabel) String() string {
	if l.Value == nil {
		return l.Key.String()
	}
	return l.Key.String() + "=" + l.Value.String()
}

// ParseExcludeLabels parses "key" or "key=value" rules. The entry is split on
// the first "=". An empty value ("key=") is a key-only rule.
func ParseExcludeLabels(raw []string) ([]*ExcludeLabel, error) {
	rules := make([]*ExcludeLabel, 0, len(raw))
	for _, entry := range raw {
		k, v, _ := strings.Cut(entry, "=")

		key, err := CompileGlob(k)
		if err != nil {
			return nil, &PolicyError{Field: "exclude container label", Value: entry, Err: err}
		}

		rule := &ExcludeLabel{Key: key}
		if v != "" {
			value, err := CompileGlob(v)
			if err != nil {
				return nil, &PolicyError{Field: "exclude container label", Value: entry, Err: err}
			}
			rule.Value = value
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Matches reports whether the rule matches the given labels.
func (l *ExcludeLabel) Matches(labels map[string]string) bool {
	if len(labels) == 0 {
		return false
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	matching := l.Key.Filter(keys)
	if len(matching) == 0 {
		return false
	}
	if l.Value == nil {
		return true
	}

	for _, k := range matching {
		if l.Value.Match(labels[k]) {
			return true
		}
	}
	return false
}

// ShouldExclude reports whether any rule protects the container. Rules are an
// OR; evaluation stops at the first match.
func ShouldExclude(c *Container, rules []*ExcludeLabel) bool {
	if len(c.Labels) == 0 {
		return false
	}
	for _, rule := range rules {
		if rule.Matches(c.Labels) {
			return true
		}
	}
	return false
}
