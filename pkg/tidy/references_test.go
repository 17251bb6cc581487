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
	"testing"
)

func TestSupportsImageIDReferences(t *testing.T) {
	t.Parallel()

	cases := []struct {
		version string
		exp     bool
	}{
		{"", false},
		{"1.9", false},
		{"1.20", false},
		{"1.21", true},
		{"1.41", true},
		{"1.51", true},
	}

	for _, tc := range cases {
		if got, want := SupportsImageIDReferences(tc.version), tc.exp; got != want {
			t.Errorf("expected %q to be %t", tc.version, want)
		}
	}
}

func TestNewReferenceResolver_Tags(t *testing.T) {
	t.Parallel()

	containers := []*Container{
		{ID: "c1", Image: "user/one:latest", ImageID: "sha256:ignored"},
		{ID: "c2", Image: "0123456789ab:latest"},
	}
	r := NewReferenceResolver("1.20", containers)

	cases := []struct {
		name string
		img  *Image
		exp  bool
	}{
		{
			name: "any_tag",
			img:  &Image{ID: "1", RepoTags: []string{"user/one:abcd", "user/one:latest"}},
			exp:  true,
		},
		{
			name: "untagged_synthesized",
			img:  &Image{ID: "0123456789abcdef", RepoTags: []string{UntaggedSentinel}},
			exp:  true,
		},
		{
			name: "untagged_unused",
			img:  &Image{ID: "fedcba9876543210"},
			exp:  false,
		},
		{
			name: "id_is_ignored",
			img:  &Image{ID: "sha256:ignored", RepoTags: []string{"other:1"}},
			exp:  false,
		},
	}

	for _, tc := range cases {
		if got, want := r.InUse(tc.img), tc.exp; got != want {
			t.Errorf("%s: expected %t to be %t", tc.name, got, want)
		}
	}
}

func TestNewReferenceResolver_IDs(t *testing.T) {
	t.Parallel()

	containers := []*Container{
		{ID: "c1", Image: "user/one:latest", ImageID: "sha256:aaa"},
	}
	r := NewReferenceResolver("1.41", containers)

	if !r.InUse(&Image{ID: "sha256:aaa", RepoTags: []string{"user/one:latest"}}) {
		t.Errorf("expected image referenced by id to be in use")
	}
	// A tag match alone is not a reference once ids are reported.
	if r.InUse(&Image{ID: "sha256:bbb", RepoTags: []string{"user/one:latest"}}) {
		t.Errorf("expected image with another id to be unused")
	}
}
