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
	"context"
	"errors"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestTakeSnapshot(t *testing.T) {
	t.Parallel()

	inv := &fakeInventory{
		version: "1.41",
		containers: []*Container{
			{ID: "c1", Name: "/one", Image: "a:1", ImageID: "sha256:a1", Labels: map[string]string{"k": "v"}},
			{ID: "gone", Name: "/gone"},
			{ID: "flaky", Name: "/flaky"},
			{ID: "c2", Name: "/two", State: &ContainerState{Running: true}},
		},
		inspected: map[string]*Container{
			// Inspect reports the state but not the listing-only fields.
			"c1": {ID: "c1", State: finished(longAgo)},
		},
		images: []*Image{
			{ID: "sha256:a1", RepoTags: []string{"a:1"}, Created: longAgo},
		},
		volumes: []*Volume{{Name: "v1"}},
		errs: map[string]error{
			// Removed between listing and inspect.
			"inspect_container gone":  ErrInspectMiss,
			"inspect_container flaky": &TransportError{Err: context.DeadlineExceeded},
		},
	}

	policy := mustPolicy(t, &PolicyConfig{
		MaxContainerAge: "1 day",
		MaxImageAge:     "1 day",
		DanglingVolumes: true,
	})

	snap, err := TakeSnapshot(context.Background(), inv, CleanScope(policy), nil, 2)
	require.NoError(t, err)
	require.Equal(t, "1.41", snap.APIVersion)

	want := []*Container{
		{ID: "c1", Name: "/one", Image: "a:1", ImageID: "sha256:a1", Labels: map[string]string{"k": "v"}, State: finished(longAgo)},
		{ID: "c2", Name: "/two", State: &ContainerState{Running: true}},
	}
	if diff := cmp.Diff(want, snap.Containers); diff != "" {
		t.Errorf("containers mismatch (-want, +got):\n%s", diff)
	}
	// flaky is still listed, so it is kept for image references only.
	require.Equal(t, []*Container{{ID: "flaky", Name: "/flaky"}}, snap.Uninspected)
	require.Equal(t, []string{"sha256:a1"}, imageIDs(snap.Images))
	require.Equal(t, []*Volume{{Name: "v1"}}, snap.Volumes)
}

func TestTakeSnapshot_Scope(t *testing.T) {
	t.Parallel()

	inv := &fakeInventory{
		version:    "1.41",
		containers: []*Container{{ID: "c1"}},
		images:     []*Image{{ID: "i1"}},
	}

	policy := mustPolicy(t, &PolicyConfig{MaxImageAge: "1 day"})
	snap, err := TakeSnapshot(context.Background(), inv, CleanScope(policy), nil, 1)
	require.NoError(t, err)

	// Image age alone lists containers for references but does not inspect
	// them, and volumes are not listed.
	want := []string{"version", "list_containers all=true", "list_images", "inspect_image i1"}
	if diff := cmp.Diff(want, inv.calls); diff != "" {
		t.Errorf("calls mismatch (-want, +got):\n%s", diff)
	}
	require.Len(t, snap.Containers, 1)
	require.Nil(t, snap.Volumes)
}

func TestTakeSnapshot_ListFailure(t *testing.T) {
	t.Parallel()

	cause := &TransportError{Err: errors.New("connection refused")}
	inv := &fakeInventory{
		version: "1.41",
		errs:    map[string]error{"list_images": cause},
	}

	policy := mustPolicy(t, &PolicyConfig{MaxImageAge: "1 day"})
	_, err := TakeSnapshot(context.Background(), inv, CleanScope(policy), nil, 1)
	require.Error(t, err)
	require.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
}
