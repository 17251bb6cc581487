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
	"strings"
	"time"

	gcrv1 "github.com/google/go-containerregistry/pkg/v1"
)

// UntaggedSentinel is the tag the daemon reports for an image with no
// repository tags.
const UntaggedSentinel = "<none>:<none>"

// Container is a point-in-time view of a container. A zero FinishedAt is the
// "never finished" sentinel (0001-01-01T00:00:00Z).
type Container struct {
	ID      string            `json:"id" yaml:"id"`
	Name    string            `json:"name" yaml:"name"`
	Created time.Time         `json:"created" yaml:"created"`
	Labels  map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`

	// Image is the reference the container was started with, ImageID the id the
	// daemon resolved it to. ImageID is only reported by newer API versions.
	Image   string `json:"image" yaml:"image"`
	ImageID string `json:"image_id,omitempty" yaml:"image_id,omitempty"`

	// State is nil when the inventory did not report any state information.
	State *ContainerState `json:"state,omitempty" yaml:"state,omitempty"`
}

// ContainerState is the run state of a container.
type ContainerState struct {
	Running    bool      `json:"running" yaml:"running"`
	Ghost      bool      `json:"ghost,omitempty" yaml:"ghost,omitempty"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
}

// Running reports whether the container is running. A container without
// state is not running.
func (c *Container) Running() bool {
	return c.State != nil && c.State.Running
}

// DisplayName is the container name without the leading slash the daemon
// prepends.
func (c *Container) DisplayName() string {
	return strings.TrimPrefix(c.Name, "/")
}

// Image is a point-in-time view of an image.
type Image struct {
	ID       string    `json:"id" yaml:"id"`
	RepoTags []string  `json:"repo_tags,omitempty" yaml:"repo_tags,omitempty"`
	Created  time.Time `json:"created" yaml:"created"`
}

// Untagged reports whether the image has no real repository tag.
func (i *Image) Untagged() bool {
	return len(i.RepoTags) == 0 || (len(i.RepoTags) == 1 && i.RepoTags[0] == UntaggedSentinel)
}

// Tags returns the repository tags, or nil for an untagged image.
func (i *Image) Tags() []string {
	if i.Untagged() {
		return nil
	}
	return i.RepoTags
}

// Volume is a volume reported by the inventory as dangling.
type Volume struct {
	Name string `json:"name" yaml:"name"`
}

// Snapshot is the inventory captured once at the start of a run. It is never
// refreshed during the run.
type Snapshot struct {
	// APIVersion is the version of the inventory schema. It selects the image
	// reference strategy, see SupportsImageIDReferences.
	APIVersion string

	Containers []*Container
	Images     []*Image
	Volumes    []*Volume

	// Uninspected holds listed containers whose inspect call failed. They are
	// never planned for removal or stop but still reference their images.
	Uninspected []*Container
}

// ShortID renders an id for humans: the algorithm prefix of a digest is
// dropped and the hex is truncated to n characters.
func ShortID(id string, n int) string {
	if h, err := gcrv1.NewHash(id); err == nil {
		id = h.Hex
	}
	if len(id) > n {
		return id[:n]
	}
	return id
}
