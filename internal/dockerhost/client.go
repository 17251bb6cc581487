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

// Package dockerhost reads the inventory of a Docker Engine and removes
// resources from it.
package dockerhost

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"

	"github.com/GoogleCloudPlatform/docker-tidy/pkg/tidy"
)

// dockerAPI is the part of the engine API the host uses.
type dockerAPI interface {
	ClientVersion() string
	NegotiateAPIVersion(ctx context.Context)
	Close() error

	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error

	ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error)
	ImageInspect(ctx context.Context, imageID string, inspectOpts ...client.ImageInspectOption) (image.InspectResponse, error)
	ImageRemove(ctx context.Context, imageID string, options image.RemoveOptions) ([]image.DeleteResponse, error)

	VolumeList(ctx context.Context, options volume.ListOptions) (volume.ListResponse, error)
	VolumeRemove(ctx context.Context, volumeID string, force bool) error
}

var (
	_ tidy.Inventory = (*Host)(nil)
	_ tidy.Sink      = (*Host)(nil)
)

// Host is a Docker Engine. It implements both tidy.Inventory and tidy.Sink.
type Host struct {
	cli dockerAPI
}

// New connects to the engine configured in the environment (DOCKER_HOST and
// friends). A positive timeout bounds every API call.
func New(timeout time.Duration) (*Host, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if timeout > 0 {
		opts = append(opts, client.WithTimeout(timeout))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Host{cli: cli}, nil
}

// Close closes the underlying client.
func (h *Host) Close() error {
	return h.cli.Close()
}

// APIVersion negotiates with the engine and returns the agreed version.
func (h *Host) APIVersion(ctx context.Context) (string, error) {
	h.cli.NegotiateAPIVersion(ctx)
	v := h.cli.ClientVersion()
	if v == "" {
		return "", &tidy.TransportError{Err: fmt.Errorf("no api version negotiated")}
	}
	return v, nil
}

// ListContainers lists containers, including stopped ones when all is set.
func (h *Host) ListContainers(ctx context.Context, all bool) ([]*tidy.Container, error) {
	summaries, err := h.cli.ContainerList(ctx, container.ListOptions{All: all})
	if err != nil {
		return nil, classify(err)
	}

	out := make([]*tidy.Container, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, containerFromSummary(s))
	}
	return out, nil
}

// InspectContainer returns the run state of a container, or
// tidy.ErrInspectMiss when it no longer exists.
func (h *Host) InspectContainer(ctx context.Context, id string) (*tidy.Container, error) {
	resp, err := h.cli.ContainerInspect(ctx, id)
	if err != nil {
		return nil, classifyInspect(err)
	}
	if resp.ContainerJSONBase == nil {
		return nil, tidy.ErrInspectMiss
	}
	return containerFromInspect(resp), nil
}

// ListImages lists all top-level images.
func (h *Host) ListImages(ctx context.Context) ([]*tidy.Image, error) {
	summaries, err := h.cli.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return nil, classify(err)
	}

	out := make([]*tidy.Image, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, &tidy.Image{
			ID:       s.ID,
			RepoTags: s.RepoTags,
			Created:  time.Unix(s.Created, 0).UTC(),
		})
	}
	return out, nil
}

// InspectImage returns an image, or tidy.ErrInspectMiss when it no longer
// exists.
func (h *Host) InspectImage(ctx context.Context, id string) (*tidy.Image, error) {
	resp, err := h.cli.ImageInspect(ctx, id)
	if err != nil {
		return nil, classifyInspect(err)
	}
	return &tidy.Image{
		ID:       resp.ID,
		RepoTags: resp.RepoTags,
		Created:  parseTime(resp.Created),
	}, nil
}

// ListDanglingVolumes lists volumes no container refers to.
func (h *Host) ListDanglingVolumes(ctx context.Context) ([]*tidy.Volume, error) {
	resp, err := h.cli.VolumeList(ctx, volume.ListOptions{
		Filters: filters.NewArgs(filters.Arg("dangling", "true")),
	})
	if err != nil {
		return nil, classify(err)
	}

	out := make([]*tidy.Volume, 0, len(resp.Volumes))
	for _, v := range resp.Volumes {
		if v == nil {
			continue
		}
		out = append(out, &tidy.Volume{Name: v.Name})
	}
	return out, nil
}

// RemoveContainer removes a container and its anonymous volumes.
func (h *Host) RemoveContainer(ctx context.Context, id string) error {
	return classify(h.cli.ContainerRemove(ctx, id, container.RemoveOptions{RemoveVolumes: true}))
}

// RemoveImage removes an image reference. For a tag this only untags unless it
// is the last reference.
func (h *Host) RemoveImage(ctx context.Context, ref string) error {
	_, err := h.cli.ImageRemove(ctx, ref, image.RemoveOptions{})
	return classify(err)
}

// RemoveVolume removes a volume.
func (h *Host) RemoveVolume(ctx context.Context, name string) error {
	return classify(h.cli.VolumeRemove(ctx, name, false))
}

// StopContainer stops a container with the engine's default grace period.
func (h *Host) StopContainer(ctx context.Context, id string) error {
	return classify(h.cli.ContainerStop(ctx, id, container.StopOptions{}))
}

func containerFromSummary(s container.Summary) *tidy.Container {
	c := &tidy.Container{
		ID:      s.ID,
		Labels:  s.Labels,
		Image:   s.Image,
		ImageID: s.ImageID,
		Created: time.Unix(s.Created, 0).UTC(),
	}
	if len(s.Names) > 0 {
		c.Name = s.Names[0]
	}
	if s.State != "" {
		c.State = &tidy.ContainerState{Running: strings.EqualFold(string(s.State), "running")}
	}
	return c
}

func containerFromInspect(r container.InspectResponse) *tidy.Container {
	c := &tidy.Container{
		ID:      r.ID,
		Name:    r.Name,
		Created: parseTime(r.Created),
		ImageID: r.Image,
	}
	if r.Config != nil {
		c.Image = r.Config.Image
		c.Labels = r.Config.Labels
	}
	if r.State != nil {
		c.State = &tidy.ContainerState{
			Running:    r.State.Running,
			StartedAt:  parseTime(r.State.StartedAt),
			FinishedAt: parseTime(r.State.FinishedAt),
		}
	}
	return c
}

// parseTime parses an engine timestamp. The engine reports events that never
// happened as 0001-01-01T00:00:00Z, which parses to the zero time; anything
// unparseable is treated the same way.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
