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

	"github.com/gammazero/workerpool"
)

// Inventory is the read side of the host. Listing calls return records in the
// daemon's listing order.
type Inventory interface {
	// APIVersion is the version of the schema the inventory reports.
	APIVersion(ctx context.Context) (string, error)

	ListContainers(ctx context.Context, all bool) ([]*Container, error)
	InspectContainer(ctx context.Context, id string) (*Container, error)
	ListImages(ctx context.Context) ([]*Image, error)
	InspectImage(ctx context.Context, id string) (*Image, error)
	ListDanglingVolumes(ctx context.Context) ([]*Volume, error)
}

// SnapshotScope selects what a snapshot captures.
type SnapshotScope struct {
	// Containers lists containers; AllContainers includes stopped ones.
	Containers    bool
	AllContainers bool

	// InspectContainers fetches the run state of every listed container.
	InspectContainers bool

	Images  bool
	Volumes bool
}

// CleanScope is the scope needed by the gc phases enabled in the policy.
func CleanScope(p *Policy) SnapshotScope {
	return SnapshotScope{
		Containers:        p.MaxContainerAge.IsSet() || p.MaxImageAge.IsSet(),
		AllContainers:     true,
		InspectContainers: p.MaxContainerAge.IsSet(),
		Images:            p.MaxImageAge.IsSet(),
		Volumes:           p.RemoveDanglingVolumes,
	}
}

// StopScope is the scope needed by the stop command.
func StopScope(p *Policy) SnapshotScope {
	return SnapshotScope{
		Containers:        p.MaxRunTime.IsSet(),
		InspectContainers: p.MaxRunTime.IsSet(),
	}
}

// TakeSnapshot reads the inventory once. A failing list call is returned as an
// error. A record that disappeared before its inspect call is dropped; a
// container whose inspect call failed otherwise is kept in Uninspected. Records
// keep the listing order.
func TakeSnapshot(ctx context.Context, inv Inventory, scope SnapshotScope, logger *Logger, concurrency int) (*Snapshot, error) {
	if logger == nil {
		logger = NopLogger()
	}

	version, err := inv.APIVersion(ctx)
	if err != nil {
		return nil, InventoryError("get inventory api version", err)
	}
	snap := &Snapshot{APIVersion: version}

	if scope.Containers {
		logger.Info("getting all containers")
		containers, err := inv.ListContainers(ctx, scope.AllContainers)
		if err != nil {
			return nil, InventoryError("list containers", err)
		}
		logger.Info("found containers", "count", len(containers))

		if scope.InspectContainers {
			containers, snap.Uninspected = inspectAll(ctx, logger, concurrency, "inspect_container", "container", containers,
				func(c *Container) string { return c.ID },
				inv.InspectContainer, mergeContainer)
		}
		snap.Containers = containers
	}

	if scope.Images {
		logger.Info("getting all images")
		images, err := inv.ListImages(ctx)
		if err != nil {
			return nil, InventoryError("list images", err)
		}
		logger.Info("found images", "count", len(images))

		snap.Images, _ = inspectAll(ctx, logger, concurrency, "inspect_image", "image", images,
			func(i *Image) string { return i.ID },
			inv.InspectImage, mergeImage)
	}

	if scope.Volumes {
		logger.Info("getting dangling volumes")
		volumes, err := inv.ListDanglingVolumes(ctx)
		if err != nil {
			return nil, InventoryError("list dangling volumes", err)
		}
		logger.Info("found dangling volumes", "count", len(volumes))
		snap.Volumes = volumes
	}

	return snap, nil
}

// inspectAll inspects every listed record and merges the listed fields into
// the inspected one. Records reported missing are dropped; the listed records
// whose inspect call failed otherwise are returned as failed.
func inspectAll[T any](
	ctx context.Context,
	logger *Logger,
	concurrency int,
	op, param string,
	listed []*T,
	id func(*T) string,
	inspect func(context.Context, string) (*T, error),
	merge func(listed, inspected *T) *T,
) (out, failed []*T) {
	if concurrency < 1 {
		concurrency = 1
	}

	inspected := make([]*T, len(listed))
	errs := make([]error, len(listed))

	pool := workerpool.New(concurrency)
	for i, rec := range listed {
		i, rec := i, rec
		pool.Submit(func() {
			inspected[i], errs[i] = inspect(ctx, id(rec))
		})
	}
	pool.StopWait()

	out = make([]*T, 0, len(listed))
	for i, rec := range listed {
		switch err := errs[i]; {
		case errors.Is(err, ErrInspectMiss) || (err == nil && inspected[i] == nil):
			logger.Debug("skipping, already removed", param, id(rec))
		case err != nil:
			warnCallFailure(logger, op, param+"="+id(rec), err)
			failed = append(failed, rec)
		default:
			out = append(out, merge(rec, inspected[i]))
		}
	}
	return out, failed
}

// mergeContainer completes an inspected container with the fields only the
// listing reports.
func mergeContainer(listed, inspected *Container) *Container {
	c := *inspected
	if c.ID == "" {
		c.ID = listed.ID
	}
	if c.Name == "" {
		c.Name = listed.Name
	}
	if c.Labels == nil {
		c.Labels = listed.Labels
	}
	if c.Image == "" {
		c.Image = listed.Image
	}
	if c.ImageID == "" {
		c.ImageID = listed.ImageID
	}
	if c.Created.IsZero() {
		c.Created = listed.Created
	}
	return &c
}

// mergeImage completes an inspected image with the listed tags; the listing
// is what the removal plan addresses.
func mergeImage(listed, inspected *Image) *Image {
	img := *inspected
	if img.ID == "" {
		img.ID = listed.ID
	}
	if listed.RepoTags != nil {
		img.RepoTags = listed.RepoTags
	}
	if img.Created.IsZero() {
		img.Created = listed.Created
	}
	return &img
}
