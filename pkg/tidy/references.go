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
	"github.com/docker/docker/api/types/versions"
)

// ImageIDReferenceVersion is the first inventory API version whose container
// summaries carry the resolved image id. Older inventories only report the
// reference a container was started with. Keep verbatim for compatibility
// with old daemons.
const ImageIDReferenceVersion = "1.21"

// SupportsImageIDReferences reports whether containers listed by an inventory
// of the given API version carry resolved image ids.
func SupportsImageIDReferences(apiVersion string) bool {
	return !versions.LessThan(apiVersion, ImageIDReferenceVersion)
}

// ReferenceResolver reports whether an image is referenced by a container.
type ReferenceResolver interface {
	InUse(*Image) bool
}

// NewReferenceResolver picks the resolver matching the inventory API version.
func NewReferenceResolver(apiVersion string, containers []*Container) ReferenceResolver {
	if SupportsImageIDReferences(apiVersion) {
		return newIDResolver(containers)
	}
	return newTagResolver(containers)
}

var _ ReferenceResolver = (*tagResolver)(nil)

// tagResolver matches images by the tag strings containers were started with.
type tagResolver struct {
	inUse map[string]struct{}
}

func newTagResolver(containers []*Container) *tagResolver {
	inUse := make(map[string]struct{}, len(containers))
	for _, c := range containers {
		inUse[c.Image] = struct{}{}
	}
	return &tagResolver{inUse: inUse}
}

func (r *tagResolver) InUse(img *Image) bool {
	for _, tag := range legacyTagSet(img) {
		if _, ok := r.inUse[tag]; ok {
			return true
		}
	}
	return false
}

// legacyTagSet returns the tags of an image. Untagged images are listed by
// old daemons as "<first 12 characters of the id>:latest".
func legacyTagSet(img *Image) []string {
	if img.Untagged() {
		id := img.ID
		if len(id) > 12 {
			id = id[:12]
		}
		return []string{id + ":latest"}
	}
	return img.RepoTags
}

var _ ReferenceResolver = (*idResolver)(nil)

// idResolver matches images by the resolved id containers reference.
type idResolver struct {
	inUse map[string]struct{}
}

func newIDResolver(containers []*Container) *idResolver {
	inUse := make(map[string]struct{}, len(containers))
	for _, c := range containers {
		inUse[c.ImageID] = struct{}{}
	}
	return &idResolver{inUse: inUse}
}

func (r *idResolver) InUse(img *Image) bool {
	_, ok := r.inUse[img.ID]
	return ok
}
