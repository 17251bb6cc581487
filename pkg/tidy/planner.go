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
)

// Planner turns a snapshot and a policy into ordered removal plans. It never
// mutates anything and its output does not depend on the dry-run flag.
type Planner struct {
	policy *Policy
	logger *Logger
}

// NewPlanner creates a planner for the given policy.
func NewPlanner(policy *Policy, logger *Logger) *Planner {
	if logger == nil {
		logger = NopLogger()
	}
	return &Planner{policy: policy, logger: logger}
}

// PlanContainers returns the containers to remove, in reverse inventory
// order. Label exclusion runs before the age check. The plan is empty when
// no max container age is set.
func (p *Planner) PlanContainers(containers []*Container) []*Container {
	if !p.policy.MaxContainerAge.IsSet() {
		return nil
	}

	decider := &RetentionDecider{
		Cutoff: p.policy.MaxContainerAge.Time(),
		Logger: p.logger,
	}

	var plan []*Container
	for i := len(containers) - 1; i >= 0; i-- {
		c := containers[i]
		if ShouldExclude(c, p.policy.ExcludeContainerLabels) {
			p.logger.Debug("should not remove",
				"container", ShortID(c.ID, 16),
				"reason", "excluded by label")
			continue
		}
		if decider.ShouldRemove(c) {
			plan = append(plan, c)
		}
	}
	return plan
}

// PlanImages returns the images to remove, in reverse inventory order. Images
// referenced by any of the containers are never planned, and untagged images
// are never excluded by tag. The plan is empty when no max image age is set.
func (p *Planner) PlanImages(images []*Image, containers []*Container, apiVersion string) []*Image {
	if !p.policy.MaxImageAge.IsSet() {
		return nil
	}

	cutoff := p.policy.MaxImageAge.Time()
	resolver := NewReferenceResolver(apiVersion, containers)
	filter := p.policy.imageFilter()

	var plan []*Image
	for i := len(images) - 1; i >= 0; i-- {
		img := images[i]
		id := ShortID(img.ID, 16)

		if resolver.InUse(img) {
			p.logger.Debug("should not remove",
				"image", id,
				"reason", "in use")
			continue
		}

		if !img.Untagged() && filter.Matches(img.RepoTags) {
			p.logger.Debug("should not remove",
				"image", id,
				"reason", "excluded by tag",
				"tags", img.RepoTags,
				"exclude", filter.Name())
			continue
		}

		if !img.Created.Before(cutoff) {
			p.logger.Debug("should not remove",
				"image", id,
				"reason", "too new",
				"cutoff", cutoff,
				"created", img.Created)
			continue
		}

		p.logger.Debug("should remove",
			"image", id,
			"reason", "older than cutoff",
			"cutoff", cutoff,
			"created", img.Created)
		plan = append(plan, img)
	}
	return plan
}

// PlanVolumes returns all dangling volumes in reverse inventory order, or
// nothing when dangling volume removal is disabled.
func (p *Planner) PlanVolumes(volumes []*Volume) []*Volume {
	if !p.policy.RemoveDanglingVolumes {
		return nil
	}

	plan := make([]*Volume, 0, len(volumes))
	for i := len(volumes) - 1; i >= 0; i-- {
		plan = append(plan, volumes[i])
	}
	return plan
}

// PlanStops returns the running containers that exceeded the max run time, in
// inventory order. When stop prefixes are configured only containers whose
// name starts with one of them qualify.
func (p *Planner) PlanStops(containers []*Container) []*Container {
	if !p.policy.MaxRunTime.IsSet() {
		return nil
	}

	decider := &RunTimeDecider{
		Cutoff: p.policy.MaxRunTime.Time(),
		Logger: p.logger,
	}

	var plan []*Container
	for _, c := range containers {
		if !hasAnyPrefix(c.DisplayName(), p.policy.StopPrefixes) {
			continue
		}
		if decider.ShouldRemove(c) {
			plan = append(plan, c)
		}
	}
	return plan
}

func hasAnyPrefix(name string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
