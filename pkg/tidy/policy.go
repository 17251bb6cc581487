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
	"time"
)

// PolicyConfig is the raw, already merged configuration a Policy is built
// from.
type PolicyConfig struct {
	MaxContainerAge        string
	MaxImageAge            string
	DanglingVolumes        bool
	ExcludeImages          []string
	ExcludeContainerLabels []string
	MaxRunTime             string
	StopPrefixes           []string
	DryRun                 bool
}

// Policy is the resolved retention policy. It is read-only once built.
type Policy struct {
	// MaxContainerAge and MaxImageAge disable their phase when unset.
	MaxContainerAge Cutoff
	MaxImageAge     Cutoff

	RemoveDanglingVolumes bool

	// ExcludeImages protects images with a matching tag.
	ExcludeImages TagFilter

	// ExcludeContainerLabels protects containers with a matching label.
	ExcludeContainerLabels []*ExcludeLabel

	// MaxRunTime is the cutoff for the stop command, StopPrefixes optionally
	// restricts it to containers with a matching name prefix.
	MaxRunTime   Cutoff
	StopPrefixes []string

	DryRun bool
}

// NewPolicy resolves age expressions against now and parses the exclusion
// rules. Any malformed input returns a *PolicyError.
func NewPolicy(cfg *PolicyConfig, now time.Time) (*Policy, error) {
	maxContainerAge, err := ParseCutoff("max container age", cfg.MaxContainerAge, now)
	if err != nil {
		return nil, err
	}
	maxImageAge, err := ParseCutoff("max image age", cfg.MaxImageAge, now)
	if err != nil {
		return nil, err
	}
	maxRunTime, err := ParseCutoff("max run time", cfg.MaxRunTime, now)
	if err != nil {
		return nil, err
	}

	tagFilter, err := BuildTagFilter(cfg.ExcludeImages)
	if err != nil {
		return nil, err
	}
	labels, err := ParseExcludeLabels(cfg.ExcludeContainerLabels)
	if err != nil {
		return nil, err
	}

	return &Policy{
		MaxContainerAge:        maxContainerAge,
		MaxImageAge:            maxImageAge,
		RemoveDanglingVolumes:  cfg.DanglingVolumes,
		ExcludeImages:          tagFilter,
		ExcludeContainerLabels: labels,
		MaxRunTime:             maxRunTime,
		StopPrefixes:           cfg.StopPrefixes,
		DryRun:                 cfg.DryRun,
	}, nil
}

// HasCleanupPhase reports whether any phase of the gc command is enabled.
func (p *Policy) HasCleanupPhase() bool {
	return p.MaxContainerAge.IsSet() || p.MaxImageAge.IsSet() || p.RemoveDanglingVolumes
}

func (p *Policy) imageFilter() TagFilter {
	if p.ExcludeImages == nil {
		return &TagFilterNull{}
	}
	return p.ExcludeImages
}
