// Copyright 2019 The Docker Tidy Authors
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

// Package tidy decides which containers, images and volumes on a container
// host are stale and removes them.
package tidy

import "time"

// ContainerDecider decides whether a container should be acted on.
type ContainerDecider interface {
	ShouldRemove(*Container) bool
}

var _ ContainerDecider = (*RetentionDecider)(nil)

// RetentionDecider selects stopped containers that finished before Cutoff.
type RetentionDecider struct {
	Cutoff time.Time
	Logger *Logger
}

func (d *RetentionDecider) ShouldRemove(c *Container) bool {
	if c.Running() {
		d.keep(c, "running")
		return false
	}

	state := c.State
	if state != nil && state.Ghost {
		d.Logger.Debug("should remove",
			"container", ShortID(c.ID, 16),
			"reason", "ghost")
		return true
	}

	// Created, but never started (or no state at all): fall back to the
	// creation time.
	if state == nil || state.FinishedAt.IsZero() {
		if c.Created.IsZero() {
			d.keep(c, "no timestamp")
			return false
		}
		return d.olderThanCutoff(c, "created", c.Created)
	}

	return d.olderThanCutoff(c, "finished", state.FinishedAt)
}

func (d *RetentionDecider) olderThanCutoff(c *Container, field string, t time.Time) bool {
	if !t.Before(d.Cutoff) {
		d.Logger.Debug("should not remove",
			"container", ShortID(c.ID, 16),
			"reason", "too new",
			"cutoff", d.Cutoff,
			field, t,
			"delta", t.Sub(d.Cutoff).String())
		return false
	}

	d.Logger.Debug("should remove",
		"container", ShortID(c.ID, 16),
		"reason", "older than cutoff",
		"cutoff", d.Cutoff,
		field, t)
	return true
}

func (d *RetentionDecider) keep(c *Container, reason string) {
	d.Logger.Debug("should not remove",
		"container", ShortID(c.ID, 16),
		"reason", reason)
}

var _ ContainerDecider = (*RunTimeDecider)(nil)

// RunTimeDecider selects running containers started at or before Cutoff.
type RunTimeDecider struct {
	Cutoff time.Time
	Logger *Logger
}

func (d *RunTimeDecider) ShouldRemove(c *Container) bool {
	if !c.Running() {
		return false
	}
	if c.State.StartedAt.IsZero() {
		d.Logger.Debug("should not stop",
			"container", ShortID(c.ID, 16),
			"reason", "no start time")
		return false
	}
	if c.State.StartedAt.After(d.Cutoff) {
		d.Logger.Debug("should not stop",
			"container", ShortID(c.ID, 16),
			"reason", "too new",
			"started", c.State.StartedAt)
		return false
	}
	return true
}
