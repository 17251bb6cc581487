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

package tidy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Cleaner is a container host cleaner.
type Cleaner struct {
	inventory   Inventory
	sink        Sink
	logger      *Logger
	metrics     *Metrics
	concurrency int
	now         func() time.Time
}

// NewCleaner creates a new cleaner that reads from the given inventory and
// mutates through the given sink with the given concurrency.
func NewCleaner(inventory Inventory, sink Sink, logger *Logger, metrics *Metrics, c int) (*Cleaner, error) {
	if inventory == nil {
		return nil, fmt.Errorf("missing inventory")
	}
	if sink == nil {
		return nil, fmt.Errorf("missing sink")
	}
	if logger == nil {
		logger = NopLogger()
	}
	if c < 1 {
		c = 1
	}
	return &Cleaner{
		inventory:   inventory,
		sink:        sink,
		logger:      logger,
		metrics:     metrics,
		concurrency: c,
		now:         time.Now,
	}, nil
}

// Clean removes stale containers, then stale images, then dangling volumes.
// Only a failure to read the inventory is returned as an error; failed
// removals are logged and collected in the report.
func (c *Cleaner) Clean(ctx context.Context, policy *Policy) (*Report, error) {
	report := c.newReport("gc", policy.DryRun)
	logger := c.logger.With("run_id", report.RunID)

	if !policy.HasCleanupPhase() {
		logger.Warn("skipped, no arguments given")
		report.Skipped = true
		c.finish(report)
		return report, nil
	}

	c.describeCutoff(logger, "max container age", policy.MaxContainerAge)
	c.describeCutoff(logger, "max image age", policy.MaxImageAge)

	snap, err := TakeSnapshot(ctx, c.inventory, CleanScope(policy), logger, c.concurrency)
	if err != nil {
		return nil, err
	}

	planner := NewPlanner(policy, logger)
	executor := NewExecutor(logger, c.metrics, c.concurrency)

	remaining := snap.Containers
	if policy.MaxContainerAge.IsSet() {
		plan := planner.PlanContainers(snap.Containers)
		phase := report.addPhase("container")

		ops := make([]*Operation, 0, len(plan))
		byOp := make(map[*Operation]*Container, len(plan))
		for _, ctr := range plan {
			phase.Planned = append(phase.Planned, describeContainer(ctr))
			op := RemoveContainerOp(c.sink, ctr)
			ops = append(ops, op)
			byOp[op] = ctr
		}

		outcome := c.runPhase(ctx, logger, executor, report, phase, ops, policy.DryRun)
		if outcome != nil {
			removed := make(map[*Container]bool, len(ops))
			failed := outcome.FailedOps()
			for _, op := range ops {
				if !failed[op] {
					removed[byOp[op]] = true
				}
			}
			remaining = withoutContainers(snap.Containers, removed)
		}
	}

	if policy.MaxImageAge.IsSet() {
		// Uninspected containers still hold their image.
		inUse := append(remaining[:len(remaining):len(remaining)], snap.Uninspected...)
		plan := planner.PlanImages(snap.Images, inUse, snap.APIVersion)
		phase := report.addPhase("image")

		var ops []*Operation
		for _, img := range plan {
			phase.Planned = append(phase.Planned, describeImage(img))
			ops = append(ops, RemoveImageOps(c.sink, img)...)
		}
		c.runPhase(ctx, logger, executor, report, phase, ops, policy.DryRun)
	}

	if policy.RemoveDanglingVolumes {
		plan := planner.PlanVolumes(snap.Volumes)
		phase := report.addPhase("volume")

		ops := make([]*Operation, 0, len(plan))
		for _, v := range plan {
			phase.Planned = append(phase.Planned, v.Name)
			ops = append(ops, RemoveVolumeOp(c.sink, v))
		}
		c.runPhase(ctx, logger, executor, report, phase, ops, policy.DryRun)
	}

	c.finish(report)
	return report, nil
}

// Stop stops running containers that exceeded the max run time.
func (c *Cleaner) Stop(ctx context.Context, policy *Policy) (*Report, error) {
	report := c.newReport("stop", policy.DryRun)
	logger := c.logger.With("run_id", report.RunID)

	if !policy.MaxRunTime.IsSet() {
		logger.Warn("skipped, no arguments given")
		report.Skipped = true
		c.finish(report)
		return report, nil
	}

	c.describeCutoff(logger, "max run time", policy.MaxRunTime)

	snap, err := TakeSnapshot(ctx, c.inventory, StopScope(policy), logger, c.concurrency)
	if err != nil {
		return nil, err
	}

	plan := NewPlanner(policy, logger).PlanStops(snap.Containers)
	phase := report.addPhase("stop")

	ops := make([]*Operation, 0, len(plan))
	for _, ctr := range plan {
		phase.Planned = append(phase.Planned, describeContainer(ctr))
		ops = append(ops, StopContainerOp(c.sink, ctr))
	}

	executor := NewExecutor(logger, c.metrics, c.concurrency)
	c.runPhase(ctx, logger, executor, report, phase, ops, policy.DryRun)

	c.finish(report)
	return report, nil
}

// runPhase executes the operations of one phase, or only logs them in dry
// run mode. It returns nil when nothing was executed.
func (c *Cleaner) runPhase(ctx context.Context, logger *Logger, executor *Executor, report *Report, phase *PhaseReport, ops []*Operation, dryRun bool) *Outcome {
	c.metrics.recordPlanned(phase.Kind, len(ops))

	verb := "running operation"
	if dryRun {
		verb = "dry run, skipping operation"
	}
	for _, op := range ops {
		logger.Info(verb, "operation", op.Name, "params", op.ParamString())
	}

	if dryRun || len(ops) == 0 {
		return nil
	}

	outcome := executor.ExecuteAll(ctx, ops)
	phase.Removed = outcome.Succeeded
	phase.Failed = outcome.Failed()
	report.addFailures(outcome.Failures)
	return outcome
}

func (c *Cleaner) newReport(command string, dryRun bool) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Command:   command,
		DryRun:    dryRun,
		StartedAt: c.now().UTC(),
		Phases:    []*PhaseReport{},
	}
}

func (c *Cleaner) finish(report *Report) {
	report.FinishedAt = c.now().UTC()
	c.metrics.recordFinished(report.FinishedAt)
}

func (c *Cleaner) describeCutoff(logger *Logger, field string, cutoff Cutoff) {
	if !cutoff.IsSet() {
		return
	}
	logger.Info("resolved cutoff",
		"field", field,
		"cutoff", cutoff.Time(),
		"age", cutoff.Describe(c.now()))
}

func withoutContainers(containers []*Container, removed map[*Container]bool) []*Container {
	if len(removed) == 0 {
		return containers
	}
	out := make([]*Container, 0, len(containers))
	for _, ctr := range containers {
		if !removed[ctr] {
			out = append(out, ctr)
		}
	}
	return out
}
