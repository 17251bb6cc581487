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
	"fmt"
	"strings"

	"github.com/GoogleCloudPlatform/docker-tidy/internal/worker"
	"github.com/hashicorp/go-multierror"
)

// Sink performs mutations on the host. Each call may fail independently.
type Sink interface {
	RemoveContainer(ctx context.Context, id string) error
	RemoveImage(ctx context.Context, ref string) error
	RemoveVolume(ctx context.Context, name string) error
	StopContainer(ctx context.Context, id string) error
}

// Param is a named operation parameter, kept in order for logging.
type Param struct {
	Key   string
	Value string
}

// Operation is a single call against the Sink.
type Operation struct {
	Name   string
	Kind   string
	Params []Param
	Call   func(ctx context.Context) error
}

// ParamString renders the parameters as "k=v,k=v".
func (o *Operation) ParamString() string {
	parts := make([]string, 0, len(o.Params))
	for _, p := range o.Params {
		parts = append(parts, p.Key+"="+p.Value)
	}
	return strings.Join(parts, ",")
}

// OperationError is a failed operation.
type OperationError struct {
	Operation *Operation
	Err       error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Operation.Name, e.Operation.ParamString(), e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// RemoveContainerOp removes a container together with its anonymous volumes.
func RemoveContainerOp(sink Sink, c *Container) *Operation {
	return &Operation{
		Name:   "remove_container",
		Kind:   "container",
		Params: []Param{{"container", c.ID}, {"v", "true"}},
		Call: func(ctx context.Context) error {
			return sink.RemoveContainer(ctx, c.ID)
		},
	}
}

// RemoveImageOps removes an image. A tagged image is untagged one tag at a
// time so the daemon does not refuse the removal with a conflict while other
// tags still reference it; only an untagged image is removed by id.
func RemoveImageOps(sink Sink, img *Image) []*Operation {
	refs := img.Tags()
	if len(refs) == 0 {
		refs = []string{img.ID}
	}

	ops := make([]*Operation, 0, len(refs))
	for _, ref := range refs {
		ref := ref
		ops = append(ops, &Operation{
			Name:   "remove_image",
			Kind:   "image",
			Params: []Param{{"image", ref}},
			Call: func(ctx context.Context) error {
				return sink.RemoveImage(ctx, ref)
			},
		})
	}
	return ops
}

// RemoveVolumeOp removes a volume.
func RemoveVolumeOp(sink Sink, v *Volume) *Operation {
	return &Operation{
		Name:   "remove_volume",
		Kind:   "volume",
		Params: []Param{{"name", v.Name}},
		Call: func(ctx context.Context) error {
			return sink.RemoveVolume(ctx, v.Name)
		},
	}
}

// StopContainerOp stops a running container.
func StopContainerOp(sink Sink, c *Container) *Operation {
	return &Operation{
		Name:   "stop_container",
		Kind:   "stop",
		Params: []Param{{"container", c.ID}},
		Call: func(ctx context.Context) error {
			return sink.StopContainer(ctx, c.ID)
		},
	}
}

// Executor runs operations. A failed operation is logged and reported, but
// never stops the batch, and it is not retried.
type Executor struct {
	logger      *Logger
	metrics     *Metrics
	concurrency int64
}

// NewExecutor creates an executor. A concurrency of 1 runs operations one at
// a time in the given order; higher values keep results in order but no
// longer guarantee call order.
func NewExecutor(logger *Logger, metrics *Metrics, concurrency int) *Executor {
	if logger == nil {
		logger = NopLogger()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Executor{
		logger:      logger,
		metrics:     metrics,
		concurrency: int64(concurrency),
	}
}

// Execute runs a single operation. On failure it logs a warning with the
// operation name, its parameters and the error, and returns an
// *OperationError.
func (e *Executor) Execute(ctx context.Context, op *Operation) error {
	err := op.Call(ctx)
	if err == nil {
		e.metrics.recordRemoved(op.Kind)
		return nil
	}

	class := warnCallFailure(e.logger, op.Name, op.ParamString(), err)
	e.metrics.recordFailed(op.Kind, class)

	return &OperationError{Operation: op, Err: err}
}

// Outcome summarizes a batch.
type Outcome struct {
	Succeeded int
	Failures  *multierror.Error
}

// Failed returns the number of failed operations.
func (o *Outcome) Failed() int {
	if o.Failures == nil {
		return 0
	}
	return len(o.Failures.Errors)
}

// ExecuteAll runs the operations and collects the failures.
func (e *Executor) ExecuteAll(ctx context.Context, ops []*Operation) *Outcome {
	jobs := make([]worker.Job[struct{}], 0, len(ops))
	for _, op := range ops {
		op := op
		jobs = append(jobs, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, e.Execute(ctx, op)
		})
	}

	out := &Outcome{}
	for i, r := range worker.Run(ctx, e.concurrency, jobs) {
		if r.Error == nil {
			out.Succeeded++
			continue
		}
		// Jobs that never ran (cancelled context) were not logged yet.
		if _, ok := r.Error.(*OperationError); !ok {
			r.Error = &OperationError{Operation: ops[i], Err: r.Error}
		}
		out.Failures = multierror.Append(out.Failures, r.Error)
	}
	return out
}

// FailedOps returns the set of operations that failed.
func (o *Outcome) FailedOps() map[*Operation]bool {
	failed := make(map[*Operation]bool, o.Failed())
	if o.Failures == nil {
		return failed
	}
	for _, err := range o.Failures.Errors {
		if oerr, ok := err.(*OperationError); ok {
			failed[oerr.Operation] = true
		}
	}
	return failed
}
