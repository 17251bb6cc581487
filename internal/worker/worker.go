// Package worker runs removal jobs with bounded parallelism while keeping
// results in submission order.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrStopped is the error returned when the worker is stopped.
var ErrStopped = fmt.Errorf("worker is stopped")

// Job is a unit of work. It receives the context passed to Do.
type Job[T any] func(ctx context.Context) (T, error)

// Result is the outcome of a single job.
type Result[T any] struct {
	Value T
	Error error
}

// Worker executes jobs on at most size goroutines. With a size of 1 a job
// starts only after the previous one returned, so jobs run strictly in
// submission order.
type Worker[T any] struct {
	size int64
	sem  *semaphore.Weighted

	next    int64
	results map[int64]*Result[T]
	lock    sync.Mutex

	stopped atomic.Bool
}

// New creates a worker. A size below 1 is treated as 1.
func New[T any](size int64) *Worker[T] {
	if size < 1 {
		size = 1
	}
	return &Worker[T]{
		size:    size,
		sem:     semaphore.NewWeighted(size),
		results: make(map[int64]*Result[T]),
	}
}

// Do schedules the job. It blocks until a slot is free or ctx is done, and
// returns once the job has started. Never call Do from within a job.
func (w *Worker[T]) Do(ctx context.Context, job Job[T]) error {
	if w.stopped.Load() {
		return ErrStopped
	}

	if err := w.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to schedule job: %w", err)
	}

	// Done may have been called while waiting for the slot.
	if w.stopped.Load() {
		w.sem.Release(1)
		return ErrStopped
	}

	w.lock.Lock()
	idx := w.next
	w.next++
	w.lock.Unlock()

	go func() {
		defer w.sem.Release(1)
		v, err := job(ctx)

		w.lock.Lock()
		w.results[idx] = &Result[T]{Value: v, Error: err}
		w.lock.Unlock()
	}()
	return nil
}

// Done stops the worker, waits for running jobs and returns all results in
// submission order. It returns ErrStopped when called twice.
func (w *Worker[T]) Done(ctx context.Context) ([]*Result[T], error) {
	if !w.stopped.CompareAndSwap(false, true) {
		return nil, ErrStopped
	}

	if err := w.sem.Acquire(ctx, w.size); err != nil {
		return nil, fmt.Errorf("failed to wait for jobs: %w", err)
	}
	defer w.sem.Release(w.size)

	w.lock.Lock()
	defer w.lock.Unlock()

	final := make([]*Result[T], w.next)
	for i := range final {
		final[i] = w.results[int64(i)]
	}
	return final, nil
}

// Run schedules every job and waits for them. If scheduling is interrupted by
// ctx, the jobs that did not start get a result carrying the context error.
func Run[T any](ctx context.Context, size int64, jobs []Job[T]) []*Result[T] {
	w := New[T](size)

	var schedErr error
	scheduled := 0
	for _, job := range jobs {
		if err := w.Do(ctx, job); err != nil {
			schedErr = err
			break
		}
		scheduled++
	}

	// Waiting must not be cut short by the same context, or started jobs
	// would be lost.
	results, err := w.Done(context.WithoutCancel(ctx))
	if err != nil {
		results = make([]*Result[T], scheduled)
		for i := range results {
			results[i] = &Result[T]{Error: err}
		}
	}
	for i := scheduled; i < len(jobs); i++ {
		results = append(results, &Result[T]{Error: schedErr})
	}
	return results
}
