package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_sequentialOrder(t *testing.T) {
	t.Parallel()

	var lock sync.Mutex
	var calls []int

	jobs := make([]Job[int], 0, 10)
	for i := 0; i < 10; i++ {
		i := i
		jobs = append(jobs, func(_ context.Context) (int, error) {
			lock.Lock()
			calls = append(calls, i)
			lock.Unlock()
			return i * 2, nil
		})
	}

	results := Run(context.Background(), 1, jobs)
	require.Len(t, results, 10)
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, calls)
	for i, r := range results {
		require.NoError(t, r.Error)
		require.Equal(t, i*2, r.Value)
	}
}

func TestRun_parallelKeepsResultOrder(t *testing.T) {
	t.Parallel()

	jobs := make([]Job[string], 0, 50)
	for i := 0; i < 50; i++ {
		i := i
		jobs = append(jobs, func(_ context.Context) (string, error) {
			if i%7 == 0 {
				return "", errors.New("boom")
			}
			return string(rune('a' + i%26)), nil
		})
	}

	results := Run(context.Background(), 8, jobs)
	require.Len(t, results, 50)
	for i, r := range results {
		if i%7 == 0 {
			require.EqualError(t, r.Error, "boom")
			continue
		}
		require.Equal(t, string(rune('a'+i%26)), r.Value)
	}
}

func TestRun_cancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := []Job[int]{
		func(_ context.Context) (int, error) { return 1, nil },
	}

	// A cancelled context may still win the semaphore race, so only the
	// shape of the result is checked.
	results := Run(ctx, 1, jobs)
	require.Len(t, results, 1)
	if results[0].Error != nil {
		require.ErrorIs(t, results[0].Error, context.Canceled)
	}
}

func TestWorker_doneTwice(t *testing.T) {
	t.Parallel()

	w := New[int](2)
	_, err := w.Done(context.Background())
	require.NoError(t, err)

	_, err = w.Done(context.Background())
	require.ErrorIs(t, err, ErrStopped)

	err = w.Do(context.Background(), func(_ context.Context) (int, error) { return 0, nil })
	require.ErrorIs(t, err, ErrStopped)
}
