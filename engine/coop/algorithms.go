package coop

import (
	"context"
	"sync"
	"time"
)

// AllOf runs every task concurrently under one nursery and waits for all of
// them. The first failure cancels the rest.
func AllOf(ctx context.Context, tasks ...Task) error {
	n, _ := OpenNursery(ctx)
	for _, t := range tasks {
		n.Start(t)
	}
	return n.Wait()
}

// AnyOf runs every task concurrently; the first to finish wins and the rest
// are cancelled. Returns the winner's index and error. Cancellation results
// from losing tasks are discarded.
func AnyOf(ctx context.Context, tasks ...Task) (int, error) {
	type outcome struct {
		index int
		err   error
	}
	nctx, cancel := context.WithCancel(ctx)
	defer cancel()

	first := make(chan outcome, 1)
	var wg sync.WaitGroup
	var firstOnce sync.Once
	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t Task) {
			defer wg.Done()
			err := t(nctx)
			if IsCancelled(err) && nctx.Err() != nil && ctx.Err() == nil {
				// Lost the race.
				return
			}
			firstOnce.Do(func() {
				first <- outcome{index: i, err: err}
				cancel()
			})
		}(i, t)
	}
	wg.Wait()
	select {
	case o := <-first:
		return o.index, o.err
	default:
		return -1, Cancelled(ctx)
	}
}

// SleepFor suspends for d or until cancellation.
func SleepFor(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return Cancelled(ctx)
	}
}

// WithTimeout runs task with a deadline of d. On expiry the task observes
// cancellation and WithTimeout returns its cancellation error.
func WithTimeout(ctx context.Context, d time.Duration, task Task) error {
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return task(tctx)
}

// Join waits for both tasks and returns the first error encountered.
func Join(ctx context.Context, a, b Task) error {
	return AllOf(ctx, a, b)
}
