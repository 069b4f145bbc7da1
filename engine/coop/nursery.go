package coop

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Nursery is a structured-concurrency scope. Child tasks started inside are
// joined on Wait; the first failing child cancels all of its siblings, and
// cancelling the nursery's context cancels every child cooperatively.
type Nursery struct {
	grp    *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

// OpenNursery creates a nursery scoped to parent. The returned context must
// be passed to operations performed by child tasks.
func OpenNursery(parent context.Context) (*Nursery, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	grp, gctx := errgroup.WithContext(ctx)
	return &Nursery{grp: grp, ctx: gctx, cancel: cancel}, gctx
}

// Start launches a child task. The child observes cancellation through its
// context and must return promptly once it is cancelled.
func (n *Nursery) Start(task Task) {
	n.grp.Go(func() error {
		return task(n.ctx)
	})
}

// StartSoon launches a named child; the name is only used in error wrapping.
func (n *Nursery) StartSoon(name string, task Task) {
	n.grp.Go(func() error {
		if err := task(n.ctx); err != nil && !IsCancelled(err) {
			return &childError{name: name, err: err}
		} else if err != nil {
			return err
		}
		return nil
	})
}

type childError struct {
	name string
	err  error
}

func (e *childError) Error() string { return e.name + ": " + e.err.Error() }
func (e *childError) Unwrap() error { return e.err }

// Cancel requests cooperative cancellation of all children. To cancel from
// another thread, post the call onto the owning loop.
func (n *Nursery) Cancel() {
	n.cancel()
}

// Wait joins all children and returns the first non-cancellation error, or
// the cancellation error if the nursery was cancelled before any child
// failed.
func (n *Nursery) Wait() error {
	defer n.cancel()
	return n.grp.Wait()
}
