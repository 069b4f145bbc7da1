// Package coop is the cooperative control-flow backbone of the engine.
//
// Work is organized as tasks running under nurseries: a nursery joins every
// child task on exit and propagates cancellation to all of them. Cross-thread
// communication happens through bounded channels, parking lots and watchable
// values; an event loop serializes mutations of loop-owned state, and posting
// onto the owning loop is the only legal cross-thread entry point.
package coop

import (
	"context"
	"sync/atomic"

	"github.com/spaghettifunk/oxygen/engine/core"
)

// Task is a resumable unit of work. It must return promptly once its context
// is cancelled.
type Task func(ctx context.Context) error

// EventLoop is the contract an external pump must satisfy to drive tasks.
type EventLoop interface {
	Run()
	Stop()
	IsRunning() bool
	ID() uint64
}

var loopIDCounter atomic.Uint64

// Loop executes posted thunks on the single goroutine that calls Run. State
// owned by a loop must only be touched from thunks running on it.
type Loop struct {
	id      uint64
	work    chan func()
	quit    chan struct{}
	running atomic.Bool
	stopped atomic.Bool
}

func NewLoop() *Loop {
	return &Loop{
		id:   loopIDCounter.Add(1),
		work: make(chan func(), 256),
		quit: make(chan struct{}),
	}
}

func (l *Loop) ID() uint64 { return l.id }

func (l *Loop) IsRunning() bool { return l.running.Load() }

// Run pumps posted thunks until Stop is called. It must be invoked from
// exactly one goroutine, which becomes the loop's owning thread.
func (l *Loop) Run() {
	l.running.Store(true)
	defer l.running.Store(false)
	for {
		select {
		case fn := <-l.work:
			fn()
		case <-l.quit:
			// Drain whatever was posted before the stop.
			for {
				select {
				case fn := <-l.work:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Stop terminates Run after draining already-posted work. Safe to call from
// any thread, once.
func (l *Loop) Stop() {
	if l.stopped.CompareAndSwap(false, true) {
		close(l.quit)
	}
}

// Post schedules fn on the owning goroutine. It is the only legal way to
// reach loop-owned state from another thread. Returns false once the loop
// has been stopped.
func (l *Loop) Post(fn func()) bool {
	if l.stopped.Load() {
		return false
	}
	select {
	case l.work <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// PostWait schedules fn and blocks until it has run or ctx is cancelled.
func (l *Loop) PostWait(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		fn()
		close(done)
	}) {
		return core.NewError(core.KindNotReady, "loop %d is stopped", l.id)
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return Cancelled(ctx)
	}
}

// RunTask pumps the loop until task completes and returns the task's error.
// The task runs on its own goroutine with a context tied to the loop's
// lifetime; the caller's goroutine becomes the loop pump.
func (l *Loop) RunTask(parent context.Context, task Task) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- task(ctx)
		l.Stop()
	}()

	l.Run()
	return <-errCh
}

// Cancelled converts a done context into the engine's cancellation error.
// Returns nil if ctx is still live.
func Cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return core.WrapError(core.KindCancelled, err, "task cancelled")
	}
	return nil
}

// IsCancelled reports whether err stems from cooperative cancellation.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	if k, ok := core.KindOf(err); ok && k == core.KindCancelled {
		return true
	}
	return err == context.Canceled || err == context.DeadlineExceeded
}
