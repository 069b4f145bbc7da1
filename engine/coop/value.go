package coop

import (
	"container/list"
	"context"
	"sync"
)

type valueWaiter[T comparable] struct {
	// pred decides, per transition, whether this waiter resumes.
	pred func(prev, next T) bool
	wake chan T
}

// Value is a typed cell with awaitables that resume when a mutation
// satisfies their predicate. Mutations performed outside a task resume the
// matching awaiters synchronously; awaiters whose predicate is not satisfied
// by the transition stay parked.
type Value[T comparable] struct {
	mu      sync.Mutex
	current T
	waiters *list.List // of *valueWaiter[T]
}

func NewValue[T comparable](initial T) *Value[T] {
	return &Value[T]{current: initial, waiters: list.New()}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Set replaces the value and wakes exactly the awaiters whose predicates are
// satisfied by the transition.
func (v *Value[T]) Set(next T) {
	v.mu.Lock()
	prev := v.current
	v.current = next
	v.notifyLocked(prev, next)
	v.mu.Unlock()
}

// Modify applies fn to the value under the cell's lock. fn must not touch
// the cell re-entrantly.
func (v *Value[T]) Modify(fn func(T) T) T {
	v.mu.Lock()
	prev := v.current
	v.current = fn(prev)
	next := v.current
	v.notifyLocked(prev, next)
	v.mu.Unlock()
	return next
}

func (v *Value[T]) notifyLocked(prev, next T) {
	for e := v.waiters.Front(); e != nil; {
		w := e.Value.(*valueWaiter[T])
		cur := e
		e = e.Next()
		if w.pred(prev, next) {
			v.waiters.Remove(cur)
			w.wake <- next
		}
	}
}

func (v *Value[T]) await(ctx context.Context, immediate func(T) (T, bool), pred func(prev, next T) bool) (T, error) {
	var zero T
	v.mu.Lock()
	if got, ok := immediate(v.current); ok {
		v.mu.Unlock()
		return got, nil
	}
	w := &valueWaiter[T]{pred: pred, wake: make(chan T, 1)}
	elem := v.waiters.PushBack(w)
	v.mu.Unlock()

	select {
	case got := <-w.wake:
		return got, nil
	case <-ctx.Done():
		v.mu.Lock()
		v.waiters.Remove(elem)
		v.mu.Unlock()
		return zero, Cancelled(ctx)
	}
}

// UntilMatches suspends until the value satisfies pred; returns immediately
// if it already does.
func (v *Value[T]) UntilMatches(ctx context.Context, pred func(T) bool) (T, error) {
	return v.await(ctx,
		func(cur T) (T, bool) { return cur, pred(cur) },
		func(_, next T) bool { return pred(next) })
}

// UntilChanged suspends until the value transitions to a different value.
// With a non-nil pred, only transitions whose new value satisfies pred
// resume the awaiter.
func (v *Value[T]) UntilChanged(ctx context.Context, pred func(T) bool) (T, error) {
	return v.await(ctx,
		func(T) (T, bool) { var zero T; return zero, false },
		func(prev, next T) bool {
			if prev == next {
				return false
			}
			return pred == nil || pred(next)
		})
}

// UntilEquals suspends until the value equals x.
func (v *Value[T]) UntilEquals(ctx context.Context, x T) error {
	_, err := v.UntilMatches(ctx, func(cur T) bool { return cur == x })
	return err
}
