package coop

import (
	"container/list"
	"context"
	"sync"
)

// ParkingLot is an unordered set of suspended tasks. Park suspends the
// caller until another task unparks it.
type ParkingLot struct {
	mu      sync.Mutex
	waiters *list.List // of chan struct{}
}

func NewParkingLot() *ParkingLot {
	return &ParkingLot{waiters: list.New()}
}

// Park suspends until UnparkOne/UnparkAll resumes this task or ctx is
// cancelled.
func (p *ParkingLot) Park(ctx context.Context) error {
	wait := make(chan struct{})
	p.mu.Lock()
	elem := p.waiters.PushBack(wait)
	p.mu.Unlock()

	select {
	case <-wait:
		return nil
	case <-ctx.Done():
		p.mu.Lock()
		select {
		case <-wait:
			// An unpark already resumed this waiter; pass the token to
			// the next parked task so it is not dropped.
			if e := p.waiters.Front(); e != nil {
				p.waiters.Remove(e)
				close(e.Value.(chan struct{}))
			}
		default:
			p.waiters.Remove(elem)
		}
		p.mu.Unlock()
		return Cancelled(ctx)
	}
}

// UnparkOne resumes one parked task, if any. Reports whether a task was
// resumed.
func (p *ParkingLot) UnparkOne() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.waiters.Front()
	if e == nil {
		return false
	}
	p.waiters.Remove(e)
	close(e.Value.(chan struct{}))
	return true
}

// UnparkAll resumes every parked task and returns how many were resumed.
func (p *ParkingLot) UnparkAll() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for e := p.waiters.Front(); e != nil; e = e.Next() {
		close(e.Value.(chan struct{}))
		n++
	}
	p.waiters.Init()
	return n
}

// ParkedCount returns the number of currently parked tasks.
func (p *ParkingLot) ParkedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waiters.Len()
}
