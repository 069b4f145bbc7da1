package importer

import "sync/atomic"

// StopToken is a cooperative cancellation flag shared between a job and its
// pipeline workers. Stages check it at their boundaries.
type StopToken struct {
	stopped atomic.Bool
}

func NewStopToken() *StopToken {
	return &StopToken{}
}

// Stop requests cancellation. Safe from any goroutine.
func (t *StopToken) Stop() {
	t.stopped.Store(true)
}

// Stopped reports whether cancellation was requested.
func (t *StopToken) Stopped() bool {
	if t == nil {
		return false
	}
	return t.stopped.Load()
}
