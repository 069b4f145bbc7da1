// Package state tracks per-resource GPU states for a command list and
// batches the barriers needed to reach the states callers require.
package state

import (
	"github.com/spaghettifunk/oxygen/engine/core"
	"github.com/spaghettifunk/oxygen/engine/renderer/metadata"
)

type trackedResource struct {
	current          metadata.ResourceState
	initial          metadata.ResourceState
	keepInitial      bool
	permanent        bool
	permanentState   metadata.ResourceState
	autoBarriers     bool
	memBarrierQueued bool
	// Index into pending of this resource's last transition, or -1 when the
	// transition is no longer mergeable.
	mergeIndex int
}

// Tracker is the per-command-list resource state machine. It is confined to
// the thread recording the command list.
type Tracker struct {
	resources map[uint64]*trackedResource
	pending   []metadata.Barrier
}

func NewTracker() *Tracker {
	return &Tracker{
		resources: make(map[uint64]*trackedResource),
	}
}

// BeginTrackingResourceState starts tracking a resource at its known state.
// Fails if the resource is already tracked.
func (t *Tracker) BeginTrackingResourceState(resourceID uint64, initial metadata.ResourceState, keepInitial bool) error {
	if _, ok := t.resources[resourceID]; ok {
		return core.NewError(core.KindInvalidRequest, "resource %d is already tracked", resourceID)
	}
	t.resources[resourceID] = &trackedResource{
		current:      initial,
		initial:      initial,
		keepInitial:  keepInitial,
		autoBarriers: true,
		mergeIndex:   -1,
	}
	return nil
}

// RequireResourceState transitions the resource to desired, merging with the
// previous pending transition when nothing flushed in between.
func (t *Tracker) RequireResourceState(resourceID uint64, desired metadata.ResourceState) error {
	res, ok := t.resources[resourceID]
	if !ok {
		return core.NewError(core.KindNotReady, "resource %d is not tracked", resourceID)
	}
	if res.permanent {
		if desired == res.permanentState {
			// Re-asserting the permanent state is permitted.
			return nil
		}
		return core.NewError(core.KindPermanentStateViolation,
			"resource %d is permanently in %s, requested %s", resourceID, res.permanentState, desired)
	}

	if res.current == desired {
		if desired&metadata.ResourceStateUnorderedAccess != 0 {
			// UAV-to-UAV ordering. Auto mode emits one barrier per require;
			// manual mode suppresses redundant ones until the next flush.
			if res.autoBarriers || !res.memBarrierQueued {
				t.pending = append(t.pending, metadata.Barrier{
					Type:       metadata.BarrierMemory,
					ResourceID: resourceID,
					Before:     metadata.ResourceStateUnorderedAccess,
					After:      metadata.ResourceStateUnorderedAccess,
				})
				res.memBarrierQueued = true
				res.mergeIndex = -1
			}
		}
		return nil
	}

	if res.mergeIndex >= 0 {
		// Adjacent transition for the same resource: union the after mask.
		merged := t.pending[res.mergeIndex].After | desired
		t.pending[res.mergeIndex].After = merged
		res.current = merged
		return nil
	}

	t.pending = append(t.pending, metadata.Barrier{
		Type:       metadata.BarrierTransition,
		ResourceID: resourceID,
		Before:     res.current,
		After:      desired,
	})
	res.mergeIndex = len(t.pending) - 1
	res.memBarrierQueued = false
	res.current = desired
	return nil
}

// RequireResourceStateFinal transitions the resource to permanent and
// forbids any further state change. Re-asserting the same state remains
// legal.
func (t *Tracker) RequireResourceStateFinal(resourceID uint64, permanent metadata.ResourceState) error {
	if err := t.RequireResourceState(resourceID, permanent); err != nil {
		return err
	}
	res := t.resources[resourceID]
	res.permanent = true
	res.permanentState = permanent
	return nil
}

// EnableAutoMemoryBarriers re-enables automatic UAV barriers for the
// resource.
func (t *Tracker) EnableAutoMemoryBarriers(resourceID uint64) error {
	res, ok := t.resources[resourceID]
	if !ok {
		return core.NewError(core.KindNotReady, "resource %d is not tracked", resourceID)
	}
	res.autoBarriers = true
	return nil
}

// DisableAutoMemoryBarriers switches the resource to manual UAV barriers.
func (t *Tracker) DisableAutoMemoryBarriers(resourceID uint64) error {
	res, ok := t.resources[resourceID]
	if !ok {
		return core.NewError(core.KindNotReady, "resource %d is not tracked", resourceID)
	}
	res.autoBarriers = false
	return nil
}

// GetPendingBarriers returns the batched barriers without consuming them.
func (t *Tracker) GetPendingBarriers() []metadata.Barrier {
	out := make([]metadata.Barrier, len(t.pending))
	copy(out, t.pending)
	return out
}

// Flush consumes the pending barriers. Flushed transitions are no longer
// merge candidates.
func (t *Tracker) Flush() []metadata.Barrier {
	out := t.pending
	t.pending = nil
	for _, res := range t.resources {
		res.mergeIndex = -1
		res.memBarrierQueued = false
	}
	return out
}

// OnCommandListClosed appends restoration barriers for resources that keep
// their initial state and saw no permanent transition.
func (t *Tracker) OnCommandListClosed() {
	for id, res := range t.resources {
		if !res.keepInitial || res.permanent || res.current == res.initial {
			continue
		}
		t.pending = append(t.pending, metadata.Barrier{
			Type:       metadata.BarrierTransition,
			ResourceID: id,
			Before:     res.current,
			After:      res.initial,
		})
		res.current = res.initial
		res.mergeIndex = -1
	}
}

// Clear forgets all tracked resources and pending barriers.
func (t *Tracker) Clear() {
	t.resources = make(map[uint64]*trackedResource)
	t.pending = nil
}

// IsTracked reports whether the resource is currently tracked.
func (t *Tracker) IsTracked(resourceID uint64) bool {
	_, ok := t.resources[resourceID]
	return ok
}

// CurrentState returns the tracked state of the resource.
func (t *Tracker) CurrentState(resourceID uint64) (metadata.ResourceState, error) {
	res, ok := t.resources[resourceID]
	if !ok {
		return 0, core.NewError(core.KindNotReady, "resource %d is not tracked", resourceID)
	}
	return res.current, nil
}
