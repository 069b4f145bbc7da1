// Package bindless implements descriptor heap segmentation and allocation
// for the engine's bindless rendering path.
package bindless

import (
	"github.com/spaghettifunk/oxygen/engine/core"
	"github.com/spaghettifunk/oxygen/engine/renderer/metadata"
)

// Segment owns a contiguous [base, base+capacity) descriptor range of fixed
// view type and visibility. Released indices are recycled LIFO before new
// ones are handed out.
type Segment struct {
	baseIndex  metadata.BindlessHeapIndex
	capacity   metadata.BindlessCapacity
	viewType   metadata.ResourceViewType
	visibility metadata.DescriptorVisibility

	// First never-allocated local offset.
	nextIndex uint32
	// Recently released local indices, popped from the back.
	freeList []uint32
	// Guards against double release.
	released []bool
}

// NewSegment creates a segment with a runtime-fixed capacity.
func NewSegment(base metadata.BindlessHeapIndex, capacity metadata.BindlessCapacity,
	viewType metadata.ResourceViewType, visibility metadata.DescriptorVisibility) *Segment {
	return &Segment{
		baseIndex:  base,
		capacity:   capacity,
		viewType:   viewType,
		visibility: visibility,
		freeList:   make([]uint32, 0, capacity),
		released:   make([]bool, capacity),
	}
}

// NewStaticSegment creates a segment with the compile-time optimal capacity
// for its view type.
func NewStaticSegment(base metadata.BindlessHeapIndex,
	viewType metadata.ResourceViewType, visibility metadata.DescriptorVisibility) *Segment {
	return NewSegment(base, metadata.OptimalSegmentCapacity(viewType), viewType, visibility)
}

// Allocate returns the next descriptor index, preferring the most recently
// released one. Returns the invalid sentinel when the segment is exhausted.
func (s *Segment) Allocate() metadata.BindlessHeapIndex {
	if n := len(s.freeList); n > 0 {
		local := s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
		s.released[local] = false
		return s.baseIndex + metadata.BindlessHeapIndex(local)
	}
	if s.nextIndex >= uint32(s.capacity) {
		return metadata.InvalidBindlessHeapIndex
	}
	local := s.nextIndex
	s.nextIndex++
	return s.baseIndex + metadata.BindlessHeapIndex(local)
}

// Release returns a descriptor index to the segment. Out-of-range,
// never-allocated and already-released indices are rejected without side
// effects.
func (s *Segment) Release(index metadata.BindlessHeapIndex) error {
	if index < s.baseIndex || index >= s.baseIndex+metadata.BindlessHeapIndex(s.capacity) {
		return core.NewError(core.KindInvalidRequest,
			"index %d outside segment [%d, %d)", index, s.baseIndex, s.baseIndex+metadata.BindlessHeapIndex(s.capacity))
	}
	local := uint32(index - s.baseIndex)
	if local >= s.nextIndex {
		return core.NewError(core.KindInvalidRequest, "index %d was never allocated", index)
	}
	if s.released[local] {
		return core.NewError(core.KindDoubleRelease, "index %d released twice", index)
	}
	s.released[local] = true
	s.freeList = append(s.freeList, local)
	return nil
}

// GetAvailableCount returns how many descriptors can still be allocated.
func (s *Segment) GetAvailableCount() metadata.BindlessItemCount {
	return metadata.BindlessItemCount(uint32(s.capacity) - s.nextIndex + uint32(len(s.freeList)))
}

// GetAllocatedCount returns the number of live descriptors.
func (s *Segment) GetAllocatedCount() metadata.BindlessItemCount {
	return metadata.BindlessItemCount(s.nextIndex - uint32(len(s.freeList)))
}

func (s *Segment) GetCapacity() metadata.BindlessCapacity {
	return s.capacity
}

func (s *Segment) GetBaseIndex() metadata.BindlessHeapIndex {
	return s.baseIndex
}

func (s *Segment) GetViewType() metadata.ResourceViewType {
	return s.viewType
}

func (s *Segment) GetVisibility() metadata.DescriptorVisibility {
	return s.visibility
}

// Destroy tears the segment down. Descriptors still in use indicate a leak
// upstream.
func (s *Segment) Destroy() {
	if inUse := s.GetAllocatedCount(); inUse > 0 {
		core.LogWarn("destroying %s/%s segment at base %d with %d descriptors still in use",
			s.viewType, s.visibility, s.baseIndex, inUse)
	}
}
