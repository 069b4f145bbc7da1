package bindless

import (
	"github.com/spaghettifunk/oxygen/engine/core"
	"github.com/spaghettifunk/oxygen/engine/renderer/metadata"
)

// SegmentFactory creates the segment backing a (view type, visibility) pair.
// Overridable so tests can inject fixed segments.
type SegmentFactory func(base metadata.BindlessHeapIndex,
	viewType metadata.ResourceViewType, visibility metadata.DescriptorVisibility) *Segment

type segmentKey struct {
	viewType   metadata.ResourceViewType
	visibility metadata.DescriptorVisibility
}

// Allocator hands descriptor indices out of per-(view type, visibility)
// segments, creating segments on demand at increasing base offsets.
type Allocator struct {
	factory  SegmentFactory
	segments map[segmentKey]*Segment
	nextBase metadata.BindlessHeapIndex
}

// NewAllocator creates an allocator using static optimal segment capacities.
// Pass a non-nil factory to override segment creation.
func NewAllocator(factory SegmentFactory) *Allocator {
	if factory == nil {
		factory = NewStaticSegment
	}
	return &Allocator{
		factory:  factory,
		segments: make(map[segmentKey]*Segment),
	}
}

func (a *Allocator) segmentFor(viewType metadata.ResourceViewType, visibility metadata.DescriptorVisibility) *Segment {
	key := segmentKey{viewType: viewType, visibility: visibility}
	seg, ok := a.segments[key]
	if !ok {
		seg = a.factory(a.nextBase, viewType, visibility)
		a.nextBase += metadata.BindlessHeapIndex(seg.GetCapacity())
		a.segments[key] = seg
	}
	return seg
}

// Allocate returns a descriptor index from the matching segment.
func (a *Allocator) Allocate(viewType metadata.ResourceViewType, visibility metadata.DescriptorVisibility) (metadata.BindlessHeapIndex, error) {
	idx := a.segmentFor(viewType, visibility).Allocate()
	if !idx.IsValid() {
		return metadata.InvalidBindlessHeapIndex, core.NewError(core.KindOutOfCapacity,
			"%s/%s segment exhausted", viewType, visibility)
	}
	return idx, nil
}

// Release routes the index back to its segment.
func (a *Allocator) Release(viewType metadata.ResourceViewType, visibility metadata.DescriptorVisibility, index metadata.BindlessHeapIndex) error {
	key := segmentKey{viewType: viewType, visibility: visibility}
	seg, ok := a.segments[key]
	if !ok {
		return core.NewError(core.KindInvalidRequest, "no %s/%s segment exists", viewType, visibility)
	}
	return seg.Release(index)
}

// GetAllocatedCount reports live descriptors in the matching segment.
func (a *Allocator) GetAllocatedCount(viewType metadata.ResourceViewType, visibility metadata.DescriptorVisibility) metadata.BindlessItemCount {
	key := segmentKey{viewType: viewType, visibility: visibility}
	if seg, ok := a.segments[key]; ok {
		return seg.GetAllocatedCount()
	}
	return 0
}

// Destroy tears down every segment, warning about leaks.
func (a *Allocator) Destroy() {
	for _, seg := range a.segments {
		seg.Destroy()
	}
	a.segments = make(map[segmentKey]*Segment)
	a.nextBase = 0
}
