package bindless

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/oxygen/engine/core"
	"github.com/spaghettifunk/oxygen/engine/renderer/metadata"
)

func TestSegmentLIFORecycling(t *testing.T) {
	seg := NewSegment(100, 4, metadata.ResourceViewTypeTextureSRV, metadata.VisibilityShaderVisible)

	assert.Equal(t, metadata.BindlessHeapIndex(100), seg.Allocate())
	assert.Equal(t, metadata.BindlessHeapIndex(101), seg.Allocate())
	assert.Equal(t, metadata.BindlessHeapIndex(102), seg.Allocate())
	assert.Equal(t, metadata.BindlessHeapIndex(103), seg.Allocate())

	require.NoError(t, seg.Release(101))
	require.NoError(t, seg.Release(103))

	assert.Equal(t, metadata.BindlessItemCount(2), seg.GetAvailableCount())

	// Most recently released comes back first.
	assert.Equal(t, metadata.BindlessHeapIndex(103), seg.Allocate())
	assert.Equal(t, metadata.BindlessHeapIndex(101), seg.Allocate())
}

func TestSegmentExhaustion(t *testing.T) {
	seg := NewSegment(0, 2, metadata.ResourceViewTypeConstantBuffer, metadata.VisibilityShaderVisible)
	seg.Allocate()
	seg.Allocate()
	assert.Equal(t, metadata.InvalidBindlessHeapIndex, seg.Allocate())
	assert.Equal(t, metadata.BindlessItemCount(0), seg.GetAvailableCount())
}

func TestSegmentReleaseValidation(t *testing.T) {
	seg := NewSegment(10, 4, metadata.ResourceViewTypeBufferSRV, metadata.VisibilityCPUOnly)
	idx := seg.Allocate()

	// Out of range.
	err := seg.Release(99)
	assert.ErrorIs(t, err, core.ErrInvalidRequest)

	// Never allocated.
	err = seg.Release(12)
	assert.ErrorIs(t, err, core.ErrInvalidRequest)

	// Double release.
	require.NoError(t, seg.Release(idx))
	err = seg.Release(idx)
	assert.ErrorIs(t, err, core.ErrDoubleRelease)

	// Failed releases must not change availability.
	assert.Equal(t, metadata.BindlessItemCount(4), seg.GetAvailableCount())
}

func TestSegmentAvailableInvariant(t *testing.T) {
	seg := NewSegment(0, 8, metadata.ResourceViewTypeSampler, metadata.VisibilityShaderVisible)
	allocated := []metadata.BindlessHeapIndex{}
	for i := 0; i < 5; i++ {
		allocated = append(allocated, seg.Allocate())
	}
	require.NoError(t, seg.Release(allocated[2]))

	// available + allocated-unreleased == capacity, always.
	assert.Equal(t, metadata.BindlessCapacity(8), seg.GetCapacity())
	assert.Equal(t, metadata.BindlessItemCount(4), seg.GetAvailableCount())
	assert.Equal(t, metadata.BindlessItemCount(4), seg.GetAllocatedCount())
}

func TestStaticSegmentCapacities(t *testing.T) {
	cases := []struct {
		viewType metadata.ResourceViewType
		capacity metadata.BindlessCapacity
	}{
		{metadata.ResourceViewTypeConstantBuffer, 64},
		{metadata.ResourceViewTypeTextureSRV, 256},
		{metadata.ResourceViewTypeTextureUAV, 256},
		{metadata.ResourceViewTypeBufferSRV, 64},
		{metadata.ResourceViewTypeBufferUAV, 64},
		{metadata.ResourceViewTypeSampler, 32},
		{metadata.ResourceViewTypeRenderTarget, 16},
		{metadata.ResourceViewTypeDepthStencil, 16},
		{metadata.ResourceViewTypeRayTracingAS, 16},
	}
	for _, tc := range cases {
		seg := NewStaticSegment(0, tc.viewType, metadata.VisibilityShaderVisible)
		assert.Equal(t, tc.capacity, seg.GetCapacity(), tc.viewType.String())
	}
}

func TestAllocatorRouting(t *testing.T) {
	alloc := NewAllocator(nil)

	a, err := alloc.Allocate(metadata.ResourceViewTypeTextureSRV, metadata.VisibilityShaderVisible)
	require.NoError(t, err)
	b, err := alloc.Allocate(metadata.ResourceViewTypeConstantBuffer, metadata.VisibilityShaderVisible)
	require.NoError(t, err)

	// Different (type, visibility) pairs live in disjoint segments.
	assert.NotEqual(t, a, b)
	assert.Equal(t, metadata.BindlessItemCount(1),
		alloc.GetAllocatedCount(metadata.ResourceViewTypeTextureSRV, metadata.VisibilityShaderVisible))

	require.NoError(t, alloc.Release(metadata.ResourceViewTypeTextureSRV, metadata.VisibilityShaderVisible, a))
	assert.Equal(t, metadata.BindlessItemCount(0),
		alloc.GetAllocatedCount(metadata.ResourceViewTypeTextureSRV, metadata.VisibilityShaderVisible))
}

func TestAllocatorFixedSegmentFactory(t *testing.T) {
	factory := func(base metadata.BindlessHeapIndex,
		viewType metadata.ResourceViewType, visibility metadata.DescriptorVisibility) *Segment {
		return NewSegment(base, 1, viewType, visibility)
	}
	alloc := NewAllocator(factory)

	_, err := alloc.Allocate(metadata.ResourceViewTypeSampler, metadata.VisibilityShaderVisible)
	require.NoError(t, err)
	_, err = alloc.Allocate(metadata.ResourceViewTypeSampler, metadata.VisibilityShaderVisible)
	assert.ErrorIs(t, err, core.ErrOutOfCapacity)
}

func TestVersionedHandlePacking(t *testing.T) {
	h := metadata.VersionedBindlessHandle{Index: 42, Generation: 7}
	assert.Equal(t, h, metadata.HandleFromPacked(h.ToPacked()))

	// Ordered by index then generation.
	assert.True(t, metadata.VersionedBindlessHandle{Index: 1, Generation: 9}.
		Less(metadata.VersionedBindlessHandle{Index: 2, Generation: 0}))
	assert.True(t, metadata.VersionedBindlessHandle{Index: 2, Generation: 0}.
		Less(metadata.VersionedBindlessHandle{Index: 2, Generation: 1}))

	assert.False(t, metadata.InvalidVersionedBindlessHandle.IsValid())
	assert.True(t, h.IsValid())
}
