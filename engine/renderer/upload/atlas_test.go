package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/oxygen/engine/core"
)

func newTestAtlas(t *testing.T, capacity uint32) (*AtlasBuffer, *fakeGraphics) {
	t.Helper()
	gfx := newFakeGraphics()
	atlas := NewAtlasBuffer(gfx, gfx.reclaimer, "lights", 32)
	result, err := atlas.EnsureCapacity(capacity, 0.5)
	require.NoError(t, err)
	require.Equal(t, CapacityCreated, result)
	return atlas, gfx
}

func TestAtlasEnsureCapacity(t *testing.T) {
	atlas, gfx := newTestAtlas(t, 4)
	old := gfx.buffers[0]

	// Already large enough.
	result, err := atlas.EnsureCapacity(2, 0.5)
	require.NoError(t, err)
	assert.Equal(t, CapacityUnchanged, result)

	// Growth preserves content and defers the old buffer.
	result, err = atlas.EnsureCapacity(8, 0.5)
	require.NoError(t, err)
	assert.Equal(t, CapacityResized, result)
	assert.GreaterOrEqual(t, atlas.Capacity(), uint32(8))

	// The replaced buffer is released only once deferred actions run.
	assert.Equal(t, 0, old.unmaps)
	gfx.reclaimer.runAll()
	assert.Equal(t, 1, old.unmaps)
}

func TestAtlasAllocateRelease(t *testing.T) {
	atlas, _ := newTestAtlas(t, 2)

	a, err := atlas.Allocate(1)
	require.NoError(t, err)
	b, err := atlas.Allocate(1)
	require.NoError(t, err)
	assert.NotEqual(t, a.Index, b.Index)

	_, err = atlas.Allocate(1)
	assert.ErrorIs(t, err, core.ErrOutOfCapacity)

	// Multi-element allocations are rejected.
	_, err = atlas.Allocate(2)
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}

func TestAtlasSlotRetirement(t *testing.T) {
	atlas, _ := newTestAtlas(t, 1)

	ref, err := atlas.Allocate(1)
	require.NoError(t, err)
	require.NoError(t, atlas.Release(ref, 0))

	// Released in slot 0 but slot 0 has not restarted: still unavailable.
	_, err = atlas.Allocate(1)
	assert.ErrorIs(t, err, core.ErrOutOfCapacity)

	// Restarting a different slot does not free it either.
	atlas.OnFrameStart(1)
	_, err = atlas.Allocate(1)
	assert.ErrorIs(t, err, core.ErrOutOfCapacity)

	// After slot 0 restarts, the index is reusable.
	atlas.OnFrameStart(0)
	again, err := atlas.Allocate(1)
	require.NoError(t, err)
	assert.Equal(t, ref.Index, again.Index)
}

func TestAtlasDoubleRelease(t *testing.T) {
	atlas, _ := newTestAtlas(t, 2)
	ref, err := atlas.Allocate(1)
	require.NoError(t, err)

	require.NoError(t, atlas.Release(ref, 0))
	assert.ErrorIs(t, atlas.Release(ref, 0), core.ErrDoubleRelease)

	// Invalid refs are rejected.
	assert.ErrorIs(t, atlas.Release(ElementRef{}, 0), core.ErrInvalidRequest)
}

func TestAtlasMakeUploadDesc(t *testing.T) {
	atlas, _ := newTestAtlas(t, 4)
	ref, err := atlas.Allocate(1)
	require.NoError(t, err)
	ref2, err := atlas.Allocate(1)
	require.NoError(t, err)

	payload := make([]byte, 32)
	desc, err := atlas.MakeUploadDesc(ref2, payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(ref2.Index)*32, desc.DstOffset)
	assert.Equal(t, atlas.Buffer(), desc.DstBuffer)
	_ = ref

	// Stride mismatch and invalid refs fail.
	_, err = atlas.MakeUploadDesc(ref2, make([]byte, 16))
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
	_, err = atlas.MakeUploadDesc(ElementRef{}, payload)
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}

func TestTransientBufferLifetime(t *testing.T) {
	gfx := newFakeGraphics()
	staging := newTestStaging(t, gfx, 2, 1024)
	tb := NewTransientStructuredBuffer(staging, 16, nil)

	// Allocation before arming a frame is rejected.
	_, err := tb.Allocate(1)
	assert.ErrorIs(t, err, core.ErrNotReady)

	tb.OnFrameStart(1, 0)
	alloc, err := tb.Allocate(4)
	require.NoError(t, err)
	assert.Equal(t, 64, len(alloc.Bytes))
	assert.True(t, alloc.IsValid(1))

	// Re-arming the slot invalidates earlier allocations.
	tb.OnFrameStart(2, 0)
	assert.False(t, alloc.IsValid(tb.Sequence()))

	_, err = tb.Allocate(0)
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}

func TestTransientBufferSequenceZero(t *testing.T) {
	gfx := newFakeGraphics()
	staging := newTestStaging(t, gfx, 2, 1024)
	tb := NewTransientStructuredBuffer(staging, 16, nil)

	// The very first frame may arm sequence zero; its allocations are
	// still usable for that frame.
	tb.OnFrameStart(0, 0)
	alloc, err := tb.Allocate(1)
	require.NoError(t, err)
	assert.True(t, alloc.IsValid(0))
	assert.False(t, alloc.IsValid(1))

	// A zero-value allocation never validates.
	assert.False(t, TransientAllocation{}.IsValid(0))
}
