package upload

import (
	"github.com/spaghettifunk/oxygen/engine/core"
	"github.com/spaghettifunk/oxygen/engine/renderer"
)

// CapacityResult reports what EnsureCapacity did.
type CapacityResult uint8

const (
	CapacityUnchanged CapacityResult = iota
	CapacityCreated
	CapacityResized
)

// ElementRef refers to one fixed-stride element in an atlas.
type ElementRef struct {
	Index uint32
	valid bool
}

// IsValid reports whether the ref was produced by a successful Allocate.
func (r ElementRef) IsValid() bool { return r.valid }

// AtlasBuffer is a slot-allocated structured array of fixed-stride elements
// over a device buffer. Releases are keyed by frame slot and only become
// reusable once that slot starts a new frame, so in-flight GPU reads never
// observe recycled elements.
type AtlasBuffer struct {
	gfx       renderer.Graphics
	reclaimer renderer.DeferredReclaimer
	name      string
	stride    uint32

	buffer   renderer.Buffer
	capacity uint32

	nextIndex uint32
	freeList  []uint32
	released  []bool
	// Freed indices parked until their slot's next frame start.
	retired map[uint32][]uint32
}

func NewAtlasBuffer(gfx renderer.Graphics, reclaimer renderer.DeferredReclaimer, name string, stride uint32) *AtlasBuffer {
	return &AtlasBuffer{
		gfx:       gfx,
		reclaimer: reclaimer,
		name:      name,
		stride:    stride,
		retired:   make(map[uint32][]uint32),
	}
}

// EnsureCapacity makes the atlas hold at least min elements. Growth
// allocates a fresh buffer with slack headroom, queues a content-preserving
// copy and defers release of the old buffer.
func (a *AtlasBuffer) EnsureCapacity(min uint32, slack float64) (CapacityResult, error) {
	if min == 0 {
		return CapacityUnchanged, core.NewError(core.KindInvalidRequest, "atlas %s: zero capacity requested", a.name)
	}
	if a.buffer != nil && a.capacity >= min {
		return CapacityUnchanged, nil
	}

	newCapacity := min
	if a.buffer != nil {
		grown := uint32(float64(a.capacity) * (1.0 + slack))
		if grown > newCapacity {
			newCapacity = grown
		}
	}

	buf, err := a.gfx.CreateBuffer(renderer.BufferDesc{
		Name:      a.name,
		SizeBytes: uint64(newCapacity) * uint64(a.stride),
		Stride:    a.stride,
	})
	if err != nil {
		return CapacityUnchanged, core.WrapError(core.KindUploadError, err, "atlas %s: creating buffer for %d elements", a.name, newCapacity)
	}

	result := CapacityCreated
	if a.buffer != nil {
		// Preserve content: copy live elements into the new buffer, then
		// release the old one after frames in flight retire.
		rec, err := a.gfx.CreateCommandRecorder(renderer.QueueRoleTransfer)
		if err != nil {
			return CapacityUnchanged, core.WrapError(core.KindUploadError, err, "atlas %s: rebuild recorder", a.name)
		}
		if err := rec.CopyBuffer(a.buffer, 0, buf, 0, uint64(a.capacity)*uint64(a.stride)); err != nil {
			return CapacityUnchanged, core.WrapError(core.KindUploadError, err, "atlas %s: rebuild copy", a.name)
		}
		if err := rec.Close(); err != nil {
			return CapacityUnchanged, core.WrapError(core.KindUploadError, err, "atlas %s: closing rebuild recorder", a.name)
		}
		if err := a.gfx.SubmitRecorder(rec, a.gfx.GetCommandQueue(renderer.QueueRoleTransfer)); err != nil {
			return CapacityUnchanged, core.WrapError(core.KindUploadError, err, "atlas %s: submitting rebuild", a.name)
		}
		old := a.buffer
		a.reclaimer.RegisterDeferredAction(func() {
			old.Unmap()
		})
		result = CapacityResized
	}

	released := make([]bool, newCapacity)
	copy(released, a.released)
	a.buffer = buf
	a.capacity = newCapacity
	a.released = released
	return result, nil
}

// Allocate hands out one element. Multi-element allocations are not
// supported.
func (a *AtlasBuffer) Allocate(count uint32) (ElementRef, error) {
	if count != 1 {
		return ElementRef{}, core.NewError(core.KindInvalidRequest, "atlas %s: count must be 1, got %d", a.name, count)
	}
	if a.buffer == nil {
		return ElementRef{}, core.NewError(core.KindNotReady, "atlas %s: EnsureCapacity not called", a.name)
	}
	if n := len(a.freeList); n > 0 {
		idx := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		a.released[idx] = false
		return ElementRef{Index: idx, valid: true}, nil
	}
	if a.nextIndex >= a.capacity {
		return ElementRef{}, core.NewError(core.KindOutOfCapacity, "atlas %s: all %d elements allocated", a.name, a.capacity)
	}
	idx := a.nextIndex
	a.nextIndex++
	return ElementRef{Index: idx, valid: true}, nil
}

// Release parks the element in the slot's retire list. It becomes
// allocatable again only after OnFrameStart(slot).
func (a *AtlasBuffer) Release(ref ElementRef, slot uint32) error {
	if !ref.IsValid() || ref.Index >= a.nextIndex {
		return core.NewError(core.KindInvalidRequest, "atlas %s: invalid element ref", a.name)
	}
	if a.released[ref.Index] {
		return core.NewError(core.KindDoubleRelease, "atlas %s: element %d released twice", a.name, ref.Index)
	}
	a.released[ref.Index] = true
	a.retired[slot] = append(a.retired[slot], ref.Index)
	return nil
}

// OnFrameStart moves the slot's retired elements onto the free list.
func (a *AtlasBuffer) OnFrameStart(slot uint32) {
	if indices, ok := a.retired[slot]; ok && len(indices) > 0 {
		a.freeList = append(a.freeList, indices...)
		a.retired[slot] = a.retired[slot][:0]
	}
}

// MakeUploadDesc computes the destination range of an element for the upload
// coordinator.
func (a *AtlasBuffer) MakeUploadDesc(ref ElementRef, data []byte) (UploadDesc, error) {
	if !ref.IsValid() || ref.Index >= a.capacity {
		return UploadDesc{}, core.NewError(core.KindInvalidRequest, "atlas %s: invalid element ref", a.name)
	}
	if uint32(len(data)) != a.stride {
		return UploadDesc{}, core.NewError(core.KindInvalidRequest, "atlas %s: payload %d bytes, stride is %d", a.name, len(data), a.stride)
	}
	return UploadDesc{
		DstBuffer: a.buffer,
		DstOffset: uint64(ref.Index) * uint64(a.stride),
		Data:      data,
	}, nil
}

// Capacity returns the element capacity.
func (a *AtlasBuffer) Capacity() uint32 { return a.capacity }

// Buffer returns the backing device buffer.
func (a *AtlasBuffer) Buffer() renderer.Buffer { return a.buffer }
