package upload

import (
	"github.com/spaghettifunk/oxygen/engine/core"
	"github.com/spaghettifunk/oxygen/engine/renderer/metadata"
)

// TransientAllocation is a per-frame structured-buffer allocation. It is
// invalidated the moment its frame slot is re-armed for a new frame.
type TransientAllocation struct {
	Sequence uint64
	Slot     uint32
	SRV      metadata.ShaderVisibleIndex
	Offset   uint64
	Bytes    []byte

	valid bool
}

// IsValid reports whether the allocation still belongs to the live frame.
// The zero value is never valid, regardless of sequence.
func (t TransientAllocation) IsValid(currentSequence uint64) bool {
	return t.valid && t.Sequence == currentSequence
}

// SRVProvider returns the shader-visible index covering a staging range, or
// an invalid index when the caller does not need one.
type SRVProvider func(alloc Allocation) metadata.ShaderVisibleIndex

// TransientStructuredBuffer allocates fixed-stride element runs out of the
// staging provider, scoped to a single frame.
type TransientStructuredBuffer struct {
	staging StagingProvider
	stride  uint32
	srv     SRVProvider

	sequence uint64
	slot     uint32
	armed    bool
}

func NewTransientStructuredBuffer(staging StagingProvider, stride uint32, srv SRVProvider) *TransientStructuredBuffer {
	return &TransientStructuredBuffer{
		staging: staging,
		stride:  stride,
		srv:     srv,
	}
}

// OnFrameStart arms the slot for a new frame sequence. All allocations from
// earlier sequences become invalid.
func (t *TransientStructuredBuffer) OnFrameStart(sequence uint64, slot uint32) {
	t.sequence = sequence
	t.slot = slot
	t.armed = true
}

// Allocate returns a run of count elements valid for the current frame only.
func (t *TransientStructuredBuffer) Allocate(count uint32) (TransientAllocation, error) {
	if !t.armed {
		return TransientAllocation{}, core.NewError(core.KindNotReady, "transient buffer: no frame armed")
	}
	if count == 0 {
		return TransientAllocation{}, core.NewError(core.KindInvalidRequest, "transient buffer: zero element count")
	}
	alloc, err := t.staging.Allocate(uint64(count) * uint64(t.stride))
	if err != nil {
		return TransientAllocation{}, err
	}
	srv := metadata.InvalidShaderVisibleIndex
	if t.srv != nil {
		srv = t.srv(alloc)
	}
	return TransientAllocation{
		Sequence: t.sequence,
		Slot:     t.slot,
		SRV:      srv,
		Offset:   alloc.Offset,
		Bytes:    alloc.Bytes,
		valid:    true,
	}, nil
}

// Sequence returns the currently armed frame sequence.
func (t *TransientStructuredBuffer) Sequence() uint64 { return t.sequence }
