// Package upload orchestrates CPU-to-GPU data movement: a ring-buffered
// staging arena partitioned per frame slot, a coordinator submitting copies
// on the transfer queue, and structured-buffer allocators layered on top.
package upload

import (
	"github.com/spaghettifunk/oxygen/engine/core"
	"github.com/spaghettifunk/oxygen/engine/renderer"
)

// AlignUp rounds v up to the next multiple of alignment (a power of two or
// any positive value).
func AlignUp(v, alignment uint64) uint64 {
	if alignment == 0 {
		return v
	}
	rem := v % alignment
	if rem == 0 {
		return v
	}
	return v + alignment - rem
}

// Allocation is a slice of the staging buffer handed to a writer. Bytes is
// the persistently mapped window; it stays valid until the owning frame slot
// is reused.
type Allocation struct {
	Buffer renderer.Buffer
	Offset uint64
	Size   uint64
	Bytes  []byte
}

// StagingProvider is what the allocators layered above staging consume.
type StagingProvider interface {
	Allocate(size uint64) (Allocation, error)
	ActiveSlot() uint32
}

// RingBufferStagingConfig tunes the staging arena.
type RingBufferStagingConfig struct {
	PartitionsCount uint32
	BaselineBytes   uint64
	GrowthSlack     float64
	TrimIdleFrames  uint32
	Alignment       uint64
}

// RingBufferStaging is one upload buffer split into equal partitions, one
// per frame-in-flight slot. Each partition is a bump allocator reset when
// its slot starts a new frame. Single writer per active partition;
// OnFrameStart runs on the owning loop only.
type RingBufferStaging struct {
	gfx       renderer.Graphics
	reclaimer renderer.DeferredReclaimer
	cfg       RingBufferStagingConfig

	buffer        renderer.Buffer
	mapped        []byte
	partitionSize uint64
	heads         []uint64
	activeSlot    uint32

	allocatedThisFrame bool
	idleFrames         uint32
	growthCount        uint64
	trimCount          uint64
}

func NewRingBufferStaging(gfx renderer.Graphics, reclaimer renderer.DeferredReclaimer, cfg RingBufferStagingConfig) (*RingBufferStaging, error) {
	if cfg.PartitionsCount == 0 {
		return nil, core.NewError(core.KindInvalidRequest, "staging needs at least one partition")
	}
	if cfg.Alignment == 0 {
		cfg.Alignment = 256
	}
	if cfg.GrowthSlack <= 0 {
		cfg.GrowthSlack = 0.5
	}
	s := &RingBufferStaging{
		gfx:       gfx,
		reclaimer: reclaimer,
		cfg:       cfg,
		heads:     make([]uint64, cfg.PartitionsCount),
	}
	if err := s.createBuffer(AlignUp(cfg.BaselineBytes, cfg.Alignment)); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *RingBufferStaging) createBuffer(partitionSize uint64) error {
	total := partitionSize * uint64(s.cfg.PartitionsCount)
	buf, err := s.gfx.CreateBuffer(renderer.BufferDesc{
		Name:        "staging-ring",
		SizeBytes:   total,
		HostVisible: true,
	})
	if err != nil {
		return core.WrapError(core.KindUploadError, err, "creating staging buffer of %d bytes", total)
	}
	mapped, err := buf.Map()
	if err != nil {
		return core.WrapError(core.KindUploadError, err, "mapping staging buffer")
	}
	s.buffer = buf
	s.mapped = mapped
	s.partitionSize = partitionSize
	return nil
}

// retireBuffer defers release of the previous buffer until no frame in
// flight can still reference it.
func (s *RingBufferStaging) retireBuffer(old renderer.Buffer) {
	s.reclaimer.RegisterDeferredAction(func() {
		old.Unmap()
	})
}

// Allocate carves size bytes out of the active partition, growing the
// underlying buffer when the request does not fit.
func (s *RingBufferStaging) Allocate(size uint64) (Allocation, error) {
	if size == 0 {
		return Allocation{}, core.NewError(core.KindInvalidRequest, "zero-size staging allocation")
	}
	aligned := AlignUp(size, s.cfg.Alignment)
	head := s.heads[s.activeSlot]
	if head+aligned > s.partitionSize {
		if err := s.ensureCapacity(head + aligned); err != nil {
			return Allocation{}, err
		}
	}
	offset := uint64(s.activeSlot)*s.partitionSize + s.heads[s.activeSlot]
	s.heads[s.activeSlot] += aligned
	s.allocatedThisFrame = true
	return Allocation{
		Buffer: s.buffer,
		Offset: offset,
		Size:   size,
		Bytes:  s.mapped[offset : offset+size],
	}, nil
}

// ensureCapacity grows the buffer so the active partition can hold required
// bytes. The previous buffer is deferred-released; writers holding
// allocations from it stay valid until the reclaimer retires it.
func (s *RingBufferStaging) ensureCapacity(required uint64) error {
	grown := uint64(float64(s.partitionSize) * (1.0 + s.cfg.GrowthSlack))
	newSize := required
	if grown > newSize {
		newSize = grown
	}
	newSize = AlignUp(newSize, s.cfg.Alignment)

	old := s.buffer
	if err := s.createBuffer(newSize); err != nil {
		return err
	}
	s.retireBuffer(old)
	s.growthCount++
	core.LogDebug("staging grew to %d bytes per partition (%d growths)", newSize, s.growthCount)
	return nil
}

// OnFrameStart switches to the slot's partition, resets its head and
// applies idle trimming. Must be called from the owning loop.
func (s *RingBufferStaging) OnFrameStart(slot uint32) error {
	if slot >= s.cfg.PartitionsCount {
		return core.NewError(core.KindInvalidRequest, "frame slot %d out of range (%d partitions)", slot, s.cfg.PartitionsCount)
	}
	if s.allocatedThisFrame {
		s.idleFrames = 0
	} else {
		s.idleFrames++
	}
	s.allocatedThisFrame = false
	s.activeSlot = slot
	s.heads[slot] = 0

	baseline := AlignUp(s.cfg.BaselineBytes, s.cfg.Alignment)
	if s.cfg.TrimIdleFrames > 0 && s.idleFrames >= s.cfg.TrimIdleFrames && s.partitionSize > baseline {
		old := s.buffer
		if err := s.createBuffer(baseline); err != nil {
			return err
		}
		s.retireBuffer(old)
		for i := range s.heads {
			s.heads[i] = 0
		}
		s.idleFrames = 0
		s.trimCount++
		core.LogDebug("staging trimmed back to baseline (%d trims)", s.trimCount)
	}
	return nil
}

// ActiveSlot returns the slot whose partition currently serves allocations.
func (s *RingBufferStaging) ActiveSlot() uint32 {
	return s.activeSlot
}

// Buffer exposes the current underlying buffer.
func (s *RingBufferStaging) Buffer() renderer.Buffer {
	return s.buffer
}

// PartitionSize returns the current per-partition capacity in bytes.
func (s *RingBufferStaging) PartitionSize() uint64 {
	return s.partitionSize
}

// GrowthCount returns how many times the buffer grew.
func (s *RingBufferStaging) GrowthCount() uint64 {
	return s.growthCount
}

// TrimCount returns how many times the buffer was trimmed to baseline.
func (s *RingBufferStaging) TrimCount() uint64 {
	return s.trimCount
}
