package upload

import (
	"context"
	"sync/atomic"

	"github.com/spaghettifunk/oxygen/engine/core"
	"github.com/spaghettifunk/oxygen/engine/renderer"
	"github.com/spaghettifunk/oxygen/engine/renderer/metadata"
)

// In-memory test doubles for the graphics backend. Copies execute
// immediately on submit and the transfer fence completes instantly, which
// is enough to exercise ticket retirement and deferred reclamation.

type fakeBuffer struct {
	id     uint64
	data   []byte
	desc   renderer.BufferDesc
	unmaps int
}

func (b *fakeBuffer) ID() uint64   { return b.id }
func (b *fakeBuffer) Size() uint64 { return uint64(len(b.data)) }
func (b *fakeBuffer) Map() ([]byte, error) {
	if !b.desc.HostVisible {
		return nil, core.NewError(core.KindNotReady, "buffer %d is device-local", b.id)
	}
	return b.data, nil
}
func (b *fakeBuffer) Unmap() { b.unmaps++ }

type copyOp struct {
	src       *fakeBuffer
	srcOffset uint64
	dst       *fakeBuffer
	dstOffset uint64
	size      uint64
}

type fakeRecorder struct {
	copies []copyOp
	closed bool
}

func (r *fakeRecorder) BeginTrackingResourceState(uint64, metadata.ResourceState, bool) error {
	return nil
}
func (r *fakeRecorder) RequireResourceState(uint64, metadata.ResourceState) error      { return nil }
func (r *fakeRecorder) RequireResourceStateFinal(uint64, metadata.ResourceState) error { return nil }
func (r *fakeRecorder) EnableAutoMemoryBarriers(uint64) error                          { return nil }
func (r *fakeRecorder) DisableAutoMemoryBarriers(uint64) error                         { return nil }
func (r *fakeRecorder) FlushBarriers() []metadata.Barrier                              { return nil }

func (r *fakeRecorder) CopyBuffer(src renderer.Buffer, srcOffset uint64, dst renderer.Buffer, dstOffset uint64, size uint64) error {
	r.copies = append(r.copies, copyOp{
		src:       src.(*fakeBuffer),
		srcOffset: srcOffset,
		dst:       dst.(*fakeBuffer),
		dstOffset: dstOffset,
		size:      size,
	})
	return nil
}

func (r *fakeRecorder) Close() error {
	r.closed = true
	return nil
}

type fakeQueue struct {
	role      renderer.QueueRole
	fence     atomic.Uint64
	completed atomic.Uint64
}

func (q *fakeQueue) Role() renderer.QueueRole { return q.role }
func (q *fakeQueue) QueueSignalCommand() uint64 {
	v := q.fence.Add(1)
	q.completed.Store(v)
	return v
}
func (q *fakeQueue) CompletedFenceValue() uint64     { return q.completed.Load() }
func (q *fakeQueue) Flush(ctx context.Context) error { return nil }

type fakeReclaimer struct {
	actions []func()
}

func (r *fakeReclaimer) RegisterDeferredAction(fn func()) { r.actions = append(r.actions, fn) }
func (r *fakeReclaimer) OnFrameStart(uint32)              {}
func (r *fakeReclaimer) runAll() {
	for _, fn := range r.actions {
		fn()
	}
	r.actions = nil
}

type fakeGraphics struct {
	nextID    uint64
	buffers   []*fakeBuffer
	transfer  *fakeQueue
	reclaimer *fakeReclaimer
}

func newFakeGraphics() *fakeGraphics {
	return &fakeGraphics{
		transfer:  &fakeQueue{role: renderer.QueueRoleTransfer},
		reclaimer: &fakeReclaimer{},
	}
}

func (g *fakeGraphics) CreateBuffer(desc renderer.BufferDesc) (renderer.Buffer, error) {
	g.nextID++
	b := &fakeBuffer{id: g.nextID, data: make([]byte, desc.SizeBytes), desc: desc}
	g.buffers = append(g.buffers, b)
	return b, nil
}

func (g *fakeGraphics) CreateTexture(desc renderer.TextureDesc) (renderer.Texture, error) {
	return nil, core.NewError(core.KindInvalidRequest, "not supported")
}

func (g *fakeGraphics) CreateSurface(string, uint32, uint32) (renderer.Surface, error) {
	return nil, core.NewError(core.KindInvalidRequest, "not supported")
}

func (g *fakeGraphics) CreateCommandRecorder(renderer.QueueRole) (renderer.CommandRecorder, error) {
	return &fakeRecorder{}, nil
}

func (g *fakeGraphics) GetCommandQueue(role renderer.QueueRole) renderer.CommandQueue {
	return g.transfer
}

func (g *fakeGraphics) GetDescriptorAllocator() renderer.DescriptorAllocator { return nil }
func (g *fakeGraphics) GetDeferredReclaimer() renderer.DeferredReclaimer     { return g.reclaimer }

func (g *fakeGraphics) CreateView(uint64, metadata.ViewDescription) (uint64, error) {
	return 0, nil
}

func (g *fakeGraphics) OnRenderStart(ctx context.Context) error { return nil }

func (g *fakeGraphics) SubmitRecorder(rec renderer.CommandRecorder, queue renderer.CommandQueue) error {
	fr := rec.(*fakeRecorder)
	for _, op := range fr.copies {
		copy(fr.dstSlice(op), fr.srcSlice(op))
	}
	return nil
}

func (r *fakeRecorder) srcSlice(op copyOp) []byte {
	return op.src.data[op.srcOffset : op.srcOffset+op.size]
}

func (r *fakeRecorder) dstSlice(op copyOp) []byte {
	return op.dst.data[op.dstOffset : op.dstOffset+op.size]
}
