package engine

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/oxygen/engine/config"
	"github.com/spaghettifunk/oxygen/engine/core"
	"github.com/spaghettifunk/oxygen/engine/frame"
	"github.com/spaghettifunk/oxygen/engine/renderer"
	"github.com/spaghettifunk/oxygen/engine/renderer/metadata"
)

type stubBuffer struct {
	id   uint64
	data []byte
}

func (b *stubBuffer) ID() uint64           { return b.id }
func (b *stubBuffer) Size() uint64         { return uint64(len(b.data)) }
func (b *stubBuffer) Map() ([]byte, error) { return b.data, nil }
func (b *stubBuffer) Unmap()               {}

type stubQueue struct{ fence atomic.Uint64 }

func (q *stubQueue) Role() renderer.QueueRole { return renderer.QueueRoleTransfer }
func (q *stubQueue) QueueSignalCommand() uint64 {
	return q.fence.Add(1)
}
func (q *stubQueue) CompletedFenceValue() uint64 { return q.fence.Load() }
func (q *stubQueue) Flush(context.Context) error { return nil }

type stubReclaimer struct{ frameStarts []uint32 }

func (r *stubReclaimer) RegisterDeferredAction(func()) {}
func (r *stubReclaimer) OnFrameStart(slot uint32)      { r.frameStarts = append(r.frameStarts, slot) }

type stubGraphics struct {
	nextID       uint64
	queue        stubQueue
	reclaimer    stubReclaimer
	renderStarts int
}

func (g *stubGraphics) CreateBuffer(desc renderer.BufferDesc) (renderer.Buffer, error) {
	g.nextID++
	return &stubBuffer{id: g.nextID, data: make([]byte, desc.SizeBytes)}, nil
}

func (g *stubGraphics) CreateTexture(renderer.TextureDesc) (renderer.Texture, error) {
	return nil, core.NewError(core.KindInvalidRequest, "not supported")
}

func (g *stubGraphics) CreateSurface(string, uint32, uint32) (renderer.Surface, error) {
	return nil, core.NewError(core.KindInvalidRequest, "not supported")
}

func (g *stubGraphics) CreateCommandRecorder(renderer.QueueRole) (renderer.CommandRecorder, error) {
	return nil, core.NewError(core.KindInvalidRequest, "not supported")
}

func (g *stubGraphics) GetCommandQueue(renderer.QueueRole) renderer.CommandQueue { return &g.queue }
func (g *stubGraphics) GetDescriptorAllocator() renderer.DescriptorAllocator     { return nil }
func (g *stubGraphics) GetDeferredReclaimer() renderer.DeferredReclaimer         { return &g.reclaimer }

func (g *stubGraphics) CreateView(uint64, metadata.ViewDescription) (uint64, error) { return 0, nil }

func (g *stubGraphics) OnRenderStart(context.Context) error {
	g.renderStarts++
	return nil
}

func (g *stubGraphics) SubmitRecorder(renderer.CommandRecorder, renderer.CommandQueue) error {
	return nil
}

// shutdownModule stops the engine after a fixed number of frames.
type shutdownModule struct {
	engine *Engine
	frames int
	seen   int
}

func (m *shutdownModule) Name() string { return "shutdown" }

func (m *shutdownModule) OnAttached(*frame.FrameContext) error { return nil }
func (m *shutdownModule) OnShutdown(*frame.FrameContext)       {}

func (m *shutdownModule) OnFrameStart(context.Context, *frame.FrameContext) error { return nil }

func (m *shutdownModule) OnPhase(context.Context, *frame.FrameContext, frame.Phase) error {
	return nil
}

func (m *shutdownModule) OnFrameEnd(context.Context, *frame.FrameContext) error {
	m.seen++
	if m.seen >= m.frames {
		m.engine.Shutdown()
	}
	return nil
}

func TestEngineDrivesBackendEachFrame(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.FramesInFlight = 2
	cfg.Importer.CookedRoot = t.TempDir()
	gfx := &stubGraphics{}

	e, err := New(cfg, gfx, nil)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())

	mod := &shutdownModule{engine: e, frames: 4}
	require.NoError(t, e.AttachModule(mod))
	require.NoError(t, e.Run())

	// Every frame waited for the backend and rotated the in-flight slot.
	assert.GreaterOrEqual(t, gfx.renderStarts, 4)
	require.GreaterOrEqual(t, len(gfx.reclaimer.frameStarts), 4)
	assert.Equal(t, []uint32{0, 1, 0, 1}, gfx.reclaimer.frameStarts[:4])
	assert.NotNil(t, e.Uploads())
}

func TestEngineRequiresBackend(t *testing.T) {
	_, err := New(config.Default(), nil, nil)
	require.Error(t, err)
}

func TestEngineLifecycleOrdering(t *testing.T) {
	cfg := config.Default()
	cfg.Importer.CookedRoot = t.TempDir()
	e, err := New(cfg, &stubGraphics{}, nil)
	require.NoError(t, err)

	// Modules cannot attach before initialization.
	assert.Error(t, e.AttachModule(&shutdownModule{engine: e, frames: 1}))
	require.NoError(t, e.Initialize())
	assert.Error(t, e.Initialize())
}
