// Package renderer declares the abstract graphics surface the engine core
// consumes. Concrete backends live outside the core; the core observes them
// only through these interfaces, command queues and fences.
package renderer

import (
	"context"

	"github.com/spaghettifunk/oxygen/engine/renderer/metadata"
)

// QueueRole names the purpose of a command queue.
type QueueRole uint8

const (
	QueueRoleGraphics QueueRole = iota
	QueueRoleCompute
	QueueRoleTransfer
)

func (r QueueRole) String() string {
	switch r {
	case QueueRoleGraphics:
		return "graphics"
	case QueueRoleCompute:
		return "compute"
	}
	return "transfer"
}

// BufferDesc describes a GPU buffer to create.
type BufferDesc struct {
	Name      string
	SizeBytes uint64
	Stride    uint32
	Usage     metadata.ResourceState
	// CPU-visible upload buffers can be persistently mapped.
	HostVisible bool
}

// TextureDesc describes a GPU texture to create.
type TextureDesc struct {
	Name      string
	Width     uint32
	Height    uint32
	MipLevels uint32
	Format    uint32
}

// Buffer is a GPU buffer as seen by the core.
type Buffer interface {
	ID() uint64
	Size() uint64
	// Map returns the persistently mapped bytes of a host-visible buffer.
	// Returns a NotReady error for device-local buffers.
	Map() ([]byte, error)
	Unmap()
}

// Texture is a GPU texture as seen by the core.
type Texture interface {
	ID() uint64
	Desc() TextureDesc
}

// Surface is a presentable target.
type Surface interface {
	ID() uint64
	Name() string
	Present() error
}

// NativeView is an opaque backend view handle paired with its bindless
// location.
type NativeView struct {
	ViewID uint64
	Heap   metadata.BindlessHeapIndex
	Shader metadata.ShaderVisibleIndex
}

// CommandQueue submits recorded work and signals a monotonically increasing
// fence.
type CommandQueue interface {
	Role() QueueRole
	// QueueSignalCommand enqueues a fence signal and returns the value that
	// will be signaled once prior work completes.
	QueueSignalCommand() uint64
	// CompletedFenceValue observes the fence without blocking.
	CompletedFenceValue() uint64
	// Flush blocks until all submitted work has completed.
	Flush(ctx context.Context) error
}

// CommandRecorder records copy and barrier work for one command list.
// The state-tracking primitives mirror the resource state tracker; concrete
// recorders route them to the tracker that lives above the backend.
type CommandRecorder interface {
	BeginTrackingResourceState(resourceID uint64, initial metadata.ResourceState, keepInitial bool) error
	RequireResourceState(resourceID uint64, desired metadata.ResourceState) error
	RequireResourceStateFinal(resourceID uint64, permanent metadata.ResourceState) error
	EnableAutoMemoryBarriers(resourceID uint64) error
	DisableAutoMemoryBarriers(resourceID uint64) error
	FlushBarriers() []metadata.Barrier

	CopyBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset uint64, size uint64) error
	Close() error
}

// DeferredReclaimer runs registered actions once their safe-to-release frame
// has been reached.
type DeferredReclaimer interface {
	// RegisterDeferredAction schedules fn to run after every frame currently
	// in flight has retired.
	RegisterDeferredAction(fn func())
	// OnFrameStart retires actions whose safe-to-release frame has passed.
	OnFrameStart(slot uint32)
}

// DescriptorAllocator hands out bindless descriptor indices partitioned by
// view type and visibility.
type DescriptorAllocator interface {
	Allocate(viewType metadata.ResourceViewType, visibility metadata.DescriptorVisibility) (metadata.BindlessHeapIndex, error)
	Release(viewType metadata.ResourceViewType, visibility metadata.DescriptorVisibility, index metadata.BindlessHeapIndex) error
	GetAllocatedCount(viewType metadata.ResourceViewType, visibility metadata.DescriptorVisibility) metadata.BindlessItemCount
}

// Graphics is the root backend object.
type Graphics interface {
	CreateBuffer(desc BufferDesc) (Buffer, error)
	CreateTexture(desc TextureDesc) (Texture, error)
	CreateSurface(name string, width, height uint32) (Surface, error)
	CreateCommandRecorder(role QueueRole) (CommandRecorder, error)
	GetCommandQueue(role QueueRole) CommandQueue
	GetDescriptorAllocator() DescriptorAllocator
	GetDeferredReclaimer() DeferredReclaimer
	// CreateView instantiates a backend view of resource for desc.
	CreateView(resourceID uint64, desc metadata.ViewDescription) (uint64, error)
	// OnRenderStart suspends until the backend is ready to begin the frame.
	OnRenderStart(ctx context.Context) error
	SubmitRecorder(rec CommandRecorder, queue CommandQueue) error
}
