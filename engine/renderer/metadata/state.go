package metadata

import "strings"

// ResourceState is a bitmask of GPU resource usage states.
type ResourceState uint32

const (
	ResourceStateCommon          ResourceState = 0
	ResourceStateVertexBuffer    ResourceState = 1 << 0
	ResourceStateConstantBuffer  ResourceState = 1 << 1
	ResourceStateIndexBuffer     ResourceState = 1 << 2
	ResourceStateRenderTarget    ResourceState = 1 << 3
	ResourceStateUnorderedAccess ResourceState = 1 << 4
	ResourceStateDepthWrite      ResourceState = 1 << 5
	ResourceStateDepthRead       ResourceState = 1 << 6
	ResourceStateShaderResource  ResourceState = 1 << 7
	ResourceStateStreamOut       ResourceState = 1 << 8
	ResourceStateIndirectArg     ResourceState = 1 << 9
	ResourceStateCopyDest        ResourceState = 1 << 10
	ResourceStateCopySource      ResourceState = 1 << 11
	ResourceStatePresent         ResourceState = 1 << 12
)

func (s ResourceState) String() string {
	if s == ResourceStateCommon {
		return "Common"
	}
	names := []struct {
		bit  ResourceState
		name string
	}{
		{ResourceStateVertexBuffer, "VertexBuffer"},
		{ResourceStateConstantBuffer, "ConstantBuffer"},
		{ResourceStateIndexBuffer, "IndexBuffer"},
		{ResourceStateRenderTarget, "RenderTarget"},
		{ResourceStateUnorderedAccess, "UnorderedAccess"},
		{ResourceStateDepthWrite, "DepthWrite"},
		{ResourceStateDepthRead, "DepthRead"},
		{ResourceStateShaderResource, "ShaderResource"},
		{ResourceStateStreamOut, "StreamOut"},
		{ResourceStateIndirectArg, "IndirectArg"},
		{ResourceStateCopyDest, "CopyDest"},
		{ResourceStateCopySource, "CopySource"},
		{ResourceStatePresent, "Present"},
	}
	parts := make([]string, 0, 4)
	for _, n := range names {
		if s&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// BarrierType distinguishes state transitions from UAV memory barriers.
type BarrierType uint8

const (
	// BarrierTransition changes a resource from one state to another.
	BarrierTransition BarrierType = iota
	// BarrierMemory enforces ordering of UAV accesses without a state change.
	BarrierMemory
)

// Barrier is one pending barrier produced by the state tracker. For
// transitions Before != After; for memory barriers both are UnorderedAccess.
type Barrier struct {
	Type       BarrierType
	ResourceID uint64
	Before     ResourceState
	After      ResourceState
}
