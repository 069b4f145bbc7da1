package metadata

// ResourceViewType identifies what kind of descriptor a view occupies.
type ResourceViewType uint8

const (
	ResourceViewTypeNone ResourceViewType = iota
	ResourceViewTypeConstantBuffer
	ResourceViewTypeTextureSRV
	ResourceViewTypeTextureUAV
	ResourceViewTypeBufferSRV
	ResourceViewTypeBufferUAV
	ResourceViewTypeSampler
	ResourceViewTypeRenderTarget
	ResourceViewTypeDepthStencil
	ResourceViewTypeRayTracingAS

	resourceViewTypeCount
)

func (t ResourceViewType) String() string {
	switch t {
	case ResourceViewTypeConstantBuffer:
		return "CBV"
	case ResourceViewTypeTextureSRV:
		return "Texture SRV"
	case ResourceViewTypeTextureUAV:
		return "Texture UAV"
	case ResourceViewTypeBufferSRV:
		return "Buffer SRV"
	case ResourceViewTypeBufferUAV:
		return "Buffer UAV"
	case ResourceViewTypeSampler:
		return "Sampler"
	case ResourceViewTypeRenderTarget:
		return "RTV"
	case ResourceViewTypeDepthStencil:
		return "DSV"
	case ResourceViewTypeRayTracingAS:
		return "RTAS"
	}
	return "None"
}

// DescriptorVisibility partitions the heap between shader-visible and
// CPU-only descriptors.
type DescriptorVisibility uint8

const (
	VisibilityShaderVisible DescriptorVisibility = iota
	VisibilityCPUOnly
)

func (v DescriptorVisibility) String() string {
	if v == VisibilityShaderVisible {
		return "shader-visible"
	}
	return "cpu-only"
}

// ViewDescription fully describes a resource view. Two identical
// descriptions on the same resource must yield the same cached view, so the
// struct is comparable and usable as a map key.
type ViewDescription struct {
	ViewType      ResourceViewType
	Visibility    DescriptorVisibility
	Format        uint32
	FirstElement  uint64
	ElementCount  uint32
	ElementStride uint32
	MostDetailMip uint8
	MipLevels     uint8
	ArrayFirst    uint16
	ArrayCount    uint16
}

// OptimalSegmentCapacity is the compile-time segment capacity table per view
// type.
func OptimalSegmentCapacity(t ResourceViewType) BindlessCapacity {
	switch t {
	case ResourceViewTypeConstantBuffer:
		return 64
	case ResourceViewTypeTextureSRV, ResourceViewTypeTextureUAV:
		return 256
	case ResourceViewTypeBufferSRV, ResourceViewTypeBufferUAV:
		return 64
	case ResourceViewTypeSampler:
		return 32
	case ResourceViewTypeRenderTarget, ResourceViewTypeDepthStencil, ResourceViewTypeRayTracingAS:
		return 16
	}
	return 16
}
