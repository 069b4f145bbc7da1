package metadata

import "math"

// InvalidID is the common 32-bit invalid sentinel, shared with shader code.
const InvalidID uint32 = math.MaxUint32

// BindlessHeapIndex is an opaque index into a backend descriptor heap.
// Never implicitly convertible to its underlying integer.
type BindlessHeapIndex uint32

// InvalidBindlessHeapIndex is the sentinel for an unallocated heap index.
const InvalidBindlessHeapIndex = BindlessHeapIndex(math.MaxUint32)

func (i BindlessHeapIndex) IsValid() bool {
	return i != InvalidBindlessHeapIndex
}

// ShaderVisibleIndex is the index observed by shaders. Distinct type from
// the heap index; the mapping between the two is allocator-defined.
type ShaderVisibleIndex uint32

// InvalidShaderVisibleIndex is the sentinel for an invalid shader index.
const InvalidShaderVisibleIndex = ShaderVisibleIndex(math.MaxUint32)

func (i ShaderVisibleIndex) IsValid() bool {
	return i != InvalidShaderVisibleIndex
}

// BindlessItemCount counts live descriptors.
type BindlessItemCount uint32

// BindlessCapacity is a descriptor capacity.
type BindlessCapacity uint32

// Generation disambiguates reuses of the same shader-visible index.
type Generation uint32

// VersionedBindlessHandle pairs a shader-visible index with a generation.
// It packs into 64 bits with the index in the high 32 bits, which makes the
// packed total order by-index-then-generation.
type VersionedBindlessHandle struct {
	Index      ShaderVisibleIndex
	Generation Generation
}

// InvalidVersionedBindlessHandle has an invalid index and generation zero.
var InvalidVersionedBindlessHandle = VersionedBindlessHandle{Index: InvalidShaderVisibleIndex}

func (h VersionedBindlessHandle) IsValid() bool {
	return h.Index.IsValid()
}

// ToPacked packs the handle into a u64: index high 32, generation low 32.
func (h VersionedBindlessHandle) ToPacked() uint64 {
	return uint64(h.Index)<<32 | uint64(h.Generation)
}

// HandleFromPacked is the inverse of ToPacked.
func HandleFromPacked(packed uint64) VersionedBindlessHandle {
	return VersionedBindlessHandle{
		Index:      ShaderVisibleIndex(packed >> 32),
		Generation: Generation(packed & 0xFFFFFFFF),
	}
}

// Less orders handles by index then generation.
func (h VersionedBindlessHandle) Less(other VersionedBindlessHandle) bool {
	return h.ToPacked() < other.ToPacked()
}
