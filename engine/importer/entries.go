package importer

import "github.com/spaghettifunk/oxygen/engine/resources/serial"

// CookedAlignmentDefault is the payload alignment used when a request does
// not state its own.
const CookedAlignmentDefault = 16

// TextureFormat tags a cooked texture payload layout.
type TextureFormat uint32

const (
	TextureFormatRGBA8 TextureFormat = iota
	TextureFormatBC7
)

// TextureTableEntry is the packed descriptor of one cooked texture.
type TextureTableEntry struct {
	DataOffset  uint64
	SizeBytes   uint64
	ContentHash uint64
	Width       uint32
	Height      uint32
	MipLevels   uint32
	Format      TextureFormat
	Alignment   uint32
}

func (e TextureTableEntry) Signature() uint64 { return e.ContentHash }

func (e TextureTableEntry) EncodeTo(w *serial.Writer) error {
	w.WriteU64(e.DataOffset)
	w.WriteU64(e.SizeBytes)
	w.WriteU64(e.ContentHash)
	w.WriteU32(e.Width)
	w.WriteU32(e.Height)
	w.WriteU32(e.MipLevels)
	w.WriteU32(uint32(e.Format))
	w.WriteU32(e.Alignment)
	return nil
}

// BufferTableEntry is the packed descriptor of one cooked buffer.
type BufferTableEntry struct {
	DataOffset    uint64
	SizeBytes     uint64
	ContentHash   uint64
	UsageFlags    uint32
	ElementStride uint32
	ElementFormat uint32
	Alignment     uint32
}

func (e BufferTableEntry) Signature() uint64 { return e.ContentHash }

func (e BufferTableEntry) EncodeTo(w *serial.Writer) error {
	w.WriteU64(e.DataOffset)
	w.WriteU64(e.SizeBytes)
	w.WriteU64(e.ContentHash)
	w.WriteU32(e.UsageFlags)
	w.WriteU32(e.ElementStride)
	w.WriteU32(e.ElementFormat)
	w.WriteU32(e.Alignment)
	return nil
}

// AssetKind tags structured asset descriptors.
type AssetKind uint32

const (
	AssetKindMaterial AssetKind = iota
	AssetKindGeometry
	AssetKindScene
)

func (k AssetKind) String() string {
	switch k {
	case AssetKindMaterial:
		return "material"
	case AssetKindGeometry:
		return "geometry"
	case AssetKindScene:
		return "scene"
	}
	return "unknown"
}

// AssetTableEntry is the packed descriptor of a structured asset whose
// payload is a serial-encoded descriptor blob.
type AssetTableEntry struct {
	DataOffset  uint64
	SizeBytes   uint64
	ContentHash uint64
	Kind        AssetKind
	Alignment   uint32
}

func (e AssetTableEntry) Signature() uint64 { return e.ContentHash }

func (e AssetTableEntry) EncodeTo(w *serial.Writer) error {
	w.WriteU64(e.DataOffset)
	w.WriteU64(e.SizeBytes)
	w.WriteU64(e.ContentHash)
	w.WriteU32(uint32(e.Kind))
	w.WriteU32(e.Alignment)
	return nil
}
