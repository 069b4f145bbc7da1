package importer

import (
	"bytes"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/h2non/filetype"
	xdraw "golang.org/x/image/draw"

	"github.com/spaghettifunk/oxygen/engine/core"
)

// MaxTextureDimension bounds accepted source images.
const MaxTextureDimension = 16384

// TextureCooker decodes source images and produces an RGBA8 payload with a
// full mip chain. Block-compressed encodes run in an external codec, so a
// BC7 request falls back to RGBA8 with a warning.
type TextureCooker struct{}

func (TextureCooker) Kind() string { return "texture" }

func (TextureCooker) Validate(item *WorkItem) *Diagnostic {
	if len(item.Payload) == 0 {
		d := errorDiag(CodeReadFailed, item.SourcePath, "empty source payload")
		return &d
	}
	kind, err := filetype.Match(item.Payload)
	if err != nil || kind == filetype.Unknown {
		d := errorDiag(CodeUnsupportedFormat, item.SourcePath, "unrecognized image container")
		return &d
	}
	switch kind.Extension {
	case "png", "jpg":
		return nil
	default:
		d := errorDiag(CodeUnsupportedFormat, item.SourcePath, "unsupported image format %q", kind.Extension)
		return &d
	}
}

func (TextureCooker) Cook(item *WorkItem, tel *Telemetry) ([]byte, CookedMeta, *Diagnostic) {
	start := time.Now()
	src, _, err := image.Decode(bytes.NewReader(item.Payload))
	tel.DecodeMs = float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		d := errorDiag(CodeDecodeFailed, item.SourcePath, "decoding image: %v", err)
		return nil, CookedMeta{}, &d
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 || w > MaxTextureDimension || h > MaxTextureDimension {
		d := errorDiag(CodeInvalidDimensions, item.SourcePath, "dimensions %dx%d out of range", w, h)
		return nil, CookedMeta{}, &d
	}

	start = time.Now()
	base := toRGBA(src)
	mips := []*image.RGBA{base}
	if item.Params.GenerateMips {
		mips = append(mips, mipChain(base)...)
	}

	var payload bytes.Buffer
	for _, m := range mips {
		payload.Write(m.Pix)
	}
	tel.CookMs = float64(time.Since(start).Microseconds()) / 1000

	meta := CookedMeta{
		Width:     uint32(w),
		Height:    uint32(h),
		MipLevels: uint32(len(mips)),
		Format:    TextureFormatRGBA8,
	}
	if item.Params.EncodeBC7 {
		core.LogWarn("%s: BC7 encode requires the external codec, emitting RGBA8", item.SourcePath)
	}
	return payload.Bytes(), meta, nil
}

func (TextureCooker) MakeEntry(item *WorkItem, meta CookedMeta, hash uint64, size uint64, res Reservation) TextureTableEntry {
	alignment := item.Params.Alignment
	if alignment == 0 {
		alignment = CookedAlignmentDefault
	}
	return TextureTableEntry{
		DataOffset:  res.AlignedOffset,
		SizeBytes:   size,
		ContentHash: hash,
		Width:       meta.Width,
		Height:      meta.Height,
		MipLevels:   meta.MipLevels,
		Format:      meta.Format,
		Alignment:   alignment,
	}
}

func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok {
		return rgba
	}
	out := image.NewRGBA(src.Bounds())
	draw.Draw(out, out.Bounds(), src, src.Bounds().Min, draw.Src)
	return out
}

// mipChain downsamples base down to 1x1 with Catmull-Rom filtering.
func mipChain(base *image.RGBA) []*image.RGBA {
	var mips []*image.RGBA
	prev := base
	w, h := base.Bounds().Dx(), base.Bounds().Dy()
	for w > 1 || h > 1 {
		w = maxInt(1, w/2)
		h = maxInt(1, h/2)
		m := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.CatmullRom.Scale(m, m.Bounds(), prev, prev.Bounds(), xdraw.Over, nil)
		mips = append(mips, m)
		prev = m
	}
	return mips
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
