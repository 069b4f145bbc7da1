package importer

import (
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/oxygen/engine/resources/serial"
)

// MaterialSource is the authoring-side material description, parsed from
// TOML source files.
type MaterialSource struct {
	Name      string                 `toml:"name"`
	Shader    string                 `toml:"shader"`
	Textures  map[string]string      `toml:"textures"`
	Constants map[string]interface{} `toml:"constants"`
}

// AssetCooker cooks structured assets (materials, geometry, scenes) into
// serial-encoded descriptor blobs. The source format is TOML for
// materials and pre-packed binary for geometry and scenes.
type AssetCooker struct{}

func (AssetCooker) Kind() string { return "asset" }

func (AssetCooker) Validate(item *WorkItem) *Diagnostic {
	if len(item.Payload) == 0 {
		d := errorDiag(CodeReadFailed, item.SourcePath, "empty source payload")
		return &d
	}
	switch item.Params.Kind {
	case AssetKindMaterial, AssetKindGeometry, AssetKindScene:
		return nil
	default:
		d := errorDiag(CodeUnsupportedFormat, item.SourcePath,
			"unknown structured asset kind %d", item.Params.Kind)
		return &d
	}
}

func (AssetCooker) Cook(item *WorkItem, tel *Telemetry) ([]byte, CookedMeta, *Diagnostic) {
	start := time.Now()
	defer func() {
		tel.CookMs = float64(time.Since(start).Microseconds()) / 1000
	}()
	switch item.Params.Kind {
	case AssetKindMaterial:
		return cookMaterial(item)
	default:
		// Geometry and scene payloads arrive pre-packed; wrap them with a
		// kind tag so readers can dispatch without the table entry.
		w := serial.NewWriter()
		w.WriteU32(uint32(item.Params.Kind))
		if err := w.WriteBytes(item.Payload); err != nil {
			d := errorDiag(CodeDecodeFailed, item.SourcePath, "wrapping payload: %v", err)
			return nil, CookedMeta{}, &d
		}
		return w.Bytes(), CookedMeta{}, nil
	}
}

func cookMaterial(item *WorkItem) ([]byte, CookedMeta, *Diagnostic) {
	var src MaterialSource
	if err := toml.Unmarshal(item.Payload, &src); err != nil {
		d := errorDiag(CodeDecodeFailed, item.SourcePath, "parsing material: %v", err)
		return nil, CookedMeta{}, &d
	}
	if src.Name == "" || src.Shader == "" {
		d := errorDiag(CodeInvalidDimensions, item.SourcePath, "material needs a name and a shader")
		return nil, CookedMeta{}, &d
	}

	w := serial.NewWriter()
	w.WriteU32(uint32(AssetKindMaterial))
	err := w.ScopedAlignment(16, func(w *serial.Writer) error {
		if err := w.WriteString(src.Name); err != nil {
			return err
		}
		if err := w.WriteString(src.Shader); err != nil {
			return err
		}
		slots := make([]string, 0, len(src.Textures))
		for slot := range src.Textures {
			slots = append(slots, slot)
		}
		// Deterministic encode order.
		slices.Sort(slots)
		return serial.WriteVector(w, slots, func(w *serial.Writer, slot string) error {
			if err := w.WriteString(slot); err != nil {
				return err
			}
			return w.WriteString(src.Textures[slot])
		})
	})
	if err != nil {
		d := errorDiag(CodeDecodeFailed, item.SourcePath, "encoding material: %v", err)
		return nil, CookedMeta{}, &d
	}
	return w.Bytes(), CookedMeta{}, nil
}

func (AssetCooker) MakeEntry(item *WorkItem, _ CookedMeta, hash uint64, size uint64, res Reservation) AssetTableEntry {
	alignment := item.Params.Alignment
	if alignment == 0 {
		alignment = CookedAlignmentDefault
	}
	return AssetTableEntry{
		DataOffset:  res.AlignedOffset,
		SizeBytes:   size,
		ContentHash: hash,
		Kind:        item.Params.Kind,
		Alignment:   alignment,
	}
}
