package importer

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/oxygen/engine/core"
)

// Manifest lists source assets to import as one batch.
type Manifest struct {
	Sources []ManifestSource `toml:"sources"`
}

type ManifestSource struct {
	Path         string `toml:"path"`
	Type         string `toml:"type"`
	GenerateMips bool   `toml:"generate_mips"`
	EncodeBC7    bool   `toml:"encode_bc7"`
	Alignment    uint32 `toml:"alignment"`
}

// LoadManifest parses a TOML import manifest. Relative source paths are
// resolved against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.WrapError(core.KindIOError, err, "reading manifest %q", path)
	}
	m := &Manifest{}
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, core.WrapError(core.KindIntegrityError, err, "parsing manifest %q", path)
	}
	base := filepath.Dir(path)
	for i := range m.Sources {
		if !filepath.IsAbs(m.Sources[i].Path) {
			m.Sources[i].Path = filepath.Join(base, m.Sources[i].Path)
		}
	}
	return m, nil
}

// SubmitManifest submits every manifest source and returns the job ids in
// manifest order.
func SubmitManifest(svc *Service, m *Manifest, onComplete CompleteFunc, onProgress ProgressFunc) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(m.Sources))
	for _, src := range m.Sources {
		req := ImportRequest{
			SourcePath: src.Path,
			Type:       manifestType(src.Type),
			Params: CookParams{
				GenerateMips: src.GenerateMips,
				EncodeBC7:    src.EncodeBC7,
				Alignment:    src.Alignment,
			},
		}
		id, err := svc.SubmitImport(req, onComplete, onProgress)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func manifestType(name string) AssetType {
	switch name {
	case "texture":
		return AssetTexture
	case "buffer":
		return AssetBuffer
	case "material":
		return AssetMaterial
	case "geometry":
		return AssetGeometry
	case "scene":
		return AssetScene
	}
	return AssetAuto
}
