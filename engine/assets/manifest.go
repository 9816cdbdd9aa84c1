package assets

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
)

// Manifest lists the files a scene asset key depends on. Relative paths are
// resolved against the manifest's directory.
//
//	model    = "cyndaquil.obj"
//	material = "cyndaquil.mtl"
//	textures = ["cyndaquil.png"]
//	cube     = false
type Manifest struct {
	Model    string   `toml:"model"`
	Material string   `toml:"material"`
	Textures []string `toml:"textures"`
	Cube     bool     `toml:"cube"`
}

func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	m := &Manifest{}
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	m.resolve(filepath.Dir(path))
	return m, nil
}

func (m *Manifest) resolve(dir string) {
	join := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	m.Model = join(m.Model)
	m.Material = join(m.Material)
	for i, t := range m.Textures {
		m.Textures[i] = join(t)
	}
}

func (m *Manifest) TextureType() metadata.TextureType {
	if m.Cube {
		return metadata.TextureTypeCube
	}
	return metadata.TextureType2d
}

// HasModel reports whether the manifest describes a mesh.
func (m *Manifest) HasModel() bool {
	return m.Model != ""
}
