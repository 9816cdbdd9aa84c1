package loaders

import (
	"fmt"

	"github.com/spaghettifunk/talos/engine/core"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
)

// LoadTexture decodes the layers of a texture. A 2D texture uses the first
// file, a cube the first six in +X, -X, +Y, -Y, +Z, -Z order; every layer must
// share the first one's size.
func LoadTexture(name string, paths []string, textureType metadata.TextureType) (*metadata.Texture, error) {
	layers := textureType.Layers()
	if len(paths) != layers {
		core.LogWarn("texture %s expects %d file(s), got %d", name, layers, len(paths))
	}
	if len(paths) < layers {
		return nil, fmt.Errorf("texture %s: need %d file(s), got %d", name, layers, len(paths))
	}

	tex := &metadata.Texture{TextureType: textureType, Name: name}
	for i, path := range paths[:layers] {
		img, err := LoadImage(path)
		if err != nil {
			return nil, fmt.Errorf("texture %s: %w", name, err)
		}
		w, h := uint32(img.Rect.Dx()), uint32(img.Rect.Dy())
		if i == 0 {
			tex.Width, tex.Height = w, h
		} else if w != tex.Width || h != tex.Height {
			return nil, fmt.Errorf("texture %s: layer %s is %dx%d, want %dx%d", name, path, w, h, tex.Width, tex.Height)
		}
		tex.Pixels = append(tex.Pixels, img.Pix)
	}
	return tex, nil
}
