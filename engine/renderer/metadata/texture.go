package metadata

/**
 * @brief Represents various types of textures.
 */
type TextureType int

const (
	/** @brief A standard two-dimensional texture. */
	TextureType2d TextureType = iota
	/** @brief A cube texture, used for cubemaps. */
	TextureTypeCube
)

// Layers returns the number of image layers the type needs.
func (t TextureType) Layers() int {
	if t == TextureTypeCube {
		return 6
	}
	return 1
}

/**
 * @brief Represents a texture. Pixels holds one tightly packed RGBA8 slice
 * per layer until the texture is uploaded; the GPU handles are set after.
 */
type Texture struct {
	/** @brief The texture type. */
	TextureType TextureType
	/** @brief The texture Width. */
	Width uint32
	/** @brief The texture Height. */
	Height uint32
	/** @brief The texture Name, usually the asset key. */
	Name string
	/** @brief Raw pixels, one entry per layer. */
	Pixels [][]byte

	Image   Image
	Sampler Sampler
	// Set is the sampler descriptor set binding this texture.
	Set DescriptorSet
	// Pool backs Set; it is owned by the texture.
	Pool DescriptorPool
}

// Uploaded reports whether the device image exists.
func (t *Texture) Uploaded() bool {
	return t.Image != nil
}

// Destroy releases the device handles. The CPU pixels are kept.
func (t *Texture) Destroy() {
	if t.Pool != nil {
		t.Pool.Destroy()
		t.Pool = nil
		t.Set = nil
	}
	if t.Sampler != nil {
		t.Sampler.Destroy()
		t.Sampler = nil
	}
	if t.Image != nil {
		t.Image.Destroy()
		t.Image = nil
	}
}

// NewFallbackTexture returns a 1x1 magenta texture for every layer.
func NewFallbackTexture(name string, textureType TextureType) *Texture {
	t := &Texture{TextureType: textureType, Width: 1, Height: 1, Name: name}
	for i := 0; i < textureType.Layers(); i++ {
		t.Pixels = append(t.Pixels, []byte{255, 0, 255, 255})
	}
	return t
}
